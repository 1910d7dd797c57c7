package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/tkstore/tks/internal/store"

	flag "github.com/spf13/pflag"
)

var errConfigArgsRequired = errors.New("usage: config set <ticket-dir|editor> <value>")

// ConfigSetCmd returns the config-set command.
func ConfigSetCmd(cfg store.Config) *Command {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)

	return &Command{
		Flags: fs,
		Usage: "config set <ticket-dir|editor> <value>",
		Short: "Persist a setting to the project config file",
		Exec: func(_ context.Context, io *IO, args []string) error {
			if len(args) < 3 || args[0] != "set" {
				return errConfigArgsRequired
			}

			var overrides store.Config

			switch args[1] {
			case "ticket-dir":
				overrides.TicketDir = args[2]
			case "editor":
				overrides.Editor = args[2]
			default:
				return fmt.Errorf("%w: unknown key %q", errConfigArgsRequired, args[1])
			}

			saved, err := store.SaveProjectConfig(cfg.EffectiveCwd, overrides)
			if err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			io.Printf("ticket_dir: %s\n", saved.TicketDir)

			return nil
		},
	}
}
