package cli

import (
	"context"

	"github.com/tkstore/tks/internal/store"

	flag "github.com/spf13/pflag"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(cfg store.Config) *Command {
	fs := flag.NewFlagSet("print-config", flag.ContinueOnError)

	return &Command{
		Flags: fs,
		Usage: "print-config",
		Short: "Show resolved configuration",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			io.Printf("ticket_dir: %s\n", cfg.TicketDirAbs)

			if cfg.Editor != "" {
				io.Printf("editor: %s\n", cfg.Editor)
			}

			io.Println()
			io.Println("# Sources:")

			if cfg.Sources.Global != "" {
				io.Println("#   global:", cfg.Sources.Global)
			}

			if cfg.Sources.Project != "" {
				io.Println("#   project:", cfg.Sources.Project)
			}

			if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
				io.Println("#   (using defaults only)")
			}

			return nil
		},
	}
}
