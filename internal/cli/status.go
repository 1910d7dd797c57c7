package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/tkstore/tks/internal/store"

	flag "github.com/spf13/pflag"
)

var errStatusArgsRequired = errors.New("usage: status <ref> <new-status>")

// StatusCmd returns the status command.
func StatusCmd(repo *store.Repository) *Command {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)

	return &Command{
		Flags: fs,
		Usage: "status <ref> <new-status>",
		Short: "Transition a ticket's status",
		Long: `Transition rules:
  todo -> doing | blocked | done
  doing -> blocked | review | done
  blocked -> todo | doing
  review -> doing | done
  done -> doing`,
		Exec: func(_ context.Context, io *IO, args []string) error {
			if len(args) < 2 {
				return errStatusArgsRequired
			}

			t, err := repo.LoadTicket(args[0])
			if err != nil {
				return fmt.Errorf("load ticket: %w", err)
			}

			t.Status = args[1]

			if err := repo.SaveTicket(t); err != nil {
				return fmt.Errorf("save ticket: %w", err)
			}

			io.Println(t.ID, "->", t.Status)

			return nil
		},
	}
}
