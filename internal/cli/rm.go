package cli

import (
	"context"
	"fmt"

	"github.com/tkstore/tks/internal/store"

	flag "github.com/spf13/pflag"
)

// RmCmd returns the rm command.
func RmCmd(repo *store.Repository) *Command {
	fs := flag.NewFlagSet("rm", flag.ContinueOnError)

	return &Command{
		Flags: fs,
		Usage: "rm <ref>",
		Short: "Delete a ticket",
		Exec: func(_ context.Context, io *IO, args []string) error {
			if len(args) == 0 || args[0] == "" {
				return errRefRequired
			}

			t, err := repo.LoadTicket(args[0])
			if err != nil {
				return fmt.Errorf("load ticket: %w", err)
			}

			if err := repo.DeleteTicket(t.ID); err != nil {
				return fmt.Errorf("delete ticket: %w", err)
			}

			io.Println(t.ID)

			return nil
		},
	}
}
