package cli

import (
	"context"
	"fmt"

	"github.com/tkstore/tks/internal/store"

	flag "github.com/spf13/pflag"
)

// ArchiveCmd returns the archive command.
func ArchiveCmd(repo *store.Repository) *Command {
	fs := flag.NewFlagSet("archive", flag.ContinueOnError)

	return &Command{
		Flags: fs,
		Usage: "archive <ref>",
		Short: "Relocate a ticket into the archive",
		Exec: func(_ context.Context, io *IO, args []string) error {
			if len(args) == 0 || args[0] == "" {
				return errRefRequired
			}

			t, err := repo.LoadTicket(args[0])
			if err != nil {
				return fmt.Errorf("load ticket: %w", err)
			}

			if err := repo.ArchiveTicket(t.ID); err != nil {
				return fmt.Errorf("archive ticket: %w", err)
			}

			io.Println(t.ID)

			return nil
		},
	}
}

// UnarchiveCmd returns the unarchive command. Unlike archive, it takes a
// bare id rather than a ref: an archived ticket is no longer part of the
// live candidate set that ref resolution searches.
func UnarchiveCmd(repo *store.Repository) *Command {
	fs := flag.NewFlagSet("unarchive", flag.ContinueOnError)

	return &Command{
		Flags: fs,
		Usage: "unarchive <id>",
		Short: "Relocate an archived ticket back into the live set",
		Exec: func(_ context.Context, io *IO, args []string) error {
			if len(args) == 0 || args[0] == "" {
				return errRefRequired
			}

			if err := repo.UnarchiveTicket(args[0]); err != nil {
				return fmt.Errorf("unarchive ticket: %w", err)
			}

			io.Println(args[0])

			return nil
		},
	}
}
