package cli

import (
	"context"
	"fmt"

	"github.com/tkstore/tks/internal/store"

	flag "github.com/spf13/pflag"
)

// ActiveCmd returns the active command.
func ActiveCmd(repo *store.Repository) *Command {
	fs := flag.NewFlagSet("active", flag.ContinueOnError)
	fs.String("set", "", "Set the active ticket to this ref")
	fs.Bool("clear", false, "Clear the active ticket")

	return &Command{
		Flags: fs,
		Usage: "active [--set <ref>|--clear]",
		Short: "Get, set, or clear the active ticket",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			clear, _ := fs.GetBool("clear")
			ref, _ := fs.GetString("set")

			switch {
			case clear:
				if err := repo.ClearActive(); err != nil {
					return fmt.Errorf("clear active: %w", err)
				}

				return nil
			case ref != "":
				t, err := repo.LoadTicket(ref)
				if err != nil {
					return fmt.Errorf("load ticket: %w", err)
				}

				if err := repo.SetActive(t.ID); err != nil {
					return fmt.Errorf("set active: %w", err)
				}

				io.Println(t.ID)

				return nil
			default:
				id, ok, err := repo.GetActive()
				if err != nil {
					return fmt.Errorf("get active: %w", err)
				}

				if !ok {
					io.Println("(none)")

					return nil
				}

				io.Println(id)

				return nil
			}
		},
	}
}
