package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/tkstore/tks/internal/store"

	flag "github.com/spf13/pflag"
)

var errRefRequired = errors.New("ticket reference is required")

// ShowCmd returns the show command.
func ShowCmd(repo *store.Repository) *Command {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)

	return &Command{
		Flags: fs,
		Usage: "show <ref>",
		Short: "Print a ticket",
		Exec: func(_ context.Context, io *IO, args []string) error {
			if len(args) == 0 || args[0] == "" {
				return errRefRequired
			}

			t, err := repo.LoadTicket(args[0])
			if err != nil {
				return fmt.Errorf("load ticket: %w", err)
			}

			printTicket(io, t)

			return nil
		},
	}
}

func printTicket(io *IO, t *store.Ticket) {
	statusD := store.StatusDisplayOf(t.Status)
	priorityD := store.PriorityDisplayOf(t.Priority)

	io.Printf("%s  %s\n", t.ID, t.Slug)
	io.Printf("%s %s   %s %s\n", statusD.Emoji, statusD.Label, priorityD.Emoji, priorityD.Label)
	io.Printf("Title: %s\n", t.Title)

	if t.Assignee != "" {
		io.Printf("Assignee: %s\n", t.Assignee)
	}

	if len(t.Tags) > 0 {
		io.Printf("Tags: %v\n", t.Tags)
	}

	if t.Description != "" {
		io.Println()
		io.Println(t.Description)
	}

	if len(t.Tasks) > 0 {
		io.Println()
		io.Println("Tasks:")

		for _, task := range t.Tasks {
			mark := " "
			if task.Done {
				mark = "x"
			}

			io.Printf("  [%s] %s\n", mark, task.Title)
		}
	}
}
