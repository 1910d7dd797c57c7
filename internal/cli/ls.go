package cli

import (
	"context"
	"fmt"

	"github.com/tkstore/tks/internal/store"

	flag "github.com/spf13/pflag"
)

// LsCmd returns the ls command.
func LsCmd(repo *store.Repository) *Command {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	fs.String("status", "", "Filter by status")
	fs.String("priority", "", "Filter by priority")
	fs.String("assignee", "", "Filter by assignee")
	fs.String("tag", "", "Filter by tag")

	return &Command{
		Flags: fs,
		Usage: "ls [flags]",
		Short: "List live tickets",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			status, _ := fs.GetString("status")
			priority, _ := fs.GetString("priority")
			assignee, _ := fs.GetString("assignee")
			tag, _ := fs.GetString("tag")

			// An out-of-enumeration filter value matches nothing, which
			// looks identical to an empty project; flag it instead of
			// letting the caller chase a phantom empty listing.
			if status != "" && !store.IsValidStatus(status) {
				io.Warn("unknown status "+status, "valid: todo|doing|done|blocked|review")
			}

			if priority != "" && !store.IsValidPriority(priority) {
				io.Warn("unknown priority "+priority, "valid: low|medium|high|critical")
			}

			tickets, err := repo.ListTickets(store.Filter{
				Status:   status,
				Priority: priority,
				Assignee: assignee,
				Tag:      tag,
			})
			if err != nil {
				return fmt.Errorf("list tickets: %w", err)
			}

			for _, t := range tickets {
				statusD := store.StatusDisplayOf(t.Status)
				io.Printf("%s  %s %-8s %s\n", shortID(t.ID), statusD.Emoji, t.Status, t.Title)
			}

			return nil
		},
	}
}

func shortID(id string) string {
	const shortLen = 8
	if len(id) <= shortLen {
		return id
	}

	return id[:shortLen]
}
