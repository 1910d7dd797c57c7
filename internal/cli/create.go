package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/tkstore/tks/internal/store"

	flag "github.com/spf13/pflag"
)

var errTitleRequired = errors.New("title is required")

// CreateCmd returns the create command.
func CreateCmd(repo *store.Repository) *Command {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.StringP("description", "d", "", "Description text")
	fs.StringP("priority", "p", store.PriorityMedium, "Priority: low|medium|high|critical")
	fs.StringSlice("tags", nil, "Tags (repeatable, comma-separated)")
	fs.StringP("assignee", "a", "", "Assignee name")
	fs.String("slug", "", "Kebab-case slug base [default: derived from title]")

	return &Command{
		Flags: fs,
		Usage: "create <title> [flags]",
		Short: "Create a ticket, prints its id",
		Exec: func(_ context.Context, io *IO, args []string) error {
			title := ""
			if len(args) > 0 {
				title = args[0]
			}

			if title == "" {
				return errTitleRequired
			}

			description, _ := fs.GetString("description")
			priority, _ := fs.GetString("priority")
			tags, _ := fs.GetStringSlice("tags")
			assignee, _ := fs.GetString("assignee")
			slugBase, _ := fs.GetString("slug")

			if slugBase == "" {
				slugBase = kebabify(title)
			}

			t, err := repo.CreateTicket(store.Draft{
				SlugBase:    slugBase,
				Title:       title,
				Description: description,
				Priority:    priority,
				Tags:        tags,
				Assignee:    assignee,
			})
			if err != nil {
				return fmt.Errorf("create ticket: %w", err)
			}

			io.Println(t.ID)

			return nil
		},
	}
}

// kebabify derives a slug base from a free-form title: ASCII letters are
// lowercased, ASCII digits kept, and every run of any other characters
// folded to a single hyphen; leading and trailing hyphens are dropped, and
// a title with no letters or digits yields "ticket".
func kebabify(title string) string {
	out := make([]byte, 0, len(title))
	lastHyphen := true

	for _, r := range title {
		switch {
		case r >= 'A' && r <= 'Z':
			out = append(out, byte(r-'A'+'a'))
			lastHyphen = false
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			out = append(out, byte(r))
			lastHyphen = false
		case !lastHyphen:
			out = append(out, '-')
			lastHyphen = true
		}
	}

	for len(out) > 0 && out[len(out)-1] == '-' {
		out = out[:len(out)-1]
	}

	if len(out) == 0 {
		return "ticket"
	}

	return string(out)
}
