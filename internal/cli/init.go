package cli

import (
	"context"

	"github.com/tkstore/tks/internal/store"

	flag "github.com/spf13/pflag"
)

// InitCmd returns the init command.
func InitCmd(repo *store.Repository) *Command {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.String("name", "", "Project name")
	fs.Bool("force", false, "Re-initialize without touching existing tickets")

	return &Command{
		Flags: fs,
		Usage: "init [--name] [--force]",
		Short: "Initialize a project in the current ticket directory",
		Long: `Create the on-disk layout and an empty project state.

Fails if the directory is already initialized unless --force is given, in
which case every existing ticket file is left untouched.`,
		Exec: func(_ context.Context, io *IO, _ []string) error {
			name, _ := fs.GetString("name")
			force, _ := fs.GetBool("force")

			if err := repo.Initialize(name, "", force); err != nil {
				return err
			}

			io.Println("initialized")

			return nil
		},
	}
}
