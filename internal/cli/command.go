package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tkstore/tks/internal/store"

	flag "github.com/spf13/pflag"
)

// Command is one tks subcommand: its flag set, its help text, and an Exec
// body that runs against the repository. The first word of Usage doubles
// as the command's name in dispatch.
type Command struct {
	Flags *flag.FlagSet
	Usage string // e.g. "show <ref>", "create <title> [flags]"
	Short string // one-liner for the global command listing
	Long  string // full description; falls back to Short when empty
	Exec  func(ctx context.Context, o *IO, args []string) error
}

// Name returns the dispatch name, the first word of Usage.
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")

	return name
}

// HelpLine renders the command's row in the global usage listing.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-28s %s", c.Usage, c.Short)
}

// PrintHelp renders the full help for "tks <cmd> --help".
func (c *Command) PrintHelp(o *IO) {
	o.Printf("Usage: tks %s\n\n", c.Usage)

	if c.Long != "" {
		o.Println(c.Long)
	} else {
		o.Println(c.Short)
	}

	if c.Flags != nil && c.Flags.HasFlags() {
		o.Printf("\nFlags:\n%s", c.Flags.FlagUsages())
	}
}

// Run parses flags and executes the command, translating the outcome into
// an exit code. Store failures that have an obvious next step for the user
// get a hint line after the error.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	c.Flags.SetOutput(io.Discard) // errors are reported below, once

	switch err := c.Flags.Parse(args); {
	case errors.Is(err, flag.ErrHelp):
		c.PrintHelp(o)

		return 0
	case err != nil:
		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		c.PrintHelp(o)

		return 1
	}

	err := c.Exec(ctx, o, c.Flags.Args())
	if err == nil {
		return 0
	}

	o.ErrPrintln("error:", err)

	if hint := hintFor(err); hint != "" {
		o.ErrPrintln("hint:", hint)
	}

	return 1
}

// hintFor maps the store's sentinel failures to a one-line next step.
// Failures without an obvious remedy get no hint; the error text stands
// alone.
func hintFor(err error) string {
	switch {
	case errors.Is(err, store.ErrNotInitialized):
		return "run 'tks init' first"
	case errors.Is(err, store.ErrAmbiguousPrefix):
		return "give more characters of the id or slug"
	case errors.Is(err, store.ErrContention):
		return "another tks process holds this ticket's lock; retry in a moment"
	case errors.Is(err, store.ErrInvalidTransition):
		return "see 'tks status --help' for the legal transitions"
	default:
		return ""
	}
}
