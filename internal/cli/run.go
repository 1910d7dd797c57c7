package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tkstore/tks/internal/store"
)

const (
	minArgs      = 2
	consumedOne  = 1
	consumedTwo  = 2
	consumedNone = 0
	helpFlag     = "--help"
)

var (
	errFlagRequiresArg = errors.New("flag requires an argument")
	errUnknownFlag     = errors.New("unknown flag")
)

// Run is the main entry point. Returns exit code.
func Run(_ io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string) int {
	if len(args) < minArgs {
		printUsage(out)

		return 0
	}

	flags, err := parseGlobalFlags(args[1:])
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	cfg, err := store.LoadConfig(store.LoadConfigInput{
		WorkDirOverride:   flags.workDir,
		ConfigPath:        flags.configPath,
		TicketDirOverride: flags.ticketDir,
		Env:               env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut)

		return 1
	}

	if len(flags.remaining) == 0 {
		printUsage(out)

		return 0
	}

	name := flags.remaining[0]

	if name == "-h" || name == helpFlag {
		printUsage(out)

		return 0
	}

	repo := store.NewRepository(cfg.TicketDirAbs, nil)
	ioCtx := NewIO(out, errOut)
	commands := registerCommands(repo, cfg)

	cmd, ok := commands[name]
	if !ok {
		fprintln(errOut, "error: unknown command:", name)
		printUsage(errOut)

		return 1
	}

	exitCode := cmd.Run(context.Background(), ioCtx, flags.remaining[1:])
	if exitCode != 0 {
		return exitCode
	}

	return ioCtx.Finish()
}

func registerCommands(repo *store.Repository, cfg store.Config) map[string]*Command {
	list := []*Command{
		InitCmd(repo),
		CreateCmd(repo),
		ShowCmd(repo),
		LsCmd(repo),
		StatusCmd(repo),
		ArchiveCmd(repo),
		UnarchiveCmd(repo),
		RmCmd(repo),
		ActiveCmd(repo),
		PrintConfigCmd(cfg),
		ConfigSetCmd(cfg),
	}

	byName := make(map[string]*Command, len(list))
	for _, c := range list {
		byName[c.Name()] = c
	}

	return byName
}

type globalFlags struct {
	workDir    string
	configPath string
	ticketDir  string
	remaining  []string
}

func parseGlobalFlags(args []string) (globalFlags, error) {
	var flags globalFlags

	idx := 0
	for idx < len(args) {
		consumed, err := parseFlag(args, idx, &flags)
		if err != nil {
			return globalFlags{}, err
		}

		if consumed == 0 {
			flags.remaining = args[idx:]

			break
		}

		idx += consumed
	}

	return flags, nil
}

// parseFlag tries to parse a flag at args[idx]. Returns the number of args
// consumed (0 if not a flag).
func parseFlag(args []string, idx int, flags *globalFlags) (int, error) {
	arg := args[idx]

	if (arg == "-C" || arg == "--cwd") && idx+1 < len(args) {
		flags.workDir = args[idx+1]

		return consumedTwo, nil
	}

	if after, ok := strings.CutPrefix(arg, "--cwd="); ok {
		flags.workDir = after

		return consumedOne, nil
	}

	if arg == "-c" || arg == "--config" {
		if idx+1 >= len(args) {
			return consumedNone, fmt.Errorf("%w: %s", errFlagRequiresArg, arg)
		}

		flags.configPath = args[idx+1]

		return consumedTwo, nil
	}

	if after, ok := strings.CutPrefix(arg, "--config="); ok {
		flags.configPath = after

		return consumedOne, nil
	}

	if arg == "--ticket-dir" {
		if idx+1 >= len(args) {
			return consumedNone, fmt.Errorf("%w: %s", errFlagRequiresArg, arg)
		}

		flags.ticketDir = args[idx+1]

		return consumedTwo, nil
	}

	if after, ok := strings.CutPrefix(arg, "--ticket-dir="); ok {
		flags.ticketDir = after

		return consumedOne, nil
	}

	if arg == "-h" || arg == helpFlag {
		flags.remaining = []string{helpFlag}

		return len(args) - idx, nil
	}

	if strings.HasPrefix(arg, "-") && arg != "-" {
		return consumedNone, fmt.Errorf("%w: %s", errUnknownFlag, arg)
	}

	return consumedNone, nil
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(writer io.Writer) {
	fprintln(writer, `tks - a concurrent, file-backed ticket store

Usage: tks [options] <command> [args]

Options:
  -C, --cwd <dir>      Run as if started in <dir>
  -c, --config <file>  Use the specified config file
  --ticket-dir <dir>   Override the configured ticket directory

Commands:`)
	fprintln(writer, InitCmd(nil).HelpLine())
	fprintln(writer, CreateCmd(nil).HelpLine())
	fprintln(writer, ShowCmd(nil).HelpLine())
	fprintln(writer, LsCmd(nil).HelpLine())
	fprintln(writer, StatusCmd(nil).HelpLine())
	fprintln(writer, ArchiveCmd(nil).HelpLine())
	fprintln(writer, UnarchiveCmd(nil).HelpLine())
	fprintln(writer, RmCmd(nil).HelpLine())
	fprintln(writer, ActiveCmd(nil).HelpLine())
	fprintln(writer, `  print-config                 Show resolved configuration`)
	fprintln(writer, ConfigSetCmd(store.Config{}).HelpLine())
}
