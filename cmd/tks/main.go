// Command tks is a concurrent, file-backed ticket store for developer
// workflows.
package main

import (
	"os"
	"strings"

	"github.com/tkstore/tks/internal/cli"
)

func main() {
	environ := os.Environ()
	env := make(map[string]string, len(environ))

	for _, e := range environ {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}

	os.Exit(cli.Run(os.Stdin, os.Stdout, os.Stderr, os.Args, env))
}
