package cli

import (
	"fmt"
	"io"
)

// IO carries a command's output streams plus any warnings collected along
// the way. Warnings are not errors — the command still produces its normal
// output — but they surface on stderr when the command finishes and force
// a nonzero exit, so a scripted caller cannot mistake a degraded run for a
// clean one.
type IO struct {
	out      io.Writer
	errOut   io.Writer
	warnings []warning
}

type warning struct {
	issue  string
	action string
}

// NewIO wraps the command's stdout and stderr.
func NewIO(out, errOut io.Writer) *IO {
	return &IO{out: out, errOut: errOut}
}

// Warn records a degraded-but-not-fatal condition: issue names what went
// wrong, action what the caller should do about it.
func (o *IO) Warn(issue, action string) {
	o.warnings = append(o.warnings, warning{issue: issue, action: action})
}

// Println writes a line to stdout.
func (o *IO) Println(a ...any) {
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes formatted output to stdout.
func (o *IO) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// ErrPrintln writes a line straight to stderr, for fatal command errors
// that must be visible immediately rather than deferred to Finish.
func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// Finish flushes collected warnings to stderr and returns the exit code:
// 1 when anything was warned about, 0 otherwise.
func (o *IO) Finish() int {
	for _, w := range o.warnings {
		_, _ = fmt.Fprintf(o.errOut, "warning: %s (%s)\n", w.issue, w.action)
	}

	if len(o.warnings) > 0 {
		return 1
	}

	return 0
}
