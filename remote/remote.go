package remote

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Local routes a command to the control node itself instead of a remote host.
const Local = "local"

// stderrTail is how much of a failed command's stderr is kept in ExecError.
const stderrTail = 2048

// Executor runs commands on named hosts. All remote state changes go through it.
type Executor interface {
	// Run executes cmd on host and returns its stdout with surrounding
	// whitespace trimmed. A non-zero exit is reported as *ExecError.
	Run(ctx context.Context, host string, cmd Command) (string, error)
	// Stream executes cmd on host with raw stdin/stdout. Either may be nil.
	Stream(ctx context.Context, host string, cmd Command, stdin io.Reader, stdout io.Writer) error
}

// Command is one shell command line. Build it from an argv with Cmd (each
// argument is quoted) or from a prepared line with Shell.
type Command struct {
	argv []string
	line string
}

// Cmd builds a Command from an argv. Arguments are shell-quoted when rendered.
func Cmd(argv ...string) Command {
	return Command{argv: argv}
}

// Shell builds a Command from a line that is passed to the remote shell as is.
// Use Quote for any operand that comes from outside.
func Shell(format string, args ...any) Command {
	return Command{line: fmt.Sprintf(format, args...)}
}

// String renders the command as a single shell line.
func (c Command) String() string {
	if c.argv == nil {
		return c.line
	}
	return shellquote.Join(c.argv...)
}

// IsZero reports whether the command is empty.
func (c Command) IsZero() bool {
	return len(c.argv) == 0 && c.line == ""
}

// Quote shell-quotes a single operand.
func Quote(s string) string {
	return shellquote.Join(s)
}

// ExecError is returned when a command could not be run or exited non-zero.
type ExecError struct {
	Host    string
	Command string
	// ExitStatus is the command's exit code, -1 when it never completed
	// (transport failure, cancellation).
	ExitStatus int
	Stderr     string
	Err        error
}

func (e *ExecError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: ", e.Host, e.Command)
	if e.ExitStatus >= 0 {
		fmt.Fprintf(&b, "exit status %d", e.ExitStatus)
	} else {
		fmt.Fprintf(&b, "%v", e.Err)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		fmt.Fprintf(&b, ": %s", s)
	}
	return b.String()
}

func (e *ExecError) Unwrap() error { return e.Err }

// TailStderr keeps only the last part of a command's stderr.
func TailStderr(s string) string {
	if len(s) <= stderrTail {
		return s
	}
	return s[len(s)-stderrTail:]
}
