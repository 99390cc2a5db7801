package local

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"

	"github.com/projecteru2/shuttle/remote"
)

// compile-time interface check.
var _ remote.Executor = (*Executor)(nil)

// Executor runs commands on the control node through sh -c.
type Executor struct {
	// Shell is the interpreter used for command lines. Defaults to /bin/sh.
	Shell string
}

// New creates a local Executor.
func New() *Executor {
	return &Executor{Shell: "/bin/sh"}
}

func (e *Executor) Run(ctx context.Context, host string, cmd remote.Command) (string, error) {
	var stdout bytes.Buffer
	if err := e.Stream(ctx, host, cmd, nil, &stdout); err != nil {
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (e *Executor) Stream(ctx context.Context, host string, cmd remote.Command, stdin io.Reader, stdout io.Writer) error {
	line := cmd.String()
	var stderr bytes.Buffer
	c := exec.CommandContext(ctx, e.Shell, "-c", line) //nolint:gosec // command lines are built by the workflow
	c.Stdin = stdin
	c.Stdout = stdout
	c.Stderr = &stderr
	if err := c.Run(); err != nil {
		status := -1
		var ee *exec.ExitError
		if errors.As(err, &ee) && ctx.Err() == nil {
			status = ee.ExitCode()
		}
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return &remote.ExecError{
			Host:       hostName(host),
			Command:    line,
			ExitStatus: status,
			Stderr:     remote.TailStderr(stderr.String()),
			Err:        err,
		}
	}
	return nil
}

func hostName(host string) string {
	if host == "" {
		return remote.Local
	}
	return host
}
