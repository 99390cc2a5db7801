package preflight

import (
	"context"
	"fmt"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/shuttle/cluster"
	"github.com/projecteru2/shuttle/remote"
)

// Causes reported by Error.
const (
	CauseSourceControlNode = "not on source control node"
	CauseDestinationNode   = "cannot reach destination node"
	CauseDestinationMaster = "cannot reach destination control node"
)

// Error reports why the migration cannot start. Nothing has been changed
// anywhere when it is returned.
type Error struct {
	Cause string
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "preflight: " + e.Cause
	}
	return fmt.Sprintf("preflight: %s: %v", e.Cause, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Validate checks that this control node owns instance and that node and
// its control node answer over SSH. It returns the destination master.
// Only read-only commands are issued.
func Validate(ctx context.Context, exec remote.Executor, c *cluster.Client, instance, node string) (string, error) {
	logger := log.WithFunc("preflight.Validate")

	if err := c.Lookup(ctx, instance); err != nil {
		return "", &Error{Cause: CauseSourceControlNode, Err: err}
	}
	if _, err := exec.Run(ctx, node, remote.Cmd("true")); err != nil {
		return "", &Error{Cause: CauseDestinationNode, Err: err}
	}
	master, err := c.Master(ctx, node)
	if err != nil {
		return "", &Error{Cause: CauseDestinationMaster, Err: err}
	}
	if _, err := exec.Run(ctx, master, remote.Cmd("true")); err != nil {
		return "", &Error{Cause: CauseDestinationMaster, Err: err}
	}
	logger.Infof(ctx, "%s reachable, managed by %s", node, master)
	return master, nil
}
