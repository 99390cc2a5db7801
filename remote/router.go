package remote

import (
	"context"
	"io"
	"time"
)

// compile-time interface check.
var _ Executor = (*Router)(nil)

// Router sends commands for Local to one executor and everything else to another.
// It also applies the optional per-command timeout to Run.
type Router struct {
	local   Executor
	remote  Executor
	timeout time.Duration
}

// NewRouter creates a Router. A zero timeout leaves Run unbounded.
func NewRouter(local, remote Executor, timeout time.Duration) *Router {
	return &Router{local: local, remote: remote, timeout: timeout}
}

func (r *Router) Run(ctx context.Context, host string, cmd Command) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return r.pick(host).Run(ctx, host, cmd)
}

// Stream is never time-bounded: bulk copies take as long as they take.
func (r *Router) Stream(ctx context.Context, host string, cmd Command, stdin io.Reader, stdout io.Writer) error {
	return r.pick(host).Stream(ctx, host, cmd, stdin, stdout)
}

func (r *Router) pick(host string) Executor {
	if host == Local || host == "" {
		return r.local
	}
	return r.remote
}
