package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/shuttle/remote"
)

// Entry is one compensating action: a command to run on Host that releases a
// resource acquired earlier. Undo commands must be safe to run when the
// forward action only partially happened (unmount-if-mounted, not unmount).
type Entry struct {
	Desc string
	Host string
	Undo remote.Command
}

// Ledger records undo actions in acquisition order and runs them in reverse.
type Ledger struct {
	exec remote.Executor
	out  io.Writer

	mu        sync.Mutex
	entries   []Entry
	unwinding bool
}

// New creates an empty Ledger. Every undo is echoed to out before it runs.
func New(exec remote.Executor, out io.Writer) *Ledger {
	if out == nil {
		out = io.Discard
	}
	return &Ledger{exec: exec, out: out}
}

// Register appends an undo action. Empty undo commands are dropped, and so
// is anything registered once UnwindAll has started.
func (l *Ledger) Register(ctx context.Context, desc, host string, undo remote.Command) {
	if undo.IsZero() {
		log.WithFunc("ledger.Register").Warnf(ctx, "empty undo for %q on %s, not tracking", desc, host)
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unwinding {
		log.WithFunc("ledger.Register").Warnf(ctx, "unwind in progress, not tracking %q on %s", desc, host)
		return
	}
	l.entries = append(l.entries, Entry{Desc: desc, Host: host, Undo: undo})
}

// Len returns the number of entries not yet unwound.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// UnwindAll runs every pending undo, last registered first. A failing undo is
// logged and the rest still run; the failures are returned joined. Calling it
// again is a no-op.
func (l *Ledger) UnwindAll(ctx context.Context) error {
	l.mu.Lock()
	l.unwinding = true
	entries := l.entries
	l.entries = nil
	l.mu.Unlock()

	logger := log.WithFunc("ledger.UnwindAll")
	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		_, _ = fmt.Fprintf(l.out, "undo [%s] %s: %s\n", e.Host, e.Desc, e.Undo)
		if _, err := l.exec.Run(ctx, e.Host, e.Undo); err != nil {
			logger.Warnf(ctx, "undo %s on %s: %v (continuing)", e.Desc, e.Host, err)
			errs = append(errs, fmt.Errorf("undo %s: %w", e.Desc, err))
		}
	}
	return errors.Join(errs...)
}
