package migrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/projecteru2/core/log"
)

// MaxHistory bounds how many runs the history file keeps.
const MaxHistory = 200

// Record is the outcome of one run, kept for the operator's audit.
type Record struct {
	RunID      string    `json:"run_id,omitempty"`
	Instance   string    `json:"instance"`
	SourceNode string    `json:"source_node,omitempty"`
	Node       string    `json:"node"`
	Master     string    `json:"master,omitempty"`
	Volume     string    `json:"volume,omitempty"`
	State      string    `json:"state"`
	Declined   bool      `json:"declined,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// History is the content of the history file, oldest run first.
type History struct {
	Runs []Record `json:"runs"`
}

// Init implements storage.Initer.
func (h *History) Init() {
	if h.Runs == nil {
		h.Runs = []Record{}
	}
}

// Append adds r and drops the oldest runs beyond MaxHistory.
func (h *History) Append(r Record) {
	h.Runs = append(h.Runs, r)
	if n := len(h.Runs) - MaxHistory; n > 0 {
		h.Runs = append([]Record(nil), h.Runs[n:]...)
	}
}

// lastRun returns the most recent recorded run of instance, or nil.
func (w *Workflow) lastRun(ctx context.Context, instance string) *Record {
	if w.history == nil {
		return nil
	}
	var last *Record
	if err := w.history.With(ctx, func(h *History) error {
		for i := len(h.Runs) - 1; i >= 0; i-- {
			if h.Runs[i].Instance == instance {
				r := h.Runs[i]
				last = &r
				break
			}
		}
		return nil
	}); err != nil {
		log.WithFunc("migrate.lastRun").Warnf(ctx, "read history of %s: %v", instance, err)
		return nil
	}
	return last
}

// notePreviousFailure tells the operator when the last run of instance
// failed, since it may have left the source renamed or shut down.
func (w *Workflow) notePreviousFailure(ctx context.Context, instance string) {
	r := w.lastRun(ctx, instance)
	if r == nil || r.Error == "" {
		return
	}
	log.WithFunc("migrate.notePreviousFailure").Warnf(ctx, "previous run %s of %s failed in state %s", r.RunID, instance, r.State)
	_, _ = fmt.Fprintf(w.out, "NOTE: previous run %s of %s (%s) failed in state %s: %s\n",
		r.RunID, instance, r.StartedAt.Format(time.RFC3339), r.State, r.Error)
}

func (w *Workflow) record(ctx context.Context, instance, node string, started time.Time, err error) {
	if w.history == nil {
		return
	}
	r := Record{
		Instance:   instance,
		Node:       node,
		State:      w.state.String(),
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if w.plan != nil {
		r.RunID, r.Master, r.Volume = w.plan.RunID, w.plan.Master, w.plan.DevicePath()
	}
	if w.desc != nil {
		r.SourceNode = w.desc.Node
	}
	switch {
	case errors.Is(err, ErrUserDeclined):
		r.Declined = true
	case err != nil:
		r.Error = err.Error()
	}
	if uerr := w.history.Update(ctx, func(h *History) error {
		h.Append(r)
		return nil
	}); uerr != nil {
		log.WithFunc("migrate.record").Warnf(ctx, "record run of %s: %v", instance, uerr)
	}
}
