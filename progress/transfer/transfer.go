package transfer

import (
	"sync"
	"time"

	"github.com/projecteru2/shuttle/progress"
)

// Phase represents a stage of the filesystem copy.
type Phase int

const (
	PhaseStart Phase = iota // Copy about to begin; BytesTotal is known.
	PhaseCopy               // Bytes moved so far.
	PhaseDone               // Copy finished.
)

// Event describes a single copy progress update.
type Event struct {
	Phase      Phase
	BytesTotal int64 // used bytes on the source filesystem; 0 if unknown.
	BytesDone  int64
}

// DefaultInterval is the minimum time between two PhaseCopy events.
const DefaultInterval = 500 * time.Millisecond

// Counter is an io.Writer that counts bytes passing through it and reports
// them to a Tracker at most once per interval.
type Counter struct {
	tracker  progress.Tracker
	total    int64
	interval time.Duration

	mu   sync.Mutex
	done int64
	last time.Time
}

// NewCounter creates a Counter and emits PhaseStart.
func NewCounter(tracker progress.Tracker, total int64, interval time.Duration) *Counter {
	if tracker == nil {
		tracker = progress.Nop
	}
	c := &Counter{tracker: tracker, total: total, interval: interval}
	tracker.OnEvent(Event{Phase: PhaseStart, BytesTotal: total})
	return c
}

func (c *Counter) Write(p []byte) (int, error) {
	c.mu.Lock()
	c.done += int64(len(p))
	now := time.Now()
	emit := now.Sub(c.last) >= c.interval
	if emit {
		c.last = now
	}
	done := c.done
	c.mu.Unlock()

	if emit {
		c.tracker.OnEvent(Event{Phase: PhaseCopy, BytesTotal: c.total, BytesDone: done})
	}
	return len(p), nil
}

// Done returns the bytes counted so far.
func (c *Counter) Done() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Finish emits a final PhaseCopy with the exact count, then PhaseDone.
func (c *Counter) Finish() {
	done := c.Done()
	c.tracker.OnEvent(Event{Phase: PhaseCopy, BytesTotal: c.total, BytesDone: done})
	c.tracker.OnEvent(Event{Phase: PhaseDone, BytesTotal: c.total, BytesDone: done})
}
