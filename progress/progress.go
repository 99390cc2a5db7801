package progress

// Tracker receives progress events from long-running steps such as the
// filesystem copy. OnEvent may be called from the goroutine doing the copy.
type Tracker interface {
	OnEvent(any)
}

// NewTracker creates a Tracker from a typed callback. Callers handle their
// concrete event type while steps only see the untyped Tracker.
func NewTracker[E any](fn func(E)) Tracker {
	return funcTracker(func(v any) {
		if e, ok := v.(E); ok {
			fn(e)
		}
	})
}

type funcTracker func(any)

func (f funcTracker) OnEvent(e any) { f(e) }

// Nop discards every event.
var Nop Tracker = funcTracker(func(any) {})
