package interact

import (
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval bounds pointer-move handling to ten evaluations a second.
const DefaultInterval = 100 * time.Millisecond

// Throttle lets at most one call through per interval. The first call in a
// window fires immediately; the rest of that window is dropped.
type Throttle struct {
	limiter *rate.Limiter
	now     func() time.Time
}

// NewThrottle creates a throttle. A nil clock uses time.Now.
func NewThrottle(interval time.Duration, now func() time.Time) *Throttle {
	if now == nil {
		now = time.Now
	}
	return &Throttle{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		now:     now,
	}
}

// Allow reports whether a call may fire now and, if so, starts a new window.
func (t *Throttle) Allow() bool {
	return t.limiter.AllowN(t.now(), 1)
}

// Wrap returns a handler that forwards to h at most once per interval.
func (t *Throttle) Wrap(h Handler) Handler {
	return func(ev PointerEvent) {
		if t.Allow() {
			h(ev)
		}
	}
}
