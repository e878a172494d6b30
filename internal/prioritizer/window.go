package prioritizer

import "time"

// window is a rolling rate budget: at most limit admissions inside any
// interval of span. Admission timestamps are kept in a FIFO and expired
// lazily, so the budget replenishes continuously rather than at ticks.
type window struct {
	span   time.Duration
	limit  int
	admits []time.Time
}

func newWindow(span time.Duration, limit int) *window {
	return &window{span: span, limit: limit}
}

func (w *window) evict(now time.Time) {
	cutoff := now.Add(-w.span)
	idx := 0
	for idx < len(w.admits) && !w.admits[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		w.admits = append(w.admits[:0], w.admits[idx:]...)
	}
}

// allow consumes one budget unit when available. The unit is charged at
// admission time, immediately before the forward it authorizes.
func (w *window) allow(now time.Time) bool {
	if w.limit <= 0 {
		return true
	}
	w.evict(now)
	if len(w.admits) >= w.limit {
		return false
	}
	w.admits = append(w.admits, now)
	return true
}

// nextFree returns how long until a unit replenishes. Zero means budget is
// available now.
func (w *window) nextFree(now time.Time) time.Duration {
	if w.limit <= 0 {
		return 0
	}
	w.evict(now)
	if len(w.admits) < w.limit {
		return 0
	}
	wait := w.admits[0].Add(w.span).Sub(now)
	if wait < 0 {
		wait = 0
	}
	return wait
}
