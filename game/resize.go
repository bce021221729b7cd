package game

import "time"

// ResizeDebouncer coalesces a burst of size changes into one, delivered
// after the size has been stable for the settle period.
type ResizeDebouncer struct {
	settle time.Duration
	now    func() time.Time

	width, height int
	changedAt     time.Time
	pending       bool
}

// NewResizeDebouncer creates a debouncer. A nil clock uses time.Now.
func NewResizeDebouncer(settle time.Duration, now func() time.Time) *ResizeDebouncer {
	if now == nil {
		now = time.Now
	}
	return &ResizeDebouncer{settle: settle, now: now}
}

// Request records a new size and restarts the settle timer.
func (d *ResizeDebouncer) Request(width, height int) {
	if d.pending && width == d.width && height == d.height {
		return
	}
	d.width, d.height = width, height
	d.changedAt = d.now()
	d.pending = true
}

// Poll returns the settled size once, after the settle period.
func (d *ResizeDebouncer) Poll() (width, height int, ok bool) {
	if !d.pending || d.now().Sub(d.changedAt) < d.settle {
		return 0, 0, false
	}
	d.pending = false
	return d.width, d.height, true
}

// Pending reports whether a resize is waiting to settle.
func (d *ResizeDebouncer) Pending() bool { return d.pending }
