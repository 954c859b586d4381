package tilt

import (
	"sync"
	"time"
)

// timerTag identifies one debounce channel. At most one callback per tag may
// be pending at any time.
type timerTag int

const (
	tagOrientation timerTag = iota
	tagFaceUp
)

// debouncer is a minimal per-tag one-shot delayed-callback facility.
// Scheduling under a tag replaces any callback already pending for that tag,
// and cancel guarantees the callback will not run afterwards even if the
// underlying timer has already expired.
type debouncer struct {
	mu      sync.Mutex
	gen     uint64
	pending map[timerTag]*pendingCallback
}

type pendingCallback struct {
	timer *time.Timer
	gen   uint64
}

func newDebouncer() *debouncer {
	return &debouncer{pending: make(map[timerTag]*pendingCallback)}
}

// schedule arms fn to run once after delay. A previously pending callback
// under the same tag is superseded.
func (d *debouncer) schedule(tag timerTag, delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pending[tag]; ok {
		p.timer.Stop()
	}
	d.gen++
	p := &pendingCallback{gen: d.gen}
	p.timer = time.AfterFunc(delay, func() { d.fire(tag, p.gen, fn) })
	d.pending[tag] = p
}

// cancel removes any pending callback under tag. No-op when nothing is
// pending.
func (d *debouncer) cancel(tag timerTag) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pending[tag]; ok {
		p.timer.Stop()
		delete(d.pending, tag)
	}
}

// fire runs on the timer goroutine. The generation check filters callbacks
// that were cancelled or superseded after their timer expired but before
// delivery.
func (d *debouncer) fire(tag timerTag, gen uint64, fn func()) {
	d.mu.Lock()
	p, ok := d.pending[tag]
	if !ok || p.gen != gen {
		d.mu.Unlock()
		return
	}
	delete(d.pending, tag)
	d.mu.Unlock()

	fn()
}
