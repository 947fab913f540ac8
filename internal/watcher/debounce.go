package watcher

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet period a file must see before it is processed.
const DefaultDebounce = 500 * time.Millisecond

// debouncer coalesces bursts of events per path. Each touch restarts the
// path's timer; fire runs once the path has been quiet for the interval.
type debouncer struct {
	interval time.Duration
	fire     func(path string)

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

func newDebouncer(interval time.Duration, fire func(path string)) *debouncer {
	if interval <= 0 {
		interval = DefaultDebounce
	}
	return &debouncer{
		interval: interval,
		fire:     fire,
		timers:   make(map[string]*time.Timer),
	}
}

// touch records an event for path, restarting its quiet period.
func (d *debouncer) touch(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if t, ok := d.timers[path]; ok {
		t.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		if d.stopped || d.timers[path] != t {
			d.mu.Unlock()
			return
		}
		delete(d.timers, path)
		d.mu.Unlock()

		d.fire(path)
	})
	d.timers[path] = t
}

// pending returns the number of paths waiting for their quiet period.
func (d *debouncer) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// stop cancels all pending timers. Later touches are ignored.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for path, t := range d.timers {
		t.Stop()
		delete(d.timers, path)
	}
}
