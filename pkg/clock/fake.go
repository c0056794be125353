package clock

import (
	"sync"
	"time"
)

// FakeClock is a deterministic Clock. Time only moves when Set or Advance is
// called; tickers fire during Advance once their next deadline is reached.
// Safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	tickers []*fakeTicker
}

type fakeTicker struct {
	next     time.Time
	interval time.Duration
	ch       chan time.Time
	stopped  bool
}

// Fake returns a FakeClock initialised to the given instant.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// Now returns the fake current time.
func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// NewTicker registers a ticker that fires on Advance.
func (f *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ft := &fakeTicker{
		next:     f.current.Add(d),
		interval: d,
		ch:       make(chan time.Time, 1),
	}
	f.tickers = append(f.tickers, ft)
	return &Ticker{
		C: ft.ch,
		stopFunc: func() {
			f.mu.Lock()
			ft.stopped = true
			f.mu.Unlock()
		},
	}
}

// Set jumps to the given instant without firing tickers.
func (f *FakeClock) Set(t time.Time) {
	f.mu.Lock()
	f.current = t
	f.mu.Unlock()
}

// Advance moves time forward by d and fires every ticker whose deadline was
// crossed. A ticker fires at most once per Advance call.
func (f *FakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
	live := f.tickers[:0]
	for _, t := range f.tickers {
		if t.stopped {
			continue
		}
		live = append(live, t)
		if f.current.Before(t.next) {
			continue
		}
		select {
		case t.ch <- f.current:
		default:
		}
		for !f.current.Before(t.next) {
			t.next = t.next.Add(t.interval)
		}
	}
	f.tickers = live
}
