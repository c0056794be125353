package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/deadline-engine/pkg/clock"
)

// TickFunc is one pass of a periodic task.
type TickFunc func(ctx context.Context)

// TickerConfig configures a periodic runner.
type TickerConfig struct {
	Interval   time.Duration
	RunOnStart bool
	Clock      clock.Clock
	Logger     *zap.Logger
}

// Ticker runs a TickFunc on a fixed interval. It is owned by the process
// lifecycle: Start launches the loop once, Stop halts it between passes and
// waits for an in-flight pass to finish. Passes run on a context detached
// from the Start context so shutdown never interrupts one midway.
type Ticker struct {
	name       string
	fn         TickFunc
	interval   time.Duration
	runOnStart bool
	clock      clock.Clock
	logger     *zap.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	running sync.Mutex
}

// NewTicker builds a runner for fn.
func NewTicker(name string, fn TickFunc, cfg TickerConfig) *Ticker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Ticker{
		name:       name,
		fn:         fn,
		interval:   cfg.Interval,
		runOnStart: cfg.RunOnStart,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
	}
}

// Start launches the loop. Calling Start on a running ticker is a no-op.
func (t *Ticker) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	t.started = true

	ticker := t.clock.NewTicker(t.interval)
	go t.loop(loopCtx, ticker)
	t.logger.Sugar().Infow("ticker started", "ticker", t.name, "interval", t.interval.String())
}

// Stop cancels the loop and waits for the current pass, if any.
func (t *Ticker) Stop() {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return
	}
	t.cancel()
	done := t.done
	t.started = false
	t.mu.Unlock()

	<-done
	t.logger.Sugar().Infow("ticker stopped", "ticker", t.name)
}

// RunOnce executes a single pass synchronously. Passes never overlap.
func (t *Ticker) RunOnce(ctx context.Context) {
	t.running.Lock()
	defer t.running.Unlock()
	defer func() {
		if r := recover(); r != nil {
			t.logger.Sugar().Errorw("tick panicked", "ticker", t.name, "panic", r)
		}
	}()
	t.fn(ctx)
}

func (t *Ticker) loop(ctx context.Context, ticker *clock.Ticker) {
	defer close(t.done)
	defer ticker.Stop()

	passCtx := context.WithoutCancel(ctx)
	if t.runOnStart {
		t.RunOnce(passCtx)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			t.RunOnce(passCtx)
		}
	}
}
