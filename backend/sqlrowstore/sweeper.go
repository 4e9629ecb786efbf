package sqlrowstore

import (
	"context"
	"sync"
	"time"
)

type (
	// Sweepable is anything able to run one expiry sweep pass. *Store
	// implements it; tests may substitute a fake.
	Sweepable interface {
		Sweep(ctx context.Context) (int64, error)
	}

	// Sweeper runs Sweep on a fixed interval until stopped — the
	// standalone side-task spec.md §4.6 assigns to the backend, not the
	// facade. Grounded on the same ticker-driven, self-contained
	// background worker shape used throughout this repository (see
	// lockreg.Registry.worker).
	Sweeper struct {
		target   Sweepable
		interval time.Duration

		// OnErr, if set, receives errors from failed sweep passes instead
		// of them being silently dropped.
		OnErr func(error)

		mu      sync.Mutex
		cancel  context.CancelFunc
		done    chan struct{}
		running bool
	}
)

const defaultSweepInterval = time.Minute

// NewSweeper constructs a Sweeper targeting target, sweeping every
// interval (spec.md §6, shrinker_interval_s). interval <= 0 selects a
// one-minute default. The sweeper does not start until Start is called.
func NewSweeper(target Sweepable, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{target: target, interval: interval}
}

// Start begins the background sweep loop. Calling Start more than once
// without an intervening Stop is a no-op.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	go s.run(ctx, s.done)
}

// Stop halts the background sweep loop and waits for it to exit. Safe to
// call even if Start was never called, or more than once.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	running := s.running
	s.running = false
	s.mu.Unlock()

	if !running {
		return
	}
	cancel()
	<-done
}

func (s *Sweeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.target.Sweep(ctx); err != nil && s.OnErr != nil {
				s.OnErr(err)
			}
		}
	}
}
