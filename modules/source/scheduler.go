package source

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kstrand/dashkit/common/model"
)

// IntervalFunc returns the current refresh-cycle length. It is called at
// every liveness tick rather than once, so a config reload changes the
// cadence without restarting the scheduler.
type IntervalFunc func() time.Duration

const (
	// defaultTick is the sleep between liveness checks. Much shorter than
	// any sane refresh interval, so shutdown and interval changes are
	// responsive.
	defaultTick = 30 * time.Second
	// defaultErrBackoff is the longer sleep after an iteration-level
	// failure, to avoid a tight error loop.
	defaultErrBackoff = 60 * time.Second
)

// Scheduler keeps every registered manager's cache populated from a single
// background goroutine, so the render loop never calls the network itself.
// Sources refresh sequentially in registration order, each inside its own
// failure boundary: one broken endpoint never blocks the rest of the cycle.
type Scheduler struct {
	interval   IntervalFunc
	tick       time.Duration
	errBackoff time.Duration

	mu        sync.Mutex
	managers  []*Manager
	running   bool
	lastCycle time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewScheduler constructs a stopped scheduler. interval may be nil, in which
// case cycles run five minutes apart.
func NewScheduler(interval IntervalFunc) *Scheduler {
	if interval == nil {
		interval = func() time.Duration { return 5 * time.Minute }
	}
	return &Scheduler{
		interval:   interval,
		tick:       defaultTick,
		errBackoff: defaultErrBackoff,
	}
}

// SetTimingForTest shrinks the liveness tick and error backoff so tests can
// run whole scheduler lifetimes in milliseconds.
func (s *Scheduler) SetTimingForTest(tick, errBackoff time.Duration) {
	s.tick = tick
	s.errBackoff = errBackoff
}

// Register adds a manager to the refresh cycle. Registration order is the
// refresh order within a cycle.
func (s *Scheduler) Register(m *Manager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.managers = append(s.managers, m)
}

// Running reports whether the background goroutine is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start launches the background refresh loop. The first cycle runs
// immediately so the kiosk has data as soon as possible. Calling Start on a
// running scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	go s.loop(ctx, s.done)
	log.Printf("scheduler: started (%d sources)", len(s.managers))
}

// Stop signals the loop to exit and waits up to wait for it to finish.
// Returns true if the goroutine exited in time. The wait is best-effort: a
// loop blocked in a slow network call keeps running until its request
// timeout fires, but the process is free to proceed with shutdown.
func (s *Scheduler) Stop(wait time.Duration) bool {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return true
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
		return true
	case <-time.After(wait):
		log.Printf("scheduler: stop timed out after %s", wait)
		return false
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		sleep := s.tick
		if err := s.iterate(ctx); err != nil {
			log.Printf("scheduler: refresh iteration failed: %v", err)
			sleep = s.errBackoff
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

// iterate performs one liveness check: consult the interval and run a
// refresh cycle if one is due. The recover converts a panic anywhere in the
// iteration (a buggy IntervalFunc included) into an error, so the loop
// backs off instead of dying. Fetcher panics never reach here; refreshOne
// absorbs those per source.
func (s *Scheduler) iterate(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in refresh iteration: %v", rec)
		}
	}()
	if !s.cycleDue() {
		return nil
	}
	s.RunCycle(ctx)
	s.mu.Lock()
	s.lastCycle = time.Now()
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) cycleDue() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastCycle) >= s.interval()
}

// RunCycle forces a refresh of every registered source, sequentially, in
// registration order. Exported so callers (and tests) can trigger an
// immediate refresh outside the background cadence.
func (s *Scheduler) RunCycle(ctx context.Context) {
	s.mu.Lock()
	managers := make([]*Manager, len(s.managers))
	copy(managers, s.managers)
	s.mu.Unlock()

	for _, m := range managers {
		s.refreshOne(ctx, m)
	}
}

// refreshOne is the per-source failure boundary. GetData already absorbs
// network and payload errors into the result tag; the recover here catches
// outright bugs in a fetcher so they cannot take down the other sources.
func (s *Scheduler) refreshOne(ctx context.Context, m *Manager) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("scheduler: source %s panicked: %v", m.Key(), rec)
		}
	}()

	res := m.GetData(ctx, true)
	switch res.Status {
	case model.StatusSuccess, model.StatusMock:
		// quiet on the happy path
	default:
		log.Printf("scheduler: source %s refreshed with status %s", m.Key(), res.Status)
	}
}
