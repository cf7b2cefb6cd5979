package source_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kstrand/dashkit/common"
	"github.com/kstrand/dashkit/common/model"
	"github.com/kstrand/dashkit/modules/source"
)

// TestRunCyclePerSourceIsolation: a broken source must not keep the healthy
// one from refreshing in the same cycle.
func TestRunCyclePerSourceIsolation(t *testing.T) {
	cache := common.NewDataCache()
	good := source.NewManager("a", time.Minute, cache, &stubFetcher{fn: func() (interface{}, error) {
		return map[string]int{"v": 1}, nil
	}})
	bad := source.NewManager("b", time.Minute, cache, &stubFetcher{fn: func() (interface{}, error) {
		return nil, errors.New("always down")
	}})

	s := source.NewScheduler(nil)
	s.Register(bad) // broken source first, to prove it cannot block the rest
	s.Register(good)
	s.RunCycle(context.Background())

	res := good.GetData(context.Background(), false)
	if res.Status != model.StatusSuccess {
		t.Fatalf("healthy source must be refreshed, got %s", res.Status)
	}
	if res.Data.(map[string]int)["v"] != 1 {
		t.Errorf("unexpected payload: %v", res.Data)
	}

	if badRes := bad.GetData(context.Background(), false); badRes.Status != model.StatusError {
		t.Errorf("broken source should report error, got %s", badRes.Status)
	}
}

// TestRunCyclePanicIsolation: a fetcher with an outright bug must not take
// down the cycle.
func TestRunCyclePanicIsolation(t *testing.T) {
	cache := common.NewDataCache()
	panicky := source.NewManager("boom", time.Minute, cache, &stubFetcher{fn: func() (interface{}, error) {
		panic("bug in fetcher")
	}})
	good := source.NewManager("ok", time.Minute, cache, &stubFetcher{fn: func() (interface{}, error) {
		return "fine", nil
	}})

	s := source.NewScheduler(nil)
	s.Register(panicky)
	s.Register(good)
	s.RunCycle(context.Background()) // must not panic

	if res := good.GetData(context.Background(), false); res.Status != model.StatusSuccess {
		t.Errorf("source after the panicking one must still refresh, got %s", res.Status)
	}
}

func TestSchedulerStartRefreshesAndStops(t *testing.T) {
	cache := common.NewDataCache()
	var calls int64
	m := source.NewManager("a", time.Minute, cache, &stubFetcher{fn: func() (interface{}, error) {
		atomic.AddInt64(&calls, 1)
		return "payload", nil
	}})

	s := source.NewScheduler(func() time.Duration { return 0 })
	s.SetTimingForTest(5*time.Millisecond, 5*time.Millisecond)
	s.Register(m)

	s.Start()
	if !s.Running() {
		t.Fatal("expected running scheduler after Start")
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt64(&calls) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if atomic.LoadInt64(&calls) < 2 {
		t.Fatalf("expected repeated refresh cycles, got %d", calls)
	}

	if !s.Stop(time.Second) {
		t.Fatal("scheduler did not stop within the wait")
	}
	if s.Running() {
		t.Error("expected stopped scheduler")
	}

	settled := atomic.LoadInt64(&calls)
	time.Sleep(30 * time.Millisecond)
	if got := atomic.LoadInt64(&calls); got != settled {
		t.Errorf("refreshes continued after Stop: %d -> %d", settled, got)
	}
}

func TestSchedulerHonorsInterval(t *testing.T) {
	cache := common.NewDataCache()
	var calls int64
	m := source.NewManager("a", time.Minute, cache, &stubFetcher{fn: func() (interface{}, error) {
		atomic.AddInt64(&calls, 1)
		return "payload", nil
	}})

	// Interval far longer than the test: only the immediate first cycle
	// should run.
	s := source.NewScheduler(func() time.Duration { return time.Hour })
	s.SetTimingForTest(2*time.Millisecond, 2*time.Millisecond)
	s.Register(m)

	s.Start()
	defer s.Stop(time.Second)

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt64(&calls) == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	time.Sleep(30 * time.Millisecond)

	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Errorf("expected exactly the initial cycle, got %d", got)
	}
}

// TestSchedulerBacksOffAfterIterationPanic: a panic outside any single
// source's fetch (here a buggy interval callback) must not kill the loop.
// The scheduler sleeps the longer error backoff, tries again, and refreshes
// once the callback behaves.
func TestSchedulerBacksOffAfterIterationPanic(t *testing.T) {
	cache := common.NewDataCache()
	var fetches int64
	m := source.NewManager("a", time.Minute, cache, &stubFetcher{fn: func() (interface{}, error) {
		atomic.AddInt64(&fetches, 1)
		return "payload", nil
	}})

	const errBackoff = 40 * time.Millisecond
	var mu sync.Mutex
	var callTimes []time.Time
	s := source.NewScheduler(func() time.Duration {
		mu.Lock()
		callTimes = append(callTimes, time.Now())
		n := len(callTimes)
		mu.Unlock()
		if n <= 2 {
			panic("bug in interval callback")
		}
		return 0
	})
	s.SetTimingForTest(time.Millisecond, errBackoff)
	s.Register(m)

	s.Start()
	defer s.Stop(time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt64(&fetches) == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if atomic.LoadInt64(&fetches) == 0 {
		t.Fatal("loop never recovered from the interval panic")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(callTimes) < 3 {
		t.Fatalf("expected at least 3 interval calls, got %d", len(callTimes))
	}
	if gap := callTimes[1].Sub(callTimes[0]); gap < errBackoff {
		t.Errorf("expected the error backoff between failed iterations, got %s", gap)
	}
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	s := source.NewScheduler(nil)
	if !s.Stop(10 * time.Millisecond) {
		t.Error("stopping a never-started scheduler must succeed")
	}
}

func TestSchedulerStartTwice(t *testing.T) {
	s := source.NewScheduler(func() time.Duration { return time.Hour })
	s.SetTimingForTest(2*time.Millisecond, 2*time.Millisecond)
	s.Start()
	s.Start() // no-op
	if !s.Stop(time.Second) {
		t.Error("scheduler did not stop")
	}
}
