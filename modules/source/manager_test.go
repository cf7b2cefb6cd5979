package source_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kstrand/dashkit/common"
	"github.com/kstrand/dashkit/common/model"
	"github.com/kstrand/dashkit/modules/source"
)

// stubFetcher counts calls and plays back a scripted fetch function.
type stubFetcher struct {
	calls int
	fn    func() (interface{}, error)
}

func (s *stubFetcher) Fetch(ctx context.Context) (interface{}, error) {
	s.calls++
	return s.fn()
}

func TestGetDataFetchesAndCaches(t *testing.T) {
	cache := common.NewDataCache()
	fetcher := &stubFetcher{fn: func() (interface{}, error) {
		return map[string]int{"v": 1}, nil
	}}
	m := source.NewManager("crypto", time.Minute, cache, fetcher)

	res := m.GetData(context.Background(), false)
	if res.Status != model.StatusSuccess {
		t.Fatalf("expected success, got %s", res.Status)
	}
	if res.Data.(map[string]int)["v"] != 1 {
		t.Errorf("unexpected payload: %v", res.Data)
	}
	if res.FetchedAt.IsZero() {
		t.Error("expected FetchedAt stamp")
	}
	if _, ok := cache.Get("crypto"); !ok {
		t.Error("expected the result to be cached")
	}
	if m.LastError() != "" {
		t.Errorf("expected clear last error, got %q", m.LastError())
	}
}

func TestGetDataCheapReadsAreIdempotent(t *testing.T) {
	cache := common.NewDataCache()
	fetcher := &stubFetcher{fn: func() (interface{}, error) {
		return "payload", nil
	}}
	m := source.NewManager("weather", time.Minute, cache, fetcher)

	first := m.GetData(context.Background(), false)
	second := m.GetData(context.Background(), false)

	if fetcher.calls != 1 {
		t.Fatalf("second read within the interval must not fetch; %d calls", fetcher.calls)
	}
	if first.FetchedAt != second.FetchedAt {
		t.Error("cheap reads must return the identical recorded result")
	}
	if first.Status != second.Status || first.Data != second.Data {
		t.Error("cheap reads must be bit-identical")
	}
}

func TestGetDataForceRefreshBypassesCache(t *testing.T) {
	cache := common.NewDataCache()
	fetcher := &stubFetcher{fn: func() (interface{}, error) {
		return "payload", nil
	}}
	m := source.NewManager("weather", time.Minute, cache, fetcher)

	m.GetData(context.Background(), false)
	m.GetData(context.Background(), true)
	if fetcher.calls != 2 {
		t.Errorf("force refresh must always fetch, got %d calls", fetcher.calls)
	}
}

func TestGetDataStaleFallback(t *testing.T) {
	cache := common.NewDataCache()
	healthy := true
	fetcher := &stubFetcher{fn: func() (interface{}, error) {
		if healthy {
			return "good payload", nil
		}
		return nil, errors.New("upstream down")
	}}
	m := source.NewManager("crypto", time.Minute, cache, fetcher)

	m.GetData(context.Background(), true)
	healthy = false
	res := m.GetData(context.Background(), true)

	if res.Status != model.StatusCached {
		t.Fatalf("expected cached fallback, got %s", res.Status)
	}
	if res.Data != "good payload" {
		t.Errorf("expected the previous payload, got %v", res.Data)
	}
	if m.LastError() != "upstream down" {
		t.Errorf("expected advisory error, got %q", m.LastError())
	}
}

func TestGetDataColdError(t *testing.T) {
	cache := common.NewDataCache()
	fetcher := &stubFetcher{fn: func() (interface{}, error) {
		return nil, errors.New("upstream down")
	}}
	m := source.NewManager("crypto", time.Minute, cache, fetcher)

	res := m.GetData(context.Background(), true)
	if res.Status != model.StatusError {
		t.Fatalf("expected error result, got %s", res.Status)
	}
	if res.Data != nil {
		t.Errorf("error results carry no payload, got %v", res.Data)
	}
	if res.Err == "" {
		t.Error("error results must carry a message")
	}
}

func TestGetDataRecoversAfterFailure(t *testing.T) {
	cache := common.NewDataCache()
	healthy := false
	fetcher := &stubFetcher{fn: func() (interface{}, error) {
		if healthy {
			return "fresh", nil
		}
		return nil, errors.New("down")
	}}
	m := source.NewManager("crypto", time.Minute, cache, fetcher)

	m.GetData(context.Background(), true)
	healthy = true
	res := m.GetData(context.Background(), true)

	if res.Status != model.StatusSuccess {
		t.Fatalf("expected success after recovery, got %s", res.Status)
	}
	if m.LastError() != "" {
		t.Errorf("success must clear the advisory error, got %q", m.LastError())
	}
}

func TestGetDataMockTag(t *testing.T) {
	cache := common.NewDataCache()
	fetcher := &stubFetcher{fn: func() (interface{}, error) {
		return source.Synthetic{Data: "fake numbers"}, nil
	}}
	m := source.NewManager("weather", time.Minute, cache, fetcher)

	res := m.GetData(context.Background(), true)
	if res.Status != model.StatusMock {
		t.Fatalf("expected mock tag, got %s", res.Status)
	}
	if res.Data != "fake numbers" {
		t.Errorf("expected unwrapped payload, got %v", res.Data)
	}

	// A cheap read returns the stored mock result unchanged.
	again := m.GetData(context.Background(), false)
	if again.Status != model.StatusMock {
		t.Errorf("stored mock tag must survive cheap reads, got %s", again.Status)
	}
}

func TestExpiredCacheTriggersRefresh(t *testing.T) {
	cache := common.NewDataCache()
	fetcher := &stubFetcher{fn: func() (interface{}, error) {
		return "payload", nil
	}}
	m := source.NewManager("news", 5*time.Millisecond, cache, fetcher)

	m.GetData(context.Background(), false)
	time.Sleep(15 * time.Millisecond)
	m.GetData(context.Background(), false)

	if fetcher.calls != 2 {
		t.Errorf("stale cache must trigger a refresh, got %d calls", fetcher.calls)
	}
}

func TestClearCacheForcesColdPath(t *testing.T) {
	cache := common.NewDataCache()
	fetcher := &stubFetcher{fn: func() (interface{}, error) {
		return nil, errors.New("down")
	}}
	m := source.NewManager("crypto", time.Minute, cache, fetcher)

	cache.Set("crypto", model.FetchResult{Status: model.StatusSuccess, Data: "old"})
	m.ClearCache()

	res := m.GetData(context.Background(), true)
	if res.Status != model.StatusError {
		t.Errorf("expected cold error after ClearCache, got %s", res.Status)
	}
}

func TestCacheInfo(t *testing.T) {
	cache := common.NewDataCache()
	fetcher := &stubFetcher{fn: func() (interface{}, error) {
		return "payload", nil
	}}
	m := source.NewManager("weather", time.Minute, cache, fetcher)

	info := m.CacheInfo()
	if info.Key != "weather" || info.HasEntry || !info.Expired {
		t.Errorf("unexpected info before first fetch: %+v", info)
	}

	m.GetData(context.Background(), false)
	info = m.CacheInfo()
	if !info.HasEntry || info.Expired {
		t.Errorf("unexpected info after fetch: %+v", info)
	}
	if !m.Fresh() {
		t.Error("expected fresh data right after a fetch")
	}
}

func TestManagersShareCacheWithoutCollisions(t *testing.T) {
	cache := common.NewDataCache()
	a := source.NewManager("a", time.Minute, cache, &stubFetcher{fn: func() (interface{}, error) {
		return "A", nil
	}})
	b := source.NewManager("b", time.Minute, cache, &stubFetcher{fn: func() (interface{}, error) {
		return "B", nil
	}})

	a.GetData(context.Background(), true)
	b.GetData(context.Background(), true)

	if res := a.GetData(context.Background(), false); res.Data != "A" {
		t.Errorf("manager a read %v", res.Data)
	}
	if res := b.GetData(context.Background(), false); res.Data != "B" {
		t.Errorf("manager b read %v", res.Data)
	}
}
