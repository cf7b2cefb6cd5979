package source

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/kstrand/dashkit/common"
	"github.com/kstrand/dashkit/common/model"
)

// Fetcher produces one fresh payload for a single data source. It is the
// only hook a new source has to implement to plug into the cache and
// scheduler machinery. Fetch blocks on network I/O and returns either a
// payload or an error; it never touches the cache itself.
type Fetcher interface {
	Fetch(ctx context.Context) (interface{}, error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc func(ctx context.Context) (interface{}, error)

func (f FetcherFunc) Fetch(ctx context.Context) (interface{}, error) {
	return f(ctx)
}

// Synthetic wraps a payload that was generated locally instead of fetched
// from the upstream API. The manager tags such results StatusMock so the UI
// can show that the numbers are fake.
type Synthetic struct {
	Data interface{}
}

// Manager wraps one source-specific Fetcher with cache-first reads,
// on-demand refresh, error capture and fallback-to-stale-on-failure. Every
// source exposes the same GetData contract through it, whatever the payload
// shape or how flaky the upstream is.
//
// Managers sharing a DataCache must use distinct keys; each manager owns its
// key's namespace exclusively.
type Manager struct {
	key      string
	interval time.Duration
	cache    *common.DataCache
	fetcher  Fetcher

	mu      sync.Mutex
	lastErr string
}

// NewManager constructs a manager for one source. interval is how long a
// cached payload stays fresh for cheap reads.
func NewManager(key string, interval time.Duration, cache *common.DataCache, fetcher Fetcher) *Manager {
	return &Manager{
		key:      key,
		interval: interval,
		cache:    cache,
		fetcher:  fetcher,
	}
}

// Key returns the cache key this manager owns.
func (m *Manager) Key() string {
	return m.key
}

// Interval returns the configured refresh interval.
func (m *Manager) Interval() time.Duration {
	return m.interval
}

// GetData returns this source's data as a tagged FetchResult. It never
// returns an error: every failure mode collapses into the Status tag.
//
// Three paths, in order:
//  1. forceRefresh false and the cached entry is still fresh: return it
//     verbatim, no network activity. The render loop takes this path on
//     every tick.
//  2. Fetch succeeds: tag success (or mock for Synthetic payloads), stamp,
//     cache, clear the advisory error, return.
//  3. Fetch fails: record the error. If any cached entry exists, even the
//     stale one that triggered this refresh, re-tag it cached and return
//     it — stale numbers beat a blank kiosk screen. With no cache at all,
//     return a payload-free error result.
func (m *Manager) GetData(ctx context.Context, forceRefresh bool) model.FetchResult {
	if !forceRefresh {
		if v, ok := m.cache.Get(m.key); ok && !m.cache.IsExpired(m.key, m.interval) {
			return v.(model.FetchResult)
		}
	}

	data, err := m.fetcher.Fetch(ctx)
	if err != nil {
		m.setLastError(err.Error())
		log.Printf("source %s: fetch failed: %v", m.key, err)

		if v, ok := m.cache.Get(m.key); ok {
			res := v.(model.FetchResult)
			res.Status = model.StatusCached
			return res
		}
		return model.FetchResult{
			Status:    model.StatusError,
			Err:       err.Error(),
			FetchedAt: time.Now(),
		}
	}

	status := model.StatusSuccess
	if syn, ok := data.(Synthetic); ok {
		status = model.StatusMock
		data = syn.Data
	}
	res := model.FetchResult{
		Status:    status,
		Data:      data,
		FetchedAt: time.Now(),
	}
	m.cache.Set(m.key, res)
	m.setLastError("")
	return res
}

// Fresh reports whether the cached entry is still within the refresh
// interval.
func (m *Manager) Fresh() bool {
	return !m.cache.IsExpired(m.key, m.interval)
}

// ClearCache drops this source's cached entry, forcing the next GetData to
// hit the network.
func (m *Manager) ClearCache() {
	m.cache.Delete(m.key)
}

// LastError returns the advisory message from the most recent failed fetch,
// or "" after a success. It never gates behavior.
func (m *Manager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) setLastError(msg string) {
	m.mu.Lock()
	m.lastErr = msg
	m.mu.Unlock()
}

// CacheInfo is the diagnostic snapshot behind the status-dot rendering.
type CacheInfo struct {
	Key       string
	Age       time.Duration
	HasEntry  bool
	Expired   bool
	LastError string
}

// CacheInfo reports the cache state for this source.
func (m *Manager) CacheInfo() CacheInfo {
	age, ok := m.cache.Age(m.key)
	return CacheInfo{
		Key:       m.key,
		Age:       age,
		HasEntry:  ok,
		Expired:   m.cache.IsExpired(m.key, m.interval),
		LastError: m.LastError(),
	}
}
