package crypto

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kstrand/dashkit/common"
	"github.com/kstrand/dashkit/common/model"
)

// maxRecentBlocks bounds the block list kept for the screen.
const maxRecentBlocks = 5

// Source assembles the crypto screen's data from six independent upstream
// endpoints. Each sub-fetch runs in its own failure boundary: one endpoint
// being down zeroes just that section of the payload and records it in
// Degraded, and the composite fetch still succeeds. Only when every single
// endpoint fails does Fetch return an error, handing the manager its usual
// stale-fallback decision.
//
// Implements source.Fetcher.
type Source struct {
	endpoints Endpoints
	client    common.HttpClient
}

// New constructs the crypto source.
func New(endpoints Endpoints, client common.HttpClient) *Source {
	return &Source{
		endpoints: endpoints,
		client:    client,
	}
}

// Fetch runs the six sub-fetches concurrently and merges their results.
func (s *Source) Fetch(ctx context.Context) (interface{}, error) {
	stats := &model.CryptoStats{}

	// mu guards stats.Degraded; each sub-fetch writes only its own fields
	// otherwise.
	var mu sync.Mutex
	degrade := func(section string, err error) {
		log.Printf("crypto: %s fetch failed: %v", section, err)
		mu.Lock()
		stats.Degraded = append(stats.Degraded, section)
		mu.Unlock()
	}

	var g errgroup.Group
	g.Go(func() error {
		if err := s.fetchPrice(ctx, stats); err != nil {
			degrade("price", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.fetchFees(ctx, stats); err != nil {
			degrade("fees", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.fetchDifficulty(ctx, stats); err != nil {
			degrade("difficulty", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.fetchHashrate(ctx, stats); err != nil {
			degrade("hashrate", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.fetchBlocks(ctx, stats); err != nil {
			degrade("blocks", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.fetchMempool(ctx, stats); err != nil {
			degrade("mempool", err)
		}
		return nil
	})
	// The goroutines report failures through degrade, never as errors, so
	// Wait cannot fail; it is only the join point.
	_ = g.Wait()

	if len(stats.Degraded) == sectionCount {
		return nil, errors.New("all upstream endpoints failed")
	}
	return stats, nil
}

// sectionCount is the number of independent sub-fetches above.
const sectionCount = 6

func (s *Source) fetchPrice(ctx context.Context, stats *model.CryptoStats) error {
	var payload struct {
		Bitcoin struct {
			USD float64 `json:"usd"`
		} `json:"bitcoin"`
	}
	if err := s.getJSON(ctx, s.endpoints.Price, &payload); err != nil {
		return err
	}
	stats.PriceUSD = payload.Bitcoin.USD
	stats.PriceFormatted = formatUSD(payload.Bitcoin.USD)
	return nil
}

func (s *Source) fetchFees(ctx context.Context, stats *model.CryptoStats) error {
	var payload struct {
		FastestFee  int `json:"fastestFee"`
		HalfHourFee int `json:"halfHourFee"`
		HourFee     int `json:"hourFee"`
		EconomyFee  int `json:"economyFee"`
	}
	if err := s.getJSON(ctx, s.endpoints.Fees, &payload); err != nil {
		return err
	}
	stats.FastestFee = payload.FastestFee
	stats.HalfHourFee = payload.HalfHourFee
	stats.HourFee = payload.HourFee
	stats.EconomyFee = payload.EconomyFee
	return nil
}

func (s *Source) fetchDifficulty(ctx context.Context, stats *model.CryptoStats) error {
	n, err := s.getNumber(ctx, s.endpoints.Difficulty)
	if err != nil {
		return err
	}
	stats.Difficulty = n
	return nil
}

func (s *Source) fetchHashrate(ctx context.Context, stats *model.CryptoStats) error {
	// blockchain.info reports GH/s; the screen shows EH/s.
	n, err := s.getNumber(ctx, s.endpoints.Hashrate)
	if err != nil {
		return err
	}
	stats.HashrateEHS = n / 1e9
	return nil
}

func (s *Source) fetchBlocks(ctx context.Context, stats *model.CryptoStats) error {
	var payload []struct {
		ID        string `json:"id"`
		Height    int64  `json:"height"`
		Timestamp int64  `json:"timestamp"`
		TxCount   int    `json:"tx_count"`
	}
	if err := s.getJSON(ctx, s.endpoints.Blocks, &payload); err != nil {
		return err
	}
	if len(payload) == 0 {
		return errors.New("empty block list")
	}

	head := payload[0]
	stats.BlockHeight = head.Height
	stats.BlockHash = head.ID
	stats.BlockHashShort = shortHash(head.ID)
	stats.BlockTime = head.Timestamp

	limit := len(payload)
	if limit > maxRecentBlocks {
		limit = maxRecentBlocks
	}
	blocks := make([]model.BlockSummary, 0, limit)
	for _, b := range payload[:limit] {
		blocks = append(blocks, model.BlockSummary{
			Height:  b.Height,
			Hash:    b.ID,
			Time:    b.Timestamp,
			TxCount: b.TxCount,
		})
	}
	stats.RecentBlocks = blocks
	return nil
}

func (s *Source) fetchMempool(ctx context.Context, stats *model.CryptoStats) error {
	var payload struct {
		Count int   `json:"count"`
		Vsize int64 `json:"vsize"`
	}
	if err := s.getJSON(ctx, s.endpoints.Mempool, &payload); err != nil {
		return err
	}
	stats.MempoolTxCount = payload.Count
	stats.MempoolVsizeMB = float64(payload.Vsize) / 1e6
	return nil
}

// getBytes GETs url with retries on 5xx and returns the response body.
func (s *Source) getBytes(ctx context.Context, url string) ([]byte, error) {
	operation := func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &common.HTTPError{StatusCode: resp.StatusCode, Body: data}
		}
		return data, nil
	}

	result, err := s.client.RetryWithExponentialBackoff(operation)
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (s *Source) getJSON(ctx context.Context, url string, out interface{}) error {
	data, err := s.getBytes(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}

// getNumber fetches an endpoint that answers with a bare decimal number.
func (s *Source) getNumber(ctx context.Context, url string) (float64, error) {
	data, err := s.getBytes(ctx, url)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %q from %s: %w", strings.TrimSpace(string(data)), url, err)
	}
	return n, nil
}

// shortHash truncates a block hash for display.
func shortHash(hash string) string {
	if len(hash) <= 16 {
		return hash
	}
	return hash[:16] + "..."
}

// formatUSD renders a dollar amount with thousands separators, e.g.
// "$64,123.50".
func formatUSD(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	dot := strings.Index(s, ".")
	intPart, frac := s[:dot], s[dot:]

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "$" + b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}
