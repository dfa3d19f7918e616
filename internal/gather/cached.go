package gather

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"pairdesk/internal/domain"
	"pairdesk/internal/store"
)

// coverageSlack tolerates weekends and holidays at the edges of a cached
// range and between consecutive cached points.
const coverageSlack = 5 * 24 * time.Hour

// Compile-time interface check.
var _ Provider = (*CachedProvider)(nil)

// CachedProvider serves prices from a PriceStore and falls back to an
// upstream provider when the cache does not cover the requested range.
// Upstream results are written back to the store.
type CachedProvider struct {
	upstream Provider
	store    store.PriceStore
	tracker  *emptyTracker
	now      func() time.Time
	log      *slog.Logger
}

// NewCachedProvider wraps upstream with a cache in st. Ranges the upstream
// had no data for are remembered for the rest of the day under dataDir.
func NewCachedProvider(upstream Provider, st store.PriceStore, dataDir string) (*CachedProvider, error) {
	today := time.Now().UTC().Format("2006-01-02")
	tracker, err := newEmptyTracker(filepath.Join(dataDir, upstream.Name(), "daily"), today)
	if err != nil {
		return nil, fmt.Errorf("creating empty tracker: %w", err)
	}
	return &CachedProvider{
		upstream: upstream,
		store:    st,
		tracker:  tracker,
		now:      time.Now,
		log:      slog.Default().With("provider", upstream.Name(), "cache", true),
	}, nil
}

// Name returns the upstream provider name.
func (c *CachedProvider) Name() string { return c.upstream.Name() }

// Close releases the tracker file.
func (c *CachedProvider) Close() error { return c.tracker.Close() }

// Fetch returns cached prices when they span [start, end], otherwise fetches
// the range upstream and merges it into the cache.
func (c *CachedProvider) Fetch(ctx context.Context, symbol string, start, end time.Time) (domain.Series, error) {
	cached, err := c.store.ReadPrices(ctx, c.upstream.Name(), symbol, start, end)
	if err != nil {
		c.log.Warn("cache read failed", "symbol", symbol, "error", err)
	} else if c.covers(cached, start, end) {
		return cached, nil
	}
	key := emptyKey(symbol, start, end)
	if c.tracker.IsTriedEmpty(key) {
		return domain.Series{Symbol: symbol}, nil
	}

	fresh, err := c.upstream.Fetch(ctx, symbol, start, end)
	if err != nil {
		return domain.Series{}, err
	}
	if fresh.Empty() {
		if err := c.tracker.MarkEmpty(key); err != nil {
			c.log.Warn("marking empty failed", "symbol", symbol, "error", err)
		}
		return fresh, nil
	}
	if err := c.store.WritePrices(ctx, c.upstream.Name(), fresh); err != nil {
		c.log.Warn("cache write failed", "symbol", symbol, "error", err)
	}
	return fresh, nil
}

// emptyKey identifies a tried-empty request. A symbol without data in one
// range may still have data in another.
func emptyKey(symbol string, start, end time.Time) string {
	return symbol + " " + keyDate(start) + " " + keyDate(end)
}

func keyDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02")
}

// covers reports whether s spans [start, end] without holes. Separate
// upstream fetches can leave a gap inside the cached range.
func (c *CachedProvider) covers(s domain.Series, start, end time.Time) bool {
	if s.Empty() {
		return false
	}
	if end.IsZero() {
		end = c.now()
	}
	if !start.IsZero() && s.First().Time.Sub(start) > coverageSlack {
		return false
	}
	if end.Sub(s.Last().Time) > coverageSlack {
		return false
	}
	for i := 1; i < len(s.Points); i++ {
		if s.Points[i].Time.Sub(s.Points[i-1].Time) > coverageSlack {
			return false
		}
	}
	return true
}
