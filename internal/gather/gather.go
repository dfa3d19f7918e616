// Package gather defines price series providers and the fan-out used to
// fetch many symbols at once.
package gather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pairdesk/internal/domain"
)

// ErrUnknownSource is returned when a configured data source has no provider.
var ErrUnknownSource = errors.New("gather: unknown data source")

// Provider fetches daily adjusted-close prices for one symbol. An empty
// series with a nil error means the provider has no data for the symbol in
// the range, which is distinct from a failure.
type Provider interface {
	// Name returns the provider identifier, also used as the cache namespace.
	Name() string
	// Fetch returns the series for symbol within [start, end].
	Fetch(ctx context.Context, symbol string, start, end time.Time) (domain.Series, error)
}

// DateRange represents a time range for data fetching.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// FetchOptions controls FetchAll.
type FetchOptions struct {
	// Workers bounds concurrent fetches. Zero or less means 4.
	Workers int
	// SkipFailures records per-symbol errors in the report instead of
	// aborting the whole fetch.
	SkipFailures bool
	Log          *slog.Logger
}

// FetchReport lists the symbols that produced no usable series.
type FetchReport struct {
	Empty  []string
	Failed map[string]error
}

// FetchAll fetches every symbol with bounded concurrency. Symbols with no
// data are listed in the report and left out of the result. Failures abort
// the fetch unless opts.SkipFailures is set. Returned series are cleaned of
// unusable prices.
func FetchAll(ctx context.Context, p Provider, symbols []string, rng DateRange, opts FetchOptions) (map[string]domain.Series, FetchReport, error) {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("provider", p.Name())
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	var (
		mu     sync.Mutex
		out    = make(map[string]domain.Series, len(symbols))
		report = FetchReport{Failed: make(map[string]error)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, sym := range dedupe(symbols) {
		sym := sym
		g.Go(func() error {
			s, err := p.Fetch(gctx, sym, rng.Start, rng.End)
			if err != nil {
				if !opts.SkipFailures || gctx.Err() != nil {
					return fmt.Errorf("fetch %s: %w", sym, err)
				}
				log.Warn("fetch failed", "symbol", sym, "error", err)
				mu.Lock()
				report.Failed[sym] = err
				mu.Unlock()
				return nil
			}

			s.Symbol = sym
			s, dropped := s.Clean()
			if dropped > 0 {
				log.Debug("dropped unusable prices", "symbol", sym, "dropped", dropped)
			}
			mu.Lock()
			defer mu.Unlock()
			if s.Empty() {
				log.Info("no data", "symbol", sym)
				report.Empty = append(report.Empty, sym)
				return nil
			}
			out[sym] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, report, err
	}
	sort.Strings(report.Empty)
	return out, report, nil
}

// Normalize returns the key FetchAll uses for symbol.
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// dedupe normalizes symbols and removes blanks and repeats, keeping order.
func dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = Normalize(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Sources maps data source names to providers.
type Sources map[string]Provider

// Get returns the provider registered under name.
func (s Sources) Get(name string) (Provider, error) {
	p, ok := s[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	return p, nil
}
