// Package source builds the configured price provider.
package source

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pairdesk/internal/config"
	"pairdesk/internal/gather"
	"pairdesk/internal/gather/alpaca"
	"pairdesk/internal/gather/csvfile"
	"pairdesk/internal/gather/yahoo"
	"pairdesk/internal/store"
)

// Sources returns every provider the configuration can build, keyed by
// name. Alpaca is only included when credentials are present.
func Sources(cfg *config.Config) gather.Sources {
	src := gather.Sources{
		yahoo.Name: yahoo.New(yahoo.Config{
			BaseURL:         cfg.Yahoo.BaseURL,
			Timeout:         time.Duration(cfg.Yahoo.TimeoutSeconds) * time.Second,
			RateLimitPerMin: cfg.Data.RateLimitPerMin,
			MaxRetries:      cfg.Data.MaxRetries,
			SymbolMap:       cfg.Yahoo.SymbolMap,
		}),
		csvfile.Name: csvfile.New(cfg.Data.CSVDir),
	}
	if cfg.Alpaca.APIKey != "" && cfg.Alpaca.APISecret != "" {
		src[alpaca.Name] = alpaca.New(alpaca.Config{
			APIKey:          cfg.Alpaca.APIKey,
			APISecret:       cfg.Alpaca.APISecret,
			DataURL:         cfg.Alpaca.DataURL,
			Feed:            cfg.Alpaca.Feed,
			RateLimitPerMin: cfg.Data.RateLimitPerMin,
			MaxRetries:      cfg.Data.MaxRetries,
		})
	}
	return src
}

// Open returns the provider named by cfg.Data.Source. Remote providers are
// wrapped with the parquet cache in prices unless caching is disabled; the
// returned close function releases the cache.
func Open(cfg *config.Config, prices store.PriceStore) (gather.Provider, func() error, error) {
	p, err := Sources(cfg).Get(cfg.Data.Source)
	if err != nil {
		return nil, nil, err
	}
	noop := func() error { return nil }
	if cfg.Data.NoCache || p.Name() == csvfile.Name || prices == nil {
		return p, noop, nil
	}
	cached, err := gather.NewCachedProvider(p, prices, cfg.Storage.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening price cache: %w", err)
	}
	return cached, cached.Close, nil
}

// ClampEnd limits end to the latest finished trading session when the
// Alpaca source is in use, so an unfinished day is never cached. A zero end
// is replaced the same way. Other sources return end unchanged.
func ClampEnd(cfg *config.Config, end time.Time) time.Time {
	if !strings.EqualFold(cfg.Data.Source, alpaca.Name) {
		return end
	}
	latest, err := alpaca.LatestFinishedTradingDay(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL)
	if err != nil {
		slog.Warn("could not determine latest trading day", "error", err)
		return end
	}
	if end.IsZero() || end.After(latest) {
		return latest
	}
	return end
}
