// Package alpaca fetches split- and dividend-adjusted daily closes from the
// Alpaca market data API.
package alpaca

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"pairdesk/internal/domain"
	"pairdesk/internal/gather"
	"pairdesk/internal/util"
)

// Name is the provider identifier.
const Name = "alpaca"

var eastern = mustLoad("America/New_York")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("EST", -5*3600)
	}
	return loc
}

// barsClient is the subset of the market data client used here.
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// Compile-time interface check.
var _ gather.Provider = (*Provider)(nil)

// Config holds the Alpaca credentials and request pacing.
type Config struct {
	APIKey    string
	APISecret string
	DataURL   string
	// Feed is the bar feed, "sip" or "iex".
	Feed string
	// RateLimitPerMin caps API calls per minute.
	RateLimitPerMin int
	MaxRetries      int
}

// Provider implements gather.Provider over the Alpaca bars endpoint.
type Provider struct {
	client     barsClient
	feed       string
	limiter    *util.RateLimiter
	retries    int
	retryDelay time.Duration
	log        *slog.Logger
}

// New creates an Alpaca provider.
func New(cfg Config) *Provider {
	opts := marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.DataURL != "" {
		opts.BaseURL = cfg.DataURL
	}
	return newProvider(marketdata.NewClient(opts), cfg)
}

func newProvider(client barsClient, cfg Config) *Provider {
	feed := cfg.Feed
	if feed == "" {
		feed = "sip"
	}
	return &Provider{
		client:     client,
		feed:       feed,
		limiter:    util.NewRateLimiter(cfg.RateLimitPerMin, 1),
		retries:    max(cfg.MaxRetries, 1),
		retryDelay: time.Second,
		log:        slog.Default().With("provider", Name),
	}
}

// Name returns "alpaca".
func (p *Provider) Name() string { return Name }

// Fetch returns daily adjusted closes for symbol within [start, end]. A zero
// end means up to now.
func (p *Provider) Fetch(ctx context.Context, symbol string, start, end time.Time) (domain.Series, error) {
	req := marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.All,
		Start:      start,
		End:        end,
		Feed:       p.feed,
	}

	var bars []marketdata.Bar
	err := util.Retry(ctx, p.retries, p.retryDelay, func() error {
		if err := p.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var err error
		bars, err = p.client.GetBars(symbol, req)
		return err
	})
	if err != nil {
		return domain.Series{}, fmt.Errorf("GetBars %s: %w", symbol, err)
	}

	s := domain.Series{Symbol: symbol, Points: make([]domain.Point, 0, len(bars))}
	for _, b := range bars {
		s.Points = append(s.Points, domain.Point{Time: sessionDate(b.Timestamp), Value: b.Close})
	}
	p.log.Debug("fetched bars", "symbol", symbol, "bars", len(bars))
	return s, nil
}

// sessionDate maps a bar timestamp to its New York trading date at midnight
// UTC.
func sessionDate(ts time.Time) time.Time {
	y, m, d := ts.In(eastern).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
