// Package yahoo fetches adjusted daily closes from the Yahoo Finance chart
// API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"pairdesk/internal/domain"
	"pairdesk/internal/gather"
	"pairdesk/internal/util"
)

// Name is the provider identifier.
const Name = "yahoo"

// DefaultBaseURL is the public chart API host.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

const userAgent = "Mozilla/5.0 (compatible; pairdesk/1.0)"

// Compile-time interface check.
var _ gather.Provider = (*Provider)(nil)

// Config controls the HTTP client and request pacing.
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	RateLimitPerMin int
	MaxRetries      int
	// SymbolMap translates local symbols to Yahoo tickers, e.g. SPX to ^GSPC.
	SymbolMap map[string]string
}

// Provider implements gather.Provider over the chart endpoint.
type Provider struct {
	client     *http.Client
	baseURL    string
	symbolMap  map[string]string
	limiter    *util.RateLimiter
	retries    int
	retryDelay time.Duration
	log        *slog.Logger
}

// New creates a Yahoo provider.
func New(cfg Config) *Provider {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Provider{
		client:     &http.Client{Timeout: timeout},
		baseURL:    base,
		symbolMap:  cfg.SymbolMap,
		limiter:    util.NewRateLimiter(cfg.RateLimitPerMin, 1),
		retries:    max(cfg.MaxRetries, 1),
		retryDelay: time.Second,
		log:        slog.Default().With("provider", Name),
	}
}

// Name returns "yahoo".
func (p *Provider) Name() string { return Name }

func (p *Provider) ticker(symbol string) string {
	if mapped, ok := p.symbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// chartResponse is the subset of the chart API payload used here. Missing
// values arrive as JSON null.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch returns daily adjusted closes for symbol within [start, end]. A zero
// end means up to now. Unknown symbols yield an empty series.
func (p *Provider) Fetch(ctx context.Context, symbol string, start, end time.Time) (domain.Series, error) {
	if end.IsZero() {
		end = time.Now()
	}
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", p.baseURL, url.PathEscape(p.ticker(symbol)), url.Values{
		"period1":  {strconv.FormatInt(start.Unix(), 10)},
		"period2":  {strconv.FormatInt(end.AddDate(0, 0, 1).Unix(), 10)},
		"interval": {"1d"},
		"events":   {"div,split"},
	}.Encode())

	var body []byte
	notFound := false
	err := util.Retry(ctx, p.retries, p.retryDelay, func() error {
		if err := p.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return util.Permanent(err)
		}
		req.Header.Set("User-Agent", userAgent)
		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			notFound = true
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("yahoo: status %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return util.Permanent(fmt.Errorf("yahoo: status %d", resp.StatusCode))
		}
		body, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return domain.Series{}, fmt.Errorf("fetch %s: %w", symbol, err)
	}
	if notFound {
		p.log.Debug("symbol not found", "symbol", symbol)
		return domain.Series{Symbol: symbol}, nil
	}

	s, err := parseChart(symbol, body, start, end)
	if err != nil {
		return domain.Series{}, fmt.Errorf("fetch %s: %w", symbol, err)
	}
	return s, nil
}

// parseChart converts a chart payload to a series of adjusted closes,
// falling back to raw closes when no adjusted column is present.
func parseChart(symbol string, body []byte, start, end time.Time) (domain.Series, error) {
	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return domain.Series{}, fmt.Errorf("decoding chart: %w", err)
	}
	if e := chart.Chart.Error; e != nil {
		return domain.Series{}, fmt.Errorf("yahoo: %s: %s", e.Code, e.Description)
	}

	s := domain.Series{Symbol: symbol}
	if len(chart.Chart.Result) == 0 {
		return s, nil
	}
	r := chart.Chart.Result[0]

	var closes []*float64
	switch {
	case len(r.Indicators.AdjClose) > 0:
		closes = r.Indicators.AdjClose[0].AdjClose
	case len(r.Indicators.Quote) > 0:
		closes = r.Indicators.Quote[0].Close
	}

	startDay := domain.DateOf(start)
	endDay := domain.DateOf(end)
	for i, ts := range r.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		day := domain.DateOf(time.Unix(ts, 0).UTC())
		if (!start.IsZero() && day.Before(startDay)) || day.After(endDay) {
			continue
		}
		s.Points = append(s.Points, domain.Point{Time: day, Value: *closes[i]})
	}
	return s, nil
}
