// Package store defines storage interfaces for cached price series and the
// ledger of screening and backtest runs.
package store

import (
	"context"
	"errors"
	"time"

	"pairdesk/internal/domain"
	"pairdesk/internal/portfolio"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// PriceStore persists and retrieves daily price series per data source.
type PriceStore interface {
	// WritePrices merges the observations of s into storage.
	WritePrices(ctx context.Context, source string, s domain.Series) error

	// ReadPrices returns the stored series for symbol within [start, end].
	// A zero bound is open. Missing data yields an empty series.
	ReadPrices(ctx context.Context, source, symbol string, start, end time.Time) (domain.Series, error)

	// ListSymbols returns all distinct symbols stored for source.
	ListSymbols(ctx context.Context, source string) ([]string, error)
}

// Run kinds recorded in the ledger.
const (
	RunKindScreen   = "screen"
	RunKindBacktest = "backtest"
)

// Run describes one invocation of a screening or backtest command.
type Run struct {
	ID        string
	Kind      string
	Source    string
	Start     time.Time
	End       time.Time
	CreatedAt time.Time
	Note      string
}

// RunStore records screening and backtest results for later comparison.
type RunStore interface {
	// CreateRun inserts run, assigning an ID and creation time if unset.
	CreateRun(ctx context.Context, run *Run) error

	// GetRun retrieves a run by ID.
	GetRun(ctx context.Context, id string) (*Run, error)

	// LatestRun returns the most recent run of the given kind.
	LatestRun(ctx context.Context, kind string) (*Run, error)

	// ListRuns returns the most recent runs of a kind, newest first.
	ListRuns(ctx context.Context, kind string, limit int) ([]Run, error)

	// SaveRankedPairs stores the correlation ranking of a screen run.
	SaveRankedPairs(ctx context.Context, runID string, pairs []domain.RankedPair) error

	// SaveSelectedPairs stores the cointegrated pairs of a screen run.
	SaveSelectedPairs(ctx context.Context, runID string, pairs []domain.CointegratedPair) error

	// ListSelectedPairs returns the selected pairs of a run in rank order.
	ListSelectedPairs(ctx context.Context, runID string) ([]domain.CointegratedPair, error)

	// SaveBacktestSummary stores the summary statistics of a backtest run.
	SaveBacktestSummary(ctx context.Context, runID string, s portfolio.Summary) error

	// GetBacktestSummary retrieves the summary of a backtest run.
	GetBacktestSummary(ctx context.Context, runID string) (*portfolio.Summary, error)
}
