package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"pairdesk/internal/domain"
	"pairdesk/internal/portfolio"
	"pairdesk/internal/timeseries"
)

// BacktestRequest describes one backtest run.
type BacktestRequest struct {
	// Strategy is the registry name of the pair strategy.
	Strategy string
	Pairs    []domain.Pair
	// Prices holds a series for every leg of every pair.
	Prices map[string]domain.Series
	// Benchmark is held buy-and-hold with the capital not given to pairs.
	Benchmark domain.Series
	// Capital is the total starting capital.
	Capital float64
	// PairFraction of Capital is split equally across Pairs; the rest goes
	// to Benchmark.
	PairFraction float64
	Summary      portfolio.Options
	// Workers bounds how many pairs are evaluated at once. Zero means one
	// goroutine per pair.
	Workers int
}

// PairResult is the outcome of backtesting a single pair.
type PairResult struct {
	Pair       domain.Pair
	Allocation float64
	Dates      []time.Time
	Ratio      []float64
	Positions  []domain.Position
	Returns    []float64
	Value      domain.Series
}

// BacktestResult holds the per-pair results and the combined portfolio.
type BacktestResult struct {
	Pairs     []PairResult
	Benchmark domain.Series
	Total     domain.Series
	Returns   domain.Series
	Monthly   domain.Series
	Summary   portfolio.Summary
}

// Backtester replays historical prices through a pair strategy and computes
// portfolio performance.
type Backtester struct {
	registry *Registry
	log      *slog.Logger
}

// NewBacktester creates a Backtester that looks up strategies in the
// provided registry.
func NewBacktester(registry *Registry, log *slog.Logger) *Backtester {
	if log == nil {
		log = slog.Default()
	}
	return &Backtester{
		registry: registry,
		log:      log.With("component", "backtester"),
	}
}

// Run backtests every pair concurrently, then sums the pair sub-portfolios
// and the benchmark sleeve over their common dates.
func (bt *Backtester) Run(ctx context.Context, req BacktestRequest) (*BacktestResult, error) {
	strat, ok := bt.registry.Get(req.Strategy)
	if !ok {
		return nil, fmt.Errorf("backtest: unknown strategy %q", req.Strategy)
	}
	if len(req.Pairs) == 0 {
		return nil, fmt.Errorf("backtest: no pairs")
	}
	if req.Capital <= 0 {
		return nil, fmt.Errorf("backtest: capital must be positive, got %v", req.Capital)
	}
	if req.PairFraction <= 0 || req.PairFraction > 1 {
		return nil, fmt.Errorf("backtest: pair fraction must be in (0, 1], got %v", req.PairFraction)
	}
	benchCapital := req.Capital * (1 - req.PairFraction)
	if benchCapital > 0 && req.Benchmark.Empty() {
		return nil, fmt.Errorf("backtest: benchmark allocation %v without benchmark prices", benchCapital)
	}

	allocation := req.Capital * req.PairFraction / float64(len(req.Pairs))
	results := make([]PairResult, len(req.Pairs))

	g, gctx := errgroup.WithContext(ctx)
	if req.Workers > 0 {
		g.SetLimit(req.Workers)
	}
	for i, pair := range req.Pairs {
		i, pair := i, pair
		g.Go(func() error {
			res, err := bt.runPair(gctx, strat, pair, req.Prices, allocation)
			if err != nil {
				return fmt.Errorf("backtest %s: %w", pair, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	subs := make([]domain.Series, 0, len(results)+1)
	for _, r := range results {
		subs = append(subs, r.Value)
	}
	out := &BacktestResult{Pairs: results}
	if benchCapital > 0 {
		bench, err := portfolio.BenchmarkValue(req.Benchmark, benchCapital)
		if err != nil {
			return nil, fmt.Errorf("backtest: %w", err)
		}
		out.Benchmark = bench
		subs = append(subs, bench)
	}

	total, err := portfolio.Combine(subs...)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	out.Total = total
	out.Returns = portfolio.Returns(total)
	out.Monthly = portfolio.MonthlyReturns(out.Returns)

	summary, err := portfolio.Summarize(total, req.Summary)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	out.Summary = summary

	bt.log.Info("backtest complete",
		"strategy", req.Strategy,
		"pairs", len(req.Pairs),
		"days", total.Len(),
		"final_value", summary.EndValue,
		"cagr", summary.CAGR,
	)
	return out, nil
}

func (bt *Backtester) runPair(ctx context.Context, strat PairStrategy, pair domain.Pair,
	prices map[string]domain.Series, allocation float64) (PairResult, error) {
	a, okA := prices[pair.A]
	b, okB := prices[pair.B]
	if !okA || !okB {
		return PairResult{}, fmt.Errorf("missing prices for %s", pair)
	}
	a, _ = a.Clean()
	b, _ = b.Clean()

	frame, report, err := timeseries.Align(a, b)
	if err != nil {
		return PairResult{}, err
	}
	if frame.Len() < 2 {
		return PairResult{}, fmt.Errorf("only %d common dates", frame.Len())
	}
	if n := report.Total(); n > 0 {
		bt.log.Debug("dropped unmatched dates", "pair", pair.String(), "dropped", n)
	}

	pa, _ := frame.Column(pair.A)
	pb, _ := frame.Column(pair.B)
	ratio := timeseries.Ratio(pa, pb)

	pos, err := strat.Positions(ctx, ratio)
	if err != nil {
		return PairResult{}, err
	}
	rets, err := portfolio.StrategyReturns(pos, timeseries.PctChange(pa), timeseries.PctChange(pb))
	if err != nil {
		return PairResult{}, err
	}
	value, err := portfolio.Compound(frame.Dates, rets, allocation)
	if err != nil {
		return PairResult{}, err
	}
	value.Symbol = pair.String()

	return PairResult{
		Pair:       pair,
		Allocation: allocation,
		Dates:      frame.Dates,
		Ratio:      ratio,
		Positions:  pos,
		Returns:    rets,
		Value:      value,
	}, nil
}
