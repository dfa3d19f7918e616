// Command pairs-backtest runs the band strategy over a set of pairs, blends
// the result with a buy-and-hold benchmark and writes monthly returns.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"pairdesk/internal/config"
	"pairdesk/internal/domain"
	"pairdesk/internal/exporter"
	"pairdesk/internal/gather"
	"pairdesk/internal/gather/source"
	"pairdesk/internal/portfolio"
	"pairdesk/internal/store"
	"pairdesk/internal/strategy"
	"pairdesk/internal/strategy/builtins"
	"pairdesk/internal/util"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
}

func main() {
	fromLatest := flag.Bool("from-latest-screen", false, "backtest the pairs selected by the latest screen run")
	runID := flag.String("screen-run", "", "backtest the pairs selected by this screen run")
	note := flag.String("note", "", "note stored with the run")
	flag.Parse()

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ledger, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open ledger: %v", err)
	}
	defer ledger.Close()

	pairs := append([]domain.Pair(nil), cfg.Backtest.Pairs...)
	if *fromLatest || *runID != "" || cfg.Backtest.FromLatestScreen {
		pairs, err = screenedPairs(ctx, ledger, *runID)
		if err != nil {
			log.Fatalf("loading screened pairs: %v", err)
		}
	}
	if len(pairs) == 0 {
		log.Fatalf("no pairs to backtest")
	}

	start, _ := config.ParseDate(cfg.Backtest.StartDate)
	end, _ := config.ParseDate(cfg.Backtest.EndDate)
	end = source.ClampEnd(cfg, end)

	symbols := make([]string, 0, 2*len(pairs)+1)
	for i, p := range pairs {
		pairs[i] = domain.Pair{A: gather.Normalize(p.A), B: gather.Normalize(p.B)}
		symbols = append(symbols, pairs[i].A, pairs[i].B)
	}
	if cfg.Backtest.PairFraction < 1 {
		symbols = append(symbols, cfg.Backtest.Benchmark)
	}

	provider, closeProvider, err := source.Open(cfg, store.NewParquetStore(cfg.Storage.DataDir))
	if err != nil {
		log.Fatalf("failed to open price source: %v", err)
	}
	defer closeProvider()

	prices, report, err := gather.FetchAll(ctx, provider, symbols,
		gather.DateRange{Start: start, End: end},
		gather.FetchOptions{Workers: cfg.Data.Workers})
	if err != nil {
		log.Fatalf("fetch failed: %v", err)
	}
	if len(report.Empty) > 0 {
		log.Fatalf("no price data for %v", report.Empty)
	}

	registry := strategy.NewRegistry()
	builtins.Register(registry, cfg.Backtest.Bands)
	bt := strategy.NewBacktester(registry, slog.Default())

	req := strategy.BacktestRequest{
		Strategy:     cfg.Backtest.Strategy,
		Pairs:        pairs,
		Prices:       prices,
		Capital:      cfg.Backtest.Capital,
		PairFraction: cfg.Backtest.PairFraction,
		Summary: portfolio.Options{
			PeriodsPerYear: cfg.Backtest.PeriodsPerYear,
			RiskFree:       cfg.Backtest.RiskFree,
		},
		Workers: cfg.Backtest.Workers,
	}
	if cfg.Backtest.PairFraction < 1 {
		req.Benchmark = prices[gather.Normalize(cfg.Backtest.Benchmark)]
	}
	res, err := bt.Run(ctx, req)
	if err != nil {
		log.Fatalf("backtest failed: %v", err)
	}

	out := filepath.Join(cfg.Output.Dir, cfg.Output.MonthlyReturns)
	if err := exporter.WriteMonthlyReturns(out, res.Monthly); err != nil {
		log.Fatalf("writing monthly returns: %v", err)
	}

	run := &store.Run{Kind: store.RunKindBacktest, Source: provider.Name(), Start: start, End: end, Note: *note}
	if err := ledger.CreateRun(ctx, run); err != nil {
		log.Fatalf("recording run: %v", err)
	}
	if err := ledger.SaveBacktestSummary(ctx, run.ID, res.Summary); err != nil {
		log.Fatalf("recording summary: %v", err)
	}
	slog.Info("backtest recorded", "run", run.ID, "monthly_returns", out)

	printSummary(res)
}

// screenedPairs loads the selected pairs of runID, or of the latest screen
// run when runID is empty.
func screenedPairs(ctx context.Context, ledger *store.SQLiteStore, runID string) ([]domain.Pair, error) {
	if runID == "" {
		run, err := ledger.LatestRun(ctx, store.RunKindScreen)
		if err != nil {
			return nil, err
		}
		runID = run.ID
	}
	selected, err := ledger.ListSelectedPairs(ctx, runID)
	if err != nil {
		return nil, err
	}
	pairs := make([]domain.Pair, len(selected))
	for i, p := range selected {
		pairs[i] = p.Pair
	}
	slog.Info("using screened pairs", "run", runID, "pairs", len(pairs))
	return pairs, nil
}

func printSummary(res *strategy.BacktestResult) {
	s := res.Summary
	w := os.Stdout
	fmt.Fprintf(w, "\nPortfolio Performance (%s to %s):\n", s.Start.Format("2006-01-02"), s.End.Format("2006-01-02"))
	fmt.Fprintf(w, "  Start Value: %.2f\n", s.StartValue)
	fmt.Fprintf(w, "  End Value: %.2f\n", s.EndValue)
	fmt.Fprintf(w, "  Annualized Return: %.2f%%\n", 100*s.AnnualReturn)
	fmt.Fprintf(w, "  CAGR: %.2f%%\n", 100*s.CAGR)
	fmt.Fprintf(w, "  Standard Deviation: %.2f%%\n", 100*s.AnnualVolatility)
	fmt.Fprintf(w, "  Sharpe Ratio: %.2f\n", s.Sharpe)
	fmt.Fprintf(w, "  Sortino Ratio: %.2f\n", s.Sortino)
	fmt.Fprintf(w, "  Skew: %.2f\n", s.Skew)
	fmt.Fprintf(w, "  Max Drawdown: %.2f%%\n", 100*s.MaxDrawdown)

	fmt.Fprintln(w, "\nPairs:")
	for _, p := range res.Pairs {
		fmt.Fprintf(w, "  %-16s %12.2f -> %12.2f\n", p.Pair, p.Allocation, p.Value.Last().Value)
	}
}
