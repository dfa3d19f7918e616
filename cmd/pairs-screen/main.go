// Command pairs-screen ranks a symbol universe by price correlation and
// keeps the pairs whose legs are non-stationary and cointegrated.
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
	"pairdesk/internal/screen"
	"pairdesk/internal/store"
	"pairdesk/internal/timeseries"
	"pairdesk/internal/util"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
}

func main() {
	top := flag.Int("top", 0, "number of correlation-ranked pairs to test (default from config)")
	maxResults := flag.Int("max", 0, "stop after this many accepted pairs (default from config)")
	threshold := flag.Float64("threshold", 0, "cointegration p-value threshold (default from config)")
	note := flag.String("note", "", "note stored with the run")
	flag.Parse()

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *top > 0 {
		cfg.Screen.TopPairs = *top
	}
	if *maxResults > 0 {
		cfg.Screen.MaxResults = *maxResults
	}
	if *threshold > 0 {
		cfg.Screen.CointThreshold = *threshold
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))

	universe, err := cfg.Screen.Universe()
	if err != nil {
		log.Fatalf("failed to load universe: %v", err)
	}
	start, _ := config.ParseDate(cfg.Screen.StartDate)
	end, _ := config.ParseDate(cfg.Screen.EndDate)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	provider, closeProvider, err := source.Open(cfg, store.NewParquetStore(cfg.Storage.DataDir))
	if err != nil {
		log.Fatalf("failed to open price source: %v", err)
	}
	defer closeProvider()

	slog.Info("fetching universe", "symbols", len(universe), "source", provider.Name(),
		"start", cfg.Screen.StartDate, "end", cfg.Screen.EndDate)
	prices, report, err := gather.FetchAll(ctx, provider, universe,
		gather.DateRange{Start: start, End: end},
		gather.FetchOptions{Workers: cfg.Data.Workers, SkipFailures: true})
	if err != nil {
		log.Fatalf("fetch failed: %v", err)
	}
	if len(report.Empty) > 0 || len(report.Failed) > 0 {
		slog.Warn("symbols without data", "empty", report.Empty, "failed", len(report.Failed))
	}

	series := make([]domain.Series, 0, len(prices))
	for _, sym := range universe {
		sym = gather.Normalize(sym)
		if s, ok := prices[sym]; ok {
			series = append(series, s)
			delete(prices, sym)
		}
	}
	series, sparse := timeseries.DropSparse(series, cfg.Screen.MinCoverage)
	if len(sparse) > 0 {
		slog.Info("dropped short histories", "symbols", sparse)
	}

	frame, align, err := timeseries.Align(series...)
	if err != nil {
		log.Fatalf("aligning prices: %v", err)
	}
	slog.Info("aligned prices", "symbols", len(frame.Symbols), "dates", frame.Len(), "dropped_rows", align.Total())

	corr, excluded, err := screen.Correlations(frame)
	if err != nil {
		log.Fatalf("correlation screen: %v", err)
	}
	if len(excluded) > 0 {
		slog.Warn("excluded constant series", "symbols", excluded)
	}
	ranked, err := screen.TopPairs(corr, cfg.Screen.TopPairs)
	if err != nil {
		log.Fatalf("ranking pairs: %v", err)
	}

	sel := screen.NewSelector(cfg.Screen.CointThreshold, slog.Default())
	sel.Options.MaxLag = cfg.Screen.MaxLag
	best, err := sel.Select(ctx, ranked, frame, cfg.Screen.MaxResults)
	if err != nil {
		log.Fatalf("selecting pairs: %v", err)
	}

	ledger, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open ledger: %v", err)
	}
	defer ledger.Close()

	run := &store.Run{Kind: store.RunKindScreen, Source: provider.Name(), Start: start, End: end, Note: *note}
	if err := ledger.CreateRun(ctx, run); err != nil {
		log.Fatalf("recording run: %v", err)
	}
	if err := ledger.SaveRankedPairs(ctx, run.ID, ranked); err != nil {
		log.Fatalf("recording ranked pairs: %v", err)
	}
	if err := ledger.SaveSelectedPairs(ctx, run.ID, best); err != nil {
		log.Fatalf("recording selected pairs: %v", err)
	}

	out := filepath.Join(cfg.Output.Dir, "selected_pairs.csv")
	if err := exporter.WritePairs(out, best); err != nil {
		log.Fatalf("writing pairs: %v", err)
	}
	slog.Info("screen complete", "run", run.ID, "ranked", len(ranked), "selected", len(best), "output", out)

	fmt.Fprintf(os.Stdout, "\nTop %d Pairs for Pairs Trading:\n", len(best))
	for _, p := range best {
		fmt.Fprintf(os.Stdout, "Pair: %s, Correlation: %.2f, Coint p-value: %.4f\n", p.Pair, p.Correlation, p.CointPValue)
	}
}
