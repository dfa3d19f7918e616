// Command benchmark-stats summarises a spreadsheet of monthly benchmark
// returns and, when available, the latest backtest for comparison.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"pairdesk/internal/benchmark"
	"pairdesk/internal/config"
	"pairdesk/internal/store"
	"pairdesk/internal/util"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
}

func main() {
	file := flag.String("file", "", "monthly returns workbook (default: benchmark.file)")
	sheet := flag.String("sheet", "", "sheet name (default: benchmark.sheet)")
	compare := flag.Bool("compare", true, "print the latest recorded backtest alongside")
	flag.Parse()

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))

	path, sh := cfg.Benchmark.File, cfg.Benchmark.Sheet
	if *file != "" {
		path = *file
	}
	if *sheet != "" {
		sh = *sheet
	}
	if path == "" {
		log.Fatalf("no benchmark workbook: set benchmark.file or -file")
	}

	monthly, dropped, err := benchmark.ReadMonthlyReturns(path, sh)
	if err != nil {
		log.Fatalf("reading %s: %v", path, err)
	}
	if dropped > 0 {
		slog.Info("dropped unparseable rows", "rows", dropped)
	}

	start, _ := config.ParseDate(cfg.Backtest.StartDate)
	end, _ := config.ParseDate(cfg.Backtest.EndDate)
	st, err := benchmark.Evaluate(monthly, start, end, cfg.Benchmark.RiskFree)
	if err != nil {
		log.Fatalf("evaluating benchmark: %v", err)
	}

	w := os.Stdout
	fmt.Fprintf(w, "Benchmark %s (%s to %s, %d months):\n", path,
		st.Start.Format("2006-01-02"), st.End.Format("2006-01-02"), st.Months)
	fmt.Fprintf(w, "  Annualized Return: %.2f%%\n", 100*st.AnnualizedReturn)
	fmt.Fprintf(w, "  CAGR: %.2f%%\n", 100*st.CAGR)
	fmt.Fprintf(w, "  Standard Deviation: %.2f%%\n", 100*st.StdDev)
	fmt.Fprintf(w, "  Sharpe Ratio: %.2f\n", st.Sharpe)
	fmt.Fprintf(w, "  Sortino Ratio: %.2f\n", st.Sortino)

	if !*compare {
		return
	}
	ledger, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open ledger: %v", err)
	}
	defer ledger.Close()

	ctx := context.Background()
	run, err := ledger.LatestRun(ctx, store.RunKindBacktest)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		log.Fatalf("loading latest backtest: %v", err)
	}
	sum, err := ledger.GetBacktestSummary(ctx, run.ID)
	if err != nil {
		log.Fatalf("loading backtest summary: %v", err)
	}
	fmt.Fprintf(w, "\nLatest backtest %s (%s):\n", run.ID, run.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "  Annualized Return: %.2f%%\n", 100*sum.AnnualReturn)
	fmt.Fprintf(w, "  CAGR: %.2f%%\n", 100*sum.CAGR)
	fmt.Fprintf(w, "  Standard Deviation: %.2f%%\n", 100*sum.AnnualVolatility)
	fmt.Fprintf(w, "  Sharpe Ratio: %.2f\n", sum.Sharpe)
	fmt.Fprintf(w, "  Sortino Ratio: %.2f\n", sum.Sortino)
	fmt.Fprintf(w, "  Max Drawdown: %.2f%%\n", 100*sum.MaxDrawdown)
}
