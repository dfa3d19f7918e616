// Command price-download fetches adjusted closes for a list of symbols,
// fills the price cache and writes one Date,Price CSV per symbol.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"pairdesk/internal/config"
	"pairdesk/internal/exporter"
	"pairdesk/internal/gather"
	"pairdesk/internal/gather/source"
	"pairdesk/internal/store"
	"pairdesk/internal/util"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
}

func main() {
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols (default: screen universe)")
	startFlag := flag.String("start", "", "start date YYYY-MM-DD (default: backtest start)")
	endFlag := flag.String("end", "", "end date YYYY-MM-DD (default: backtest end)")
	outDir := flag.String("out", "", "CSV output directory (default: output.prices_dir)")
	flag.Parse()

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))

	var symbols []string
	if *symbolsFlag != "" {
		symbols = strings.Split(*symbolsFlag, ",")
	} else if symbols, err = cfg.Screen.Universe(); err != nil {
		log.Fatalf("failed to load universe: %v", err)
	}
	if len(symbols) == 0 {
		log.Fatalf("no symbols to download")
	}

	startStr, endStr := cfg.Backtest.StartDate, cfg.Backtest.EndDate
	if *startFlag != "" {
		startStr = *startFlag
	}
	if *endFlag != "" {
		endStr = *endFlag
	}
	start, err := config.ParseDate(startStr)
	if err != nil {
		log.Fatalf("%v", err)
	}
	end, err := config.ParseDate(endStr)
	if err != nil {
		log.Fatalf("%v", err)
	}
	end = source.ClampEnd(cfg, end)

	dir := cfg.Output.PricesDir
	if *outDir != "" {
		dir = *outDir
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	provider, closeProvider, err := source.Open(cfg, store.NewParquetStore(cfg.Storage.DataDir))
	if err != nil {
		log.Fatalf("failed to open price source: %v", err)
	}
	defer closeProvider()

	slog.Info("downloading", "symbols", len(symbols), "source", provider.Name(), "start", startStr, "end", endStr)
	prices, report, err := gather.FetchAll(ctx, provider, symbols,
		gather.DateRange{Start: start, End: end},
		gather.FetchOptions{Workers: cfg.Data.Workers, SkipFailures: true})
	if err != nil {
		log.Fatalf("download failed: %v", err)
	}

	for sym, s := range prices {
		path := filepath.Join(dir, sym+".csv")
		if err := exporter.WritePrices(path, s); err != nil {
			log.Fatalf("writing %s: %v", path, err)
		}
		slog.Info("saved", "symbol", sym, "rows", s.Len(), "path", path)
	}
	for _, sym := range report.Empty {
		slog.Warn("no data found", "symbol", sym)
	}
	for sym, ferr := range report.Failed {
		slog.Error("error downloading", "symbol", sym, "error", ferr)
	}
	slog.Info("download complete", "saved", len(prices), "empty", len(report.Empty), "failed", len(report.Failed))
}
