// Command ratio-bands reports the price ratio of two instruments with its
// rolling bands and band signal, read from Date,Price CSV files.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gonum.org/v1/gonum/stat"

	"pairdesk/internal/config"
	"pairdesk/internal/domain"
	"pairdesk/internal/exporter"
	"pairdesk/internal/gather/csvfile"
	"pairdesk/internal/strategy"
	"pairdesk/internal/timeseries"
	"pairdesk/internal/util"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
}

func main() {
	numFile := flag.String("a", "", "CSV for the ratio numerator (leg A)")
	denFile := flag.String("b", "", "CSV for the ratio denominator (leg B)")
	fromYear := flag.Int("from-year", 0, "first calendar year to keep (0 keeps all)")
	toYear := flag.Int("to-year", 0, "last calendar year to keep (0 keeps all)")
	out := flag.String("out", "", "output CSV (default: <output.dir>/<A>-<B>_bands.csv)")
	flag.Parse()

	if *numFile == "" || *denFile == "" {
		log.Fatalf("both -a and -b are required")
	}

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))
	params := cfg.Backtest.Bands
	if err := params.Validate(); err != nil {
		log.Fatalf("invalid band parameters: %v", err)
	}

	a := load(*numFile)
	b := load(*denFile)
	if a.Symbol == b.Symbol {
		b.Symbol += "_2"
	}

	var start, end time.Time
	if *fromYear > 0 {
		start = time.Date(*fromYear, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if *toYear > 0 {
		end = time.Date(*toYear, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	a, b = a.Between(start, end), b.Between(start, end)

	frame, report, err := timeseries.Align(a, b)
	if err != nil {
		log.Fatalf("merging prices: %v", err)
	}
	if frame.Len() < params.Window {
		log.Fatalf("only %d common dates, need at least %d", frame.Len(), params.Window)
	}
	slog.Info("merged prices", "pair", a.Symbol+"/"+b.Symbol, "dates", frame.Len(), "dropped", report.Total())

	pa, _ := frame.Column(a.Symbol)
	pb, _ := frame.Column(b.Symbol)
	bands, err := strategy.ComputeBands(timeseries.Ratio(pa, pb), params)
	if err != nil {
		log.Fatalf("computing bands: %v", err)
	}
	pos := strategy.Signals(bands, params)

	path := *out
	if path == "" {
		path = filepath.Join(cfg.Output.Dir, a.Symbol+"-"+b.Symbol+"_bands.csv")
	}
	if err := exporter.WriteBands(path, frame.Dates, bands, pos); err != nil {
		log.Fatalf("writing bands: %v", err)
	}

	mean, std := stat.MeanStdDev(bands.Ratio, nil)
	w := os.Stdout
	fmt.Fprintf(w, "Price ratio %s/%s, %s to %s (%d days)\n", a.Symbol, b.Symbol,
		frame.Dates[0].Format(time.DateOnly), frame.Dates[frame.Len()-1].Format(time.DateOnly), frame.Len())
	fmt.Fprintf(w, "  Mean ratio: %.6f\n", mean)
	fmt.Fprintf(w, "  Ratio std:  %.6f\n", std)
	fmt.Fprintf(w, "  Last ratio: %.6f (band %.6f .. %.6f), position %s\n",
		bands.Ratio[frame.Len()-1], bands.Lower[frame.Len()-1], bands.Upper[frame.Len()-1], pos[len(pos)-1])
	fmt.Fprintf(w, "  Report: %s\n", path)
}

// load reads a price CSV named after its symbol and drops unusable prices.
func load(path string) domain.Series {
	sym := filepath.Base(path)
	sym = sym[:len(sym)-len(filepath.Ext(sym))]
	s, err := csvfile.ReadFile(path, sym)
	if err != nil {
		log.Fatalf("%v", err)
	}
	s, dropped := s.Clean()
	if dropped > 0 {
		slog.Info("dropped unusable prices", "symbol", sym, "rows", dropped)
	}
	if s.Empty() {
		log.Fatalf("no prices in %s", path)
	}
	return s
}
