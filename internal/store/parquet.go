package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"pairdesk/internal/domain"
)

// Compile-time interface check.
var _ PriceStore = (*ParquetStore)(nil)

// ParquetStore implements PriceStore using Parquet files on disk.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// PriceRecord is the Parquet schema for a daily adjusted close.
type PriceRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Close     float64 `parquet:"close"`
}

// WritePrices writes the series to Parquet files organized by symbol and
// year, merging with what is already stored. Each symbol+year combination
// produces a separate file at:
//
//	<DataDir>/<source>/daily/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) WritePrices(_ context.Context, source string, series domain.Series) error {
	if series.Empty() {
		return nil
	}
	symbol := strings.ToUpper(series.Symbol)

	groups := make(map[int][]PriceRecord)
	for _, p := range series.Points {
		year := p.Time.UTC().Year()
		groups[year] = append(groups[year], PriceRecord{
			Symbol:    symbol,
			Timestamp: p.Time.UnixMilli(),
			Close:     p.Value,
		})
	}

	for year, records := range groups {
		path := s.pricePath(source, symbol, year)

		// Read existing records to merge.
		existing, _ := readParquetFile[PriceRecord](path)
		merged := mergePriceRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing prices for %s/%d: %w", symbol, year, err)
		}
	}
	return nil
}

// ReadPrices reads the stored series for symbol within [start, end].
func (s *ParquetStore) ReadPrices(_ context.Context, source, symbol string, start, end time.Time) (domain.Series, error) {
	symbol = strings.ToUpper(symbol)
	out := domain.Series{Symbol: symbol}

	years, err := s.years(source, symbol)
	if err != nil {
		return out, err
	}
	for _, year := range years {
		if !start.IsZero() && year < start.UTC().Year() {
			continue
		}
		if !end.IsZero() && year > end.UTC().Year() {
			continue
		}
		records, err := readParquetFile[PriceRecord](s.pricePath(source, symbol, year))
		if err != nil {
			return out, fmt.Errorf("reading prices for %s/%d: %w", symbol, year, err)
		}
		for _, r := range records {
			out.Points = append(out.Points, domain.Point{Time: time.UnixMilli(r.Timestamp).UTC(), Value: r.Close})
		}
	}
	return out.Between(start, end), nil
}

// ListSymbols lists all symbols that have price data for the given source.
func (s *ParquetStore) ListSymbols(_ context.Context, source string) ([]string, error) {
	dir := filepath.Join(s.DataDir, source, "daily")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// years returns the sorted years with a file for symbol.
func (s *ParquetStore) years(source, symbol string) ([]int, error) {
	entries, err := os.ReadDir(filepath.Join(s.DataDir, source, "daily", symbol))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var years []int
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".parquet")
		if !ok || e.IsDir() {
			continue
		}
		if y, err := strconv.Atoi(name); err == nil {
			years = append(years, y)
		}
	}
	sort.Ints(years)
	return years, nil
}

// pricePath returns the filesystem path for a price Parquet file.
// Layout: <dataDir>/<source>/daily/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) pricePath(source, symbol string, year int) string {
	return filepath.Join(s.DataDir, source, "daily", strings.ToUpper(symbol), strconv.Itoa(year)+".parquet")
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergePriceRecords deduplicates records by calendar day, preferring new
// records over existing ones.
func mergePriceRecords(existing, incoming []PriceRecord) []PriceRecord {
	day := func(ms int64) int64 {
		y, m, d := time.UnixMilli(ms).UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
	}
	seen := make(map[int64]PriceRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[day(r.Timestamp)] = r
	}
	for _, r := range incoming {
		seen[day(r.Timestamp)] = r
	}

	merged := make([]PriceRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
