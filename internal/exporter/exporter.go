// Package exporter writes research artifacts as CSV files.
package exporter

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"pairdesk/internal/domain"
	"pairdesk/internal/strategy"
)

// WriteMonthlyReturns writes a Date,Monthly_Return file with one row per
// month-end label.
func WriteMonthlyReturns(path string, monthly domain.Series) error {
	rows := make([][]string, 0, monthly.Len())
	for _, p := range monthly.Points {
		rows = append(rows, []string{formatDate(p.Time), formatFloat(p.Value)})
	}
	return writeCSV(path, []string{"Date", "Monthly_Return"}, rows)
}

// WritePrices writes a Date,Price file for one symbol.
func WritePrices(path string, s domain.Series) error {
	rows := make([][]string, 0, s.Len())
	for _, p := range s.Points {
		rows = append(rows, []string{formatDate(p.Time), formatFloat(p.Value)})
	}
	return writeCSV(path, []string{"Date", "Price"}, rows)
}

// WriteBands writes the ratio and its bands, one row per date. Values not
// yet defined during the warm-up window are left empty.
func WriteBands(path string, dates []time.Time, b strategy.Bands, pos []domain.Position) error {
	if len(dates) != len(b.Ratio) {
		return fmt.Errorf("exporter: %d dates for %d ratio values", len(dates), len(b.Ratio))
	}
	if pos != nil && len(pos) != len(dates) {
		return fmt.Errorf("exporter: %d positions for %d dates", len(pos), len(dates))
	}
	header := []string{"Date", "Price_Ratio", "Ratio_MA", "Ratio_SD", "Upper_Band", "Lower_Band"}
	if pos != nil {
		header = append(header, "Position")
	}
	rows := make([][]string, 0, len(dates))
	for i, d := range dates {
		row := []string{
			formatDate(d),
			formatFloat(b.Ratio[i]),
			formatFloat(b.Mean[i]),
			formatFloat(b.Std[i]),
			formatFloat(b.Upper[i]),
			formatFloat(b.Lower[i]),
		}
		if pos != nil {
			row = append(row, strconv.Itoa(int(pos[i])))
		}
		rows = append(rows, row)
	}
	return writeCSV(path, header, rows)
}

// WritePairs writes the selected pairs with their test statistics.
func WritePairs(path string, pairs []domain.CointegratedPair) error {
	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []string{
			p.A, p.B,
			formatFloat(p.Correlation),
			formatFloat(p.ADFPValueA),
			formatFloat(p.ADFPValueB),
			formatFloat(p.CointStat),
			formatFloat(p.CointPValue),
		})
	}
	return writeCSV(path, []string{"Ticker1", "Ticker2", "Correlation", "ADF_P1", "ADF_P2", "Coint_Stat", "Coint_P"}, rows)
}

func writeCSV(path string, header []string, rows [][]string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("exporter: creating %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("exporter: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("exporter: writing %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("exporter: writing %s: %w", path, err)
	}
	return f.Close()
}

func formatDate(t time.Time) string { return t.UTC().Format(time.DateOnly) }

// formatFloat renders NaN as an empty cell and infinities as -inf/inf.
func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return ""
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
