// Package benchmark evaluates a monthly-returns spreadsheet, such as an
// index's published monthly performance, so it can be compared with a
// backtest.
package benchmark

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/stat"

	"pairdesk/internal/domain"
)

// Column headers looked up in the header row.
const (
	DateColumn   = "Time Period"
	ReturnColumn = "Return %"
)

// ErrNoReturns is returned when no usable monthly return is left to
// evaluate.
var ErrNoReturns = errors.New("benchmark: no monthly returns")

// ReadMonthlyReturns reads the sheet's "Time Period" and "Return %" columns.
// Returns are converted from percent to fractions. Rows whose date or
// return cannot be parsed are dropped; the count is returned. The series is
// sorted by date.
func ReadMonthlyReturns(path, sheet string) (domain.Series, int, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return domain.Series{}, 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return domain.Series{}, 0, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return domain.Series{}, 0, fmt.Errorf("sheet %q is empty", sheet)
	}

	dateIdx, retIdx := -1, -1
	for i, col := range rows[0] {
		switch strings.TrimSpace(col) {
		case DateColumn:
			dateIdx = i
		case ReturnColumn:
			retIdx = i
		}
	}
	if dateIdx < 0 || retIdx < 0 {
		return domain.Series{}, 0, fmt.Errorf("sheet %q lacks %q and %q columns", sheet, DateColumn, ReturnColumn)
	}

	s := domain.Series{Symbol: sheet}
	dropped := 0
	for _, row := range rows[1:] {
		if dateIdx >= len(row) || retIdx >= len(row) {
			dropped++
			continue
		}
		d, ok := parseDate(row[dateIdx])
		if !ok {
			dropped++
			continue
		}
		r, ok := parsePercent(row[retIdx])
		if !ok {
			dropped++
			continue
		}
		s.Points = append(s.Points, domain.Point{Time: d, Value: r / 100})
	}
	slices.SortStableFunc(s.Points, func(a, b domain.Point) int { return a.Time.Compare(b.Time) })
	return s, dropped, nil
}

var dateLayouts = []string{
	time.DateOnly,
	time.DateTime,
	"2006-01-02T15:04:05Z07:00",
	"01/02/2006",
	"1/2/2006",
	"01-02-06",
	"Jan 2006",
	"January 2006",
	"2006-01",
}

// parseDate accepts an Excel serial date or one of dateLayouts.
func parseDate(cell string) (time.Time, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return time.Time{}, false
	}
	if serial, err := strconv.ParseFloat(cell, 64); err == nil {
		if serial <= 0 {
			return time.Time{}, false
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, false
		}
		return domain.DateOf(t), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return domain.DateOf(t), true
		}
	}
	return time.Time{}, false
}

// parsePercent parses a percentage cell, tolerating a % sign and thousands
// separators.
func parsePercent(cell string) (float64, bool) {
	cell = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(cell), "%"))
	cell = strings.ReplaceAll(cell, ",", "")
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Stats summarises monthly returns.
type Stats struct {
	Start  time.Time
	End    time.Time
	Months int
	// AnnualizedReturn is the geometric mean return scaled to twelve months.
	AnnualizedReturn float64
	// CAGR compounds over Months/12 years from a unit start value.
	CAGR float64
	// StdDev is the annualized sample standard deviation.
	StdDev float64
	Sharpe float64
	// Sortino uses the annualized sample standard deviation of the negative
	// months. It is NaN when fewer than two months are negative.
	Sortino float64
}

// Evaluate computes Stats over the monthly returns within [start, end]
// (zero bounds are open) against the annual risk-free rate rf.
func Evaluate(monthly domain.Series, start, end time.Time, rf float64) (Stats, error) {
	window := monthly.Between(start, end)
	n := window.Len()
	if n == 0 {
		return Stats{}, ErrNoReturns
	}
	r := window.Values()

	growth := 1.0
	for _, v := range r {
		growth *= 1 + v
	}
	st := Stats{
		Start:            window.First().Time,
		End:              window.Last().Time,
		Months:           n,
		AnnualizedReturn: math.Pow(growth, 12/float64(n)) - 1,
		CAGR:             math.Pow(growth, 1/(float64(n)/12)) - 1,
		StdDev:           math.NaN(),
		Sortino:          math.NaN(),
	}
	if n > 1 {
		st.StdDev = stat.StdDev(r, nil) * math.Sqrt(12)
	}
	st.Sharpe = (st.AnnualizedReturn - rf) / st.StdDev

	var downside []float64
	for _, v := range r {
		if v < 0 {
			downside = append(downside, v)
		}
	}
	if len(downside) > 1 {
		st.Sortino = (st.AnnualizedReturn - rf) / (stat.StdDev(downside, nil) * math.Sqrt(12))
	}
	return st, nil
}
