// Package timeseries provides date alignment and vectorised helpers (returns,
// rolling windows) over domain price series.
package timeseries

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"pairdesk/internal/domain"
)

// Frame holds several series aligned on a shared, strictly increasing date
// index. Columns follow the order the series were passed to Align.
type Frame struct {
	Dates   []time.Time
	Symbols []string
	columns [][]float64 // columns[j][i] is symbol j at Dates[i]
}

// AlignReport tells how many observations each input lost during alignment.
type AlignReport struct {
	Dropped map[string]int
}

// Total returns the number of observations dropped across all inputs.
func (r AlignReport) Total() int {
	n := 0
	for _, d := range r.Dropped {
		n += d
	}
	return n
}

// DateKey normalises t to its UTC calendar day, used to match observations
// coming from different providers.
func DateKey(t time.Time) int64 {
	return domain.DateOf(t).Unix()
}

// Align inner-joins the given series on calendar date: only dates present in
// every series are kept. Duplicate symbols are rejected.
func Align(series ...domain.Series) (*Frame, AlignReport, error) {
	report := AlignReport{Dropped: make(map[string]int, len(series))}
	if len(series) == 0 {
		return &Frame{}, report, nil
	}

	seen := make(map[string]struct{}, len(series))
	counts := make(map[int64]int)
	dates := make(map[int64]time.Time)
	for _, s := range series {
		if _, dup := seen[s.Symbol]; dup {
			return nil, report, fmt.Errorf("align: duplicate symbol %q", s.Symbol)
		}
		seen[s.Symbol] = struct{}{}
		if err := s.Validate(); err != nil {
			return nil, report, fmt.Errorf("align: %w", err)
		}
		for _, p := range s.Points {
			k := DateKey(p.Time)
			counts[k]++
			if _, ok := dates[k]; !ok {
				dates[k] = time.Unix(k, 0).UTC()
			}
		}
	}

	keys := make([]int64, 0, len(counts))
	for k, c := range counts {
		if c == len(series) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	index := make(map[int64]int, len(keys))
	f := &Frame{
		Dates:   make([]time.Time, len(keys)),
		Symbols: make([]string, len(series)),
		columns: make([][]float64, len(series)),
	}
	for i, k := range keys {
		index[k] = i
		f.Dates[i] = dates[k]
	}
	for j, s := range series {
		f.Symbols[j] = s.Symbol
		col := make([]float64, len(keys))
		for _, p := range s.Points {
			if i, ok := index[DateKey(p.Time)]; ok {
				col[i] = p.Value
			}
		}
		f.columns[j] = col
		report.Dropped[s.Symbol] = s.Len() - len(keys)
	}
	return f, report, nil
}

// Len returns the number of aligned rows.
func (f *Frame) Len() int { return len(f.Dates) }

// Column returns a copy of the values for symbol, or false if absent.
func (f *Frame) Column(symbol string) ([]float64, bool) {
	for j, s := range f.Symbols {
		if s == symbol {
			out := make([]float64, len(f.columns[j]))
			copy(out, f.columns[j])
			return out, true
		}
	}
	return nil, false
}

// Series returns the aligned column for symbol as a domain.Series.
func (f *Frame) Series(symbol string) (domain.Series, bool) {
	col, ok := f.Column(symbol)
	if !ok {
		return domain.Series{}, false
	}
	s := domain.Series{Symbol: symbol, Points: make([]domain.Point, len(col))}
	for i, v := range col {
		s.Points[i] = domain.Point{Time: f.Dates[i], Value: v}
	}
	return s, true
}

// Select returns a new frame restricted to the given symbols, in that order.
func (f *Frame) Select(symbols ...string) (*Frame, error) {
	out := &Frame{
		Dates:   f.Dates,
		Symbols: make([]string, 0, len(symbols)),
		columns: make([][]float64, 0, len(symbols)),
	}
	for _, sym := range symbols {
		col, ok := f.Column(sym)
		if !ok {
			return nil, fmt.Errorf("frame has no column %q", sym)
		}
		out.Symbols = append(out.Symbols, sym)
		out.columns = append(out.columns, col)
	}
	return out, nil
}

// Matrix returns the frame as a rows=dates, cols=symbols dense matrix.
func (f *Frame) Matrix() *mat.Dense {
	if f.Len() == 0 || len(f.Symbols) == 0 {
		return nil
	}
	m := mat.NewDense(f.Len(), len(f.Symbols), nil)
	for j, col := range f.columns {
		m.SetCol(j, col)
	}
	return m
}

// DropSparse removes series with fewer than minFraction of the longest
// series' observations, so one short history does not truncate an inner
// join of many symbols. Order is preserved; dropped symbols are returned.
func DropSparse(series []domain.Series, minFraction float64) ([]domain.Series, []string) {
	longest := 0
	for _, s := range series {
		longest = max(longest, s.Len())
	}
	kept := make([]domain.Series, 0, len(series))
	var dropped []string
	for _, s := range series {
		if longest == 0 || float64(s.Len()) < minFraction*float64(longest) {
			dropped = append(dropped, s.Symbol)
			continue
		}
		kept = append(kept, s)
	}
	return kept, dropped
}
