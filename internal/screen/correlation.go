// Package screen ranks instrument pairs by price correlation and filters the
// ranking down to cointegrated pairs.
package screen

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"pairdesk/internal/domain"
	"pairdesk/internal/timeseries"
)

// ErrTooFewSeries is returned when fewer than two usable columns remain.
var ErrTooFewSeries = errors.New("screen: need at least two non-constant series")

// CorrelationMatrix holds pairwise Pearson correlations. Row and column i
// refer to Symbols[i].
type CorrelationMatrix struct {
	Symbols []string
	M       *mat.SymDense
}

// At returns the correlation between symbols i and j.
func (c *CorrelationMatrix) At(i, j int) float64 { return c.M.At(i, j) }

// Lookup returns the correlation between two symbols by name.
func (c *CorrelationMatrix) Lookup(a, b string) (float64, bool) {
	i, j := -1, -1
	for k, s := range c.Symbols {
		if s == a {
			i = k
		}
		if s == b {
			j = k
		}
	}
	if i < 0 || j < 0 {
		return 0, false
	}
	return c.M.At(i, j), true
}

// Correlations computes the correlation matrix of the frame's columns.
// Constant columns have no defined correlation and are returned in excluded
// instead.
func Correlations(f *timeseries.Frame) (*CorrelationMatrix, []string, error) {
	var (
		symbols  []string
		excluded []string
		cols     [][]float64
	)
	for _, sym := range f.Symbols {
		col, _ := f.Column(sym)
		if len(col) < 2 || floats.Min(col) == floats.Max(col) {
			excluded = append(excluded, sym)
			continue
		}
		symbols = append(symbols, sym)
		cols = append(cols, col)
	}
	if len(symbols) < 2 {
		return nil, excluded, fmt.Errorf("correlations over %d columns: %w", len(symbols), ErrTooFewSeries)
	}

	data := mat.NewDense(f.Len(), len(cols), nil)
	for j, col := range cols {
		data.SetCol(j, col)
	}
	m := mat.NewSymDense(len(cols), nil)
	stat.CorrelationMatrix(m, data, nil)

	for i := 0; i < len(cols); i++ {
		m.SetSym(i, i, 1)
		for j := i + 1; j < len(cols); j++ {
			m.SetSym(i, j, math.Max(-1, math.Min(1, m.At(i, j))))
		}
	}
	return &CorrelationMatrix{Symbols: symbols, M: m}, excluded, nil
}

// TopPairs returns up to n distinct pairs ordered by descending absolute
// correlation. Ties keep matrix enumeration order.
func TopPairs(c *CorrelationMatrix, n int) ([]domain.RankedPair, error) {
	if n <= 0 {
		return nil, fmt.Errorf("top pairs: n must be positive, got %d", n)
	}
	k := len(c.Symbols)
	pairs := make([]domain.RankedPair, 0, k*(k-1)/2)
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			pairs = append(pairs, domain.RankedPair{
				Pair:        domain.Pair{A: c.Symbols[i], B: c.Symbols[j]},
				Correlation: c.At(i, j),
			})
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool {
		return math.Abs(pairs[a].Correlation) > math.Abs(pairs[b].Correlation)
	})
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	return pairs, nil
}
