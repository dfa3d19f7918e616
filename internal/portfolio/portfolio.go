// Package portfolio turns pair positions into dollar portfolio values and
// summarises the combined result.
package portfolio

import (
	"fmt"
	"math"
	"sort"
	"time"

	"pairdesk/internal/domain"
	"pairdesk/internal/timeseries"
)

// StrategyReturns computes per-period pair returns from the position held
// at the previous close: r[t] = pos[t-1] * (retA[t] - retB[t]). r[0] is 0,
// and periods where either leg return is not finite earn 0.
func StrategyReturns(pos []domain.Position, retA, retB []float64) ([]float64, error) {
	if len(pos) != len(retA) || len(pos) != len(retB) {
		return nil, fmt.Errorf("strategy returns: lengths %d, %d, %d differ", len(pos), len(retA), len(retB))
	}
	out := make([]float64, len(pos))
	for t := 1; t < len(pos); t++ {
		spread := retA[t] - retB[t]
		if math.IsNaN(spread) || math.IsInf(spread, 0) {
			continue
		}
		out[t] = float64(pos[t-1]) * spread
	}
	return out, nil
}

// Compound turns period returns into a dollar value series starting from
// capital: value[t] = capital * prod(1 + r[0..t]).
func Compound(dates []time.Time, returns []float64, capital float64) (domain.Series, error) {
	if len(dates) != len(returns) {
		return domain.Series{}, fmt.Errorf("compound: %d dates but %d returns", len(dates), len(returns))
	}
	values := make([]float64, len(returns))
	v := capital
	for i, r := range returns {
		v *= 1 + r
		values[i] = v
	}
	return domain.NewSeries("", dates, values)
}

// BenchmarkValue is a buy-and-hold position of capital in prices:
// capital * price[t] / price[0].
func BenchmarkValue(prices domain.Series, capital float64) (domain.Series, error) {
	if prices.Empty() {
		return domain.Series{}, fmt.Errorf("benchmark %s: no prices", prices.Symbol)
	}
	p0 := prices.First().Value
	if p0 <= 0 || math.IsNaN(p0) || math.IsInf(p0, 0) {
		return domain.Series{}, fmt.Errorf("benchmark %s: invalid first price %v", prices.Symbol, p0)
	}
	out := domain.Series{Symbol: prices.Symbol, Points: make([]domain.Point, prices.Len())}
	for i, p := range prices.Points {
		out.Points[i] = domain.Point{Time: p.Time, Value: capital * p.Value / p0}
	}
	return out, nil
}

// Combine sums dollar values over the dates common to every sub-portfolio.
// Dates missing from any input are dropped rather than filled.
func Combine(subs ...domain.Series) (domain.Series, error) {
	if len(subs) == 0 {
		return domain.Series{}, fmt.Errorf("combine: no sub-portfolios")
	}
	counts := make(map[int64]int)
	sums := make(map[int64]float64)
	for _, s := range subs {
		if err := s.Validate(); err != nil {
			return domain.Series{}, fmt.Errorf("combine: %w", err)
		}
		for _, p := range s.Points {
			k := timeseries.DateKey(p.Time)
			counts[k]++
			sums[k] += p.Value
		}
	}
	keys := make([]int64, 0, len(counts))
	for k, c := range counts {
		if c == len(subs) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := domain.Series{Symbol: "TOTAL", Points: make([]domain.Point, len(keys))}
	for i, k := range keys {
		out.Points[i] = domain.Point{Time: time.Unix(k, 0).UTC(), Value: sums[k]}
	}
	return out, nil
}

// Returns converts a value series into its period returns, dropping the
// first observation and any non-finite return.
func Returns(values domain.Series) domain.Series {
	pct := timeseries.PctChange(values.Values())
	out := domain.Series{Symbol: values.Symbol}
	for i := 1; i < len(pct); i++ {
		if math.IsNaN(pct[i]) || math.IsInf(pct[i], 0) {
			continue
		}
		out.Points = append(out.Points, domain.Point{Time: values.Points[i].Time, Value: pct[i]})
	}
	return out
}

// MonthlyReturns compounds period returns within each calendar month. Each
// month is labelled with its last calendar day. Non-finite returns are
// skipped.
func MonthlyReturns(returns domain.Series) domain.Series {
	out := domain.Series{Symbol: returns.Symbol}
	var (
		cur    time.Time
		growth float64
		open   bool
	)
	flush := func() {
		if open {
			out.Points = append(out.Points, domain.Point{Time: cur, Value: growth - 1})
		}
	}
	for _, p := range returns.Points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		end := monthEnd(p.Time)
		if !open || !end.Equal(cur) {
			flush()
			cur, growth, open = end, 1, true
		}
		growth *= 1 + p.Value
	}
	flush()
	return out
}

func monthEnd(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC)
}
