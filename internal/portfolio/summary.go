package portfolio

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"pairdesk/internal/domain"
)

// DaysPerYear converts elapsed calendar days into years for CAGR.
const DaysPerYear = 365.25

// Options controls annualisation in Summarize.
type Options struct {
	PeriodsPerYear float64
	RiskFree       float64
}

// DefaultOptions annualises daily returns with a 2% risk-free rate.
func DefaultOptions() Options {
	return Options{PeriodsPerYear: 252, RiskFree: 0.02}
}

// Summary holds headline statistics for a portfolio value series.
type Summary struct {
	Start            time.Time
	End              time.Time
	StartValue       float64
	EndValue         float64
	Periods          int
	TotalReturn      float64
	CAGR             float64
	AnnualReturn     float64
	AnnualVolatility float64
	Sharpe           float64
	Sortino          float64
	MaxDrawdown      float64
	Skew             float64
}

// Summarize computes return statistics for a dollar value series.
// CAGR uses elapsed calendar time between the first and last observation.
// Sortino uses the population standard deviation of the negative periods.
func Summarize(total domain.Series, opts Options) (Summary, error) {
	if total.Len() < 3 {
		return Summary{}, fmt.Errorf("summarize: need at least 3 observations, got %d", total.Len())
	}
	if opts.PeriodsPerYear <= 0 {
		return Summary{}, fmt.Errorf("summarize: periods per year must be positive")
	}

	s := Summary{
		Start:      total.First().Time,
		End:        total.Last().Time,
		StartValue: total.First().Value,
		EndValue:   total.Last().Value,
	}
	rets := Returns(total).Values()
	s.Periods = len(rets)
	if s.Periods < 2 {
		return Summary{}, fmt.Errorf("summarize: %d finite returns", s.Periods)
	}

	s.TotalReturn = s.EndValue/s.StartValue - 1
	years := s.End.Sub(s.Start).Hours() / 24 / DaysPerYear
	s.CAGR = math.NaN()
	if years > 0 {
		s.CAGR = math.Pow(s.EndValue/s.StartValue, 1/years) - 1
	}

	mean, std := stat.MeanStdDev(rets, nil)
	s.AnnualReturn = mean * opts.PeriodsPerYear
	s.AnnualVolatility = std * math.Sqrt(opts.PeriodsPerYear)
	s.Sharpe = (s.AnnualReturn - opts.RiskFree) / s.AnnualVolatility
	s.Sortino = (s.AnnualReturn - opts.RiskFree) / (downsideDeviation(rets) * math.Sqrt(opts.PeriodsPerYear))
	s.MaxDrawdown = MaxDrawdown(total.Values())
	s.Skew = stat.Skew(rets, nil)
	return s, nil
}

// downsideDeviation is the population standard deviation of the negative
// elements of rets. It is NaN when there are none.
func downsideDeviation(rets []float64) float64 {
	var neg []float64
	for _, r := range rets {
		if r < 0 {
			neg = append(neg, r)
		}
	}
	if len(neg) == 0 {
		return math.NaN()
	}
	if len(neg) == 1 {
		return 0
	}
	n := float64(len(neg))
	return math.Sqrt(stat.Variance(neg, nil) * (n - 1) / n)
}

// MaxDrawdown returns the largest peak-to-trough decline of values as a
// non-positive fraction (-0.25 is a 25% drawdown).
func MaxDrawdown(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	dd := make([]float64, len(values))
	peak := values[0]
	for i, v := range values {
		peak = math.Max(peak, v)
		dd[i] = (v - peak) / peak
	}
	return floats.Min(dd)
}
