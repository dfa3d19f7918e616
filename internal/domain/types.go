// Package domain defines the core value types shared across pairdesk: price
// series, instrument pairs, screening results and position signals.
package domain

import (
	"fmt"
	"math"
	"time"
)

// ---------------------------------------------------------------------------
// Price series
// ---------------------------------------------------------------------------

// Point is a single dated observation.
type Point struct {
	Time  time.Time
	Value float64
}

// Series is an ordered sequence of dated observations for one symbol. Dates
// are strictly increasing and may contain gaps (missing trading days). A
// Series is treated as immutable: operations return new series.
type Series struct {
	Symbol string
	Points []Point
}

// NewSeries builds a Series from parallel time and value slices.
func NewSeries(symbol string, times []time.Time, values []float64) (Series, error) {
	if len(times) != len(values) {
		return Series{}, fmt.Errorf("series %s: %d times but %d values", symbol, len(times), len(values))
	}
	pts := make([]Point, len(times))
	for i := range times {
		pts[i] = Point{Time: times[i], Value: values[i]}
	}
	s := Series{Symbol: symbol, Points: pts}
	if err := s.Validate(); err != nil {
		return Series{}, err
	}
	return s, nil
}

// Len returns the number of observations.
func (s Series) Len() int { return len(s.Points) }

// Empty reports whether the series has no observations. An empty series is
// the "no data" result of a provider, not an error.
func (s Series) Empty() bool { return len(s.Points) == 0 }

// Values returns a copy of the observation values in date order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// Times returns a copy of the observation dates.
func (s Series) Times() []time.Time {
	out := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Time
	}
	return out
}

// First returns the earliest observation. It panics on an empty series.
func (s Series) First() Point { return s.Points[0] }

// Last returns the latest observation. It panics on an empty series.
func (s Series) Last() Point { return s.Points[len(s.Points)-1] }

// Validate checks that dates are strictly increasing.
func (s Series) Validate() error {
	for i := 1; i < len(s.Points); i++ {
		if !s.Points[i].Time.After(s.Points[i-1].Time) {
			return fmt.Errorf("series %s: date %s at index %d does not follow %s",
				s.Symbol, s.Points[i].Time.Format("2006-01-02"), i, s.Points[i-1].Time.Format("2006-01-02"))
		}
	}
	return nil
}

// Clean returns a copy of the series without observations that cannot be
// used as prices (NaN, ±Inf, zero or negative), along with the number of
// observations dropped.
func (s Series) Clean() (Series, int) {
	out := Series{Symbol: s.Symbol, Points: make([]Point, 0, len(s.Points))}
	for _, p := range s.Points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) || p.Value <= 0 {
			continue
		}
		out.Points = append(out.Points, p)
	}
	return out, len(s.Points) - len(out.Points)
}

// DateOf truncates t to midnight UTC of its UTC calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Between returns the observations within [start, end]. A zero bound is
// treated as open.
func (s Series) Between(start, end time.Time) Series {
	out := Series{Symbol: s.Symbol}
	for _, p := range s.Points {
		if !start.IsZero() && p.Time.Before(start) {
			continue
		}
		if !end.IsZero() && p.Time.After(end) {
			continue
		}
		out.Points = append(out.Points, p)
	}
	return out
}

// ---------------------------------------------------------------------------
// Pairs
// ---------------------------------------------------------------------------

// Pair names two instruments. Leg A is the numerator of the price ratio.
type Pair struct {
	A string `yaml:"a"`
	B string `yaml:"b"`
}

// String renders the pair as "A-B".
func (p Pair) String() string { return p.A + "-" + p.B }

// RankedPair is a pair together with its Pearson correlation.
type RankedPair struct {
	Pair
	Correlation float64
}

// CointegratedPair is a RankedPair whose legs are both non-stationary and
// which passed the Engle-Granger cointegration test.
type CointegratedPair struct {
	RankedPair
	ADFPValueA  float64
	ADFPValueB  float64
	CointStat   float64
	CointPValue float64
}

// ---------------------------------------------------------------------------
// Signals
// ---------------------------------------------------------------------------

// Position is the discrete pair position taken on the ratio A/B.
type Position int

const (
	// PositionShort is short leg A, long leg B (ratio above the upper band).
	PositionShort Position = -1
	// PositionFlat holds no position.
	PositionFlat Position = 0
	// PositionLong is long leg A, short leg B (ratio below the lower band).
	PositionLong Position = 1
)

// String returns "short", "flat" or "long".
func (p Position) String() string {
	switch p {
	case PositionShort:
		return "short"
	case PositionLong:
		return "long"
	default:
		return "flat"
	}
}
