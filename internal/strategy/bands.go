package strategy

import (
	"fmt"
	"math"

	"pairdesk/internal/domain"
	"pairdesk/internal/timeseries"
)

// BandParams configures Bollinger-style bands on a price ratio.
type BandParams struct {
	// Window is the trailing observation count for the rolling statistics.
	Window int `yaml:"window"`
	// Width is the band half-width in rolling standard deviations.
	Width float64 `yaml:"width"`
	// FlatZone is the distance from the rolling mean inside which the
	// position is closed.
	FlatZone float64 `yaml:"flat_zone"`
	// FlatZoneScaled measures FlatZone in rolling standard deviations
	// instead of ratio units.
	FlatZoneScaled bool `yaml:"flat_zone_scaled"`
}

// DefaultBandParams returns a 20-observation window, 2-sigma bands and an
// absolute flat zone of 0.01.
func DefaultBandParams() BandParams {
	return BandParams{Window: 20, Width: 2, FlatZone: 0.01}
}

// Validate checks the parameters are usable.
func (p BandParams) Validate() error {
	if p.Window < 2 {
		return fmt.Errorf("band window must be at least 2, got %d", p.Window)
	}
	if p.Width <= 0 {
		return fmt.Errorf("band width must be positive, got %v", p.Width)
	}
	if p.FlatZone < 0 {
		return fmt.Errorf("flat zone must not be negative, got %v", p.FlatZone)
	}
	return nil
}

// Bands holds a ratio series with its rolling statistics. Entries before the
// first full window are NaN.
type Bands struct {
	Ratio []float64
	Mean  []float64
	Std   []float64
	Upper []float64
	Lower []float64
}

// ComputeBands derives rolling mean, sample standard deviation and the
// upper and lower bands of ratio.
func ComputeBands(ratio []float64, p BandParams) (Bands, error) {
	if err := p.Validate(); err != nil {
		return Bands{}, err
	}
	mean, std := timeseries.Rolling(ratio, p.Window)
	b := Bands{
		Ratio: ratio,
		Mean:  mean,
		Std:   std,
		Upper: make([]float64, len(ratio)),
		Lower: make([]float64, len(ratio)),
	}
	for i := range ratio {
		b.Upper[i] = mean[i] + p.Width*std[i]
		b.Lower[i] = mean[i] - p.Width*std[i]
	}
	return b, nil
}

// Signals walks the bands and emits one position per observation. The first
// Window positions are flat. From then on, in priority order: a ratio above
// the upper band shorts the ratio, below the lower band goes long, inside
// the flat zone around the mean closes, and anything else holds the
// previous position.
func Signals(b Bands, p BandParams) []domain.Position {
	pos := make([]domain.Position, len(b.Ratio))
	for t := p.Window; t < len(b.Ratio); t++ {
		r := b.Ratio[t]
		zone := p.FlatZone
		if p.FlatZoneScaled {
			zone *= b.Std[t]
		}
		switch {
		case r > b.Upper[t]:
			pos[t] = domain.PositionShort
		case r < b.Lower[t]:
			pos[t] = domain.PositionLong
		case math.Abs(r-b.Mean[t]) < zone:
			pos[t] = domain.PositionFlat
		default:
			pos[t] = pos[t-1]
		}
	}
	return pos
}
