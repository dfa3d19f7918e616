// Package builtins provides built-in pair strategies that ship with
// pairdesk.
package builtins

import (
	"context"

	"pairdesk/internal/domain"
	"pairdesk/internal/strategy"
)

// Compile-time interface check.
var _ strategy.PairStrategy = (*BandReversion)(nil)

// BandReversionName is the registry key of BandReversion.
const BandReversionName = "band-reversion"

// BandReversion trades the price ratio back toward its rolling mean: short
// the ratio above the upper band, long below the lower band, flat near the
// mean.
type BandReversion struct {
	params strategy.BandParams
}

// NewBandReversion creates a BandReversion with the given band parameters.
func NewBandReversion(p strategy.BandParams) *BandReversion {
	return &BandReversion{params: p}
}

// Name returns "band-reversion".
func (s *BandReversion) Name() string {
	return BandReversionName
}

// Params returns the band parameters.
func (s *BandReversion) Params() strategy.BandParams { return s.params }

// Positions computes the band signal for ratio.
func (s *BandReversion) Positions(ctx context.Context, ratio []float64) ([]domain.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := strategy.ComputeBands(ratio, s.params)
	if err != nil {
		return nil, err
	}
	return strategy.Signals(b, s.params), nil
}

// Register adds every built-in strategy to r.
func Register(r *strategy.Registry, bands strategy.BandParams) {
	r.Register(NewBandReversion(bands))
}
