package screen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"pairdesk/internal/domain"
	"pairdesk/internal/stattest"
	"pairdesk/internal/timeseries"
)

// Selector filters ranked pairs down to those whose legs are individually
// non-stationary and jointly cointegrated.
type Selector struct {
	// Threshold is the Engle-Granger p-value below which a pair counts as
	// cointegrated.
	Threshold float64
	Options   stattest.Options
	Log       *slog.Logger
}

// NewSelector returns a Selector with the given cointegration threshold.
func NewSelector(threshold float64, log *slog.Logger) *Selector {
	if log == nil {
		log = slog.Default()
	}
	return &Selector{Threshold: threshold, Log: log.With("component", "selector")}
}

// Select walks ranked in order and returns at most maxResults accepted
// pairs. Evaluation stops once maxResults pairs have been accepted. A pair
// whose statistical test cannot be computed is logged and skipped. Prices
// for both legs are taken from frame.
func (s *Selector) Select(ctx context.Context, ranked []domain.RankedPair, frame *timeseries.Frame, maxResults int) ([]domain.CointegratedPair, error) {
	if maxResults <= 0 {
		return nil, fmt.Errorf("select: maxResults must be positive, got %d", maxResults)
	}
	log := s.Log
	if log == nil {
		log = slog.Default()
	}

	adf := make(map[string]stattest.ADFResult)
	adfErr := make(map[string]error)
	unitRoot := func(sym string, values []float64) (stattest.ADFResult, error) {
		if res, ok := adf[sym]; ok {
			return res, nil
		}
		if err, ok := adfErr[sym]; ok {
			return stattest.ADFResult{}, err
		}
		res, err := stattest.ADF(values, s.Options)
		if err != nil {
			adfErr[sym] = err
			return res, err
		}
		adf[sym] = res
		return res, nil
	}

	var out []domain.CointegratedPair
	for _, rp := range ranked {
		if len(out) >= maxResults {
			break
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}

		a, okA := frame.Column(rp.A)
		b, okB := frame.Column(rp.B)
		if !okA || !okB {
			return out, fmt.Errorf("select: pair %s not present in frame", rp.Pair)
		}

		cp, accepted, err := s.evaluate(rp, a, b, unitRoot)
		if err != nil {
			if errors.Is(err, stattest.ErrInsufficientData) || errors.Is(err, stattest.ErrDegenerate) {
				log.Warn("skipping pair", "pair", rp.Pair.String(), "error", err)
				continue
			}
			return out, fmt.Errorf("select: pair %s: %w", rp.Pair, err)
		}
		if !accepted {
			log.Debug("pair rejected", "pair", rp.Pair.String(),
				"adf_p_a", cp.ADFPValueA, "adf_p_b", cp.ADFPValueB, "coint_p", cp.CointPValue)
			continue
		}
		log.Info("pair selected", "pair", rp.Pair.String(),
			"correlation", rp.Correlation, "coint_p", cp.CointPValue)
		out = append(out, cp)
	}
	return out, nil
}

func (s *Selector) evaluate(rp domain.RankedPair, a, b []float64,
	unitRoot func(string, []float64) (stattest.ADFResult, error)) (domain.CointegratedPair, bool, error) {
	cp := domain.CointegratedPair{RankedPair: rp}

	ra, err := unitRoot(rp.A, a)
	if err != nil {
		return cp, false, fmt.Errorf("adf %s: %w", rp.A, err)
	}
	cp.ADFPValueA = ra.PValue
	cp.ADFPValueB = math.NaN()
	if ra.PValue < stattest.StationarityPValue {
		return cp, false, nil
	}
	rb, err := unitRoot(rp.B, b)
	if err != nil {
		return cp, false, fmt.Errorf("adf %s: %w", rp.B, err)
	}
	cp.ADFPValueB = rb.PValue
	if rb.PValue < stattest.StationarityPValue {
		return cp, false, nil
	}

	coint, err := stattest.EngleGranger(a, b, s.Options)
	if err != nil {
		return cp, false, fmt.Errorf("coint: %w", err)
	}
	cp.CointStat = coint.Stat
	cp.CointPValue = coint.PValue
	return cp, coint.PValue < s.Threshold, nil
}
