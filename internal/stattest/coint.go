package stattest

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// collinearR2 is the R-squared above which the cointegrating regression is
// treated as an exact linear relation.
var collinearR2 = 1 - 100*math.Sqrt(2.220446049250313e-16)

// CointResult is the outcome of an Engle-Granger cointegration test.
type CointResult struct {
	Stat   float64
	PValue float64
	// Beta and Alpha are the hedge ratio and intercept of y0 on y1.
	Beta  float64
	Alpha float64
}

// EngleGranger tests y0 and y1 for cointegration: y0 is regressed on y1 with
// a constant and the residuals are tested for a unit root without a
// constant. Perfectly collinear inputs give a statistic of -Inf and a
// p-value of 0.
func EngleGranger(y0, y1 []float64, opts Options) (CointResult, error) {
	if len(y0) != len(y1) {
		return CointResult{}, fmt.Errorf("coint: series lengths %d and %d differ", len(y0), len(y1))
	}
	if len(y0) < 3 {
		return CointResult{}, fmt.Errorf("coint: %d observations: %w", len(y0), ErrInsufficientData)
	}
	if constant(y0) || constant(y1) {
		return CointResult{}, fmt.Errorf("coint: constant series: %w", ErrDegenerate)
	}

	data := make([]float64, 0, 2*len(y1))
	for _, v := range y1 {
		data = append(data, v, 1)
	}
	fit, err := ols(y0, mat.NewDense(len(y1), 2, data))
	if err != nil {
		return CointResult{}, fmt.Errorf("coint: %w", err)
	}
	res := CointResult{Beta: fit.params[0], Alpha: fit.params[1]}

	if fit.rsquared(y0) >= collinearR2 {
		res.Stat = math.Inf(-1)
		res.PValue = 0
		return res, nil
	}

	stat, _, _, err := dickeyFuller(fit.resid, false, opts)
	if err != nil {
		return CointResult{}, fmt.Errorf("coint: %w", err)
	}
	res.Stat = stat
	res.PValue = mackinnonP(stat, 2)
	return res, nil
}

// IsCointegrated reports whether the Engle-Granger p-value of a on b is
// below threshold.
func IsCointegrated(a, b []float64, threshold float64) (bool, error) {
	res, err := EngleGranger(a, b, Options{})
	if err != nil {
		return false, err
	}
	return res.PValue < threshold, nil
}
