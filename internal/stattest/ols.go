// Package stattest implements the unit-root and cointegration tests used to
// qualify pairs for mean-reversion trading: the Augmented Dickey-Fuller test
// with AIC lag selection and the two-step Engle-Granger test, both with
// MacKinnon approximate p-values.
package stattest

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Sentinel errors returned by the tests. Both mark a statistical test
// failure for the input, as opposed to a negative test outcome.
var (
	// ErrInsufficientData is returned when the sample is too short for the
	// lag order and regressors the test needs.
	ErrInsufficientData = errors.New("stattest: insufficient observations")

	// ErrDegenerate is returned for constant inputs or singular designs.
	ErrDegenerate = errors.New("stattest: degenerate input")
)

// olsFit is the subset of an ordinary least squares fit the tests need.
type olsFit struct {
	params []float64
	bse    []float64
	resid  []float64
	ssr    float64
	nobs   int
	k      int
}

// tvalue returns the t statistic of coefficient i.
func (f olsFit) tvalue(i int) float64 { return f.params[i] / f.bse[i] }

// aic is the Akaike information criterion for a Gaussian likelihood.
func (f olsFit) aic() float64 {
	n := float64(f.nobs)
	llf := -n / 2 * (math.Log(2*math.Pi) + math.Log(f.ssr/n) + 1)
	return -2*llf + 2*float64(f.k)
}

// rsquared is the centered coefficient of determination.
func (f olsFit) rsquared(y []float64) float64 {
	var mean float64
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))
	var tss float64
	for _, v := range y {
		tss += (v - mean) * (v - mean)
	}
	return 1 - f.ssr/tss
}

// ols regresses y on the columns of x (rows are observations).
func ols(y []float64, x *mat.Dense) (olsFit, error) {
	n, k := x.Dims()
	if n != len(y) {
		return olsFit{}, fmt.Errorf("ols: %d observations but %d design rows", len(y), n)
	}
	if n <= k {
		return olsFit{}, fmt.Errorf("ols: %d observations for %d regressors: %w", n, k, ErrInsufficientData)
	}

	var qr mat.QR
	qr.Factorize(x)

	var beta mat.Dense
	if err := qr.SolveTo(&beta, false, mat.NewDense(n, 1, y)); err != nil {
		return olsFit{}, fmt.Errorf("ols: %v: %w", err, ErrDegenerate)
	}

	// (X'X)^-1 = R^-1 R^-T, so diag_i = sum_j (R^-1)_ij^2.
	var r mat.Dense
	qr.RTo(&r)
	upper := mat.NewTriDense(k, mat.Upper, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			upper.SetTri(i, j, r.At(i, j))
		}
	}
	var rinv mat.TriDense
	if err := rinv.InverseTri(upper); err != nil {
		return olsFit{}, fmt.Errorf("ols: %v: %w", err, ErrDegenerate)
	}

	fit := olsFit{
		params: make([]float64, k),
		bse:    make([]float64, k),
		resid:  make([]float64, n),
		nobs:   n,
		k:      k,
	}
	for i := 0; i < k; i++ {
		fit.params[i] = beta.At(i, 0)
	}
	for i := 0; i < n; i++ {
		pred := 0.0
		for j := 0; j < k; j++ {
			pred += x.At(i, j) * fit.params[j]
		}
		fit.resid[i] = y[i] - pred
		fit.ssr += fit.resid[i] * fit.resid[i]
	}

	sigma2 := fit.ssr / float64(n-k)
	for i := 0; i < k; i++ {
		var d float64
		for j := i; j < k; j++ {
			v := rinv.At(i, j)
			d += v * v
		}
		fit.bse[i] = math.Sqrt(sigma2 * d)
	}
	return fit, nil
}

// constant reports whether every element of x equals the first.
func constant(x []float64) bool {
	for _, v := range x[1:] {
		if v != x[0] {
			return false
		}
	}
	return true
}
