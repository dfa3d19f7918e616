package stattest

import (
	"gonum.org/v1/gonum/stat/distuv"
)

// MacKinnon (1994, updated 2010) response-surface coefficients for the
// constant-only case, indexed by the number of integrated series N-1.
var (
	tauMax  = []float64{2.74, 0.92}
	tauMin  = []float64{-18.83, -18.86}
	tauStar = []float64{-1.61, -2.62}

	tauSmallP = [][]float64{
		{2.1659, 1.4412, 0.038269},
		{2.92, 1.5012, 0.039796},
	}
	tauLargeP = [][]float64{
		{1.7339, 0.93202, -0.12745, -0.010368},
		{2.1945, 0.64695, -0.29198, -0.042377},
	}
)

// mackinnonP returns the approximate asymptotic p-value of a Dickey-Fuller
// statistic for n series (1 for a unit-root test, 2 for a two-variable
// cointegration test).
func mackinnonP(stat float64, n int) float64 {
	i := n - 1
	if stat > tauMax[i] {
		return 1
	}
	if stat < tauMin[i] {
		return 0
	}
	coef := tauLargeP[i]
	if stat <= tauStar[i] {
		coef = tauSmallP[i]
	}
	return distuv.UnitNormal.CDF(polyval(coef, stat))
}

// polyval evaluates c[0] + c[1]*x + c[2]*x^2 + ...
func polyval(c []float64, x float64) float64 {
	v := 0.0
	for i := len(c) - 1; i >= 0; i-- {
		v = v*x + c[i]
	}
	return v
}
