package stattest

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// StationarityPValue is the significance level used to call a series
// stationary.
const StationarityPValue = 0.05

// Options tunes the Dickey-Fuller regression.
type Options struct {
	// MaxLag bounds the number of lagged differences tried by the AIC
	// search. Zero selects ceil(12*(n/100)^(1/4)).
	MaxLag int
}

// ADFResult is the outcome of an Augmented Dickey-Fuller test.
type ADFResult struct {
	Stat    float64
	PValue  float64
	UsedLag int
	NObs    int
}

// ADF runs the Augmented Dickey-Fuller unit-root test with a constant term.
// The lag order is chosen by minimum AIC.
func ADF(x []float64, opts Options) (ADFResult, error) {
	stat, lag, nobs, err := dickeyFuller(x, true, opts)
	if err != nil {
		return ADFResult{}, err
	}
	return ADFResult{
		Stat:    stat,
		PValue:  mackinnonP(stat, 1),
		UsedLag: lag,
		NObs:    nobs,
	}, nil
}

// IsNonStationary reports whether the ADF test fails to reject a unit root
// at the 5% level.
func IsNonStationary(x []float64) (bool, error) {
	res, err := ADF(x, Options{})
	if err != nil {
		return false, err
	}
	return res.PValue >= StationarityPValue, nil
}

// dickeyFuller returns the t statistic on the lagged level together with the
// selected lag order and the observations used in the final regression.
func dickeyFuller(x []float64, withConst bool, opts Options) (float64, int, int, error) {
	n := len(x)
	if n < 3 {
		return 0, 0, 0, fmt.Errorf("adf: %d observations: %w", n, ErrInsufficientData)
	}
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, 0, 0, fmt.Errorf("adf: non-finite observation: %w", ErrDegenerate)
		}
	}
	if constant(x) {
		return 0, 0, 0, fmt.Errorf("adf: constant series: %w", ErrDegenerate)
	}

	ntrend := 0
	if withConst {
		ntrend = 1
	}
	maxlag := opts.MaxLag
	if maxlag <= 0 {
		maxlag = int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	}
	if bound := n/2 - ntrend - 1; bound < maxlag {
		maxlag = bound
	}
	if maxlag < 0 {
		return 0, 0, 0, fmt.Errorf("adf: %d observations too short for the regression: %w", n, ErrInsufficientData)
	}

	diff := make([]float64, n-1)
	for i := range diff {
		diff[i] = x[i+1] - x[i]
	}

	// Every candidate shares the sample trimmed for maxlag so their AIC
	// values are comparable.
	bestLag, bestAIC := 0, math.Inf(1)
	for lag := 0; lag <= maxlag; lag++ {
		y, design := lagRegression(x, diff, maxlag, lag, withConst)
		fit, err := ols(y, design)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("adf: lag %d: %w", lag, err)
		}
		if aic := fit.aic(); aic < bestAIC {
			bestLag, bestAIC = lag, aic
		}
	}

	y, design := lagRegression(x, diff, bestLag, bestLag, withConst)
	fit, err := ols(y, design)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("adf: lag %d: %w", bestLag, err)
	}
	if fit.ssr == 0 {
		return 0, 0, 0, fmt.Errorf("adf: perfect fit: %w", ErrDegenerate)
	}
	return fit.tvalue(0), bestLag, fit.nobs, nil
}

// lagRegression builds the Dickey-Fuller regression of diff[t] on x[t] and
// diff[t-1..t-lags] (plus a constant), for t >= trim.
func lagRegression(x, diff []float64, trim, lags int, withConst bool) ([]float64, *mat.Dense) {
	rows := len(diff) - trim
	cols := 1 + lags
	if withConst {
		cols++
	}
	y := make([]float64, rows)
	data := make([]float64, 0, rows*cols)
	for r := 0; r < rows; r++ {
		t := r + trim
		y[r] = diff[t]
		data = append(data, x[t])
		for l := 1; l <= lags; l++ {
			data = append(data, diff[t-l])
		}
		if withConst {
			data = append(data, 1)
		}
	}
	return y, mat.NewDense(rows, cols, data)
}
