package timeseries

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// PctChange returns period-over-period simple returns. The first element is
// NaN; a zero previous value yields ±Inf (or NaN for 0/0), which callers
// filter before computing statistics.
func PctChange(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	out[0] = math.NaN()
	for i := 1; i < len(values); i++ {
		out[i] = values[i]/values[i-1] - 1
	}
	return out
}

// Ratio divides a by b element-wise. The slices must have equal length.
func Ratio(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] / b[i]
	}
	return out
}

// Rolling computes the trailing mean and sample standard deviation (n-1
// denominator) over window observations. Entries before the first full
// window are NaN.
func Rolling(values []float64, window int) (mean, std []float64) {
	mean = make([]float64, len(values))
	std = make([]float64, len(values))
	for i := range values {
		if window <= 0 || i < window-1 {
			mean[i] = math.NaN()
			std[i] = math.NaN()
			continue
		}
		w := values[i-window+1 : i+1]
		if window == 1 {
			mean[i], std[i] = w[0], math.NaN()
			continue
		}
		// A flat window has exactly its value as mean and no dispersion;
		// summation rounding would otherwise move the mean off the value.
		if lo, hi := floats.Min(w), floats.Max(w); lo == hi {
			mean[i], std[i] = lo, 0
			continue
		}
		mean[i], std[i] = stat.MeanStdDev(w, nil)
	}
	return mean, std
}

// Finite returns the finite elements of values, in order.
func Finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}
