package stattest

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestMackinnonP(t *testing.T) {
	tests := []struct {
		name string
		stat float64
		n    int
		want float64
	}{
		{"adf 5% critical", -2.86, 1, 0.0502},
		{"coint 5% critical", -3.34, 2, 0.0495},
		{"adf large-p branch", 0, 1, 0.9585},
		{"above tau max", 3, 1, 1},
		{"below tau min", -20, 2, 0},
		{"neg inf", math.Inf(-1), 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mackinnonP(tt.stat, tt.n)
			if math.Abs(got-tt.want) > 1e-3 {
				t.Errorf("mackinnonP(%v, %d) = %v, want %v", tt.stat, tt.n, got, tt.want)
			}
		})
	}
}

func TestMackinnonPTauMinPerN(t *testing.T) {
	// Unit-root statistics below -18.83 are off the response surface.
	if got := mackinnonP(-18.84, 1); got != 0 {
		t.Errorf("mackinnonP(-18.84, 1) = %v, want 0", got)
	}
	if got := mackinnonP(-18.84, 2); got == 0 {
		t.Error("mackinnonP(-18.84, 2) = 0, want the small-p approximation")
	}
}

func TestMackinnonPMonotone(t *testing.T) {
	prev := 0.0
	for s := -18.0; s < 2.7; s += 0.05 {
		p := mackinnonP(s, 1)
		if p < prev-1e-9 {
			t.Fatalf("p-value decreased at stat %v: %v < %v", s, p, prev)
		}
		prev = p
	}
}

func TestOLSRecoversCoefficients(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	n := 200
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
		y[i] = 3 + 0.5*x[i] + 0.01*r.NormFloat64()
	}
	fit := olsOnLine(t, y, x)
	if math.Abs(fit.params[0]-0.5) > 1e-3 {
		t.Errorf("slope = %v, want 0.5", fit.params[0])
	}
	if math.Abs(fit.params[1]-3) > 1e-2 {
		t.Errorf("intercept = %v, want 3", fit.params[1])
	}
	if fit.bse[0] <= 0 || fit.bse[0] > 1e-3 {
		t.Errorf("slope std error = %v, want small positive", fit.bse[0])
	}
}

func olsOnLine(t *testing.T, y, x []float64) olsFit {
	t.Helper()
	data := make([]float64, 0, 2*len(x))
	for _, v := range x {
		data = append(data, v, 1)
	}
	fit, err := ols(y, mat.NewDense(len(x), 2, data))
	if err != nil {
		t.Fatalf("ols returned error: %v", err)
	}
	return fit
}

func stationary(n int, seed int64) []float64 {
	r := rand.New(rand.NewSource(seed))
	x := make([]float64, n)
	x[0] = 50
	for i := 1; i < n; i++ {
		x[i] = 50 + 0.2*(x[i-1]-50) + r.NormFloat64()
	}
	return x
}

// explosive grows 1% per step; its Dickey-Fuller statistic is large and
// positive.
func explosive(n int, seed int64) []float64 {
	r := rand.New(rand.NewSource(seed))
	x := make([]float64, n)
	x[0] = 100
	for i := 1; i < n; i++ {
		x[i] = 1.01*x[i-1] + r.NormFloat64()
	}
	return x
}

func TestADFStationary(t *testing.T) {
	res, err := ADF(stationary(500, 7), Options{})
	if err != nil {
		t.Fatalf("ADF returned error: %v", err)
	}
	if res.PValue >= 0.01 {
		t.Errorf("PValue = %v, want < 0.01 (stat %v)", res.PValue, res.Stat)
	}
	if res.NObs <= 0 || res.NObs >= 500 {
		t.Errorf("NObs = %d, want in (0, 500)", res.NObs)
	}
	// ceil(12*(5)^0.25) = 18
	if res.UsedLag < 0 || res.UsedLag > 18 {
		t.Errorf("UsedLag = %d, want within [0, 18]", res.UsedLag)
	}
}

func TestIsNonStationary(t *testing.T) {
	ok, err := IsNonStationary(explosive(250, 3))
	if err != nil {
		t.Fatalf("IsNonStationary returned error: %v", err)
	}
	if !ok {
		t.Error("explosive series reported stationary")
	}

	ok, err = IsNonStationary(stationary(500, 11))
	if err != nil {
		t.Fatalf("IsNonStationary returned error: %v", err)
	}
	if ok {
		t.Error("AR(1) series reported non-stationary")
	}
}

func TestADFErrors(t *testing.T) {
	if _, err := ADF([]float64{1, 2, 3}, Options{}); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("short series: err = %v, want ErrInsufficientData", err)
	}
	flat := make([]float64, 50)
	for i := range flat {
		flat[i] = 4.2
	}
	if _, err := ADF(flat, Options{}); !errors.Is(err, ErrDegenerate) {
		t.Errorf("constant series: err = %v, want ErrDegenerate", err)
	}
	withNaN := stationary(50, 1)
	withNaN[10] = math.NaN()
	if _, err := ADF(withNaN, Options{}); !errors.Is(err, ErrDegenerate) {
		t.Errorf("NaN series: err = %v, want ErrDegenerate", err)
	}
}

func TestADFMaxLagOption(t *testing.T) {
	res, err := ADF(stationary(300, 5), Options{MaxLag: 2})
	if err != nil {
		t.Fatalf("ADF returned error: %v", err)
	}
	if res.UsedLag > 2 {
		t.Errorf("UsedLag = %d, want <= 2", res.UsedLag)
	}
}

func randomWalk(n int, seed int64) []float64 {
	r := rand.New(rand.NewSource(seed))
	x := make([]float64, n)
	x[0] = 100
	for i := 1; i < n; i++ {
		x[i] = x[i-1] + r.NormFloat64()
	}
	return x
}

func TestEngleGrangerCointegrated(t *testing.T) {
	r := rand.New(rand.NewSource(21))
	y1 := randomWalk(500, 4)
	y0 := make([]float64, len(y1))
	for i, v := range y1 {
		y0[i] = 2*v + 5 + r.NormFloat64()
	}

	res, err := EngleGranger(y0, y1, Options{})
	if err != nil {
		t.Fatalf("EngleGranger returned error: %v", err)
	}
	if res.PValue >= 0.01 {
		t.Errorf("PValue = %v, want < 0.01 (stat %v)", res.PValue, res.Stat)
	}
	if math.Abs(res.Beta-2) > 0.05 {
		t.Errorf("Beta = %v, want about 2", res.Beta)
	}

	ok, err := IsCointegrated(y0, y1, 0.05)
	if err != nil || !ok {
		t.Errorf("IsCointegrated = %v, %v; want true, nil", ok, err)
	}
}

func TestEngleGrangerCollinear(t *testing.T) {
	y1 := randomWalk(100, 8)
	y0 := make([]float64, len(y1))
	for i, v := range y1 {
		y0[i] = 3*v + 2
	}
	res, err := EngleGranger(y0, y1, Options{})
	if err != nil {
		t.Fatalf("EngleGranger returned error: %v", err)
	}
	if !math.IsInf(res.Stat, -1) || res.PValue != 0 {
		t.Errorf("got stat %v p %v, want -Inf and 0", res.Stat, res.PValue)
	}
}

func TestEngleGrangerErrors(t *testing.T) {
	if _, err := EngleGranger([]float64{1, 2}, []float64{1, 2, 3}, Options{}); err == nil {
		t.Error("expected error for mismatched lengths")
	}
	flat := []float64{1, 1, 1, 1, 1, 1}
	if _, err := EngleGranger(randomWalk(6, 1), flat, Options{}); !errors.Is(err, ErrDegenerate) {
		t.Errorf("constant leg: err = %v, want ErrDegenerate", err)
	}
	if _, err := IsCointegrated([]float64{1, 2}, []float64{2, 1}, 0.05); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("two points: err = %v, want ErrInsufficientData", err)
	}
}
