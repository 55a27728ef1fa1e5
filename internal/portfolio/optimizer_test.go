package portfolio

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func testInputs() (ReturnsVector, CovarianceMatrix) {
	mu := ReturnsVector{
		Symbols: []string{"VCI", "VNM", "HPG"},
		Values:  []float64{0.12, 0.08, 0.15},
	}
	sigma := CovarianceMatrix{
		Symbols: mu.Symbols,
		Sym: mat.NewSymDense(3, []float64{
			0.040, 0.006, 0.010,
			0.006, 0.020, 0.004,
			0.010, 0.004, 0.090,
		}),
	}
	return mu, sigma
}

// randomSimplex draws a feasible long-only weight vector.
func randomSimplex(n int, rng *rand.Rand) []float64 {
	w := make([]float64, n)
	var sum float64
	for i := range w {
		w[i] = rng.ExpFloat64()
		sum += w[i]
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

func TestOptimize_WeightInvariants(t *testing.T) {
	mu, sigma := testInputs()
	cfg := DefaultConfig()
	for _, obj := range CanonicalObjectives {
		w, err := Optimize(mu, sigma, obj, cfg)
		if err != nil {
			t.Fatalf("%s: %v", obj, err)
		}
		if math.Abs(w.Sum()-1) > 1e-6 {
			t.Errorf("%s: weights sum to %f", obj, w.Sum())
		}
		for i, v := range w.Values {
			if v < 0 || v > 1 {
				t.Errorf("%s: weight %s=%f outside [0,1]", obj, w.Symbols[i], v)
			}
		}
	}
}

func TestOptimize_MinVolatilityIsGlobalMinimum(t *testing.T) {
	mu, sigma := testInputs()
	w, err := Optimize(mu, sigma, MinVolatility, DefaultConfig())
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	best := sigma.Variance(w.Values)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 5000; i++ {
		sample := randomSimplex(3, rng)
		if v := sigma.Variance(sample); v < best-1e-6 {
			t.Fatalf("found feasible portfolio with lower variance: %f < %f (sample %v)", v, best, sample)
		}
	}
}

func TestOptimize_MaxSharpeBeatsEqualWeight(t *testing.T) {
	mu, sigma := testInputs()
	cfg := DefaultConfig()
	w, err := Optimize(mu, sigma, MaxSharpe, cfg)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	got := Performance(w, mu, sigma, cfg.RiskFreeRate).SharpeRatio

	equal := WeightVector{Symbols: mu.Symbols, Values: []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}}
	baseline := Performance(equal, mu, sigma, cfg.RiskFreeRate).SharpeRatio
	if got < baseline-1e-9 {
		t.Errorf("max_sharpe ratio %f below equal-weight baseline %f", got, baseline)
	}
}

func TestOptimize_Deterministic(t *testing.T) {
	mu, sigma := testInputs()
	cfg := DefaultConfig()
	for _, obj := range CanonicalObjectives {
		a, err := Optimize(mu, sigma, obj, cfg)
		if err != nil {
			t.Fatalf("%s: %v", obj, err)
		}
		b, err := Optimize(mu, sigma, obj, cfg)
		if err != nil {
			t.Fatalf("%s: %v", obj, err)
		}
		for i := range a.Values {
			if a.Values[i] != b.Values[i] {
				t.Errorf("%s: run differs at %s: %g vs %g", obj, a.Symbols[i], a.Values[i], b.Values[i])
			}
		}
	}
}

func TestOptimize_RiskAversionBiasesTowardMinVolatility(t *testing.T) {
	mu, sigma := testInputs()

	cautious := DefaultConfig()
	cautious.RiskAversion = 50
	bold := DefaultConfig()
	bold.RiskAversion = 0.1

	wc, err := Optimize(mu, sigma, MaxUtility, cautious)
	if err != nil {
		t.Fatalf("cautious: %v", err)
	}
	wb, err := Optimize(mu, sigma, MaxUtility, bold)
	if err != nil {
		t.Fatalf("bold: %v", err)
	}
	if sigma.Variance(wc.Values) >= sigma.Variance(wb.Values) {
		t.Errorf("higher risk aversion should lower variance: %f vs %f",
			sigma.Variance(wc.Values), sigma.Variance(wb.Values))
	}
}

func TestOptimize_InvalidRiskAversion(t *testing.T) {
	mu, sigma := testInputs()
	cfg := DefaultConfig()
	cfg.RiskAversion = -1
	_, err := Optimize(mu, sigma, MaxUtility, cfg)
	var invalid *InvalidParameterError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidParameterError, got %v", err)
	}
}

func TestProjectSimplex(t *testing.T) {
	cases := [][]float64{
		{0.2, 0.3, 0.5},
		{1.5, -0.5, 0.2},
		{-1, -2, -3},
		{10, 0, 0},
	}
	for _, in := range cases {
		out := projectSimplex(in)
		var sum float64
		for _, v := range out {
			if v < 0 {
				t.Errorf("projection of %v has negative component %f", in, v)
			}
			sum += v
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Errorf("projection of %v sums to %f", in, sum)
		}
	}
	// Already-feasible points are fixed points.
	fixed := projectSimplex([]float64{0.2, 0.3, 0.5})
	for i, want := range []float64{0.2, 0.3, 0.5} {
		if math.Abs(fixed[i]-want) > 1e-12 {
			t.Errorf("feasible point moved: %v", fixed)
		}
	}
}

func TestPerformance(t *testing.T) {
	mu := ReturnsVector{Symbols: []string{"A", "B"}, Values: []float64{0.1, 0.2}}
	sigma := CovarianceMatrix{
		Symbols: mu.Symbols,
		Sym:     mat.NewSymDense(2, []float64{0.04, 0.01, 0.01, 0.09}),
	}
	w := WeightVector{Symbols: mu.Symbols, Values: []float64{0.5, 0.5}}

	m := Performance(w, mu, sigma, 0.05)
	if math.Abs(m.ExpectedAnnualReturn-0.15) > 1e-12 {
		t.Errorf("return: got %f", m.ExpectedAnnualReturn)
	}
	wantVol := math.Sqrt(0.0375)
	if math.Abs(m.AnnualVolatility-wantVol) > 1e-12 {
		t.Errorf("volatility: got %f", m.AnnualVolatility)
	}
	if math.Abs(m.SharpeRatio-(0.15-0.05)/wantVol) > 1e-12 {
		t.Errorf("sharpe: got %f", m.SharpeRatio)
	}
}
