package portfolio

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// pricesFromReturns builds a price path realizing the given period returns.
func pricesFromReturns(start float64, rets []float64) []float64 {
	out := make([]float64, len(rets)+1)
	out[0] = start
	for i, r := range rets {
		out[i+1] = out[i] * (1 + r)
	}
	return out
}

func TestEstimateCovariance_SampleMatchesManual(t *testing.T) {
	retsA := []float64{0.01, 0.03, 0.02}
	retsB := []float64{0.02, -0.02, 0.03}
	ps := mkSeries(t, []string{"A", "B"}, [][]float64{
		pricesFromReturns(100, retsA),
		pricesFromReturns(100, retsB),
	})

	cov, err := EstimateCovariance(ps, SampleCov, 252)
	if err != nil {
		t.Fatalf("EstimateCovariance: %v", err)
	}

	// Independent N-1 covariance computation.
	manual := func(x, y []float64) float64 {
		mx, my := mean(x), mean(y)
		var s float64
		for i := range x {
			s += (x[i] - mx) * (y[i] - my)
		}
		return s / float64(len(x)-1) * 252
	}
	cases := [][3]int{{0, 0, 0}, {1, 1, 0}, {0, 1, 0}}
	rets := [][]float64{retsA, retsB}
	for _, c := range cases {
		want := manual(rets[c[0]], rets[c[1]])
		got := cov.At(c[0], c[1])
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("cov(%d,%d): expected %f, got %f", c[0], c[1], want, got)
		}
	}
	if math.Abs(cov.At(0, 1)-cov.At(1, 0)) > 1e-12 {
		t.Errorf("matrix not symmetric: %f vs %f", cov.At(0, 1), cov.At(1, 0))
	}
}

func TestEstimateCovariance_SemicovarianceDownsideOnly(t *testing.T) {
	retsA := []float64{0.05, -0.02, 0.03, -0.04}
	retsB := []float64{0.01, -0.01, 0.02, -0.03}
	ps := mkSeries(t, []string{"A", "B"}, [][]float64{
		pricesFromReturns(100, retsA),
		pricesFromReturns(100, retsB),
	})

	cov, err := EstimateCovariance(ps, Semicovariance, 252)
	if err != nil {
		t.Fatalf("EstimateCovariance: %v", err)
	}
	// Only the two joint drawdown periods contribute, N denominator.
	want := (0.02*0.01 + 0.04*0.03) / 4 * 252
	if math.Abs(cov.At(0, 1)-want) > 1e-9 {
		t.Errorf("expected downside covariance %f, got %f", want, cov.At(0, 1))
	}
}

func TestEstimateCovariance_ExpCovFavorsRecentComovement(t *testing.T) {
	// Same return set, opposite time order: co-movement concentrated late
	// must score higher than the same co-movement early.
	late := [][]float64{
		{0.01, -0.01, 0.01, -0.01, 0.03, 0.03, 0.04, 0.04},
		{-0.01, 0.01, -0.01, 0.01, 0.03, 0.03, 0.04, 0.04},
	}
	early := [][]float64{
		{0.03, 0.03, 0.04, 0.04, 0.01, -0.01, 0.01, -0.01},
		{0.03, 0.03, 0.04, 0.04, -0.01, 0.01, -0.01, 0.01},
	}
	estimate := func(rets [][]float64) float64 {
		ps := mkSeries(t, []string{"A", "B"}, [][]float64{
			pricesFromReturns(100, rets[0]),
			pricesFromReturns(100, rets[1]),
		})
		cov, err := EstimateCovariance(ps, ExpCov, 252)
		if err != nil {
			t.Fatalf("EstimateCovariance: %v", err)
		}
		return cov.At(0, 1)
	}
	if lateCov, earlyCov := estimate(late), estimate(early); lateCov <= earlyCov {
		t.Errorf("exp_cov should weigh recent co-movement more: late=%f early=%f", lateCov, earlyCov)
	}
}

func TestEstimateCovariance_LedoitWolfStabilizesWideBasket(t *testing.T) {
	// 10 instruments over 5 observations: the sample estimate is rank
	// deficient, shrinkage plus the eigenvalue floor must still produce a
	// matrix the optimizer can use.
	symbols := make([]string, 10)
	prices := make([][]float64, 10)
	for i := range symbols {
		symbols[i] = fmt.Sprintf("S%02d", i)
		rets := make([]float64, 4)
		for k := range rets {
			rets[k] = 0.01 * math.Sin(float64(i+1)*float64(k+1))
		}
		prices[i] = pricesFromReturns(100, rets)
	}
	ps := mkSeries(t, symbols, prices)

	cov, err := EstimateCovariance(ps, LedoitWolf, 252)
	if err != nil {
		t.Fatalf("ledoit_wolf must not fail on a wide basket: %v", err)
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(cov.Sym, false); !ok {
		t.Fatal("eigendecomposition of shrunk matrix failed")
	}
	for _, v := range eig.Values(nil) {
		if v < eigenvalueFloor/2 {
			t.Errorf("eigenvalue %g below floor", v)
		}
	}

	mu, err := EstimateReturns(ps, MeanHistorical, false, 252)
	if err != nil {
		t.Fatalf("EstimateReturns: %v", err)
	}
	if _, err := Optimize(mu, cov, MinVolatility, DefaultConfig()); err != nil {
		t.Errorf("min_volatility on shrunk matrix: %v", err)
	}
}

func TestRepairPSD(t *testing.T) {
	// Indefinite input (eigenvalues -1 and 3) gets clipped to PSD.
	indefinite := mat.NewSymDense(2, []float64{1, 2, 2, 1})
	repaired, err := repairPSD(indefinite, SampleCov)
	if err != nil {
		t.Fatalf("repairPSD: %v", err)
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(repaired, false); !ok {
		t.Fatal("eigendecomposition failed")
	}
	for _, v := range eig.Values(nil) {
		if v < eigenvalueFloor/2 {
			t.Errorf("eigenvalue %g below floor after repair", v)
		}
	}

	// Non-finite entries are terminal.
	bad := mat.NewSymDense(2, []float64{1, math.NaN(), math.NaN(), 1})
	_, err = repairPSD(bad, SampleCov)
	var ill *IllConditionedMatrixError
	if !errors.As(err, &ill) {
		t.Fatalf("expected IllConditionedMatrixError, got %v", err)
	}
}
