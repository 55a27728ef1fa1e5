package portfolio

import (
	"errors"
	"math"
	"testing"
)

func TestEstimateReturns_MeanHistoricalAnnualization(t *testing.T) {
	// 2% per period, twice: annualized return is exactly 0.02 * 252.
	ps := mkSeries(t, []string{"VCI", "VNM"}, [][]float64{
		{100, 102, 104.04},
		{50, 51, 52.02},
	})
	rv, err := EstimateReturns(ps, MeanHistorical, false, 252)
	if err != nil {
		t.Fatalf("EstimateReturns: %v", err)
	}
	want := 0.02 * 252
	for i, s := range rv.Symbols {
		if math.Abs(rv.Values[i]-want) > 1e-9 {
			t.Errorf("%s: expected %f, got %f", s, want, rv.Values[i])
		}
	}
}

func TestEstimateReturns_LogReturns(t *testing.T) {
	ps := mkSeries(t, []string{"A", "B"}, [][]float64{
		{100, 110, 121},
		{100, 100, 100},
	})
	rv, err := EstimateReturns(ps, MeanHistorical, true, 252)
	if err != nil {
		t.Fatalf("EstimateReturns: %v", err)
	}
	want := math.Log(1.1) * 252
	if math.Abs(rv.Values[0]-want) > 1e-9 {
		t.Errorf("expected annualized log return %f, got %f", want, rv.Values[0])
	}
	if math.Abs(rv.Values[1]) > 1e-12 {
		t.Errorf("flat series should have zero return, got %f", rv.Values[1])
	}
}

func TestEstimateReturns_EMAWeighsRecentPeriods(t *testing.T) {
	// A trends down early and up late, B mirrors it. The exponential average
	// must land above the flat mean for A and below it for B.
	up := []float64{100, 95, 90, 95, 100, 106, 112}
	down := []float64{100, 106, 112, 106, 100, 95, 90}
	ps := mkSeries(t, []string{"A", "B"}, [][]float64{up, down})

	flat, err := EstimateReturns(ps, MeanHistorical, false, 252)
	if err != nil {
		t.Fatalf("mean: %v", err)
	}
	ema, err := EstimateReturns(ps, EMAHistorical, false, 252)
	if err != nil {
		t.Fatalf("ema: %v", err)
	}
	if ema.Values[0] <= flat.Values[0] {
		t.Errorf("EMA should sit above the flat mean for a late uptrend: ema=%f mean=%f", ema.Values[0], flat.Values[0])
	}
	if ema.Values[1] >= flat.Values[1] {
		t.Errorf("EMA should sit below the flat mean for a late downtrend: ema=%f mean=%f", ema.Values[1], flat.Values[1])
	}
}

func TestEstimateReturns_BadParameters(t *testing.T) {
	ps := mkSeries(t, []string{"A", "B"}, [][]float64{{100, 101}, {100, 102}})

	var invalid *InvalidParameterError
	if _, err := EstimateReturns(ps, "median_historical", false, 252); !errors.As(err, &invalid) {
		t.Errorf("unknown method: expected InvalidParameterError, got %v", err)
	}
	if _, err := EstimateReturns(ps, MeanHistorical, false, 0); !errors.As(err, &invalid) {
		t.Errorf("zero frequency: expected InvalidParameterError, got %v", err)
	}
}
