package portfolio

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// expCovSpan is the span of the exponential weighting used by exp_cov.
const expCovSpan = 180

// eigenvalueFloor is the smallest eigenvalue the repaired covariance matrix is
// allowed to carry. Anything below is clipped up to keep the optimizer
// well-posed.
const eigenvalueFloor = 1e-10

// CovarianceMatrix is an annualized, symmetric, positive-semidefinite risk
// matrix in symbol order. The optimizer assumes the PSD postcondition and does
// not re-validate it.
type CovarianceMatrix struct {
	Symbols []string
	Sym     *mat.SymDense
}

// At returns the covariance between the i-th and j-th symbols.
func (c CovarianceMatrix) At(i, j int) float64 { return c.Sym.At(i, j) }

// Dim returns the number of instruments.
func (c CovarianceMatrix) Dim() int { return len(c.Symbols) }

// Variance returns w'Sigma w for a weight slice in symbol order.
func (c CovarianceMatrix) Variance(w []float64) float64 {
	n := c.Dim()
	var v float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v += w[i] * w[j] * c.Sym.At(i, j)
		}
	}
	return v
}

// EstimateCovariance converts a price history into an annualized covariance
// matrix using the selected estimator. Every method works on arithmetic period
// returns; the result is symmetrized and eigenvalue-floored so the
// postcondition holds for all of them.
func EstimateCovariance(prices *PriceSeries, method CovarianceMethod, frequency int) (CovarianceMatrix, error) {
	if frequency <= 0 {
		return CovarianceMatrix{}, &InvalidParameterError{Param: "frequency", Reason: "must be a positive number of periods per year"}
	}
	if prices.Observations() < 2 {
		return CovarianceMatrix{}, &DataInsufficientError{Reason: "need at least 2 observations per asset"}
	}

	rets := prices.periodReturns(false)
	symbols := prices.Symbols()
	n := len(symbols)
	cols := make([][]float64, n)
	for i, s := range symbols {
		cols[i] = rets[s]
	}

	var perPeriod *mat.SymDense
	switch method {
	case SampleCov:
		perPeriod = sampleCovariance(cols)
	case LedoitWolf:
		perPeriod = ledoitWolfShrinkage(sampleCovariance(cols))
	case ExpCov:
		perPeriod = expCovariance(cols)
	case Semicovariance:
		perPeriod = semiCovariance(cols)
	default:
		return CovarianceMatrix{}, &InvalidParameterError{Param: "covariance_method", Reason: "unknown method " + string(method)}
	}

	// Annualize in place.
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			perPeriod.SetSym(i, j, perPeriod.At(i, j)*float64(frequency))
		}
	}

	repaired, err := repairPSD(perPeriod, method)
	if err != nil {
		return CovarianceMatrix{}, err
	}
	return CovarianceMatrix{Symbols: symbols, Sym: repaired}, nil
}

// sampleCovariance is the empirical covariance of period returns with the N-1
// denominator.
func sampleCovariance(cols [][]float64) *mat.SymDense {
	n := len(cols)
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, stat.Covariance(cols[i], cols[j], nil))
		}
	}
	return out
}

// ledoitWolfShrinkage blends the sample covariance with a constant-correlation
// target using a data-dependent intensity, stabilizing the estimate when the
// asset count approaches or exceeds the observation count.
func ledoitWolfShrinkage(sample *mat.SymDense) *mat.SymDense {
	n := sample.SymmetricDim()
	if n < 2 {
		return sample
	}

	var avgVar, avgCov float64
	for i := 0; i < n; i++ {
		avgVar += sample.At(i, i)
		for j := 0; j < n; j++ {
			if i != j {
				avgCov += sample.At(i, j)
			}
		}
	}
	avgVar /= float64(n)
	avgCov /= float64(n * (n - 1))

	// Constant-correlation target: average variance on the diagonal, average
	// covariance elsewhere.
	target := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		target.SetSym(i, i, avgVar)
		for j := i + 1; j < n; j++ {
			target.SetSym(i, j, avgCov)
		}
	}

	// Intensity: dispersion of the sample entries relative to their distance
	// from the target. Degenerate inputs fall back to a fixed 20% pull.
	intensity := 0.2
	var sumSqDiff, sumEntry, sumSqEntry float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d := sample.At(i, j) - target.At(i, j)
			sumSqDiff += d * d
			sumEntry += sample.At(i, j)
			sumSqEntry += sample.At(i, j) * sample.At(i, j)
		}
	}
	count := float64(n * n)
	meanEntry := sumEntry / count
	varEntry := sumSqEntry/count - meanEntry*meanEntry
	meanSqDiff := sumSqDiff / count
	if varEntry > 0 && meanSqDiff > 0 {
		intensity = math.Min(1, math.Max(0.05, varEntry/(varEntry+meanSqDiff)))
	}

	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, (1-intensity)*sample.At(i, j)+intensity*target.At(i, j))
		}
	}
	return out
}

// expCovariance is the exponentially weighted covariance of demeaned returns,
// the symmetric counterpart to the EMA return estimator.
func expCovariance(cols [][]float64) *mat.SymDense {
	n := len(cols)
	obs := len(cols[0])
	weights := ewmWeights(obs, expCovSpan)

	means := make([]float64, n)
	for i := range cols {
		means[i] = mean(cols[i])
	}

	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var cov float64
			for k := 0; k < obs; k++ {
				cov += weights[k] * (cols[i][k] - means[i]) * (cols[j][k] - means[j])
			}
			out.SetSym(i, j, cov)
		}
	}
	return out
}

// semiCovariance captures downside co-movement only: returns are clipped at
// the zero benchmark before the outer-product average (N denominator).
func semiCovariance(cols [][]float64) *mat.SymDense {
	n := len(cols)
	obs := len(cols[0])

	drops := make([][]float64, n)
	for i, col := range cols {
		d := make([]float64, obs)
		for k, r := range col {
			if r < 0 {
				d[k] = r
			}
		}
		drops[i] = d
	}

	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var cov float64
			for k := 0; k < obs; k++ {
				cov += drops[i][k] * drops[j][k]
			}
			out.SetSym(i, j, cov/float64(obs))
		}
	}
	return out
}

// repairPSD symmetrizes and eigenvalue-clips the estimate so the optimizer can
// rely on positive semidefiniteness. Non-finite entries or a failed eigen
// factorization surface as IllConditionedMatrixError.
func repairPSD(sym *mat.SymDense, method CovarianceMethod) (*mat.SymDense, error) {
	n := sym.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := sym.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &IllConditionedMatrixError{Method: method, Reason: fmt.Sprintf("non-finite entry at (%d,%d)", i, j)}
			}
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return nil, &IllConditionedMatrixError{Method: method, Reason: "eigendecomposition did not converge"}
	}
	values := eig.Values(nil)

	clipped := false
	for i, v := range values {
		if v < eigenvalueFloor {
			values[i] = eigenvalueFloor
			clipped = true
		}
	}
	if !clipped {
		return sym, nil
	}

	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// Reconstruct V * diag(values) * V'.
	scaled := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			scaled.Set(i, j, vectors.At(i, j)*values[j])
		}
	}
	var dense mat.Dense
	dense.Mul(scaled, vectors.T())

	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			// Average the off-diagonal pair to wash out asymmetry from
			// floating-point noise in the reconstruction.
			out.SetSym(i, j, (dense.At(i, j)+dense.At(j, i))/2)
		}
	}
	return out, nil
}
