package portfolio

import (
	"fmt"
	"math"
	"sort"
)

const (
	solverMaxIter = 20000
	// solverTol bounds the per-iteration movement below which the solve is
	// considered settled.
	solverTol = 1e-10
	// volatilityGuard keeps the Sharpe objective defined near zero variance.
	volatilityGuard = 1e-12
)

// Optimize solves for long-only weights on the simplex under the requested
// objective. The solve is single-shot and deterministic: it starts from equal
// weights and runs projected gradient descent with a backtracking line search,
// so each accepted step strictly improves the objective. Degenerate inputs or
// a stalled solve surface as OptimizationError, never as NaN weights.
func Optimize(mu ReturnsVector, sigma CovarianceMatrix, objective Objective, cfg Config) (WeightVector, error) {
	if err := cfg.ValidateObjective(objective); err != nil {
		return WeightVector{}, err
	}
	if len(mu.Symbols) != sigma.Dim() {
		return WeightVector{}, &InvalidParameterError{
			Param:  "sigma",
			Reason: fmt.Sprintf("covariance dimension %d does not match %d expected returns", sigma.Dim(), len(mu.Symbols)),
		}
	}
	for i, s := range mu.Symbols {
		if sigma.Symbols[i] != s {
			return WeightVector{}, &InvalidParameterError{Param: "sigma", Reason: "symbol order differs from expected returns"}
		}
	}
	if len(mu.Symbols) < 2 {
		return WeightVector{}, &DataInsufficientError{Reason: "need at least 2 instruments to allocate"}
	}

	obj, err := buildObjective(mu, sigma, objective, cfg)
	if err != nil {
		return WeightVector{}, err
	}

	raw, err := solveOnSimplex(len(mu.Symbols), obj, objective)
	if err != nil {
		return WeightVector{}, err
	}
	return cleanWeights(mu.Symbols, raw, objective)
}

type objectiveFuncs struct {
	value func(w []float64) float64
	grad  func(w, g []float64)
}

func buildObjective(mu ReturnsVector, sigma CovarianceMatrix, objective Objective, cfg Config) (objectiveFuncs, error) {
	n := len(mu.Symbols)
	sigmaW := func(w []float64, out []float64) {
		for i := 0; i < n; i++ {
			var v float64
			for j := 0; j < n; j++ {
				v += sigma.At(i, j) * w[j]
			}
			out[i] = v
		}
	}
	dot := func(a, b []float64) float64 {
		var v float64
		for i := range a {
			v += a[i] * b[i]
		}
		return v
	}

	switch objective {
	case MinVolatility:
		// Minimizing variance and minimizing volatility share the argmin.
		return objectiveFuncs{
			value: func(w []float64) float64 {
				sw := make([]float64, n)
				sigmaW(w, sw)
				return dot(w, sw)
			},
			grad: func(w, g []float64) {
				sigmaW(w, g)
				for i := range g {
					g[i] *= 2
				}
			},
		}, nil
	case MaxUtility:
		delta := cfg.RiskAversion
		return objectiveFuncs{
			value: func(w []float64) float64 {
				sw := make([]float64, n)
				sigmaW(w, sw)
				return -(dot(w, mu.Values) - delta/2*dot(w, sw))
			},
			grad: func(w, g []float64) {
				sigmaW(w, g)
				for i := range g {
					g[i] = -mu.Values[i] + delta*g[i]
				}
			},
		}, nil
	case MaxSharpe:
		rf := cfg.RiskFreeRate
		return objectiveFuncs{
			value: func(w []float64) float64 {
				sw := make([]float64, n)
				sigmaW(w, sw)
				vol := math.Sqrt(math.Max(dot(w, sw), volatilityGuard))
				return -(dot(w, mu.Values) - rf) / vol
			},
			grad: func(w, g []float64) {
				sw := make([]float64, n)
				sigmaW(w, sw)
				variance := math.Max(dot(w, sw), volatilityGuard)
				vol := math.Sqrt(variance)
				excess := dot(w, mu.Values) - rf
				for i := range g {
					g[i] = -mu.Values[i]/vol + excess*sw[i]/(vol*variance)
				}
			},
		}, nil
	default:
		return objectiveFuncs{}, &InvalidParameterError{Param: "strategy", Reason: "unknown objective " + string(objective)}
	}
}

// solveOnSimplex runs projected gradient descent from equal weights. The line
// search only accepts strictly improving candidates, so the equal-weighted
// portfolio is never beaten by the returned solution's objective value.
func solveOnSimplex(n int, obj objectiveFuncs, objective Objective) ([]float64, error) {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	fw := obj.value(w)
	if math.IsNaN(fw) || math.IsInf(fw, 0) {
		return nil, &OptimizationError{Objective: objective, Reason: "objective undefined at start"}
	}

	g := make([]float64, n)
	shifted := make([]float64, n)
	step := 1.0
	lastMove := math.Inf(1)

	for iter := 0; iter < solverMaxIter; iter++ {
		obj.grad(w, g)
		for _, v := range g {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &OptimizationError{Objective: objective, Reason: "gradient is not finite"}
			}
		}

		var cand []float64
		var fc float64
		improved := false
		for trial := step; trial > 1e-14; trial /= 2 {
			for i := range w {
				shifted[i] = w[i] - trial*g[i]
			}
			c := projectSimplex(shifted)
			v := obj.value(c)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			if v < fw-1e-15 {
				cand, fc = c, v
				step = math.Min(trial*2, 1)
				improved = true
				break
			}
		}
		if !improved {
			// No descent direction survives the line search: the projected
			// gradient has vanished within tolerance.
			return w, nil
		}

		lastMove = 0
		for i := range w {
			if d := math.Abs(cand[i] - w[i]); d > lastMove {
				lastMove = d
			}
		}
		copy(w, cand)
		fw = fc
		if lastMove < solverTol {
			return w, nil
		}
	}

	if lastMove > 1e-6 {
		return nil, &OptimizationError{Objective: objective, Reason: "did not converge within iteration budget"}
	}
	return w, nil
}

// projectSimplex is the Euclidean projection onto {w : sum(w)=1, w>=0}
// (Duchi et al. sort-based algorithm).
func projectSimplex(v []float64) []float64 {
	n := len(v)
	u := append([]float64(nil), v...)
	sort.Sort(sort.Reverse(sort.Float64Slice(u)))

	var cumsum, theta float64
	rho := -1
	for i := 0; i < n; i++ {
		cumsum += u[i]
		if t := (cumsum - 1) / float64(i+1); u[i] > t {
			rho = i
			theta = t
		}
	}
	if rho < 0 {
		theta = (cumsum - 1) / float64(n)
	}

	out := make([]float64, n)
	for i := range v {
		out[i] = math.Max(v[i]-theta, 0)
	}
	return out
}

// cleanWeights zeroes sub-threshold residues, renormalizes and verifies the
// simplex invariant. Internal checks use the unrounded values.
func cleanWeights(symbols []string, raw []float64, objective Objective) (WeightVector, error) {
	values := make([]float64, len(raw))
	var sum float64
	for i, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return WeightVector{}, &OptimizationError{Objective: objective, Reason: "weights are not finite"}
		}
		if v < weightResidueFloor {
			v = 0
		}
		values[i] = v
		sum += v
	}
	if sum <= 0 {
		return WeightVector{}, &OptimizationError{Objective: objective, Reason: "all weights collapsed to zero"}
	}
	for i := range values {
		values[i] /= sum
	}

	var check float64
	for _, v := range values {
		if v < 0 || v > 1 {
			return WeightVector{}, &OptimizationError{Objective: objective, Reason: fmt.Sprintf("weight %f outside long-only bounds", v)}
		}
		check += v
	}
	if math.Abs(check-1) > 1e-6 {
		return WeightVector{}, &OptimizationError{Objective: objective, Reason: "weights do not sum to one"}
	}
	return WeightVector{Symbols: symbols, Values: values}, nil
}

// Performance computes the metrics triple for a weight vector against the
// same (mu, sigma, rf) inputs the optimizer used.
func Performance(w WeightVector, mu ReturnsVector, sigma CovarianceMatrix, riskFreeRate float64) PerformanceMetrics {
	var ret float64
	for i := range w.Values {
		ret += w.Values[i] * mu.Values[i]
	}
	vol := math.Sqrt(math.Max(sigma.Variance(w.Values), 0))
	var sharpe float64
	if vol > 0 {
		sharpe = (ret - riskFreeRate) / vol
	}
	return PerformanceMetrics{
		ExpectedAnnualReturn: ret,
		AnnualVolatility:     vol,
		SharpeRatio:          sharpe,
	}
}
