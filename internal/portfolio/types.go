// Package portfolio implements the mean-variance optimization engine: return
// and covariance estimation from aligned price history, long-only optimization
// under three objectives, and multi-strategy comparison. The package is pure
// computation; it performs no I/O and holds no state between calls.
package portfolio

import "math"

// ReturnsMethod selects how expected returns are estimated from history.
type ReturnsMethod string

const (
	MeanHistorical ReturnsMethod = "mean_historical"
	EMAHistorical  ReturnsMethod = "ema_historical"
)

// CovarianceMethod selects the risk-model estimator.
type CovarianceMethod string

const (
	SampleCov      CovarianceMethod = "sample_cov"
	LedoitWolf     CovarianceMethod = "ledoit_wolf"
	ExpCov         CovarianceMethod = "exp_cov"
	Semicovariance CovarianceMethod = "semicovariance"
)

// Objective selects the optimization target.
type Objective string

const (
	MaxSharpe     Objective = "max_sharpe"
	MinVolatility Objective = "min_volatility"
	MaxUtility    Objective = "max_utility"
)

// CanonicalObjectives is the fixed reporting order for multi-strategy runs,
// independent of request order.
var CanonicalObjectives = []Objective{MaxSharpe, MinVolatility, MaxUtility}

// Config carries the knobs shared by estimation and optimization. Zero values
// are not usable; start from DefaultConfig and override.
type Config struct {
	// ReturnsMethod and CovarianceMethod pick the estimators.
	ReturnsMethod    ReturnsMethod
	CovarianceMethod CovarianceMethod
	// UseLogReturns switches period returns from arithmetic to log.
	UseLogReturns bool
	// Frequency is the number of trading periods per year used for
	// annualization. 252 for daily data.
	Frequency int
	// RiskFreeRate feeds the Sharpe ratio and the max-Sharpe objective.
	RiskFreeRate float64
	// RiskAversion is the delta in the quadratic-utility objective. Must be
	// positive when max_utility is requested.
	RiskAversion float64
}

// DefaultConfig returns the documented defaults: daily frequency, 2% risk-free
// rate, unit risk aversion, arithmetic mean returns and Ledoit-Wolf shrinkage.
func DefaultConfig() Config {
	return Config{
		ReturnsMethod:    MeanHistorical,
		CovarianceMethod: LedoitWolf,
		UseLogReturns:    false,
		Frequency:        252,
		RiskFreeRate:     0.02,
		RiskAversion:     1.0,
	}
}

// Validate rejects unknown method names and out-of-range numeric parameters
// before any estimation runs.
func (c Config) Validate() error {
	switch c.ReturnsMethod {
	case MeanHistorical, EMAHistorical:
	default:
		return &InvalidParameterError{Param: "returns_method", Reason: "unknown method " + string(c.ReturnsMethod)}
	}
	switch c.CovarianceMethod {
	case SampleCov, LedoitWolf, ExpCov, Semicovariance:
	default:
		return &InvalidParameterError{Param: "covariance_method", Reason: "unknown method " + string(c.CovarianceMethod)}
	}
	if c.Frequency <= 0 {
		return &InvalidParameterError{Param: "frequency", Reason: "must be a positive number of periods per year"}
	}
	return nil
}

// ValidateObjective checks the per-objective parameters.
func (c Config) ValidateObjective(obj Objective) error {
	switch obj {
	case MaxSharpe, MinVolatility:
		return nil
	case MaxUtility:
		if c.RiskAversion <= 0 {
			return &InvalidParameterError{Param: "risk_aversion", Reason: "must be positive for max_utility"}
		}
		return nil
	default:
		return &InvalidParameterError{Param: "strategy", Reason: "unknown objective " + string(obj)}
	}
}

// ReturnsVector holds annualized expected returns in symbol order.
type ReturnsVector struct {
	Symbols []string
	Values  []float64
}

// Map returns the expected returns keyed by symbol.
func (rv ReturnsVector) Map() map[string]float64 {
	out := make(map[string]float64, len(rv.Symbols))
	for i, s := range rv.Symbols {
		out[s] = rv.Values[i]
	}
	return out
}

// weightResidueFloor is the threshold below which a weight is cleaned to
// exactly zero before being reported.
const weightResidueFloor = 1e-4

// reportPrecision is the number of decimals weights are rounded to for
// display. Internal sum-to-one checks use the unrounded values.
const reportPrecision = 4

// WeightVector holds cleaned portfolio weights in symbol order. Values sum to
// one within numerical tolerance; under long-only bounds every value is in
// [0, 1].
type WeightVector struct {
	Symbols []string
	Values  []float64
}

// Sum returns the unrounded total weight.
func (wv WeightVector) Sum() float64 {
	var s float64
	for _, v := range wv.Values {
		s += v
	}
	return s
}

// Map returns weights keyed by symbol, rounded for display stability.
func (wv WeightVector) Map() map[string]float64 {
	out := make(map[string]float64, len(wv.Symbols))
	for i, s := range wv.Symbols {
		out[s] = roundTo(wv.Values[i], reportPrecision)
	}
	return out
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}

// PerformanceMetrics describes a weight vector against a (mu, sigma, rf)
// triple. Recomputed per report, never cached.
type PerformanceMetrics struct {
	ExpectedAnnualReturn float64 `json:"expected_annual_return"`
	AnnualVolatility     float64 `json:"annual_volatility"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
}

// StrategyResult is one comparator entry: either weights plus metrics, or the
// error that strategy failed with.
type StrategyResult struct {
	Strategy Objective
	Weights  WeightVector
	Metrics  PerformanceMetrics
	Err      error
}

// StrategyReport collects per-strategy results in canonical order.
type StrategyReport struct {
	Results []StrategyResult
}

// Succeeded returns the names of the strategies that produced weights.
func (r StrategyReport) Succeeded() []Objective {
	var out []Objective
	for _, res := range r.Results {
		if res.Err == nil {
			out = append(out, res.Strategy)
		}
	}
	return out
}
