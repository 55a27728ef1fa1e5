package portfolio

// emaSpan is the span of the exponential weighting used by ema_historical,
// matching the convention of the pandas ewm(span=...) estimator.
const emaSpan = 500

// EstimateReturns converts a price history into annualized expected returns.
// mean_historical is the flat average of period returns times frequency;
// ema_historical weighs recent periods more heavily before the same
// annualization. Deterministic and free of side effects.
func EstimateReturns(prices *PriceSeries, method ReturnsMethod, logReturns bool, frequency int) (ReturnsVector, error) {
	if frequency <= 0 {
		return ReturnsVector{}, &InvalidParameterError{Param: "frequency", Reason: "must be a positive number of periods per year"}
	}
	switch method {
	case MeanHistorical, EMAHistorical:
	default:
		return ReturnsVector{}, &InvalidParameterError{Param: "returns_method", Reason: "unknown method " + string(method)}
	}
	if prices.Observations() < 2 {
		return ReturnsVector{}, &DataInsufficientError{Reason: "need at least 2 observations per asset"}
	}

	rets := prices.periodReturns(logReturns)
	symbols := prices.Symbols()
	values := make([]float64, len(symbols))
	for i, s := range symbols {
		var periodMean float64
		if method == EMAHistorical {
			periodMean = ewmMean(rets[s], emaSpan)
		} else {
			periodMean = mean(rets[s])
		}
		values[i] = periodMean * float64(frequency)
	}
	return ReturnsVector{Symbols: symbols, Values: values}, nil
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// ewmMean is the exponentially weighted mean evaluated at the newest
// observation: weights decay by (1-alpha) per step back in time with
// alpha = 2/(span+1), normalized over the window.
func ewmMean(xs []float64, span int) float64 {
	alpha := 2.0 / (float64(span) + 1)
	decay := 1 - alpha
	var num, den, w float64
	w = 1
	for i := len(xs) - 1; i >= 0; i-- {
		num += w * xs[i]
		den += w
		w *= decay
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// ewmWeights returns normalized exponential weights for n observations, oldest
// first, with the same alpha convention as ewmMean.
func ewmWeights(n, span int) []float64 {
	alpha := 2.0 / (float64(span) + 1)
	decay := 1 - alpha
	weights := make([]float64, n)
	var sum float64
	w := 1.0
	for i := n - 1; i >= 0; i-- {
		weights[i] = w
		sum += w
		w *= decay
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights
}
