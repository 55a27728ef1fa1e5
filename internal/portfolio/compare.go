package portfolio

// SelectStrategies resolves a strategy_selection argument into the objectives
// to run, in canonical order. "all" (or empty) expands to every objective.
func SelectStrategies(selection string) ([]Objective, error) {
	switch Objective(selection) {
	case MaxSharpe, MinVolatility, MaxUtility:
		return []Objective{Objective(selection)}, nil
	}
	if selection == "all" || selection == "" {
		return append([]Objective(nil), CanonicalObjectives...), nil
	}
	return nil, &InvalidParameterError{Param: "strategy_selection", Reason: "unknown strategy " + selection}
}

// CompareStrategies runs the optimizer once per requested objective against
// identical (mu, sigma) inputs and reports every result in canonical order.
// A failing strategy is reported with its own error and does not abort its
// siblings.
func CompareStrategies(mu ReturnsVector, sigma CovarianceMatrix, objectives []Objective, cfg Config) StrategyReport {
	requested := make(map[Objective]bool, len(objectives))
	for _, o := range objectives {
		requested[o] = true
	}

	var report StrategyReport
	for _, obj := range CanonicalObjectives {
		if !requested[obj] {
			continue
		}
		weights, err := Optimize(mu, sigma, obj, cfg)
		if err != nil {
			report.Results = append(report.Results, StrategyResult{Strategy: obj, Err: err})
			continue
		}
		report.Results = append(report.Results, StrategyResult{
			Strategy: obj,
			Weights:  weights,
			Metrics:  Performance(weights, mu, sigma, cfg.RiskFreeRate),
		})
	}
	return report
}
