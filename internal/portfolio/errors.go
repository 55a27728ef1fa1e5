package portfolio

import "fmt"

// DataInsufficientError reports a price history too short (or too narrow) to
// estimate anything from. It is raised before any matrix algebra runs.
type DataInsufficientError struct {
	Reason string
}

func (e *DataInsufficientError) Error() string {
	return "insufficient data: " + e.Reason
}

// IllConditionedMatrixError reports a covariance matrix that is still not
// usable after regularization.
type IllConditionedMatrixError struct {
	Method CovarianceMethod
	Reason string
}

func (e *IllConditionedMatrixError) Error() string {
	return fmt.Sprintf("ill-conditioned covariance matrix (%s): %s", e.Method, e.Reason)
}

// OptimizationError reports a solve that did not converge or produced a
// degenerate result. Callers never see partial or NaN-filled weights.
type OptimizationError struct {
	Objective Objective
	Reason    string
}

func (e *OptimizationError) Error() string {
	return fmt.Sprintf("%s optimization failed: %s", e.Objective, e.Reason)
}

// InvalidParameterError reports a bad request parameter. It is raised at the
// boundary, before estimation starts.
type InvalidParameterError struct {
	Param  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Param, e.Reason)
}
