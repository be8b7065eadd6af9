package linear

// Option is a function that configures LinearRegression
type Option func(*LinearRegression)

// WithFitIntercept sets whether to calculate the intercept (default true)
func WithFitIntercept(fit bool) Option {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// WithTol sets the relative singular-value cutoff used for the rank check.
// Zero selects max(n_samples, n_features+1) * machine epsilon.
func WithTol(tol float64) Option {
	return func(lr *LinearRegression) {
		lr.tol = tol
	}
}
