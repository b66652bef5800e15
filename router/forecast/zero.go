package forecast

import "context"

// Zero always predicts 0. With a non-zero forecast weight it keeps ENRICH in
// the cycle without influencing the ranking.
type Zero struct{}

// Predict implements router.Estimator.
func (Zero) Predict(ctx context.Context, _ []float64) (float64, error) {
	return 0, ctx.Err()
}
