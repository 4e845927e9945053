package opt

import "math"

// penaltyScale converts an out-of-bounds excursion into a fitness penalty.
// The penalty is only used during hill-climbing, where the univariate search
// may probe outside the legal window.
const penaltyScale = 1e10

// EnsureLegal forces every parameter into its bounds, rounding the first
// nints entries to the nearest integer (half away from zero) beforehand. The
// vector is mutated in place and the accumulated penalty for any excursion is
// returned; a legal input yields exactly zero. Applying it twice is a no-op.
func EnsureLegal(nints int, lowBounds, highBounds, params []float64) float64 {
	penalty := 0.0

	for i := range params {
		if i < nints {
			if params[i] >= 0 {
				params[i] = math.Floor(params[i] + 0.5)
			} else {
				params[i] = -math.Floor(0.5 - params[i])
			}
		}
		if params[i] > highBounds[i] {
			penalty += penaltyScale * (params[i] - highBounds[i])
			params[i] = highBounds[i]
		}
		if params[i] < lowBounds[i] {
			penalty += penaltyScale * (lowBounds[i] - params[i])
			params[i] = lowBounds[i]
		}
	}

	return penalty
}
