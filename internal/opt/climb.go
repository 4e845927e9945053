package opt

// climbWindow is the fraction of a coordinate's full range searched around
// its current value during continuous refinement (0.1 to each side).
const climbWindow = 0.1

// climbInteger performs coordinate ascent on integer variable k of dest.
// It steps upward by one while the criterion strictly improves; only when no
// upward step succeeds does it try downward. A failed step is reverted before
// stopping, so dest always ends on the best value tested. Reports whether the
// grand best improved.
func (e *engine) climbInteger(dest *individual, slot, k int) bool {
	cfg := &e.cfg

	value := dest.fitness
	base := dest.x[k]
	lo, hi := cfg.LowBounds[k], cfg.HighBounds[k]
	success := false

	for next := base + 1; next <= hi; next++ {
		dest.x[k] = next
		test := e.evaluate(dest.x)
		if test > value {
			value = test
			base = next
			success = true
		} else {
			dest.x[k] = base
			break
		}
	}

	if !success {
		for next := base - 1; next >= lo; next-- {
			dest.x[k] = next
			test := e.evaluate(dest.x)
			if test > value {
				value = test
				base = next
				success = true
			} else {
				dest.x[k] = base
				break
			}
		}
	}

	if !success {
		return false
	}
	dest.fitness = value
	return e.noteBest(dest, slot)
}

// climbReal refines continuous variable k of dest with the univariate
// maximizer over a window of a fifth of the coordinate's range, slid fully
// inside the bounds. The search objective is the criterion minus the
// legalization penalty, since the maximizer may probe outside the window.
// The refined value is kept only on strict improvement of the true
// criterion; otherwise the original coordinate is restored exactly.
// Reports whether the grand best improved.
func (e *engine) climbReal(dest *individual, slot, k int) bool {
	cfg := &e.cfg

	oldValue := dest.fitness
	base := dest.x[k]
	lo, hi := cfg.LowBounds[k], cfg.HighBounds[k]

	lower := base - climbWindow*(hi-lo)
	upper := base + climbWindow*(hi-lo)
	if lower < lo {
		lower = lo
		upper = lo + 2*climbWindow*(hi-lo)
	}
	if upper > hi {
		upper = hi
		lower = hi - 2*climbWindow*(hi-lo)
	}

	// The adapter closure captures everything the univariate search needs;
	// there is no shared state beyond dest itself.
	objective := func(v float64) float64 {
		dest.x[k] = v
		penalty := EnsureLegal(cfg.NInts, cfg.LowBounds, cfg.HighBounds, dest.x)
		return e.evaluate(dest.x) - penalty
	}

	refined := e.line.Maximize(objective, lower, upper)

	dest.x[k] = refined
	EnsureLegal(cfg.NInts, cfg.LowBounds, cfg.HighBounds, dest.x)
	value := e.evaluate(dest.x)

	if value > oldValue {
		dest.fitness = value
	} else {
		dest.x[k] = base // Restore the original value exactly
	}

	return e.noteBest(dest, slot)
}
