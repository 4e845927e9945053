package opt

import (
	"log/slog"
	"math"
)

// relaxAfter is the number of consecutive unusable initial trials that
// triggers a relaxation of the trial threshold.
const relaxAfter = 500

// initialize fills pop1 with legal, evaluated individuals and runs the
// over-initialization replacement pass. The first slot of pop2 serves as the
// scratch area for over-init candidates. Returns true when the evaluation
// budget was exhausted before the population completed; the grand best found
// so far remains valid in that case.
func (e *engine) initialize() (aborted bool) {
	cfg := &e.cfg

	if cfg.Bias != nil {
		cfg.Bias.Enable()
		defer cfg.Bias.Disable()
	}

	failures := 0 // consecutive unusable trials

	for ind := 0; ind < cfg.PopSize+cfg.OverInit; ind++ {
		var slot *individual
		if ind < cfg.PopSize {
			slot = &e.pop1[ind]
		} else {
			slot = &e.pop2[0]
		}

		for i := 0; i < cfg.NVars; i++ {
			lo, hi := cfg.LowBounds[i], cfg.HighBounds[i]
			if i < cfg.NInts {
				v := lo + math.Floor(e.rng.Float64()*(hi-lo+1.0))
				if v > hi { // Virtually impossible, but be safe
					v = hi
				}
				slot.x[i] = v
			} else {
				slot.x[i] = lo + e.rng.Float64()*(hi-lo)
			}
		}

		value := e.evaluate(slot.x)
		slot.fitness = value

		// The very first trial seeds the grand best unconditionally, so even
		// a run that never finds a usable individual returns something.
		if !e.bestSeeded {
			e.best.copyFrom(slot)
			e.bestSeeded = true
		}

		if value <= 0.0 { // Totally worthless individual; its slot is retried
			if e.nEvals > cfg.MaxEvals {
				return true
			}
			ind--
			if failures++; failures >= relaxAfter {
				failures = 0
				e.minTrades = e.minTrades * 9 / 10
				if e.minTrades < 1 {
					e.minTrades = 1
				}
				slog.Debug("Relaxed trial threshold after sustained failures",
					"min_trades", e.minTrades, "evals", e.nEvals)
			}
			continue
		}
		failures = 0

		if value > e.best.fitness {
			e.best.copyFrom(slot)
		}

		// Over-initialization: the candidate sits in scratch and replaces the
		// current worst of pop1 only when strictly better. The worst is found
		// by a fresh linear scan each time.
		if ind >= cfg.PopSize {
			worst := 0
			for i := 1; i < cfg.PopSize; i++ {
				if e.pop1[i].fitness < e.pop1[worst].fitness {
					worst = i
				}
			}
			if value > e.pop1[worst].fitness {
				e.pop1[worst].copyFrom(slot)
			}
		}
	}

	slog.Info("Initial population complete",
		"popsize", cfg.PopSize, "overinit", cfg.OverInit,
		"evals", e.nEvals, "best", e.best.fitness, "min_trades", e.minTrades)

	return false
}
