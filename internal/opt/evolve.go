package opt

import (
	"log/slog"
	"math"
)

// evolve runs generations until the grand best stagnates for more than
// MaxBadGen contiguous generations. The parent and child roles ping-pong
// between pop1 and pop2; the returned slice is the buffer holding the last
// produced generation, handed to the correlation reporter.
func (e *engine) evolve() []individual {
	cfg := &e.cfg

	// Locate the elite slot in the freshly initialized population so the
	// cyclic coordinate sweep can start on it.
	e.ibest = 0
	e.nTweaked = 0
	for ind := 1; ind < cfg.PopSize; ind++ {
		if e.pop1[ind].fitness > e.pop1[e.ibest].fitness {
			e.ibest = ind
		}
	}

	oldGen, newGen := e.pop1, e.pop2
	badGenerations := 0

	for generation := 1; ; generation++ {
		worst := math.Inf(1)
		sum := 0.0
		improved := false

		for ind := 0; ind < cfg.PopSize; ind++ {
			value, better := e.nextChild(oldGen, newGen, ind)
			if better {
				improved = true
			}

			// Hill-climbing opportunity on the slot's freshly decided
			// occupant: the elite gets one coordinate per generation until
			// all have been visited, anyone else with probability pclimb.
			if cfg.PClimb > 0.0 &&
				((ind == e.ibest && e.nTweaked < cfg.NVars) || e.rng.Float64() < cfg.PClimb) {
				var k int
				if ind == e.ibest { // Once each generation tweak the elite
					e.nTweaked++
					k = generation % cfg.NVars
				} else {
					k = e.randIndex(cfg.NVars)
				}
				if k < cfg.NInts {
					better = e.climbInteger(&newGen[ind], ind, k)
				} else {
					better = e.climbReal(&newGen[ind], ind, k)
				}
				if better {
					improved = true
				}
				value = newGen[ind].fitness
			}

			if value < worst {
				worst = value
			}
			sum += value
		}

		e.generations = generation

		if cfg.OnProgress != nil {
			cfg.OnProgress(Progress{
				Generation:  generation,
				BestFitness: e.best.fitness,
				BestParams:  append([]float64(nil), e.best.x...),
				Worst:       worst,
				Avg:         sum / float64(cfg.PopSize),
				Evals:       e.nEvals,
				Improved:    improved,
			})
		}
		slog.Debug("Generation complete",
			"generation", generation, "best", e.best.fitness,
			"worst", worst, "avg", sum/float64(cfg.PopSize))

		if !improved {
			badGenerations++
			if badGenerations > cfg.MaxBadGen {
				slog.Info("Stopping: no improvement",
					"generation", generation, "bad_generations", badGenerations,
					"best", e.best.fitness)
				return newGen
			}
		} else {
			badGenerations = 0
		}

		oldGen, newGen = newGen, oldGen
	}
}

// nextChild produces the child for slot ind of newGen via differential
// mutation, crossover, legalization and strict greedy selection against the
// parent at the same slot. Returns the fitness now occupying the slot and
// whether the grand best improved.
func (e *engine) nextChild(oldGen, newGen []individual, ind int) (float64, bool) {
	cfg := &e.cfg

	parent1 := &oldGen[ind] // Pure (and tested) parent
	dest := &newGen[ind]    // Winner goes here for the next generation

	// Three further distinct individuals: the parent to mutate and the two
	// differential vectors, sampled by rejection.
	var i, j, k int
	for {
		i = e.randIndex(cfg.PopSize)
		if i != ind {
			break
		}
	}
	for {
		j = e.randIndex(cfg.PopSize)
		if j != ind && j != i {
			break
		}
	}
	for {
		k = e.randIndex(cfg.PopSize)
		if k != ind && k != i && k != j {
			break
		}
	}
	parent2 := &oldGen[i]
	diff1 := &oldGen[j]
	diff2 := &oldGen[k]

	// Crossover walks every variable from a random starting position so the
	// forced mutation below does not always land on the same coordinate.
	pos := e.randIndex(cfg.NVars)
	usedMutated := false
	for remaining := cfg.NVars - 1; remaining >= 0; remaining-- {
		if (remaining == 0 && !usedMutated) || e.rng.Float64() < cfg.PCross {
			dest.x[pos] = parent2.x[pos] + cfg.MutateDev*(diff1.x[pos]-diff2.x[pos])
			usedMutated = true
		} else {
			dest.x[pos] = parent1.x[pos]
		}
		pos = (pos + 1) % cfg.NVars
	}

	// Mutation almost certainly pushed integers, and possibly reals, outside
	// their legal range.
	EnsureLegal(cfg.NInts, cfg.LowBounds, cfg.HighBounds, dest.x)

	value := e.evaluate(dest.x)

	if value > parent1.fitness { // Strictly better children only
		dest.fitness = value
		return value, e.noteBest(dest, ind)
	}

	// Ties and losses revert to the parent wholesale.
	dest.copyFrom(parent1)
	return parent1.fitness, false
}
