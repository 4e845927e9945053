package opt

import (
	"log/slog"
)

// engine holds the mutable run state so the phases can share it without any
// package-level globals.
type engine struct {
	cfg  Config
	rng  Uniform
	line LineMaximizer

	// minTrades is the adaptive trial threshold, relaxed irreversibly during
	// initialization after sustained failure.
	minTrades int

	pop1, pop2 []individual

	// best is the grand best: the best individual ever observed, distinct
	// from both generation buffers. bestSeeded flips on the first evaluation.
	best       individual
	bestSeeded bool

	// ibest is the population slot the elite currently occupies; nTweaked
	// counts how many of its coordinates have been refined since the grand
	// best last improved.
	ibest    int
	nTweaked int

	nEvals      int
	generations int
}

// Run executes a full differential-evolution optimization: initialization
// with over-initialization, the generational loop with embedded hill
// climbing, and the post-run correlation report. The returned Result always
// carries the best individual found, even when initialization aborts early.
func Run(cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	e := &engine{
		cfg:       cfg,
		rng:       cfg.Rand,
		line:      cfg.Line,
		minTrades: cfg.MinTrades,
		pop1:      newPopulation(cfg.PopSize, cfg.NVars),
		pop2:      newPopulation(cfg.PopSize, cfg.NVars),
	}
	e.best.x = make([]float64, cfg.NVars)
	if e.rng == nil {
		e.rng = defaultRand(cfg.Seed)
	}

	res := &Result{}

	if aborted := e.initialize(); aborted {
		slog.Warn("Initialization aborted: evaluation budget exhausted",
			"evals", e.nEvals, "max_evals", cfg.MaxEvals)
		res.InitAborted = true
	} else {
		finalGen := e.evolve()
		if cfg.Reporter != nil {
			res.ReportErr = e.report(finalGen)
		}
	}

	res.Params = make([]float64, cfg.NVars)
	copy(res.Params, e.best.x)
	res.Fitness = e.best.fitness
	res.Generations = e.generations
	res.Evals = e.nEvals

	return res, nil
}

// evaluate calls the criterion with the current trial threshold and counts
// the evaluation.
func (e *engine) evaluate(params []float64) float64 {
	e.nEvals++
	return e.cfg.Criterion(params, e.minTrades)
}

// noteBest updates the grand best when ind's occupant strictly exceeds it,
// recording the slot as the elite and resetting the tweak counter. Reports
// whether the grand best improved.
func (e *engine) noteBest(cand *individual, slot int) bool {
	if cand.fitness > e.best.fitness {
		e.best.copyFrom(cand)
		e.ibest = slot
		e.nTweaked = 0
		return true
	}
	return false
}

// randIndex draws a uniform slot index in [0, n) by rejection, matching the
// sampling used throughout the algorithm.
func (e *engine) randIndex(n int) int {
	for {
		v := int(e.rng.Float64() * float64(n))
		if v < n {
			return v
		}
	}
}

func (e *engine) report(finalGen []individual) error {
	params := make([][]float64, len(finalGen))
	fitness := make([]float64, len(finalGen))
	for i := range finalGen {
		params[i] = append([]float64(nil), finalGen[i].x...)
		fitness[i] = finalGen[i].fitness
	}
	return e.cfg.Reporter.Report(params, fitness)
}
