package opt

import (
	"fmt"
	"math/rand"
)

// Criterion evaluates a parameter vector and returns its fitness (higher is
// better). The first NInts entries of params are integer-valued. minTrades is
// the current adaptive trial threshold; a return value less than or equal to
// zero marks the trial as unusable. Implementations may be stochastic, so the
// optimizer never assumes repeated calls with identical parameters agree.
type Criterion func(params []float64, minTrades int) float64

// Uniform is the random source used by the optimizer.
// Float64 must return a draw in [0, 1).
type Uniform interface {
	Float64() float64
}

// LineMaximizer locates the maximum of a univariate function on [low, high].
// It returns the abscissa of the best point found. Used by the hill-climbing
// refiner for continuous coordinates; any bracket-then-refine implementation
// is substitutable.
type LineMaximizer interface {
	Maximize(f func(float64) float64, low, high float64) float64
}

// StocBias is the observational side channel bracketing the initialization
// phase. Enable is called before the first initial candidate is generated and
// Disable after the phase completes, on every exit path. It never affects
// optimization results.
type StocBias interface {
	Enable()
	Disable()
}

// Reporter receives the final generation for post-run analysis. A Report
// error is non-fatal and surfaces on Result.ReportErr.
type Reporter interface {
	Report(params [][]float64, fitness []float64) error
}

// Progress carries per-generation state to an optional callback.
type Progress struct {
	Generation  int
	BestFitness float64
	BestParams  []float64
	Worst       float64
	Avg         float64
	Evals       int
	Improved    bool
}

// ProgressFunc is invoked once after each completed generation.
type ProgressFunc func(Progress)

// Config holds everything a differential-evolution run needs.
// Popsize should be 5 to 10 times NVars, more for a more global search.
// OverInit should be 0 for simple problems, or PopSize for hard problems.
// MutateDev should be about 0.4 to 1.2, with larger values giving a more
// global search.
type Config struct {
	Criterion Criterion

	NVars int // Number of variables
	NInts int // Number of leading variables that are integers

	PopSize   int // Population size
	OverInit  int // Extra initial candidates competing against the worst
	MinTrades int // Initial adaptive trial threshold, relaxed on sustained failure
	MaxEvals  int // Safety cap on initial evaluations; should be very large
	MaxBadGen int // Contiguous non-improving generations before stopping

	MutateDev float64 // Deviation for differential mutation
	PCross    float64 // Probability of crossover
	PClimb    float64 // Probability of a hill-climbing step, may be zero

	LowBounds  []float64
	HighBounds []float64

	// Seed seeds the default random source when Rand is nil.
	Seed int64

	// Optional collaborators. Rand defaults to a seeded math/rand source and
	// Line to the bracket-and-refine searcher from internal/univar (wired by
	// callers); Bias, Reporter and OnProgress default to nil (disabled).
	Rand       Uniform
	Line       LineMaximizer
	Bias       StocBias
	Reporter   Reporter
	OnProgress ProgressFunc
}

func (c *Config) validate() error {
	if c.Criterion == nil {
		return fmt.Errorf("criterion function is required")
	}
	if c.NVars < 1 {
		return fmt.Errorf("nvars must be at least 1, got %d", c.NVars)
	}
	if c.NInts < 0 || c.NInts > c.NVars {
		return fmt.Errorf("nints must be in [0, nvars], got %d", c.NInts)
	}
	if c.PopSize < 4 {
		return fmt.Errorf("popsize must be at least 4 (three distinct partners per child), got %d", c.PopSize)
	}
	if c.OverInit < 0 {
		return fmt.Errorf("overinit cannot be negative, got %d", c.OverInit)
	}
	if c.MinTrades < 1 {
		return fmt.Errorf("mintrades must be at least 1, got %d", c.MinTrades)
	}
	if c.MaxEvals < 1 {
		return fmt.Errorf("max-evals must be positive, got %d", c.MaxEvals)
	}
	if c.MaxBadGen < 0 {
		return fmt.Errorf("max-bad-gen cannot be negative, got %d", c.MaxBadGen)
	}
	if len(c.LowBounds) != c.NVars || len(c.HighBounds) != c.NVars {
		return fmt.Errorf("bounds must have length %d, got %d/%d", c.NVars, len(c.LowBounds), len(c.HighBounds))
	}
	for i := range c.LowBounds {
		if c.LowBounds[i] > c.HighBounds[i] {
			return fmt.Errorf("low bound exceeds high bound at variable %d", i)
		}
	}
	if c.PClimb > 0 && c.NInts < c.NVars && c.Line == nil {
		return fmt.Errorf("a line maximizer is required when pclimb > 0 and continuous variables exist")
	}
	return nil
}

// Result is the outcome of a run. Params and Fitness always hold the best
// individual ever observed, including on the early-abort path.
type Result struct {
	Params      []float64
	Fitness     float64
	Generations int
	Evals       int

	// InitAborted is true when initialization exceeded MaxEvals unusable
	// trials and the run returned early with the best found so far.
	InitAborted bool

	// ReportErr holds a non-fatal post-run correlation report failure.
	ReportErr error
}

// Vector returns the best parameters followed by their fitness, matching the
// nvars+1 layout of an individual.
func (r *Result) Vector() []float64 {
	v := make([]float64, len(r.Params)+1)
	copy(v, r.Params)
	v[len(r.Params)] = r.Fitness
	return v
}

// individual is a parameter vector plus the fitness most recently computed
// for it. The two are kept consistent at all times.
type individual struct {
	x       []float64
	fitness float64
}

func (dst *individual) copyFrom(src *individual) {
	copy(dst.x, src.x)
	dst.fitness = src.fitness
}

func newPopulation(popSize, nvars int) []individual {
	pop := make([]individual, popSize)
	for i := range pop {
		pop[i].x = make([]float64, nvars)
	}
	return pop
}

func defaultRand(seed int64) Uniform {
	return rand.New(rand.NewSource(seed))
}
