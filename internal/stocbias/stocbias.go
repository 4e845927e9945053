// Package stocbias is the observational side channel the optimizer brackets
// around its initialization phase. While enabled, an instrumented criterion
// feeds every evaluation into the collector; the resulting snapshot estimates
// how biased the initial search was toward lucky draws. Collection never
// affects optimization results.
package stocbias

import "sync"

// Snapshot summarizes the evaluations recorded while the collector was
// enabled.
type Snapshot struct {
	Evals    int     `json:"evals"`
	Failures int     `json:"failures"` // fitness <= 0
	Best     float64 `json:"best"`
	Worst    float64 `json:"worst"`
	Mean     float64 `json:"mean"` // over usable evaluations only
}

// Collector satisfies the optimizer's StocBias contract. The zero value is
// ready to use and starts disabled.
type Collector struct {
	mu      sync.Mutex
	enabled bool

	evals    int
	failures int
	best     float64
	worst    float64
	sum      float64
}

func New() *Collector {
	return &Collector{}
}

// Enable starts collection. Counters are reset so the snapshot covers exactly
// one enable/disable bracket.
func (c *Collector) Enable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = true
	c.evals = 0
	c.failures = 0
	c.sum = 0
	c.best = 0
	c.worst = 0
}

// Disable stops collection. The snapshot remains readable afterward.
func (c *Collector) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = false
}

// Record feeds one evaluation into the collector. Calls while disabled are
// ignored, which lets a criterion wrapper record unconditionally.
func (c *Collector) Record(fitness float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}

	c.evals++
	if fitness <= 0 {
		c.failures++
		return
	}

	usable := c.evals - c.failures
	if usable == 1 || fitness > c.best {
		c.best = fitness
	}
	if usable == 1 || fitness < c.worst {
		c.worst = fitness
	}
	c.sum += fitness
}

// Snapshot returns the statistics collected during the last enabled bracket.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Evals:    c.evals,
		Failures: c.failures,
		Best:     c.best,
		Worst:    c.worst,
	}
	if usable := c.evals - c.failures; usable > 0 {
		s.Mean = c.sum / float64(usable)
	}
	return s
}

// Wrap returns a criterion that records every evaluation before returning it.
func (c *Collector) Wrap(criterion func([]float64, int) float64) func([]float64, int) float64 {
	return func(params []float64, minTrades int) float64 {
		v := criterion(params, minTrades)
		c.Record(v)
		return v
	}
}
