// Package fit is the objective catalog: named, bounded criterion functions
// the CLI and job server can optimize. All problems are phrased for
// maximization with a positive optimum, since the optimizer treats fitness
// values at or below zero as unusable trials.
package fit

import (
	"fmt"
	"math"
	"sort"
)

// Problem is one optimizable objective with its parameter space.
type Problem struct {
	Name  string
	NVars int
	NInts int // Leading integer-valued variables

	Low  []float64
	High []float64

	// Optimum is the best achievable fitness, used for reporting and tests.
	Optimum float64

	// Criterion evaluates a parameter vector; minTrades is the adaptive
	// trial threshold forwarded by the optimizer.
	Criterion func(params []float64, minTrades int) float64
}

// Sphere is the shifted sphere: offset - sum(x_i^2) on [-5, 5]^n, maximum at
// the origin. The offset keeps every in-bounds value strictly positive.
func Sphere(nvars int) Problem {
	offset := 25.0*float64(nvars) + 1.0
	return Problem{
		Name:    "sphere",
		NVars:   nvars,
		Low:     uniformBounds(nvars, -5),
		High:    uniformBounds(nvars, 5),
		Optimum: offset,
		Criterion: func(params []float64, _ int) float64 {
			var sum float64
			for _, v := range params {
				sum += v * v
			}
			return offset - sum
		},
	}
}

// Rastrigin is the shifted Rastrigin function on [-5.12, 5.12]^n, highly
// multimodal with the maximum at the origin.
func Rastrigin(nvars int) Problem {
	offset := (10.0+5.12*5.12)*float64(nvars) + 1.0
	return Problem{
		Name:    "rastrigin",
		NVars:   nvars,
		Low:     uniformBounds(nvars, -5.12),
		High:    uniformBounds(nvars, 5.12),
		Optimum: offset,
		Criterion: func(params []float64, _ int) float64 {
			sum := 10.0 * float64(len(params))
			for _, v := range params {
				sum += v*v - 10.0*math.Cos(2*math.Pi*v)
			}
			return offset - sum
		},
	}
}

// Eggholder is the shifted two-dimensional Eggholder function on
// [-512, 512]^2, with a single global maximum near (512, 404.23).
func Eggholder() Problem {
	const offset = 2000.0
	return Problem{
		Name:    "eggholder",
		NVars:   2,
		Low:     uniformBounds(2, -512),
		High:    uniformBounds(2, 512),
		Optimum: offset + 959.6407,
		Criterion: func(params []float64, _ int) float64 {
			x, y := params[0], params[1]
			a := -(y + 47) * math.Sin(math.Sqrt(math.Abs(x/2+y+47)))
			b := -x * math.Sin(math.Sqrt(math.Abs(x-(y+47))))
			return offset - (a + b)
		},
	}
}

// Mixed is a separable quadratic over integer and continuous variables: the
// first half of the vector is integer-valued on [-10, 10] with the optimum at
// 3, the rest continuous on [-5, 5] with the optimum at 1.5.
func Mixed(nvars int) Problem {
	nints := nvars / 2
	low := make([]float64, nvars)
	high := make([]float64, nvars)
	for i := range low {
		if i < nints {
			low[i], high[i] = -10, 10
		} else {
			low[i], high[i] = -5, 5
		}
	}
	offset := 200.0*float64(nvars) + 1.0
	return Problem{
		Name:    "mixed",
		NVars:   nvars,
		NInts:   nints,
		Low:     low,
		High:    high,
		Optimum: offset,
		Criterion: func(params []float64, _ int) float64 {
			var sum float64
			for i, v := range params {
				target := 1.5
				if i < nints {
					target = 3
				}
				d := v - target
				sum += d * d
			}
			return offset - sum
		},
	}
}

// Gated wraps the sphere with a feasibility gate on the trial threshold: any
// evaluation whose minTrades exceeds capacity is reported as unusable. This
// exercises the optimizer's adaptive threshold relaxation.
func Gated(nvars, capacity int) Problem {
	p := Sphere(nvars)
	inner := p.Criterion
	p.Name = "gated"
	p.Criterion = func(params []float64, minTrades int) float64 {
		if minTrades > capacity {
			return 0
		}
		return inner(params, minTrades)
	}
	return p
}

// builders maps problem names to their constructors. Eggholder is fixed at
// two variables and rejects other dimensions.
var builders = map[string]func(nvars int) (Problem, error){
	"sphere": func(nvars int) (Problem, error) {
		return Sphere(nvars), nil
	},
	"rastrigin": func(nvars int) (Problem, error) {
		return Rastrigin(nvars), nil
	},
	"eggholder": func(nvars int) (Problem, error) {
		if nvars != 2 {
			return Problem{}, fmt.Errorf("eggholder is two-dimensional, got nvars=%d", nvars)
		}
		return Eggholder(), nil
	},
	"mixed": func(nvars int) (Problem, error) {
		return Mixed(nvars), nil
	},
}

// Lookup builds the named problem at the requested dimensionality.
func Lookup(name string, nvars int) (Problem, error) {
	build, ok := builders[name]
	if !ok {
		return Problem{}, fmt.Errorf("unknown problem: %q (have %v)", name, Names())
	}
	if nvars < 1 {
		return Problem{}, fmt.Errorf("nvars must be positive, got %d", nvars)
	}
	return build(nvars)
}

// Names lists the available problems, sorted.
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func uniformBounds(n int, v float64) []float64 {
	b := make([]float64, n)
	for i := range b {
		b[i] = v
	}
	return b
}
