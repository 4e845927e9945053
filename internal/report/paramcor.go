// Package report produces the post-run parameter correlation analysis over
// the final generation of an optimization.
package report

import (
	"fmt"
	"log/slog"
	"math"
)

// Correlations holds the analysis of one population snapshot.
type Correlations struct {
	// Params[i][j] is the Pearson correlation between parameters i and j.
	Params [][]float64 `json:"params"`

	// Fitness[i] is the correlation between parameter i and the fitness.
	Fitness []float64 `json:"fitness"`

	// Individuals is the population size the analysis was computed from.
	Individuals int `json:"individuals"`
}

// ParamCor implements the optimizer's Reporter contract. It computes pairwise
// parameter correlations and parameter-to-fitness correlations from the final
// generation, logs a summary, and keeps the last analysis for callers that
// want to persist it.
type ParamCor struct {
	last *Correlations
}

func New() *ParamCor {
	return &ParamCor{}
}

// Last returns the most recent analysis, or nil before the first Report.
func (p *ParamCor) Last() *Correlations {
	return p.last
}

// Report analyses the population. It fails on degenerate input: fewer than
// three individuals, or a population with no variance in any parameter.
func (p *ParamCor) Report(params [][]float64, fitness []float64) error {
	n := len(params)
	if n < 3 {
		return fmt.Errorf("correlation report needs at least 3 individuals, got %d", n)
	}
	if len(fitness) != n {
		return fmt.Errorf("fitness length %d does not match population size %d", len(fitness), n)
	}
	nvars := len(params[0])
	for i, row := range params {
		if len(row) != nvars {
			return fmt.Errorf("individual %d has %d parameters, expected %d", i, len(row), nvars)
		}
	}

	means := make([]float64, nvars)
	for _, row := range params {
		for j, v := range row {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= float64(n)
	}

	sd := make([]float64, nvars)
	anyVariance := false
	for j := 0; j < nvars; j++ {
		var ss float64
		for _, row := range params {
			d := row[j] - means[j]
			ss += d * d
		}
		sd[j] = math.Sqrt(ss / float64(n))
		if sd[j] > 0 {
			anyVariance = true
		}
	}
	if !anyVariance {
		return fmt.Errorf("population is fully converged: no parameter variance to correlate")
	}

	cor := &Correlations{
		Params:      make([][]float64, nvars),
		Fitness:     make([]float64, nvars),
		Individuals: n,
	}
	for i := range cor.Params {
		cor.Params[i] = make([]float64, nvars)
	}

	for i := 0; i < nvars; i++ {
		cor.Params[i][i] = 1
		for j := i + 1; j < nvars; j++ {
			r := pearson(column(params, i), column(params, j))
			cor.Params[i][j] = r
			cor.Params[j][i] = r
		}
		cor.Fitness[i] = pearson(column(params, i), fitness)
	}

	p.last = cor

	// Log the strongest inter-parameter correlation as the headline; heavily
	// correlated parameters mean the criterion cannot separate them.
	bi, bj, br := 0, 0, 0.0
	for i := 0; i < nvars; i++ {
		for j := i + 1; j < nvars; j++ {
			if math.Abs(cor.Params[i][j]) > math.Abs(br) {
				bi, bj, br = i, j, cor.Params[i][j]
			}
		}
	}
	slog.Info("Parameter correlation report",
		"individuals", n,
		"nvars", nvars,
		"max_pair", fmt.Sprintf("%d/%d", bi, bj),
		"max_pair_r", br,
	)
	for i, r := range cor.Fitness {
		slog.Debug("Parameter-fitness correlation", "param", i, "r", r)
	}

	return nil
}

func column(rows [][]float64, j int) []float64 {
	col := make([]float64, len(rows))
	for i, row := range rows {
		col[i] = row[j]
	}
	return col
}

// pearson returns the sample correlation of a and b, or 0 when either side
// has no variance.
func pearson(a, b []float64) float64 {
	n := float64(len(a))
	var ma, mb float64
	for i := range a {
		ma += a[i]
		mb += b[i]
	}
	ma /= n
	mb /= n

	var sab, saa, sbb float64
	for i := range a {
		da := a[i] - ma
		db := b[i] - mb
		sab += da * db
		saa += da * da
		sbb += db * db
	}
	if saa == 0 || sbb == 0 {
		return 0
	}
	return sab / math.Sqrt(saa*sbb)
}
