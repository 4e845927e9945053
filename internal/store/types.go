package store

import (
	"fmt"
	"time"
)

// JobConfig holds the optimizer settings for a job (persisted copy).
// Lives here rather than in the server package to avoid import cycles.
type JobConfig struct {
	Problem   string  `json:"problem"`
	NVars     int     `json:"nvars"`
	NInts     int     `json:"nints,omitempty"`
	PopSize   int     `json:"popSize"`
	OverInit  int     `json:"overInit,omitempty"`
	MinTrades int     `json:"minTrades"`
	MaxEvals  int     `json:"maxEvals"`
	MaxBadGen int     `json:"maxBadGen"`
	MutateDev float64 `json:"mutateDev"`
	PCross    float64 `json:"pcross"`
	PClimb    float64 `json:"pclimb"`
	Seed      int64   `json:"seed"`

	// CheckpointInterval is how often (seconds) a running job persists its
	// record; 0 disables periodic checkpointing.
	CheckpointInterval int `json:"checkpointInterval,omitempty"`
}

// RunRecord is the persisted state of an optimization run: the grand-best
// individual plus enough bookkeeping to inspect or rerun it. The optimizer's
// population is deliberately not saved; a rerun restarts from a fresh
// population (the grand best never gets worse, convergence may differ).
type RunRecord struct {
	JobID string `json:"jobId"`

	// BestParams and BestFitness are the grand-best individual so far.
	BestParams  []float64 `json:"bestParams"`
	BestFitness float64   `json:"bestFitness"`

	Generations int `json:"generations"`
	Evals       int `json:"evals"`

	Timestamp time.Time `json:"timestamp"`
	Config    JobConfig `json:"config"`
}

// RecordInfo is listing metadata without the parameter payload.
type RecordInfo struct {
	JobID       string    `json:"jobId"`
	BestFitness float64   `json:"bestFitness"`
	Generations int       `json:"generations"`
	Timestamp   time.Time `json:"timestamp"`
	Problem     string    `json:"problem"`
	NVars       int       `json:"nvars"`
}

// NewRunRecord captures the current best of a job into a persistable record.
func NewRunRecord(jobID string, bestParams []float64, bestFitness float64, generations, evals int, config JobConfig) *RunRecord {
	return &RunRecord{
		JobID:       jobID,
		BestParams:  bestParams,
		BestFitness: bestFitness,
		Generations: generations,
		Evals:       evals,
		Timestamp:   time.Now(),
		Config:      config,
	}
}

// ToInfo converts a full record to its listing metadata.
func (r *RunRecord) ToInfo() RecordInfo {
	return RecordInfo{
		JobID:       r.JobID,
		BestFitness: r.BestFitness,
		Generations: r.Generations,
		Timestamp:   r.Timestamp,
		Problem:     r.Config.Problem,
		NVars:       r.Config.NVars,
	}
}

// Validate checks that a record is internally consistent before saving or
// after loading.
func (r *RunRecord) Validate() error {
	if r.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if len(r.BestParams) == 0 {
		return &ValidationError{Field: "BestParams", Reason: "cannot be empty"}
	}
	if r.Generations < 0 {
		return &ValidationError{Field: "Generations", Reason: "cannot be negative"}
	}
	if r.Evals < 0 {
		return &ValidationError{Field: "Evals", Reason: "cannot be negative"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if r.Config.Problem == "" {
		return &ValidationError{Field: "Config.Problem", Reason: "cannot be empty"}
	}
	if r.Config.NVars <= 0 {
		return &ValidationError{Field: "Config.NVars", Reason: "must be positive"}
	}
	if r.Config.PopSize <= 0 {
		return &ValidationError{Field: "Config.PopSize", Reason: "must be positive"}
	}
	if len(r.BestParams) != r.Config.NVars {
		return &ValidationError{
			Field:  "BestParams",
			Reason: fmt.Sprintf("length mismatch: expected %d params, got %d", r.Config.NVars, len(r.BestParams)),
		}
	}
	return nil
}

// ValidationError represents a record validation failure.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
