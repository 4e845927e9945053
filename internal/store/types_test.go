package store

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func testConfig() JobConfig {
	return JobConfig{
		Problem:   "sphere",
		NVars:     3,
		PopSize:   20,
		MinTrades: 1,
		MaxEvals:  100000,
		MaxBadGen: 50,
		MutateDev: 0.8,
		PCross:    0.5,
		PClimb:    0.2,
		Seed:      42,
	}
}

func TestRunRecord_JSONSerialization(t *testing.T) {
	original := &RunRecord{
		JobID:       "test-job-123",
		BestParams:  []float64{0.1, -0.2, 0.05},
		BestFitness: 75.8,
		Generations: 120,
		Evals:       2420,
		Timestamp:   time.Date(2026, 8, 30, 10, 30, 0, 0, time.UTC),
		Config:      testConfig(),
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}

	var restored RunRecord
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}

	if restored.JobID != original.JobID {
		t.Errorf("JobID mismatch: %s vs %s", restored.JobID, original.JobID)
	}
	if restored.BestFitness != original.BestFitness {
		t.Errorf("BestFitness mismatch: %g vs %g", restored.BestFitness, original.BestFitness)
	}
	if restored.Generations != original.Generations || restored.Evals != original.Evals {
		t.Errorf("Counters mismatch: %+v", restored)
	}
	if len(restored.BestParams) != 3 {
		t.Errorf("Expected 3 params, got %d", len(restored.BestParams))
	}
	if restored.Config.Problem != "sphere" || restored.Config.PopSize != 20 {
		t.Errorf("Config not restored: %+v", restored.Config)
	}
}

func TestNewRunRecord(t *testing.T) {
	record := NewRunRecord("job-1", []float64{1, 2, 3}, 50.5, 10, 220, testConfig())

	if record.JobID != "job-1" {
		t.Errorf("Expected job-1, got %s", record.JobID)
	}
	if record.BestFitness != 50.5 || record.Generations != 10 || record.Evals != 220 {
		t.Errorf("Fields not set: %+v", record)
	}
	if record.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
	if err := record.Validate(); err != nil {
		t.Errorf("Fresh record should validate: %v", err)
	}
}

func TestRunRecord_ToInfo(t *testing.T) {
	record := NewRunRecord("job-2", []float64{1, 2, 3}, 60.1, 33, 700, testConfig())
	info := record.ToInfo()

	if info.JobID != "job-2" || info.BestFitness != 60.1 || info.Generations != 33 {
		t.Errorf("Info fields wrong: %+v", info)
	}
	if info.Problem != "sphere" || info.NVars != 3 {
		t.Errorf("Config metadata missing: %+v", info)
	}
}

func TestRunRecord_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RunRecord)
	}{
		{"empty job ID", func(r *RunRecord) { r.JobID = "" }},
		{"no params", func(r *RunRecord) { r.BestParams = nil }},
		{"negative generations", func(r *RunRecord) { r.Generations = -1 }},
		{"negative evals", func(r *RunRecord) { r.Evals = -1 }},
		{"zero timestamp", func(r *RunRecord) { r.Timestamp = time.Time{} }},
		{"empty problem", func(r *RunRecord) { r.Config.Problem = "" }},
		{"zero nvars", func(r *RunRecord) { r.Config.NVars = 0 }},
		{"zero popsize", func(r *RunRecord) { r.Config.PopSize = 0 }},
		{"params length mismatch", func(r *RunRecord) { r.BestParams = []float64{1} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := NewRunRecord("job-v", []float64{1, 2, 3}, 1, 1, 1, testConfig())
			tt.mutate(record)

			err := record.Validate()
			if err == nil {
				t.Fatal("Expected a validation error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Expected a ValidationError, got %T", err)
			}
		})
	}
}

func TestNotFoundError_Is(t *testing.T) {
	err := &NotFoundError{JobID: "missing"}
	if !errors.Is(err, ErrNotFound) {
		t.Error("NotFoundError should match ErrNotFound")
	}
	if errors.Is(errors.New("other"), ErrNotFound) {
		t.Error("Unrelated errors should not match")
	}
}
