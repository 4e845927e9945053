package server

import (
	"context"
	"errors"
	"testing"

	"github.com/cwbudde/diffevolve/internal/store"
)

func TestRunJob_Success(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testJobConfig())

	if err := runJob(context.Background(), jm, nil, job.ID); err != nil {
		t.Errorf("runJob should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCompleted {
		t.Errorf("Job should be completed, got %s", updated.State)
	}

	if updated.BestFitness <= 0 {
		t.Error("BestFitness should be set to a usable value")
	}

	if len(updated.BestParams) != 2 {
		t.Errorf("Expected 2 params, got %d", len(updated.BestParams))
	}

	if updated.Generations == 0 || updated.Evals == 0 {
		t.Errorf("Run counters should be set: %d generations, %d evals",
			updated.Generations, updated.Evals)
	}

	if updated.EndTime == nil {
		t.Error("EndTime should be set")
	}
}

func TestRunJob_NoStore(t *testing.T) {
	// The default server path runs without persistence and without a
	// checkpoint monitor; the run must complete cleanly end to end.
	jm := NewJobManager()
	job := jm.CreateJob(testJobConfig())

	if err := runJob(context.Background(), jm, nil, job.ID); err != nil {
		t.Fatalf("runJob without a store should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCompleted {
		t.Errorf("Job should be completed, got %s", updated.State)
	}

	// A second job through the same manager exercises the path again.
	job2 := jm.CreateJob(testJobConfig())
	if err := runJob(context.Background(), jm, nil, job2.ID); err != nil {
		t.Fatalf("Second run without a store should succeed: %v", err)
	}
}

func TestRunJob_WithCheckpointInterval(t *testing.T) {
	tmpDir := t.TempDir()
	runStore, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatal(err)
	}

	jm := NewJobManager()
	config := testJobConfig()
	config.CheckpointInterval = 1
	job := jm.CreateJob(config)

	if err := runJob(context.Background(), jm, runStore, job.ID); err != nil {
		t.Fatalf("runJob with checkpointing should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCompleted {
		t.Errorf("Job should be completed, got %s", updated.State)
	}
	// The final record is saved regardless of whether a periodic tick fired.
	if _, err := runStore.LoadRecord(job.ID); err != nil {
		t.Errorf("Expected a persisted record: %v", err)
	}
}

func TestRunJob_FailedRunDropsTrace(t *testing.T) {
	tmpDir := t.TempDir()
	runStore, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatal(err)
	}

	jm := NewJobManager()
	config := testJobConfig()
	config.PopSize = 2 // below the engine minimum of 4
	job := jm.CreateJob(config)

	if err := runJob(context.Background(), jm, runStore, job.ID); err == nil {
		t.Fatal("runJob should fail on an undersized population")
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateFailed {
		t.Errorf("Job should be failed, got %s", updated.State)
	}
	if _, err := store.NewTraceReader(tmpDir, job.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("A failed run should drop its partial trace, got %v", err)
	}
	if _, err := runStore.LoadRecord(job.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("No record should be saved for a failed run, got %v", err)
	}
}

func TestRunJob_UnknownProblem(t *testing.T) {
	jm := NewJobManager()
	config := testJobConfig()
	config.Problem = "nonesuch"
	job := jm.CreateJob(config)

	if err := runJob(context.Background(), jm, nil, job.ID); err == nil {
		t.Error("runJob should fail on an unknown problem")
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateFailed {
		t.Errorf("Job should be failed, got %s", updated.State)
	}
	if updated.Error == "" {
		t.Error("Error message should be recorded")
	}
}

func TestRunJob_MissingJob(t *testing.T) {
	jm := NewJobManager()
	if err := runJob(context.Background(), jm, nil, "no-such-id"); err == nil {
		t.Error("runJob should fail for an unknown job ID")
	}
}

func TestRunJob_CancelledBeforeStart(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testJobConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runJob(ctx, jm, nil, job.ID)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCancelled {
		t.Errorf("Job should be cancelled, got %s", updated.State)
	}
}

func TestRunJob_SavesRecordAndTrace(t *testing.T) {
	tmpDir := t.TempDir()
	runStore, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatal(err)
	}

	jm := NewJobManager()
	job := jm.CreateJob(testJobConfig())

	if err := runJob(context.Background(), jm, runStore, job.ID); err != nil {
		t.Fatalf("runJob failed: %v", err)
	}

	record, err := runStore.LoadRecord(job.ID)
	if err != nil {
		t.Fatalf("Expected a persisted record: %v", err)
	}
	if record.JobID != job.ID {
		t.Errorf("Record for wrong job: %s", record.JobID)
	}
	if record.BestFitness <= 0 || len(record.BestParams) != 2 {
		t.Errorf("Record payload wrong: %+v", record)
	}
	if err := record.Validate(); err != nil {
		t.Errorf("Persisted record should validate: %v", err)
	}

	reader, err := store.NewTraceReader(tmpDir, job.ID)
	if err != nil {
		t.Fatalf("Expected a trace: %v", err)
	}
	defer reader.Close()

	entries, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("Failed to read trace: %v", err)
	}
	updated, _ := jm.GetJob(job.ID)
	if len(entries) != updated.Generations {
		t.Errorf("Expected one trace entry per generation: %d vs %d",
			len(entries), updated.Generations)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].BestFitness < entries[i-1].BestFitness {
			t.Errorf("Trace best fitness regressed at entry %d", i)
		}
	}
}

func TestRunJob_BroadcastsProgress(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testJobConfig())

	if err := runJob(context.Background(), jm, nil, job.ID); err != nil {
		t.Fatalf("runJob failed: %v", err)
	}

	// A late subscriber is replayed the last event, which for a finished job
	// is the completion broadcast.
	events := jm.broadcaster.Subscribe(job.ID)
	defer jm.broadcaster.Unsubscribe(job.ID, events)

	select {
	case ev := <-events:
		if ev.JobID != job.ID {
			t.Errorf("Event for wrong job: %s", ev.JobID)
		}
		if ev.State != StateCompleted {
			t.Errorf("Expected the completion event, got state %s", ev.State)
		}
		if ev.Generation == 0 || ev.Evals == 0 {
			t.Errorf("Completion event should carry run counters: %+v", ev)
		}
	default:
		t.Error("Expected the cached final event on subscribe")
	}
}

func TestSaveCheckpoint_SkipsWithoutBest(t *testing.T) {
	tmpDir := t.TempDir()
	runStore, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatal(err)
	}

	jm := NewJobManager()
	job := jm.CreateJob(testJobConfig())

	// No best params yet: checkpoint is a silent no-op.
	if err := saveCheckpoint(jm, runStore, job.ID); err != nil {
		t.Errorf("Checkpoint without progress should not fail: %v", err)
	}
	if _, err := runStore.LoadRecord(job.ID); !errors.Is(err, store.ErrNotFound) {
		t.Error("No record should be written before the first best")
	}

	jm.UpdateJob(job.ID, func(j *Job) {
		j.BestParams = []float64{0.1, 0.2}
		j.BestFitness = 50
		j.Generations = 3
		j.Evals = 40
	})

	if err := saveCheckpoint(jm, runStore, job.ID); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
	record, err := runStore.LoadRecord(job.ID)
	if err != nil {
		t.Fatalf("Expected a checkpoint record: %v", err)
	}
	if record.BestFitness != 50 || record.Generations != 3 {
		t.Errorf("Checkpoint payload wrong: %+v", record)
	}
}
