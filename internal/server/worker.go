package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/diffevolve/internal/fit"
	"github.com/cwbudde/diffevolve/internal/opt"
	"github.com/cwbudde/diffevolve/internal/report"
	"github.com/cwbudde/diffevolve/internal/store"
	"github.com/cwbudde/diffevolve/internal/univar"
)

// runJob executes an optimization job in the background. If runStore is not
// nil, the best-so-far record is saved when the run completes and, when the
// job has a CheckpointInterval, periodically while it runs.
//
// The optimizer itself is synchronous and uninterruptible; cancellation is
// honored at the boundaries, before the run starts and per-generation through
// the progress callback's job-state updates.
func runJob(ctx context.Context, jm *JobManager, runStore store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	})
	if err != nil {
		return err
	}

	slog.Info("Starting job", "job_id", jobID, "problem", job.Config.Problem, "nvars", job.Config.NVars)

	problem, err := fit.Lookup(job.Config.Problem, job.Config.NVars)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	var trace *store.TraceWriter
	var traceDir string
	if fsStore, ok := runStore.(*store.FSStore); ok {
		traceDir = fsStore.BaseDir()
		trace, err = store.NewTraceWriter(traceDir, jobID, false)
		if err != nil {
			slog.Warn("Failed to open trace writer", "job_id", jobID, "error", err)
			trace = nil
		}
	}
	defer func() {
		if trace != nil {
			trace.Close()
		}
	}()

	// Check for cancellation before starting the expensive run
	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	start := time.Now()

	// Periodic checkpointing while the run is in flight. The done channel
	// belongs to whoever started the monitor; it is closed exactly once,
	// after the run.
	checkpointing := runStore != nil && job.Config.CheckpointInterval > 0
	checkpointDone := make(chan struct{})
	if checkpointing {
		go monitorCheckpoints(ctx, jm, runStore, jobID, checkpointDone)
	}

	nints := job.Config.NInts
	if nints == 0 {
		nints = problem.NInts
	}

	cfg := opt.Config{
		Criterion:  problem.Criterion,
		NVars:      problem.NVars,
		NInts:      nints,
		PopSize:    job.Config.PopSize,
		OverInit:   job.Config.OverInit,
		MinTrades:  job.Config.MinTrades,
		MaxEvals:   job.Config.MaxEvals,
		MaxBadGen:  job.Config.MaxBadGen,
		MutateDev:  job.Config.MutateDev,
		PCross:     job.Config.PCross,
		PClimb:     job.Config.PClimb,
		LowBounds:  problem.Low,
		HighBounds: problem.High,
		Seed:       job.Config.Seed,
		Line:       univar.NewSearcher(),
		Reporter:   report.New(),
		OnProgress: func(p opt.Progress) {
			jm.UpdateJob(jobID, func(j *Job) {
				j.BestFitness = p.BestFitness
				j.BestParams = p.BestParams
				j.Generations = p.Generation
				j.Evals = p.Evals
			})
			jm.broadcaster.Broadcast(ProgressEvent{
				JobID:       jobID,
				State:       StateRunning,
				Generation:  p.Generation,
				BestFitness: p.BestFitness,
				Evals:       p.Evals,
				EPS:         float64(p.Evals) / time.Since(start).Seconds(),
				Timestamp:   time.Now(),
			})
			if trace != nil {
				trace.Write(store.TraceEntry{
					Generation:  p.Generation,
					BestFitness: p.BestFitness,
					Evals:       p.Evals,
					Timestamp:   time.Now(),
				})
			}
		},
	}

	result, err := opt.Run(cfg)
	if checkpointing {
		close(checkpointDone)
	}
	if err != nil {
		markJobFailed(jm, jobID, err)
		// A failed run leaves no partial trace behind.
		if trace != nil {
			trace.Close()
			trace = nil
			if derr := store.DeleteTrace(traceDir, jobID); derr != nil {
				slog.Warn("Failed to delete trace", "job_id", jobID, "error", derr)
			}
		}
		return err
	}

	elapsed := time.Since(start)

	// A cancel that arrived while the optimizer was running lands here.
	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.BestParams = result.Params
		j.BestFitness = result.Fitness
		j.Generations = result.Generations
		j.Evals = result.Evals
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	if result.ReportErr != nil {
		slog.Warn("Correlation report failed", "job_id", jobID, "error", result.ReportErr)
	}

	if runStore != nil {
		record := store.NewRunRecord(jobID, result.Params, result.Fitness,
			result.Generations, result.Evals, job.Config)
		if err := runStore.SaveRecord(jobID, record); err != nil {
			slog.Warn("Failed to save run record", "job_id", jobID, "error", err)
		}
	}
	if trace != nil {
		if err := trace.Flush(); err != nil {
			slog.Warn("Failed to flush trace", "job_id", jobID, "error", err)
		}
	}

	eps := float64(result.Evals) / elapsed.Seconds()

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", elapsed,
		"best_fitness", result.Fitness,
		"generations", result.Generations,
		"evals", result.Evals,
		"evals_per_second", eps,
		"init_aborted", result.InitAborted,
	)

	// Broadcast final completion event
	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:       jobID,
		State:       StateCompleted,
		Generation:  result.Generations,
		BestFitness: result.Fitness,
		Evals:       result.Evals,
		EPS:         eps,
		Timestamp:   time.Now(),
	})

	return nil
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)
}

// monitorCheckpoints periodically saves the best-so-far record while a job
// runs.
func monitorCheckpoints(ctx context.Context, jm *JobManager, runStore store.Store, jobID string, done chan struct{}) {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return
	}

	interval := time.Duration(job.Config.CheckpointInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := saveCheckpoint(jm, runStore, jobID); err != nil {
				slog.Error("Failed to save checkpoint", "job_id", jobID, "error", err)
			}
		}
	}
}

// saveCheckpoint persists the job's current best as a run record.
func saveCheckpoint(jm *JobManager, runStore store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if len(job.BestParams) == 0 {
		slog.Debug("Skipping checkpoint, no best params yet", "job_id", jobID)
		return nil
	}

	record := store.NewRunRecord(jobID, job.BestParams, job.BestFitness,
		job.Generations, job.Evals, job.Config)
	if err := runStore.SaveRecord(jobID, record); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	slog.Info("Checkpoint saved",
		"job_id", jobID,
		"generation", job.Generations,
		"best_fitness", job.BestFitness,
	)
	return nil
}
