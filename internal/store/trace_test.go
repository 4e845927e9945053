package store

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTraceWriter_WriteAndRead(t *testing.T) {
	tmpDir := t.TempDir()
	jobID := "test-job-123"

	writer, err := NewTraceWriter(tmpDir, jobID, false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}

	entries := []TraceEntry{
		{Generation: 1, BestFitness: 40.2, Evals: 20, Timestamp: time.Now()},
		{Generation: 2, BestFitness: 44.8, Evals: 30, Timestamp: time.Now()},
		{Generation: 3, BestFitness: 49.1, Evals: 40, Timestamp: time.Now(), Params: []float64{1, 2, 3}},
		{Generation: 4, BestFitness: 50.3, Evals: 50, Timestamp: time.Now()},
	}

	for _, entry := range entries {
		if err := writer.Write(entry); err != nil {
			t.Fatalf("Failed to write entry: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	reader, err := NewTraceReader(tmpDir, jobID)
	if err != nil {
		t.Fatalf("Failed to create trace reader: %v", err)
	}
	defer reader.Close()

	got, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("Failed to read entries: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("Expected %d entries, got %d", len(entries), len(got))
	}
	for i, entry := range got {
		if entry.Generation != entries[i].Generation {
			t.Errorf("Entry %d: generation %d, want %d", i, entry.Generation, entries[i].Generation)
		}
		if entry.BestFitness != entries[i].BestFitness {
			t.Errorf("Entry %d: fitness %g, want %g", i, entry.BestFitness, entries[i].BestFitness)
		}
		if entry.Evals != entries[i].Evals {
			t.Errorf("Entry %d: evals %d, want %d", i, entry.Evals, entries[i].Evals)
		}
	}
	if len(got[2].Params) != 3 {
		t.Errorf("Entry 2 should carry params, got %v", got[2].Params)
	}
	if got[0].Params != nil {
		t.Errorf("Entry 0 should omit params, got %v", got[0].Params)
	}
}

func TestTraceWriter_AppendMode(t *testing.T) {
	tmpDir := t.TempDir()
	jobID := "append-job"

	writer, err := NewTraceWriter(tmpDir, jobID, false)
	if err != nil {
		t.Fatal(err)
	}
	writer.Write(TraceEntry{Generation: 1, BestFitness: 1, Timestamp: time.Now()})
	writer.Close()

	writer, err = NewTraceWriter(tmpDir, jobID, true)
	if err != nil {
		t.Fatal(err)
	}
	writer.Write(TraceEntry{Generation: 2, BestFitness: 2, Timestamp: time.Now()})
	writer.Close()

	reader, err := NewTraceReader(tmpDir, jobID)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	got, err := reader.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Generation != 1 || got[1].Generation != 2 {
		t.Errorf("Append should preserve existing entries, got %+v", got)
	}
}

func TestTraceWriter_TruncateMode(t *testing.T) {
	tmpDir := t.TempDir()
	jobID := "truncate-job"

	writer, _ := NewTraceWriter(tmpDir, jobID, false)
	writer.Write(TraceEntry{Generation: 1, BestFitness: 1, Timestamp: time.Now()})
	writer.Close()

	writer, _ = NewTraceWriter(tmpDir, jobID, false)
	writer.Write(TraceEntry{Generation: 9, BestFitness: 9, Timestamp: time.Now()})
	writer.Close()

	reader, err := NewTraceReader(tmpDir, jobID)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	got, _ := reader.ReadAll()
	if len(got) != 1 || got[0].Generation != 9 {
		t.Errorf("Truncate should discard old entries, got %+v", got)
	}
}

func TestTraceWriter_FlushMakesEntriesVisible(t *testing.T) {
	tmpDir := t.TempDir()
	jobID := "flush-job"

	writer, err := NewTraceWriter(tmpDir, jobID, false)
	if err != nil {
		t.Fatal(err)
	}
	defer writer.Close()

	writer.Write(TraceEntry{Generation: 1, BestFitness: 3.5, Timestamp: time.Now()})
	if err := writer.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	reader, err := NewTraceReader(tmpDir, jobID)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	entry, err := reader.Read()
	if err != nil {
		t.Fatalf("Expected a flushed entry: %v", err)
	}
	if entry.Generation != 1 || entry.BestFitness != 3.5 {
		t.Errorf("Unexpected entry: %+v", entry)
	}
	if _, err := reader.Read(); err != io.EOF {
		t.Errorf("Expected EOF, got %v", err)
	}
}

func TestTraceReader_MissingTrace(t *testing.T) {
	_, err := NewTraceReader(t.TempDir(), "no-such-job")
	if err == nil {
		t.Fatal("Expected an error")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDeleteTrace(t *testing.T) {
	tmpDir := t.TempDir()
	jobID := "delete-job"

	writer, _ := NewTraceWriter(tmpDir, jobID, false)
	writer.Write(TraceEntry{Generation: 1, Timestamp: time.Now()})
	writer.Close()

	if err := DeleteTrace(tmpDir, jobID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	path := filepath.Join(tmpDir, "jobs", jobID, "trace.jsonl")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Trace file should be gone")
	}

	// Deleting a missing trace is not an error.
	if err := DeleteTrace(tmpDir, "never-existed"); err != nil {
		t.Errorf("Missing trace should delete cleanly: %v", err)
	}
}
