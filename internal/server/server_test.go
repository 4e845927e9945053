package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cwbudde/diffevolve/internal/store"
)

func postJob(t *testing.T, s *Server, config JobConfig) *Job {
	t.Helper()

	body, err := json.Marshal(config)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleJobs(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var job Job
	if err := json.NewDecoder(rec.Body).Decode(&job); err != nil {
		t.Fatalf("Failed to decode job: %v", err)
	}
	return &job
}

// waitForState polls until the job reaches a terminal state.
func waitForState(t *testing.T, s *Server, jobID string, want JobState) *Job {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, exists := s.jobManager.GetJob(jobID)
		if !exists {
			t.Fatalf("Job %s disappeared", jobID)
		}
		if job.State == want {
			return job
		}
		if job.State == StateFailed && want != StateFailed {
			t.Fatalf("Job failed: %s", job.Error)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Job %s never reached state %s", jobID, want)
	return nil
}

func TestServer_CreateJob(t *testing.T) {
	s := NewServer(":8080", nil)

	job := postJob(t, s, testJobConfig())

	if job.ID == "" {
		t.Error("Job ID should be assigned")
	}
	if job.Config.Problem != "sphere" {
		t.Errorf("Config not echoed: %+v", job.Config)
	}

	completed := waitForState(t, s, job.ID, StateCompleted)
	if completed.BestFitness <= 0 {
		t.Errorf("Expected a usable best, got %g", completed.BestFitness)
	}
}

func TestServer_CreateJobFillsDefaults(t *testing.T) {
	s := NewServer(":8080", nil)

	job := postJob(t, s, JobConfig{Problem: "sphere"})

	if job.Config.NVars != 2 {
		t.Errorf("Default nvars should be 2, got %d", job.Config.NVars)
	}
	if job.Config.PopSize != 20 {
		t.Errorf("Default popsize should be 10x nvars, got %d", job.Config.PopSize)
	}
	if job.Config.MinTrades != 1 || job.Config.MaxBadGen != 50 {
		t.Errorf("Defaults not applied: %+v", job.Config)
	}
	if job.Config.MutateDev != 0.8 || job.Config.PCross != 0.5 || job.Config.PClimb != 0.2 {
		t.Errorf("Rate defaults not applied: %+v", job.Config)
	}

	waitForState(t, s, job.ID, StateCompleted)
}

func TestServer_CreateJobRejectsBadRequests(t *testing.T) {
	s := NewServer(":8080", nil)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{not json"},
		{"missing problem", "{}"},
		{"unknown problem", `{"problem":"nonesuch"}`},
		{"wrong dimension", `{"problem":"eggholder","nvars":5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewReader([]byte(tt.body)))
			rec := httptest.NewRecorder()
			s.handleJobs(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestServer_ListJobs(t *testing.T) {
	s := NewServer(":8080", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	rec := httptest.NewRecorder()
	s.handleJobs(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var jobs []Job
	if err := json.NewDecoder(rec.Body).Decode(&jobs); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("Expected no jobs, got %d", len(jobs))
	}

	created := postJob(t, s, testJobConfig())
	waitForState(t, s, created.ID, StateCompleted)

	rec = httptest.NewRecorder()
	s.handleJobs(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))
	if err := json.NewDecoder(rec.Body).Decode(&jobs); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != created.ID {
		t.Errorf("Expected the created job, got %+v", jobs)
	}
}

func TestServer_JobStatus(t *testing.T) {
	s := NewServer(":8080", nil)

	job := postJob(t, s, testJobConfig())
	waitForState(t, s, job.ID, StateCompleted)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID+"/status", nil)
	rec := httptest.NewRecorder()
	s.handleJobsWithID(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var status map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if status["id"] != job.ID {
		t.Errorf("Wrong job in status: %v", status["id"])
	}
	if status["state"] != string(StateCompleted) {
		t.Errorf("Expected completed, got %v", status["state"])
	}
	if status["bestFitness"].(float64) <= 0 {
		t.Errorf("Expected a positive best fitness, got %v", status["bestFitness"])
	}
}

func TestServer_JobStatusNotFound(t *testing.T) {
	s := NewServer(":8080", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/unknown-id", nil)
	rec := httptest.NewRecorder()
	s.handleJobsWithID(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestServer_JobResult(t *testing.T) {
	s := NewServer(":8080", nil)

	job := postJob(t, s, testJobConfig())
	waitForState(t, s, job.ID, StateCompleted)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID+"/result", nil)
	rec := httptest.NewRecorder()
	s.handleJobsWithID(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	params, ok := result["bestParams"].([]interface{})
	if !ok || len(params) != 2 {
		t.Errorf("Expected 2 best params, got %v", result["bestParams"])
	}
}

func TestServer_JobTrace(t *testing.T) {
	tmpDir := t.TempDir()
	runStore, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	s := NewServer(":8080", runStore)

	job := postJob(t, s, testJobConfig())
	waitForState(t, s, job.ID, StateCompleted)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID+"/trace", nil)
	rec := httptest.NewRecorder()
	s.handleJobsWithID(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var entries []store.TraceEntry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatalf("Failed to decode trace: %v", err)
	}
	if len(entries) == 0 {
		t.Error("Expected trace entries")
	}
}

func TestServer_JobTraceWithoutPersistence(t *testing.T) {
	s := NewServer(":8080", nil)

	job := postJob(t, s, testJobConfig())
	waitForState(t, s, job.ID, StateCompleted)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID+"/trace", nil)
	rec := httptest.NewRecorder()
	s.handleJobsWithID(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 without a store, got %d", rec.Code)
	}
}

func TestServer_CancelJob(t *testing.T) {
	s := NewServer(":8080", nil)

	job := postJob(t, s, testJobConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/"+job.ID+"/cancel", nil)
	rec := httptest.NewRecorder()
	s.handleJobsWithID(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}

	// GET on the cancel endpoint is rejected.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID+"/cancel", nil)
	rec = httptest.NewRecorder()
	s.handleJobsWithID(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET cancel, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/jobs/unknown/cancel", nil)
	rec = httptest.NewRecorder()
	s.handleJobsWithID(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown job, got %d", rec.Code)
	}
}

func TestServer_Problems(t *testing.T) {
	s := NewServer(":8080", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/problems", nil)
	rec := httptest.NewRecorder()
	s.handleProblems(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var names []string
	if err := json.NewDecoder(rec.Body).Decode(&names); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(names) == 0 {
		t.Error("Expected a non-empty problem catalog")
	}

	rec = httptest.NewRecorder()
	s.handleProblems(rec, httptest.NewRequest(http.MethodPost, "/api/v1/problems", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}
