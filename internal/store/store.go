package store

// Store defines the interface for run-record persistence.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return nil on success
//   - Return a NotFoundError when the record doesn't exist (Load/Delete)
//   - Wrap underlying errors with context via fmt.Errorf("context: %w", err)
type Store interface {
	// SaveRecord atomically saves the record for the given job, overwriting
	// any previous record. Implementations should use temp-file + rename so a
	// crash never leaves a corrupt record behind.
	SaveRecord(jobID string, record *RunRecord) error

	// LoadRecord retrieves the record for the given job.
	// Returns a NotFoundError when no record exists.
	LoadRecord(jobID string) (*RunRecord, error)

	// ListRecords returns metadata for all stored records; the slice may be
	// empty.
	ListRecords() ([]RecordInfo, error)

	// DeleteRecord removes the record and its artifacts (result.json,
	// trace.jsonl) for the given job. Returns a NotFoundError when no record
	// exists.
	DeleteRecord(jobID string) error
}

// ErrNotFound is the sentinel for errors.Is checks against missing records.
var ErrNotFound = &NotFoundError{}

// NotFoundError reports a missing run record.
type NotFoundError struct {
	JobID string
}

func (e *NotFoundError) Error() string {
	if e.JobID != "" {
		return "run record not found: " + e.JobID
	}
	return "run record not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
