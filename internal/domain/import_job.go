package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of an import job.
type JobStatus string

// Job lifecycle: PENDING at enqueue, RUNNING once claimed by a worker,
// then exactly one of SUCCEEDED or FAILED. Terminal states never revert.
const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusFailed    JobStatus = "FAILED"
)

// ValidJobStatus reports whether s is a member of the status enum.
func ValidJobStatus(s JobStatus) bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusSucceeded, JobStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// RowError describes a single failed CSV row. Row-level failures never fail
// the job as a whole.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportJob is the status record of a CSV bulk import. It is created when the
// upload is accepted and mutated only by the worker that claims it.
type ImportJob struct {
	ID            uuid.UUID  `json:"job_id"`
	SubmittedByID uuid.UUID  `json:"submitted_by_id"`
	Status        JobStatus  `json:"status"`
	Succeeded     int        `json:"succeeded"`
	Failed        int        `json:"failed"`
	RowErrors     []RowError `json:"row_errors,omitempty"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewImportJob creates a pending import job for the given submitter.
func NewImportJob(submittedBy uuid.UUID) *ImportJob {
	now := time.Now().UTC()
	return &ImportJob{
		ID:            uuid.New(),
		SubmittedByID: submittedBy,
		Status:        JobStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
