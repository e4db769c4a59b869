package repository

import "graph-ingestion/internal/domain/model"

// ClaimedJob is what ClaimNext hands to the orchestrator.
type ClaimedJob struct {
	JobID      string
	Payload    []byte
	RetryCount int
}

// JobRepository is the port for the crash-durable job queue. A job's
// payload and status records live in exactly one lifecycle state at any
// instant; every transition moves them together atomically.
type JobRepository interface {
	// Submit persists a new pending job. domain.ErrDuplicateJob when the
	// ID exists in any state.
	Submit(jobID string, payload []byte) error

	// GetStatus finds the job's status record across all states.
	// domain.ErrJobNotFound when absent everywhere.
	GetStatus(jobID string) (*model.IngestionJob, error)

	// ClaimNext atomically moves the oldest pending job (fresh jobs
	// preferred over retried ones) to processing and returns it.
	// domain.ErrNoPendingJobs when the pending set is empty.
	ClaimNext() (*ClaimedJob, error)

	// UpdateStatus moves the job to newState (no-op move when already
	// there) and rewrites its status record.
	UpdateStatus(jobID string, newState model.JobStatus, message string) error

	// RequeueForRetry moves the job back to pending with an incremented
	// retry count and a recorded failure reason.
	RequeueForRetry(jobID string, newRetryCount int, reason string) error

	// ListAll returns every job across all states, newest first.
	ListAll() ([]*model.IngestionJob, error)
}
