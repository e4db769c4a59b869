package model

import "time"

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// AllJobStatuses lists every lifecycle state in a fixed order; the job
// store keeps one directory per entry.
var AllJobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusProcessing,
	JobStatusCompleted,
	JobStatusFailed,
}

// IngestionJob is the persisted status record of one unit of ingestion
// work. The payload itself lives in a sibling file and stays opaque to the
// queue.
type IngestionJob struct {
	JobID                 string    `json:"job_id"`
	Status                JobStatus `json:"status"`
	Message               string    `json:"message"`
	SubmittedAt           time.Time `json:"submitted_at"`
	LastUpdated           time.Time `json:"last_updated"`
	RetryCount            int       `json:"retry_count"`
	LastFailure           string    `json:"last_failure,omitempty"`
	ProcessingTimeSeconds *float64  `json:"processing_time_seconds,omitempty"`
}
