package jobstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"graph-ingestion/internal/domain"
	"graph-ingestion/internal/domain/model"
	"graph-ingestion/internal/domain/ports/repository"
	"graph-ingestion/internal/infra/metrics"
)

var _ repository.JobRepository = (*Store)(nil)

// Store is a crash-durable job queue backed by the filesystem: one
// directory per lifecycle state, a payload file and a status file per job
// (plus an optional retry-metadata file), moved together between
// directories. Atomic rename is the only concurrency primitive; two
// processes racing to claim the same job resolve the race through the
// rename failing for the loser.
type Store struct {
	base  string
	paths map[model.JobStatus]string
	now   func() time.Time
	log   *zerolog.Logger
}

type retryRecord struct {
	RetryCount  int       `json:"retry_count"`
	LastFailure string    `json:"last_failure"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func NewStore(base string, logger *zerolog.Logger) (*Store, error) {
	s := &Store{
		base:  base,
		paths: make(map[model.JobStatus]string, len(model.AllJobStatuses)),
		now:   time.Now,
		log:   logger,
	}
	for _, st := range model.AllJobStatuses {
		dir := filepath.Join(base, string(st))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create job directory %s: %w", dir, err)
		}
		s.paths[st] = dir
	}
	logger.Info().Str("path", base).Msg("job queue directories initialized")
	return s, nil
}

func (s *Store) payloadPath(id string, st model.JobStatus) string {
	return filepath.Join(s.paths[st], id+".json")
}

func (s *Store) statusPath(id string, st model.JobStatus) string {
	return filepath.Join(s.paths[st], id+".status.json")
}

func (s *Store) retryPath(id string, st model.JobStatus) string {
	return filepath.Join(s.paths[st], id+".retry.json")
}

// findState locates which lifecycle directory currently holds the job.
func (s *Store) findState(id string) (model.JobStatus, bool) {
	for _, st := range model.AllJobStatuses {
		if _, err := os.Stat(s.statusPath(id, st)); err == nil {
			return st, true
		}
	}
	return "", false
}

func (s *Store) readStatus(id string, st model.JobStatus) (*model.IngestionJob, error) {
	b, err := os.ReadFile(s.statusPath(id, st))
	if err != nil {
		return nil, err
	}
	var job model.IngestionJob
	if err := json.Unmarshal(b, &job); err != nil {
		return nil, fmt.Errorf("parse status record for %s: %w", id, err)
	}
	return &job, nil
}

// writeJSON writes through a temp file and renames it into place so a
// crash never leaves a half-written record.
func (s *Store) writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Store) Submit(jobID string, payload []byte) error {
	if jobID == "" {
		return fmt.Errorf("%w: empty job id", domain.ErrInvalidArgument)
	}
	if _, found := s.findState(jobID); found {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateJob, jobID)
	}

	if err := os.WriteFile(s.payloadPath(jobID, model.JobStatusPending), payload, 0o644); err != nil {
		return fmt.Errorf("write payload for %s: %w", jobID, err)
	}
	now := s.now().UTC()
	job := &model.IngestionJob{
		JobID:       jobID,
		Status:      model.JobStatusPending,
		Message:     "Job is waiting in the queue.",
		SubmittedAt: now,
		LastUpdated: now,
	}
	if err := s.writeJSON(s.statusPath(jobID, model.JobStatusPending), job); err != nil {
		return fmt.Errorf("write status for %s: %w", jobID, err)
	}
	s.refreshPendingGauge()
	s.log.Info().Str("job_id", jobID).Msg("job submitted to pending queue")
	return nil
}

func (s *Store) GetStatus(jobID string) (*model.IngestionJob, error) {
	st, found := s.findState(jobID)
	if !found {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	return s.readStatus(jobID, st)
}

// ClaimNext picks the oldest pending job, preferring fresh jobs over
// retried ones so new work is not starved, and claims it by renaming the
// file pair into processing. A lost rename race simply moves on to the
// next candidate.
func (s *Store) ClaimNext() (*repository.ClaimedJob, error) {
	candidates, err := s.pendingCandidates()
	if err != nil {
		return nil, err
	}

	for _, job := range candidates {
		id := job.JobID
		if err := os.Rename(s.payloadPath(id, model.JobStatusPending), s.payloadPath(id, model.JobStatusProcessing)); err != nil {
			if os.IsNotExist(err) {
				// Another claimer won the race for this candidate.
				s.log.Warn().Str("job_id", id).Msg("job claimed by another worker, trying next")
				continue
			}
			return nil, fmt.Errorf("claim payload for %s: %w", id, err)
		}
		if err := os.Rename(s.statusPath(id, model.JobStatusPending), s.statusPath(id, model.JobStatusProcessing)); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("claim status for %s: %w", id, err)
		}
		s.moveRetryFile(id, model.JobStatusPending, model.JobStatusProcessing)

		job.Status = model.JobStatusProcessing
		job.Message = "Worker started processing job."
		job.LastUpdated = s.now().UTC()
		if err := s.writeJSON(s.statusPath(id, model.JobStatusProcessing), job); err != nil {
			return nil, fmt.Errorf("update claimed status for %s: %w", id, err)
		}

		payload, err := os.ReadFile(s.payloadPath(id, model.JobStatusProcessing))
		if err != nil {
			return nil, fmt.Errorf("read claimed payload for %s: %w", id, err)
		}
		s.refreshPendingGauge()
		s.log.Info().Str("job_id", id).Int("retry_count", job.RetryCount).Msg("job moved to processing")
		return &repository.ClaimedJob{JobID: id, Payload: payload, RetryCount: job.RetryCount}, nil
	}
	return nil, domain.ErrNoPendingJobs
}

// pendingCandidates lists pending status records ordered oldest first with
// retry-count-0 jobs ahead of retried ones.
func (s *Store) pendingCandidates() ([]*model.IngestionJob, error) {
	entries, err := os.ReadDir(s.paths[model.JobStatusPending])
	if err != nil {
		return nil, fmt.Errorf("scan pending queue: %w", err)
	}
	var jobs []*model.IngestionJob
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".status.json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".status.json")
		job, err := s.readStatus(id, model.JobStatusPending)
		if err != nil {
			s.log.Error().Err(err).Str("job_id", id).Msg("could not parse pending status record")
			continue
		}
		jobs = append(jobs, job)
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		fi, fj := jobs[i].RetryCount == 0, jobs[j].RetryCount == 0
		if fi != fj {
			return fi
		}
		return jobs[i].SubmittedAt.Before(jobs[j].SubmittedAt)
	})
	return jobs, nil
}

func (s *Store) UpdateStatus(jobID string, newState model.JobStatus, message string) error {
	current, found := s.findState(jobID)
	if !found {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	job, err := s.readStatus(jobID, current)
	if err != nil {
		return err
	}

	if current != newState {
		if err := s.movePair(jobID, current, newState); err != nil {
			return err
		}
	}

	job.Status = newState
	job.LastUpdated = s.now().UTC()
	if message != "" {
		job.Message = message
	}
	if newState == model.JobStatusCompleted {
		secs := job.LastUpdated.Sub(job.SubmittedAt).Seconds()
		job.ProcessingTimeSeconds = &secs
	}
	if err := s.writeJSON(s.statusPath(jobID, newState), job); err != nil {
		return fmt.Errorf("write status for %s: %w", jobID, err)
	}
	s.refreshPendingGauge()
	s.log.Info().Str("job_id", jobID).Str("status", string(newState)).Msg("job status updated")
	return nil
}

// RequeueForRetry puts a job back in pending after a content-level
// failure, carrying the incremented retry count and the failure reason so
// the next attempt escalates to the best model.
func (s *Store) RequeueForRetry(jobID string, newRetryCount int, reason string) error {
	current, found := s.findState(jobID)
	if !found {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	job, err := s.readStatus(jobID, current)
	if err != nil {
		return err
	}

	if current != model.JobStatusPending {
		if err := s.movePair(jobID, current, model.JobStatusPending); err != nil {
			return err
		}
	}

	now := s.now().UTC()
	job.Status = model.JobStatusPending
	job.Message = reason
	job.LastUpdated = now
	job.RetryCount = newRetryCount
	job.LastFailure = reason
	if err := s.writeJSON(s.statusPath(jobID, model.JobStatusPending), job); err != nil {
		return fmt.Errorf("write status for %s: %w", jobID, err)
	}
	rec := retryRecord{RetryCount: newRetryCount, LastFailure: reason, UpdatedAt: now}
	if err := s.writeJSON(s.retryPath(jobID, model.JobStatusPending), rec); err != nil {
		return fmt.Errorf("write retry record for %s: %w", jobID, err)
	}
	s.refreshPendingGauge()
	s.log.Warn().Str("job_id", jobID).Int("retry_count", newRetryCount).Str("reason", reason).Msg("job requeued for retry")
	return nil
}

func (s *Store) ListAll() ([]*model.IngestionJob, error) {
	var all []*model.IngestionJob
	for _, st := range model.AllJobStatuses {
		entries, err := os.ReadDir(s.paths[st])
		if err != nil {
			return nil, fmt.Errorf("scan %s queue: %w", st, err)
		}
		for _, e := range entries {
			if !strings.HasSuffix(e.Name(), ".status.json") {
				continue
			}
			id := strings.TrimSuffix(e.Name(), ".status.json")
			job, err := s.readStatus(id, st)
			if err != nil {
				s.log.Error().Err(err).Str("job_id", id).Msg("could not parse status record")
				continue
			}
			all = append(all, job)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].SubmittedAt.After(all[j].SubmittedAt)
	})
	return all, nil
}

// movePair renames the payload and status files (and the retry record when
// present) from one state directory to another. Each file moves with a
// single rename.
func (s *Store) movePair(id string, from, to model.JobStatus) error {
	if err := os.Rename(s.payloadPath(id, from), s.payloadPath(id, to)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("move payload for %s: %w", id, err)
	}
	if err := os.Rename(s.statusPath(id, from), s.statusPath(id, to)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("move status for %s: %w", id, err)
	}
	s.moveRetryFile(id, from, to)
	return nil
}

func (s *Store) moveRetryFile(id string, from, to model.JobStatus) {
	// The retry record is optional metadata; its absence is normal.
	_ = os.Rename(s.retryPath(id, from), s.retryPath(id, to))
}

func (s *Store) refreshPendingGauge() {
	entries, err := os.ReadDir(s.paths[model.JobStatusPending])
	if err != nil {
		return
	}
	n := 0
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".status.json") {
			n++
		}
	}
	metrics.SetPendingJobs(n)
}
