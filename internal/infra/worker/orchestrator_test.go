package worker

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"graph-ingestion/internal/domain"
	"graph-ingestion/internal/domain/model"
	"graph-ingestion/internal/domain/ports/repository"
)

type statusChange struct {
	jobID   string
	state   model.JobStatus
	message string
}

type requeue struct {
	jobID      string
	retryCount int
	reason     string
}

type fakeStore struct {
	mu       sync.Mutex
	queue    []*repository.ClaimedJob
	updates  []statusChange
	requeues []requeue
}

func (f *fakeStore) Submit(string, []byte) error                     { return nil }
func (f *fakeStore) GetStatus(string) (*model.IngestionJob, error)   { return nil, domain.ErrJobNotFound }
func (f *fakeStore) ListAll() ([]*model.IngestionJob, error)         { return nil, nil }

func (f *fakeStore) ClaimNext() (*repository.ClaimedJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return nil, domain.ErrNoPendingJobs
	}
	job := f.queue[0]
	f.queue = f.queue[1:]
	return job, nil
}

func (f *fakeStore) UpdateStatus(jobID string, newState model.JobStatus, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, statusChange{jobID: jobID, state: newState, message: message})
	return nil
}

func (f *fakeStore) RequeueForRetry(jobID string, newRetryCount int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requeues = append(f.requeues, requeue{jobID: jobID, retryCount: newRetryCount, reason: reason})
	return nil
}

type fakeProcessor struct {
	fn    func(retryCount int) error
	calls int
}

func (f *fakeProcessor) Process(_ context.Context, _ []byte, retryCount int) error {
	f.calls++
	return f.fn(retryCount)
}

func newTestOrchestrator(store repository.JobRepository, proc *fakeProcessor, maxContentRetries int) *Orchestrator {
	logger := zerolog.Nop()
	o := NewOrchestrator(store, proc, time.Millisecond, 0, maxContentRetries, &logger)
	o.sleep = func(context.Context, time.Duration) {}
	return o
}

func TestProcessOneSuccessCompletesJob(t *testing.T) {
	store := &fakeStore{}
	proc := &fakeProcessor{fn: func(int) error { return nil }}
	o := newTestOrchestrator(store, proc, 2)

	o.processOne(context.Background(), &repository.ClaimedJob{JobID: "job-1", Payload: []byte(`{}`)})

	if len(store.updates) != 1 {
		t.Fatalf("updates = %v, want one", store.updates)
	}
	u := store.updates[0]
	if u.jobID != "job-1" || u.state != model.JobStatusCompleted {
		t.Fatalf("update = %+v, want job-1 completed", u)
	}
	if len(store.requeues) != 0 {
		t.Fatalf("requeues = %v, want none on success", store.requeues)
	}
}

func TestProcessOneContentFailureRequeuesWithEscalation(t *testing.T) {
	store := &fakeStore{}
	proc := &fakeProcessor{fn: func(int) error {
		return &domain.ContentValidationError{Reason: "no JSON object in output"}
	}}
	o := newTestOrchestrator(store, proc, 2)

	o.processOne(context.Background(), &repository.ClaimedJob{JobID: "job-1", Payload: []byte(`{}`)})

	if len(store.requeues) != 1 {
		t.Fatalf("requeues = %v, want one", store.requeues)
	}
	r := store.requeues[0]
	if r.jobID != "job-1" || r.retryCount != 1 {
		t.Fatalf("requeue = %+v, want job-1 with retry count 1", r)
	}
	if !strings.Contains(r.reason, "better model") || !strings.Contains(r.reason, "no JSON object in output") {
		t.Fatalf("requeue reason = %q, want escalation message with the failure reason", r.reason)
	}
	if len(store.updates) != 0 {
		t.Fatalf("updates = %v, want none while retries remain", store.updates)
	}
}

func TestProcessOneContentFailureExhaustsRetries(t *testing.T) {
	store := &fakeStore{}
	proc := &fakeProcessor{fn: func(int) error {
		return &domain.ContentValidationError{Reason: "still malformed"}
	}}
	o := newTestOrchestrator(store, proc, 2)

	// RetryCount 1 is the final allowed attempt with MaxContentRetries 2.
	o.processOne(context.Background(), &repository.ClaimedJob{JobID: "job-1", Payload: []byte(`{}`), RetryCount: 1})

	if len(store.requeues) != 0 {
		t.Fatalf("requeues = %v, want none past the retry budget", store.requeues)
	}
	if len(store.updates) != 1 {
		t.Fatalf("updates = %v, want one", store.updates)
	}
	u := store.updates[0]
	if u.state != model.JobStatusFailed {
		t.Fatalf("final state = %s, want failed", u.state)
	}
	if !strings.Contains(u.message, "Failed permanently after 2 attempts") || !strings.Contains(u.message, "still malformed") {
		t.Fatalf("failure message = %q", u.message)
	}
}

func TestProcessOneUnexpectedErrorFailsJob(t *testing.T) {
	store := &fakeStore{}
	proc := &fakeProcessor{fn: func(int) error {
		return &domain.AttemptsExhaustedError{Attempts: 5, LastErr: errors.New("503")}
	}}
	o := newTestOrchestrator(store, proc, 2)

	o.processOne(context.Background(), &repository.ClaimedJob{JobID: "job-1", Payload: []byte(`{}`)})

	if len(store.requeues) != 0 {
		t.Fatalf("requeues = %v, transport exhaustion must not requeue", store.requeues)
	}
	if len(store.updates) != 1 || store.updates[0].state != model.JobStatusFailed {
		t.Fatalf("updates = %v, want a single failed transition", store.updates)
	}
}

func TestProcessOneLogsCarryJobID(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	store := &fakeStore{}
	proc := &fakeProcessor{fn: func(int) error { return nil }}
	o := NewOrchestrator(store, proc, time.Millisecond, 0, 2, &logger)
	o.sleep = func(context.Context, time.Duration) {}

	o.processOne(context.Background(), &repository.ClaimedJob{JobID: "job-1", Payload: []byte(`{}`), RetryCount: 1})

	out := buf.String()
	if !strings.Contains(out, `"job_id":"job-1"`) {
		t.Fatalf("job_id missing from processing logs: %s", out)
	}
	if !strings.Contains(out, `"retry_count":1`) {
		t.Fatalf("retry_count missing from processing logs: %s", out)
	}
}

func TestRunDrainsQueueAndStopsOnCancel(t *testing.T) {
	store := &fakeStore{
		queue: []*repository.ClaimedJob{
			{JobID: "job-1", Payload: []byte(`{}`)},
			{JobID: "job-2", Payload: []byte(`{}`)},
		},
	}
	proc := &fakeProcessor{fn: func(int) error { return nil }}
	logger := zerolog.Nop()
	o := NewOrchestrator(store, proc, time.Millisecond, 0, 2, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		o.Run(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for {
		store.mu.Lock()
		n := len(store.updates)
		store.mu.Unlock()
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("orchestrator did not drain the queue")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("orchestrator did not stop after cancel")
	}
	if proc.calls != 2 {
		t.Fatalf("processor calls = %d, want 2", proc.calls)
	}
}
