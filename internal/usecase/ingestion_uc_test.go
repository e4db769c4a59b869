package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"graph-ingestion/internal/domain"
	"graph-ingestion/internal/domain/model"
	"graph-ingestion/internal/domain/ports/repository"
)

type memStore struct {
	submitted map[string][]byte
	statuses  map[string]*model.IngestionJob
}

func newMemStore() *memStore {
	return &memStore{
		submitted: make(map[string][]byte),
		statuses:  make(map[string]*model.IngestionJob),
	}
}

func (m *memStore) Submit(jobID string, payload []byte) error {
	if _, ok := m.submitted[jobID]; ok {
		return domain.ErrDuplicateJob
	}
	m.submitted[jobID] = payload
	m.statuses[jobID] = &model.IngestionJob{JobID: jobID, Status: model.JobStatusPending}
	return nil
}

func (m *memStore) GetStatus(jobID string) (*model.IngestionJob, error) {
	job, ok := m.statuses[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return job, nil
}

func (m *memStore) ClaimNext() (*repository.ClaimedJob, error) {
	return nil, domain.ErrNoPendingJobs
}

func (m *memStore) UpdateStatus(string, model.JobStatus, string) error { return nil }
func (m *memStore) RequeueForRetry(string, int, string) error          { return nil }

func (m *memStore) ListAll() ([]*model.IngestionJob, error) {
	out := make([]*model.IngestionJob, 0, len(m.statuses))
	for _, j := range m.statuses {
		out = append(out, j)
	}
	return out, nil
}

func TestSubmitGeneratesIDAndPersists(t *testing.T) {
	logger := zerolog.Nop()
	store := newMemStore()
	uc := NewIngestionUseCase(store, &logger)

	jobID, err := uc.Submit(context.Background(), EpisodeRequest{Content: "episode body"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if jobID == "" {
		t.Fatal("Submit returned an empty job id")
	}

	payload, ok := store.submitted[jobID]
	if !ok {
		t.Fatalf("payload for %s not persisted", jobID)
	}
	var req EpisodeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		t.Fatalf("persisted payload is not valid JSON: %v", err)
	}
	if req.Content != "episode body" {
		t.Fatalf("persisted content = %q", req.Content)
	}
	if req.Type != "text" {
		t.Fatalf("persisted type = %q, want the default \"text\"", req.Type)
	}
}

func TestSubmitDistinctIDs(t *testing.T) {
	logger := zerolog.Nop()
	uc := NewIngestionUseCase(newMemStore(), &logger)

	id1, err := uc.Submit(context.Background(), EpisodeRequest{Content: "a"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	id2, err := uc.Submit(context.Background(), EpisodeRequest{Content: "b"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id1 == id2 {
		t.Fatalf("two submissions got the same id %s", id1)
	}
}

func TestSubmitRejectsEmptyContent(t *testing.T) {
	logger := zerolog.Nop()
	uc := NewIngestionUseCase(newMemStore(), &logger)

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := uc.Submit(context.Background(), EpisodeRequest{Content: content})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("Submit(%q) err = %v, want ErrInvalidArgument", content, err)
		}
	}
}

func TestStatusAndListDelegate(t *testing.T) {
	logger := zerolog.Nop()
	store := newMemStore()
	uc := NewIngestionUseCase(store, &logger)

	jobID, err := uc.Submit(context.Background(), EpisodeRequest{Content: "x"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	job, err := uc.Status(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if job.JobID != jobID {
		t.Fatalf("Status returned %s, want %s", job.JobID, jobID)
	}

	if _, err := uc.Status(context.Background(), "missing"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("Status(missing) err = %v, want ErrJobNotFound", err)
	}

	all, err := uc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("List = %d jobs, want 1", len(all))
	}
}
