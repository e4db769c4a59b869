package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"graph-ingestion/internal/domain"
	"graph-ingestion/internal/domain/model"
	"graph-ingestion/internal/domain/ports/repository"
)

// EpisodeRequest is the payload submitted by producers. The queue treats
// it as opaque bytes; only the processor interprets it.
type EpisodeRequest struct {
	Content     string `json:"content"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type IngestionUseCase interface {
	Submit(ctx context.Context, req EpisodeRequest) (string, error)
	Status(ctx context.Context, jobID string) (*model.IngestionJob, error)
	List(ctx context.Context) ([]*model.IngestionJob, error)
}

type ingestionUC struct {
	store repository.JobRepository
	log   *zerolog.Logger
}

func NewIngestionUseCase(store repository.JobRepository, logger *zerolog.Logger) IngestionUseCase {
	return &ingestionUC{store: store, log: logger}
}

func (u *ingestionUC) Submit(ctx context.Context, req EpisodeRequest) (string, error) {
	if strings.TrimSpace(req.Content) == "" {
		return "", fmt.Errorf("%w: episode content is empty", domain.ErrInvalidArgument)
	}
	if req.Type == "" {
		req.Type = "text"
	}

	jobID := uuid.NewString()
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	if err := u.store.Submit(jobID, payload); err != nil {
		return "", err
	}
	u.log.Info().Str("job_id", jobID).Str("type", req.Type).Msg("episode accepted for ingestion")
	return jobID, nil
}

func (u *ingestionUC) Status(ctx context.Context, jobID string) (*model.IngestionJob, error) {
	return u.store.GetStatus(jobID)
}

func (u *ingestionUC) List(ctx context.Context) ([]*model.IngestionJob, error) {
	return u.store.ListAll()
}
