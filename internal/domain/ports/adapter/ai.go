package adapter

import (
	"context"

	"graph-ingestion/internal/domain/model"
)

// Reply is the provider's answer to a single generation call.
type Reply struct {
	Text  string
	Usage model.Usage
}

// GenerationTransport issues one call against the external text-generation
// service using an explicit credential and model. Implementations wrap
// provider errors in *domain.TransportError so the dispatcher can classify
// them; they perform no retries of their own.
type GenerationTransport interface {
	Generate(ctx context.Context, cred model.Credential, modelName string, messages []model.Message, params model.GenerationParams) (Reply, error)
}
