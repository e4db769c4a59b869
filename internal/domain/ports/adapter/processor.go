package adapter

import "context"

// EpisodeProcessor turns a claimed job payload into extraction calls. A
// returned *domain.ContentValidationError signals output that failed
// validation even after repair; the orchestrator decides whether to
// requeue with an escalated model.
type EpisodeProcessor interface {
	Process(ctx context.Context, payload []byte, retryCount int) error
}

// GraphWriter receives the extraction output. The real graph database
// client lives behind this port.
type GraphWriter interface {
	AddEpisode(ctx context.Context, episode map[string]any) error
}
