package graph

import (
	"context"

	"github.com/rs/zerolog"

	"graph-ingestion/internal/domain/ports/adapter"
)

var _ adapter.GraphWriter = (*NoopWriter)(nil)

// NoopWriter implements adapter.GraphWriter for local/dev runs. It logs
// the extraction instead of writing to a graph database.
type NoopWriter struct {
	log *zerolog.Logger
}

func NewNoopWriter(logger *zerolog.Logger) *NoopWriter {
	return &NoopWriter{log: logger}
}

func (w *NoopWriter) AddEpisode(ctx context.Context, episode map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.log.Info().
		Int("keys", len(episode)).
		Interface("episode", episode).
		Msg("[noop-graph] episode extraction received")
	return nil
}
