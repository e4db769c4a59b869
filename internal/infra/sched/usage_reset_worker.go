package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"graph-ingestion/internal/infra/ai"
)

// UsageResetWorker clears the credential usage windows on minute and day
// boundaries so the per-minute and per-day counters stay meaningful.
type UsageResetWorker struct {
	tracker *ai.UsageTracker
	log     *zerolog.Logger
}

func NewUsageResetWorker(tracker *ai.UsageTracker, logger *zerolog.Logger) *UsageResetWorker {
	wLog := logger.With().Str("component", "UsageResetWorker").Logger()
	return &UsageResetWorker{tracker: tracker, log: &wLog}
}

func (w *UsageResetWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting usage reset worker")
	minute := time.NewTicker(time.Minute)
	day := time.NewTicker(24 * time.Hour)
	defer minute.Stop()
	defer day.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping usage reset worker")
			return ctx.Err()
		case <-minute.C:
			reqs, tokens := w.tracker.Totals()
			if reqs > 0 {
				w.log.Debug().Int("requests", reqs).Int("tokens", tokens).Msg("minute usage window closed")
			}
			w.tracker.ResetMinuteCounters()
		case <-day.C:
			w.tracker.ResetDailyCounters()
		}
	}
}
