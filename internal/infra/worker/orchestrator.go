package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"graph-ingestion/internal/domain"
	"graph-ingestion/internal/domain/model"
	"graph-ingestion/internal/domain/ports/adapter"
	"graph-ingestion/internal/domain/ports/repository"
	"graph-ingestion/internal/infra/logging"
	"graph-ingestion/internal/infra/metrics"
)

// Orchestrator is the single ingestion loop: claim the next pending job,
// hand its payload to the processor, and translate the outcome into a job
// store transition. Content-level failures are requeued with an escalated
// model up to MaxContentRetries; everything else fails the job.
type Orchestrator struct {
	store     repository.JobRepository
	processor adapter.EpisodeProcessor
	log       *zerolog.Logger

	PollInterval      time.Duration
	PostSuccessDelay  time.Duration
	MaxContentRetries int

	sleep func(context.Context, time.Duration)
}

func NewOrchestrator(store repository.JobRepository, processor adapter.EpisodeProcessor, pollInterval, postSuccessDelay time.Duration, maxContentRetries int, logger *zerolog.Logger) *Orchestrator {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if maxContentRetries <= 0 {
		maxContentRetries = 2
	}
	return &Orchestrator{
		store:             store,
		processor:         processor,
		log:               logger,
		PollInterval:      pollInterval,
		PostSuccessDelay:  postSuccessDelay,
		MaxContentRetries: maxContentRetries,
		sleep:             sleepCtx,
	}
}

// Run polls until ctx is cancelled. This should be run in a goroutine.
func (o *Orchestrator) Run(ctx context.Context) {
	o.log.Info().Msg("ingestion orchestrator started")
	for {
		if ctx.Err() != nil {
			o.log.Info().Msg("ingestion orchestrator stopping")
			return
		}

		claimed, err := o.store.ClaimNext()
		if err != nil {
			if errors.Is(err, domain.ErrNoPendingJobs) {
				o.sleep(ctx, o.PollInterval)
				continue
			}
			o.log.Error().Err(err).Msg("failed to claim next job")
			o.sleep(ctx, o.PollInterval)
			continue
		}

		o.processOne(ctx, claimed)
	}
}

func (o *Orchestrator) processOne(ctx context.Context, claimed *repository.ClaimedJob) {
	ctx = logging.WithJobID(ctx, claimed.JobID)
	log := logging.With(ctx, o.log).With().Int("retry_count", claimed.RetryCount).Logger()
	log.Info().Msg("processing job")
	start := time.Now()

	err := o.processor.Process(ctx, claimed.Payload, claimed.RetryCount)

	var cve *domain.ContentValidationError
	switch {
	case err == nil:
		if uerr := o.store.UpdateStatus(claimed.JobID, model.JobStatusCompleted, "Episode successfully ingested."); uerr != nil {
			log.Error().Err(uerr).Msg("could not mark job completed")
			return
		}
		metrics.IncJobProcessed(string(model.JobStatusCompleted))
		log.Info().Dur("duration", time.Since(start)).Msg("job completed")
		if o.PostSuccessDelay > 0 {
			log.Info().Dur("delay", o.PostSuccessDelay).Msg("success cooldown before next job")
			o.sleep(ctx, o.PostSuccessDelay)
		}

	case errors.As(err, &cve):
		if claimed.RetryCount < o.MaxContentRetries-1 {
			newCount := claimed.RetryCount + 1
			msg := fmt.Sprintf("Re-queuing for attempt #%d with a better model: %s", newCount+1, cve.Reason)
			if rerr := o.store.RequeueForRetry(claimed.JobID, newCount, msg); rerr != nil {
				log.Error().Err(rerr).Msg("could not requeue job")
				return
			}
			metrics.IncJobRequeued()
			log.Warn().Str("reason", cve.Reason).Msg("content validation failed, requeued with escalated model")
		} else {
			msg := fmt.Sprintf("Failed permanently after %d attempts: %s", o.MaxContentRetries, cve.Reason)
			if uerr := o.store.UpdateStatus(claimed.JobID, model.JobStatusFailed, msg); uerr != nil {
				log.Error().Err(uerr).Msg("could not mark job failed")
				return
			}
			metrics.IncJobProcessed(string(model.JobStatusFailed))
			log.Error().Str("reason", cve.Reason).Msg("content retries exhausted, job failed")
		}

	default:
		msg := fmt.Sprintf("An unexpected error occurred: %v", err)
		if uerr := o.store.UpdateStatus(claimed.JobID, model.JobStatusFailed, msg); uerr != nil {
			log.Error().Err(uerr).Msg("could not mark job failed")
			return
		}
		metrics.IncJobProcessed(string(model.JobStatusFailed))
		log.Error().Err(err).Msg("job failed")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
