package ai

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"graph-ingestion/internal/domain"
	"graph-ingestion/internal/domain/model"
	"graph-ingestion/internal/domain/ports/adapter"
	"graph-ingestion/internal/infra/logging"
	"graph-ingestion/internal/infra/metrics"
)

// CallRequest is one generation call submitted to the dispatcher.
type CallRequest struct {
	Category       model.TaskCategory
	Messages       []model.Message
	Params         model.GenerationParams
	ForceBestModel bool
}

// Result is delivered through the Handle once the dispatcher finishes the
// job.
type Result struct {
	Text      string
	ModelUsed string
	Usage     model.Usage
}

type outcome struct {
	res Result
	err error
}

// Handle is the caller's side of a submitted call. Wait blocks until the
// dispatcher resolves the job or the caller's context is done.
type Handle struct {
	ch chan outcome
}

func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case out := <-h.ch:
		return out.res, out.err
	}
}

type callJob struct {
	req    CallRequest
	handle *Handle
	at     time.Time
}

// DispatcherOptions tune the retry loop and pacing. Zero values fall back
// to the defaults used by the original deployment.
type DispatcherOptions struct {
	QueueSize         int
	MaxAttempts       int
	BaseBackoff       time.Duration
	MaxBackoff        time.Duration
	DelayBetweenCalls time.Duration
}

// Dispatcher serializes every external generation call through a single
// goroutine. Many callers submit concurrently; at most one call is ever in
// flight, because the provider applies account-wide rate limits no matter
// which local caller is responsible. Transient failures are hidden behind
// credential/model rotation with jittered linear backoff; only the final
// outcome crosses the handle back to the caller.
type Dispatcher struct {
	pool      *Pool
	transport adapter.GenerationTransport
	usage     *UsageTracker
	opts      DispatcherOptions
	log       *zerolog.Logger

	queue  chan *callJob
	done   chan struct{}
	closed atomic.Bool
	ctx    context.Context

	sleep  func(time.Duration)
	jitter func() float64
}

func NewDispatcher(pool *Pool, transport adapter.GenerationTransport, usage *UsageTracker, opts DispatcherOptions, logger *zerolog.Logger) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 10 * time.Second
	}
	return &Dispatcher{
		pool:      pool,
		transport: transport,
		usage:     usage,
		opts:      opts,
		log:       logger,
		queue:     make(chan *callJob, opts.QueueSize),
		done:      make(chan struct{}),
		sleep:     time.Sleep,
		jitter:    rand.Float64,
	}
}

// Start launches the single consumer goroutine. ctx bounds the transport
// calls; cancelling it does not abandon queued jobs, use Shutdown for
// that.
func (d *Dispatcher) Start(ctx context.Context) {
	d.ctx = ctx
	go d.run()
}

// Submit enqueues a call and returns a pending handle immediately. Safe
// for concurrent use. domain.ErrDispatcherClosed after Shutdown.
func (d *Dispatcher) Submit(req CallRequest) (*Handle, error) {
	if d.closed.Load() {
		return nil, domain.ErrDispatcherClosed
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("%w: call request has no messages", domain.ErrInvalidArgument)
	}
	h := &Handle{ch: make(chan outcome, 1)}
	d.queue <- &callJob{req: req, handle: h, at: time.Now()}
	return h, nil
}

// Shutdown enqueues the stop sentinel and waits for the consumer to drain
// everything submitted before it.
func (d *Dispatcher) Shutdown() {
	if d.closed.CompareAndSwap(false, true) {
		d.queue <- nil
	}
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	d.log.Info().Msg("call dispatcher started")
	for job := range d.queue {
		if job == nil { // shutdown sentinel
			break
		}
		d.execute(job)
		// Pacing between jobs, independent of per-attempt backoff. Caps the
		// aggregate call rate even under sustained producer load.
		if d.opts.DelayBetweenCalls > 0 {
			d.sleep(d.opts.DelayBetweenCalls)
		}
	}
	d.log.Info().Msg("call dispatcher stopped")
}

func (d *Dispatcher) execute(job *callJob) {
	defer logging.TraceDuration(d.log, "Dispatcher.execute")()

	var lastErr error
	for attempt := 0; attempt < d.opts.MaxAttempts; attempt++ {
		cred, desc, err := d.pool.Next(job.req.Category, job.req.ForceBestModel)
		if err != nil {
			// Pool exhaustion is not a normal attempt: retrying immediately
			// would just spin against the same cooldowns.
			if errors.Is(err, domain.ErrAllCredentialsCoolingDown) {
				metrics.IncPoolExhausted()
			}
			d.log.Error().Err(err).Msg("no credential available, failing job")
			job.handle.ch <- outcome{err: err}
			return
		}

		d.log.Info().
			Int("attempt", attempt+1).
			Int("max_attempts", d.opts.MaxAttempts).
			Str("credential", "..."+cred.Tail()).
			Str("model", desc.Name).
			Msg("issuing generation call")

		params := job.req.Params
		if params.MaxOutputTokens == 0 && desc.OutputLimit > 0 {
			params.MaxOutputTokens = desc.OutputLimit
		}

		start := time.Now()
		reply, err := d.transport.Generate(d.ctx, cred, desc.Name, job.req.Messages, params)
		latencyMs := int(time.Since(start) / time.Millisecond)

		if err == nil && strings.TrimSpace(reply.Text) == "" {
			err = fmt.Errorf("model %s: %w", desc.Name, domain.ErrEmptyResponse)
		}

		if err == nil {
			d.pool.MarkUsed(cred)
			d.usage.RecordCall(cred, desc.Name, reply.Usage, job.req.Messages)
			metrics.IncCallAttempt(desc.Name, "success")
			metrics.ObserveCall(desc.Name, reply.Usage.PromptTokens, reply.Usage.CompletionTokens, latencyMs, true)
			job.handle.ch <- outcome{res: Result{Text: reply.Text, ModelUsed: desc.Name, Usage: reply.Usage}}
			return
		}

		lastErr = err
		retryable, status := classify(err)
		metrics.ObserveCall(desc.Name, 0, 0, latencyMs, false)
		if !retryable {
			metrics.IncCallAttempt(desc.Name, "fatal")
			d.log.Error().Err(err).Int("status", status).Str("model", desc.Name).Msg("non-retryable error")
			job.handle.ch <- outcome{err: err}
			return
		}

		metrics.IncCallAttempt(desc.Name, "retryable")
		d.log.Warn().
			Err(err).
			Int("status", status).
			Str("credential", "..."+cred.Tail()).
			Msg("transient error, rotating credential after backoff")
		d.sleepWithJitter(attempt)
	}

	d.log.Error().Err(lastErr).Int("attempts", d.opts.MaxAttempts).Msg("exhausted all attempts")
	job.handle.ch <- outcome{err: &domain.AttemptsExhaustedError{Attempts: d.opts.MaxAttempts, LastErr: lastErr}}
}

// sleepWithJitter pauses with linear backoff and random jitter in
// [0.5x, 1.5x]. Linear, not exponential: with a small attempt budget the
// waits stay short enough for rotation to matter.
func (d *Dispatcher) sleepWithJitter(attempt int) {
	backoff := d.opts.BaseBackoff * time.Duration(attempt+1)
	if backoff > d.opts.MaxBackoff {
		backoff = d.opts.MaxBackoff
	}
	d.sleep(time.Duration(float64(backoff) * (0.5 + d.jitter())))
}
