package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"graph-ingestion/internal/config"
	"graph-ingestion/internal/infra/logging"
	"graph-ingestion/internal/infra/redis"
	"graph-ingestion/internal/usecase"
)

// Server exposes the ingestion API: episode submission, per-job status,
// and the dashboard job feed. The dashboard UI itself lives elsewhere and
// only consumes the JSON feed.
type Server struct {
	uc      usecase.IngestionUseCase
	limiter *redis.RateLimiter
	rlCfg   config.RedisConfig
	log     *zerolog.Logger
}

func NewServer(uc usecase.IngestionUseCase, limiter *redis.RateLimiter, rlCfg config.RedisConfig, logger *zerolog.Logger) *Server {
	return &Server{uc: uc, limiter: limiter, rlCfg: rlCfg, log: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(traceID)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(s.submitRateLimit).Post("/episodes", s.handleSubmitEpisode)
		r.Get("/episodes/status/{jobID}", s.handleJobStatus)
		r.Get("/jobs", s.handleListJobs)
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// traceID tags each request context so handler logs correlate.
func traceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithTraceID(r.Context(), uuid.NewString())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// submitRateLimit throttles submissions per client IP when redis is
// configured; without redis it passes everything through.
func (s *Server) submitRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil || s.rlCfg.SubmitLimit <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		ok, err := s.limiter.Allow(ctx, redis.SubmitKey(r.RemoteAddr), s.rlCfg.SubmitLimit, s.rlCfg.SubmitWindow())
		if err != nil {
			// Redis being down must not block ingestion.
			s.log.Error().Err(err).Msg("rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			http.Error(w, "Too many submissions, slow down", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
