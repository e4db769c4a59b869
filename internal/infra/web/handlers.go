package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"graph-ingestion/internal/domain"
	"graph-ingestion/internal/infra/logging"
	"graph-ingestion/internal/usecase"
)

type submitResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleSubmitEpisode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req usecase.EpisodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	jobID, err := s.uc.Submit(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, domain.ErrDuplicateJob):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			logging.With(ctx, s.log).Error().Err(err).Msg("episode submission failed")
			http.Error(w, "Failed to submit episode", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{
		JobID:   jobID,
		Status:  "pending",
		Message: "Episode accepted for processing and saved to disk.",
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := s.uc.Status(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		logging.With(r.Context(), s.log).Error().Err(err).Str("job_id", jobID).Msg("status lookup failed")
		http.Error(w, "Failed to read job status", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.uc.List(r.Context())
	if err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("job listing failed")
		http.Error(w, "Failed to list jobs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Data  any `json:"data"`
		Total int `json:"total"`
	}{Data: jobs, Total: len(jobs)})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
