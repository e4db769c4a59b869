package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrJobNotFound               = errors.New("job not found")
	ErrDuplicateJob              = errors.New("job already exists")
	ErrNoPendingJobs             = errors.New("no pending jobs")
	ErrInvalidArgument           = errors.New("invalid argument")
	ErrEmptyResponse             = errors.New("model returned an empty response")
	ErrAllCredentialsCoolingDown = errors.New("all credentials are currently cooling down")
	ErrDispatcherClosed          = errors.New("dispatcher is shut down")
)

// TransportError carries the HTTP-style status of a failed generation call
// so the dispatcher can decide whether the attempt is retryable.
type TransportError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transport error (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("transport error: %s", e.Message)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AttemptsExhaustedError is returned when every attempt of a call failed
// with a retryable error.
type AttemptsExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *AttemptsExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *AttemptsExhaustedError) Unwrap() error { return e.LastErr }

// ContentValidationError marks output that came back over a healthy
// transport but failed domain-level validation. The orchestrator, not the
// dispatcher, decides whether to retry these with a stronger model.
type ContentValidationError struct {
	Reason string
}

func (e *ContentValidationError) Error() string {
	return "content validation failed: " + e.Reason
}
