package ai

import (
	"errors"
	"strings"

	"graph-ingestion/internal/domain"
)

// retryableHints are substrings that mark network-level failures which
// surface as plain errors rather than structured HTTP statuses.
var retryableHints = []string{
	"timeout",
	"timed out",
	"connection reset",
	"connection aborted",
	"unavailable",
	"temporarily",
}

// classify decides whether a failed attempt may be retried with a rotated
// credential and returns the HTTP status when one is known.
func classify(err error) (retryable bool, status int) {
	if errors.Is(err, domain.ErrEmptyResponse) {
		return false, 0
	}

	var te *domain.TransportError
	if errors.As(err, &te) && te.StatusCode > 0 {
		switch {
		case te.StatusCode >= 500:
			return true, te.StatusCode
		case te.StatusCode == 429 || te.StatusCode == 408:
			return true, te.StatusCode
		default: // other 4xx: bad request, auth, schema
			return false, te.StatusCode
		}
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range retryableHints {
		if strings.Contains(msg, hint) {
			return true, 0
		}
	}
	return false, 0
}
