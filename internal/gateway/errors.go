package gateway

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// FailureKind classifies every non-2xx response from the X API. The mapping
// is total: anything not recognized lands in KindUnknown.
type FailureKind string

const (
	KindUnauthorized FailureKind = "unauthorized"
	KindForbidden    FailureKind = "forbidden"
	KindRateLimited  FailureKind = "rate_limited"
	KindServerError  FailureKind = "server_error"
	KindUnknown      FailureKind = "unknown"
)

// APIError wraps a failed X API call with its classification.
type APIError struct {
	Kind       FailureKind
	StatusCode int
	Message    string
	// RetryAfter is the server-supplied backoff hint, zero when absent.
	RetryAfter time.Duration
	// RetryDelay is the tracker-computed wait before the endpoint is usable
	// again. Only set on rate-limited errors returned to callers.
	RetryDelay time.Duration
}

func (e *APIError) Error() string {
	if e.Kind == KindRateLimited && e.RetryDelay > 0 {
		return fmt.Sprintf("rate limited, try again in %s", e.RetryDelay.Round(time.Second))
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("[%d] %s: %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Retryable reports whether the failure may succeed on a later attempt.
// Credential failures are never retried automatically.
func (e *APIError) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindServerError
}

// classifyResponse maps a non-2xx status to an APIError. The Retry-After
// header, when present, is carried through for the rate tracker.
func classifyResponse(statusCode int, body string, headers http.Header) *APIError {
	err := &APIError{
		StatusCode: statusCode,
		Message:    truncate(body, 200),
	}

	switch {
	case statusCode == http.StatusUnauthorized:
		err.Kind = KindUnauthorized
	case statusCode == http.StatusForbidden:
		err.Kind = KindForbidden
	case statusCode == http.StatusTooManyRequests:
		err.Kind = KindRateLimited
		if s := headers.Get("retry-after"); s != "" {
			if secs, parseErr := strconv.Atoi(s); parseErr == nil && secs > 0 {
				err.RetryAfter = time.Duration(secs) * time.Second
			}
		}
	case statusCode >= 500 && statusCode < 600:
		err.Kind = KindServerError
	default:
		err.Kind = KindUnknown
	}

	return err
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
