package insights

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Kind classifies an upstream failure for retry and propagation decisions.
type Kind string

const (
	KindNetwork     Kind = "network"
	KindTimeout     Kind = "timeout"
	KindAuth        Kind = "auth"
	KindRateLimit   Kind = "rate_limit"
	KindValidation  Kind = "validation"
	KindAPI         Kind = "api"
	KindCircuitOpen Kind = "circuit_open"
	KindCancelled   Kind = "cancelled"
)

// Upstream error codes with dedicated handling.
const (
	codeAuth          = 190
	codeRateLimit     = 4
	codeUserRateLimit = 17
	codePageRateLimit = 32
)

// DefaultRateLimitWait is used when a rate-limit response carries no usage
// payload with an estimated recovery time.
const DefaultRateLimitWait = 60 * time.Second

// APIError is the typed error shared across the ingestion core. Every error
// leaving the client carries a machine-readable kind/code and a message
// sufficient to pick a remedial action.
type APIError struct {
	Kind       Kind
	StatusCode int
	Code       int
	Subcode    int
	Message    string
	TraceID    string
	// RetryAfter is the suggested wait before retrying; only set for
	// rate-limit errors.
	RetryAfter time.Duration

	cause error
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// Retryable reports whether the retry policy may reattempt this error.
// Auth and validation failures never are.
func (e *APIError) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout, KindRateLimit:
		return true
	case KindAPI:
		return e.StatusCode >= 500
	default:
		return false
	}
}

// IsKind reports whether err wraps an APIError of the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// CircuitOpenError builds the error returned when the breaker suppresses a
// call and no cached fallback exists.
func CircuitOpenError(dependency string) *APIError {
	return &APIError{
		Kind:    KindCircuitOpen,
		Message: fmt.Sprintf("circuit open for %s; request suppressed locally", dependency),
	}
}

// CancelledError wraps a context cancellation.
func CancelledError(err error) *APIError {
	return &APIError{Kind: KindCancelled, Message: "request cancelled", cause: err}
}

// ClassifyTransport maps a transport-level failure (no HTTP response) onto
// the taxonomy.
func ClassifyTransport(err error) *APIError {
	switch {
	case errors.Is(err, context.Canceled):
		return CancelledError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return &APIError{Kind: KindTimeout, Message: "request timed out", cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &APIError{Kind: KindTimeout, Message: "request timed out", cause: err}
	}
	return &APIError{Kind: KindNetwork, Message: err.Error(), cause: err}
}

// classifyResponse maps an upstream error envelope + HTTP status onto the
// taxonomy. retryAfter comes from the usage headers when present.
func classifyResponse(status int, we *wireError, retryAfter time.Duration) *APIError {
	apiErr := &APIError{
		Kind:       KindAPI,
		StatusCode: status,
		Message:    fmt.Sprintf("upstream returned status %d", status),
	}
	if we != nil {
		apiErr.Code = we.Code
		apiErr.Subcode = we.Subcode
		apiErr.Message = we.Message
		apiErr.TraceID = we.TraceID
	}

	switch {
	case isRateLimited(status, we):
		apiErr.Kind = KindRateLimit
		if retryAfter > 0 {
			apiErr.RetryAfter = retryAfter
		} else {
			apiErr.RetryAfter = DefaultRateLimitWait
		}
	case status == 401 || (we != nil && we.Code == codeAuth):
		apiErr.Kind = KindAuth
	case status == 400:
		apiErr.Kind = KindValidation
	}
	return apiErr
}

func isRateLimited(status int, we *wireError) bool {
	if status == 429 {
		return true
	}
	if we == nil {
		return false
	}
	switch we.Code {
	case codeRateLimit, codeUserRateLimit, codePageRateLimit:
		return true
	}
	msg := strings.ToLower(we.Message)
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many calls")
}
