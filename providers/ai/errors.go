package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the closed classification of provider failures. The retry
// logic branches on the kind, so providers must map every failure mode onto
// one of these values instead of surfacing raw transport or API errors.
type ErrorKind string

const (
	// KindRateLimit means the provider throttled the request. Retryable
	// with capped exponential backoff.
	KindRateLimit ErrorKind = "rate_limit"
	// KindServiceError covers 5xx responses, network failures, and
	// timeouts. Retryable with uncapped exponential backoff.
	KindServiceError ErrorKind = "service_error"
	// KindInvalidRequest means the request itself is malformed. Never
	// retried: the same request cannot succeed.
	KindInvalidRequest ErrorKind = "invalid_request"
	// KindAuthentication means the credentials were rejected.
	KindAuthentication ErrorKind = "authentication"
	// KindQuotaExceeded means billing or usage limits block the request.
	// Never retried: retrying burns more quota.
	KindQuotaExceeded ErrorKind = "quota_exceeded"
	// KindUnknown is the conservative catch-all for unclassified failures.
	KindUnknown ErrorKind = "unknown"
)

// UserMessage returns the short, user-displayable description of a failure
// of this kind. Diagnostic detail belongs in logs, not here.
func (k ErrorKind) UserMessage() string {
	switch k {
	case KindRateLimit:
		return "Rate limit exceeded. Please try again in a few minutes."
	case KindServiceError:
		return "AI service is temporarily unavailable. Please try again later."
	case KindInvalidRequest:
		return "Invalid request. Please check your input and try again."
	case KindAuthentication:
		return "Authentication failed. Please check your API key."
	case KindQuotaExceeded:
		return "API quota exceeded. Please check your billing and usage limits."
	default:
		return "An unexpected error occurred. Please try again."
	}
}

// ProviderError is a classified provider failure. Providers return it from
// Generate and Stream so the client can branch on Kind via errors.As without
// knowing anything about the backend's wire format.
type ProviderError struct {
	Kind       ErrorKind
	StatusCode int    // HTTP status when applicable, 0 otherwise
	Message    string // provider-supplied detail, safe for logs
	Err        error  // wrapped cause, may be nil
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider error (%s, status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider error (%s): %s", e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError builds a classified error without an HTTP status, for
// failures that never reached the wire (missing key, marshal failure).
func NewProviderError(kind ErrorKind, message string) *ProviderError {
	return &ProviderError{Kind: kind, Message: message}
}

// ClassifyStatus maps an HTTP status code onto an ErrorKind using the
// conventions shared by OpenAI-compatible and Anthropic APIs. Providers may
// refine the result from the response body (e.g. a 429 whose payload names
// an exhausted quota rather than a rate limit).
func ClassifyStatus(statusCode int) ErrorKind {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return KindRateLimit
	case statusCode == http.StatusUnauthorized:
		return KindAuthentication
	case statusCode == http.StatusPaymentRequired || statusCode == http.StatusForbidden:
		return KindQuotaExceeded
	case statusCode == http.StatusBadRequest ||
		statusCode == http.StatusNotFound ||
		statusCode == http.StatusUnprocessableEntity:
		return KindInvalidRequest
	case statusCode >= 500:
		return KindServiceError
	default:
		return KindUnknown
	}
}

// KindOf extracts the ErrorKind from any error. ProviderError values report
// their own kind; context deadline expiry counts as a service error (the
// request may succeed when the backend is less loaded); everything else is
// Unknown.
func KindOf(err error) ErrorKind {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindServiceError
	}
	return KindUnknown
}
