package llm

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ProviderError represents a failed provider call: unreachable, refused, or a
// response that did not conform to the requested schema.
type ProviderError struct {
	Provider Provider
	Message  string
	Cause    error
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s provider: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s provider: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// RateLimitedError is a ProviderError caused by quota exhaustion.
// errors.As with a **ProviderError target also matches it.
type RateLimitedError struct {
	ProviderError
}

// NewRateLimitedError builds a RateLimitedError for provider.
func NewRateLimitedError(provider Provider, cause error) *RateLimitedError {
	return &RateLimitedError{ProviderError{Provider: provider, Message: "rate limited", Cause: cause}}
}

func (e *RateLimitedError) Error() string {
	return e.ProviderError.Error()
}

func (e *RateLimitedError) Unwrap() error {
	return e.Cause
}

// As lets errors.As treat a rate limit as a generic provider failure.
func (e *RateLimitedError) As(target any) bool {
	if t, ok := target.(**ProviderError); ok {
		*t = &e.ProviderError
		return true
	}
	return false
}

// IsRateLimited reports whether err carries a RateLimitedError.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

// Classify converts a raw SDK error into a ProviderError or RateLimitedError.
// Errors that are already classified pass through unchanged.
func Classify(provider Provider, err error) error {
	if err == nil {
		return nil
	}

	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}

	if isRateLimit(err) {
		return NewRateLimitedError(provider, err)
	}
	return &ProviderError{Provider: provider, Message: "request failed", Cause: err}
}

// isRateLimit decides on the SDK error type when one is present. The gRPC check
// runs last because status.FromError formats err, and an *openai.Error without
// a Request cannot be formatted.
func isRateLimit(err error) bool {
	var oe *openai.Error
	if errors.As(err, &oe) {
		return oe.StatusCode == http.StatusTooManyRequests
	}
	var ge *googleapi.Error
	if errors.As(err, &ge) {
		return ge.Code == http.StatusTooManyRequests
	}
	if s, ok := status.FromError(err); ok {
		return s.Code() == codes.ResourceExhausted
	}
	return false
}
