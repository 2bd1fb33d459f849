// Package server provides the HTTP REST API for resource intake and matching.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/relief-intake/internal/db"
	"github.com/jonathan/relief-intake/internal/llm"
	"github.com/jonathan/relief-intake/internal/service"
	"github.com/jonathan/relief-intake/internal/types"
)

// degradedMessage is returned with 429 after a quota error switched providers.
const degradedMessage = "The reasoning service is temporarily degraded. Switched to the fallback provider; please retry."

// transcriptionQuotaMessage is returned with 429 when only transcription is out of quota.
const transcriptionQuotaMessage = "Audio transcription is temporarily unavailable due to quota limits; please retry later or submit text."

// ErrResourceNotFound reports an unknown resource id in a request path.
type ErrResourceNotFound struct {
	ID int64
}

func (e *ErrResourceNotFound) Error() string {
	return fmt.Sprintf("Resource %d not found", e.ID)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var notFound *ErrResourceNotFound
	switch {
	case err == nil:
		return http.StatusOK
	case llm.IsRateLimited(err), errors.Is(err, service.ErrTranscriptionQuota):
		return http.StatusTooManyRequests
	case types.IsInvalidInput(err), errors.Is(err, service.ErrNothingExtracted):
		return http.StatusBadRequest
	case errors.As(err, &notFound), errors.Is(err, db.ErrResourceNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrTranscriptionUnavailable):
		return http.StatusNotImplemented
	case errors.Is(err, db.ErrSettingsMissing):
		return http.StatusServiceUnavailable
	}

	var pe *llm.ProviderError
	if errors.As(err, &pe) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// publicMessage is the error text safe to return to clients.
func publicMessage(err error, status int) string {
	switch status {
	case http.StatusTooManyRequests:
		if errors.Is(err, service.ErrTranscriptionQuota) {
			return transcriptionQuotaMessage
		}
		return degradedMessage
	case http.StatusBadGateway:
		return "The reasoning service failed to process the request."
	case http.StatusInternalServerError:
		return "Internal server error."
	}
	return err.Error()
}
