package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/relief-intake/internal/db"
	"github.com/jonathan/relief-intake/internal/llm"
	"github.com/jonathan/relief-intake/internal/service"
	"github.com/jonathan/relief-intake/internal/types"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: http.StatusOK},
		{name: "invalid input", err: &types.InvalidInputError{Field: "text", Message: "empty"}, want: http.StatusBadRequest},
		{name: "location required", err: types.ErrLocationRequired, want: http.StatusBadRequest},
		{name: "nothing extracted", err: service.ErrNothingExtracted, want: http.StatusBadRequest},
		{name: "rate limited", err: llm.NewRateLimitedError(llm.ProviderOpenAI, errors.New("429")), want: http.StatusTooManyRequests},
		{name: "wrapped rate limit", err: fmt.Errorf("rank: %w", llm.NewRateLimitedError(llm.ProviderGemini, nil)), want: http.StatusTooManyRequests},
		{name: "provider error", err: &llm.ProviderError{Provider: llm.ProviderLocal, Message: "down"}, want: http.StatusBadGateway},
		{name: "resource not found", err: &ErrResourceNotFound{ID: 3}, want: http.StatusNotFound},
		{name: "store not found", err: fmt.Errorf("get: %w", db.ErrResourceNotFound), want: http.StatusNotFound},
		{name: "no transcriber", err: service.ErrTranscriptionUnavailable, want: http.StatusNotImplemented},
		{name: "transcription quota", err: fmt.Errorf("%w: 429", service.ErrTranscriptionQuota), want: http.StatusTooManyRequests},
		{name: "settings missing", err: db.ErrSettingsMissing, want: http.StatusServiceUnavailable},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestErrResourceNotFound(t *testing.T) {
	err := &ErrResourceNotFound{ID: 42}
	assert.Equal(t, "Resource 42 not found", err.Error())
	assert.Equal(t, err, notFound(db.ErrResourceNotFound, 42))

	other := errors.New("x")
	assert.Equal(t, other, notFound(other, 42))
}

func TestPublicMessage(t *testing.T) {
	secret := errors.New("pq: password authentication failed for user relief")
	assert.Equal(t, "Internal server error.", publicMessage(secret, http.StatusInternalServerError))
	assert.Equal(t, degradedMessage, publicMessage(secret, http.StatusTooManyRequests))
	assert.NotContains(t, publicMessage(secret, http.StatusBadGateway), "password")
	assert.Equal(t, transcriptionQuotaMessage, publicMessage(service.ErrTranscriptionQuota, http.StatusTooManyRequests))

	invalid := &types.InvalidInputError{Field: "name", Message: "required"}
	assert.Equal(t, invalid.Error(), publicMessage(invalid, http.StatusBadRequest))
}
