package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindNoDocuments, http.StatusBadRequest},
		{KindDocumentsUnreadable, http.StatusUnprocessableEntity},
		{KindProviderRateLimited, http.StatusTooManyRequests},
		{KindProviderAuthFailure, http.StatusUnauthorized},
		{KindProviderContentBlocked, http.StatusBadRequest},
		{KindProviderEmptyResponse, http.StatusBadGateway},
		{KindProviderTimeout, http.StatusGatewayTimeout},
		{KindNotFound, http.StatusNotFound},
		{Kind("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.kind, "x").Status())
		})
	}
}

func TestKindOfWrappedChain(t *testing.T) {
	base := New(KindProviderRateLimited, "slow down")
	wrapped := fmt.Errorf("chat: %w", base)

	assert.Equal(t, KindProviderRateLimited, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindProviderRateLimited))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindStorageFailure, "upload failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
	assert.False(t, err.Retryable())
	assert.True(t, New(KindProviderRateLimited, "").Retryable())
}
