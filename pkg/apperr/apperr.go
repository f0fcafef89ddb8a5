// Package apperr holds the error taxonomy shared by every layer of the service.
// Each Kind maps to a stable, client-visible classification and an HTTP-like status code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Kind string

const (
	KindExtractionFailure      Kind = "extraction_failure"
	KindNoDocuments            Kind = "no_documents"
	KindDocumentsUnreadable    Kind = "documents_unreadable"
	KindIndexCorrupt           Kind = "index_corrupt"
	KindProviderRateLimited    Kind = "provider_rate_limited"
	KindProviderAuthFailure    Kind = "provider_auth_failure"
	KindProviderContentBlocked Kind = "provider_content_blocked"
	KindProviderEmptyResponse  Kind = "provider_empty_response"
	KindProviderTimeout        Kind = "provider_timeout"
	KindProviderFailure        Kind = "provider_failure"
	KindStorageFailure         Kind = "storage_failure"
	KindNotFound               Kind = "not_found"
	KindInvalidInput           Kind = "invalid_input"
	KindNotConfigured          Kind = "not_configured"
	KindCanceled               Kind = "canceled"
	KindInternal               Kind = "internal"
)

// StatusClientClosedRequest is used when the caller went away before the answer was ready.
const StatusClientClosedRequest = 499

var statusByKind = map[Kind]int{
	KindExtractionFailure:      http.StatusInternalServerError,
	KindNoDocuments:            http.StatusBadRequest,
	KindDocumentsUnreadable:    http.StatusUnprocessableEntity,
	KindIndexCorrupt:           http.StatusInternalServerError,
	KindProviderRateLimited:    http.StatusTooManyRequests,
	KindProviderAuthFailure:    http.StatusUnauthorized,
	KindProviderContentBlocked: http.StatusBadRequest,
	KindProviderEmptyResponse:  http.StatusBadGateway,
	KindProviderTimeout:        http.StatusGatewayTimeout,
	KindProviderFailure:        http.StatusBadGateway,
	KindStorageFailure:         http.StatusInternalServerError,
	KindNotFound:               http.StatusNotFound,
	KindInvalidInput:           http.StatusBadRequest,
	KindNotConfigured:          http.StatusServiceUnavailable,
	KindCanceled:               StatusClientClosedRequest,
	KindInternal:               http.StatusInternalServerError,
}

// Error is a classified error. Message is safe to show to end users.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP-like severity code for the error kind.
func (e *Error) Status() int {
	if status, ok := statusByKind[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Retryable reports whether the caller may safely retry the same request later.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindProviderRateLimited, KindProviderEmptyResponse, KindProviderTimeout, KindIndexCorrupt:
		return true
	}
	return false
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the classification of err, KindInternal for unclassified errors and "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
