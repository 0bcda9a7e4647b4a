package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

// NewUnsupportedChannel rejects ingest requests for channels outside the
// supported set before any side effect.
func NewUnsupportedChannel(channel string) error {
	return NewDomainError("UNSUPPORTED_CHANNEL",
		fmt.Sprintf("channel %q is not supported", channel),
		http.StatusBadRequest, map[string]any{"channel": channel})
}

// NewIdentityResolutionError marks a fatal failure resolving or creating the
// customer identity; ingest must not proceed past it.
func NewIdentityResolutionError(err error) error {
	return &DomainError{
		Code:       "IDENTITY_RESOLUTION_FAILED",
		Message:    "failed to resolve customer identity",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewThreadResolutionError marks a fatal failure resolving or creating the
// ticket thread.
func NewThreadResolutionError(err error) error {
	return &DomainError{
		Code:       "THREAD_RESOLUTION_FAILED",
		Message:    "failed to resolve ticket thread",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewMessageAppendError marks a fatal failure writing the inbound message.
func NewMessageAppendError(err error) error {
	return &DomainError{
		Code:       "MESSAGE_APPEND_FAILED",
		Message:    "failed to append message",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// MapError wraps err as a DomainError at an error-returning boundary. The
// nil guard matters: returning a typed-nil *DomainError through the error
// interface would read as a failure to every caller.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
