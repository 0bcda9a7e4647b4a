package util

import (
	"errors"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorNilStaysNil(t *testing.T) {
	// a typed-nil *DomainError inside a non-nil error interface would make
	// every successful call at the boundary read as a failure
	assert.NoError(t, MapError(nil))
	assert.Nil(t, MapError(nil))
}

func TestMapErrorWrapsUnknownErrors(t *testing.T) {
	err := MapError(errors.New("boom"))
	require.Error(t, err)

	var domainErr *DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INTERNAL_ERROR", domainErr.Code)
	assert.Equal(t, http.StatusInternalServerError, domainErr.HTTPStatus)
}

func TestMapErrorTranslatesNoRows(t *testing.T) {
	var domainErr *DomainError
	require.ErrorAs(t, MapError(pgx.ErrNoRows), &domainErr)
	assert.Equal(t, "NOT_FOUND", domainErr.Code)
}

func TestMapErrorPreservesDomainErrors(t *testing.T) {
	original := NewValidationError("bad input", nil)
	var domainErr *DomainError
	require.ErrorAs(t, MapError(original), &domainErr)
	assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
}
