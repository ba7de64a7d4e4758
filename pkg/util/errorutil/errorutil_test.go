package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToDomainError(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))

	wrapped := fmt.Errorf("handler: %w", NewUnauthorized("unauthorized"))
	de := ToDomainError(wrapped)
	assert.Equal(t, CodeUnauthorized, de.Code)
	assert.Equal(t, http.StatusUnauthorized, de.HTTPStatus)

	cause := errors.New("db down")
	de = ToDomainError(cause)
	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, "internal server error", de.Message)
	assert.ErrorIs(t, de, cause)
}

func TestFromStatus(t *testing.T) {
	assert.Equal(t, CodeNotFound, FromStatus(http.StatusNotFound, "Cannot GET /x").Code)
	assert.Equal(t, CodeValidationFailed, FromStatus(http.StatusBadRequest, "bad").Code)
	assert.Equal(t, CodeMethodNotAllowed, FromStatus(http.StatusMethodNotAllowed, "Method Not Allowed").Code)
	assert.Equal(t, CodeUnsupportedMedia, FromStatus(http.StatusUnsupportedMediaType, "x").Code)
	assert.Equal(t, CodeRateLimited, FromStatus(http.StatusTooManyRequests, "x").Code)
	assert.Equal(t, CodeBadRequest, FromStatus(http.StatusTeapot, "short and stout").Code)

	de := FromStatus(http.StatusServiceUnavailable, "pool exhausted: host db-1")
	assert.Equal(t, "internal server error", de.Message)
	assert.Equal(t, http.StatusServiceUnavailable, de.HTTPStatus)
}
