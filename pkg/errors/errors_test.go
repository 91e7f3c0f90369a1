package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", Clone(ErrGone, "attendance token expired"))

	appErr := FromError(wrapped)

	assert.Equal(t, ErrGone.Code, appErr.Code)
	assert.Equal(t, http.StatusGone, appErr.Status)
	assert.Equal(t, "attendance token expired", appErr.Message)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(sql.ErrConnDone)

	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.ErrorIs(t, appErr, sql.ErrConnDone)
}

func TestCloneDoesNotMutateSource(t *testing.T) {
	clone := Clone(ErrNotFound, "class not found")

	assert.Equal(t, "class not found", clone.Message)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
	assert.Nil(t, Clone(nil, "x"))
}
