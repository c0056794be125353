package errors

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneKeepsIdentity(t *testing.T) {
	cloned := Clone(ErrAlreadyResolved, "request 7 already approved")
	require.NotSame(t, ErrAlreadyResolved, cloned)
	assert.True(t, stderrors.Is(cloned, ErrAlreadyResolved))
	assert.False(t, stderrors.Is(cloned, ErrAlreadyCompleted))
	assert.Equal(t, "request 7 already approved", cloned.Error())
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(fmt.Errorf("load deadline: %w", sql.ErrConnDone))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.True(t, stderrors.Is(appErr, sql.ErrConnDone))
}

func TestFromErrorUnwrapsTyped(t *testing.T) {
	wrapped := fmt.Errorf("review: %w", ErrNotFound)
	assert.Equal(t, ErrNotFound, FromError(wrapped))
	assert.Nil(t, FromError(nil))
}
