package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_MessageIsVerbatim(t *testing.T) {
	err := Validation("Unhandled message %s", "frobnicate")
	assert.Equal(t, "Unhandled message frobnicate", err.Error())
	assert.Equal(t, CodeValidation, err.Code)
}

func TestIsHelpers_WrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("start: %w", Navigation("no next event"))

	assert.True(t, IsNavigation(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.False(t, IsRange(wrapped))
	assert.Equal(t, CodeNavigation, CodeOf(wrapped))
}

func TestCodeOf_PlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.False(t, IsInternal(errors.New("boom")))
}

func TestInternal_Unwraps(t *testing.T) {
	cause := errors.New("nil cue")
	err := Internal(cause)

	assert.True(t, IsInternal(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal error: nil cue", err.Error())
}
