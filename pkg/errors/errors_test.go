package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorWrapsUnknownErrors(t *testing.T) {
	appErr := FromError(errors.New("boom"))
	require.NotNil(t, appErr)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
}

func TestWithDetailsKeepsTemplateUntouched(t *testing.T) {
	details := []string{"row 2"}
	appErr := WithDetails(ErrMalformedRoster, "bad roster", details)

	assert.Equal(t, "bad roster", appErr.Message)
	assert.Equal(t, details, appErr.Details)
	assert.Nil(t, ErrMalformedRoster.Details)
	assert.Equal(t, "roster contains malformed rows", ErrMalformedRoster.Message)
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("cause")
	appErr := Wrap(cause, ErrCapacityExceeded.Code, ErrCapacityExceeded.Status, "too many")
	assert.True(t, errors.Is(appErr, cause))
	assert.Equal(t, "too many: cause", appErr.Error())
}
