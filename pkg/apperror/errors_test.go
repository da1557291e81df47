package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("description is required"), http.StatusBadRequest},
		{NotFound("transaction %s not found", "abc"), http.StatusNotFound},
		{InvalidState("transaction is approved"), http.StatusConflict},
		{Forbidden("admin only"), http.StatusForbidden},
		{Unauthorized("missing token"), http.StatusUnauthorized},
		{Persistence(errors.New("connection reset")), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, MapErrorToStatus(tc.err), tc.err.Error())
	}
}

func TestAppErrorMatchesKindAndCause(t *testing.T) {
	cause := errors.New("deadlock detected")
	err := fmt.Errorf("approve: %w", Persistence(cause))

	assert.True(t, errors.Is(err, ErrPersistence))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.False(t, IsClientError(err))
}

func TestPersistenceKeepsTaxonomyErrors(t *testing.T) {
	notFound := NotFound("user 7 not found")

	err := Persistence(notFound)

	assert.Same(t, notFound, err)
	assert.True(t, IsClientError(err))
	assert.Nil(t, Persistence(nil))
}
