package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"points-service/internal/auth"
	"points-service/internal/config"
)

func TestTokenCommand(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"token", "42", "--role", "user"})
	require.NoError(t, root.Execute())

	id, err := auth.ParseToken(config.DevelopmentJWTSecret, strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "42", id.Subject)
	assert.False(t, id.IsAdmin())
}

func TestSummaryRejectsBadUserID(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"summary", "abc"})
	assert.ErrorContains(t, root.Execute(), "invalid user id")
}
