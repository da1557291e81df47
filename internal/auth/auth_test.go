package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/", Middleware(secret))
	api.GET("/me", func(c *gin.Context) {
		id, _ := FromContext(c)
		c.String(http.StatusOK, id.Subject)
	})
	api.GET("/admin", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func call(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddleware(t *testing.T) {
	r := newRouter()

	userToken, err := IssueToken(secret, "points", "17", "user", time.Hour)
	require.NoError(t, err)
	adminToken, err := IssueToken(secret, "points", "1", RoleAdmin, time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(secret, "points", "17", "user", -time.Minute)
	require.NoError(t, err)
	forged, err := IssueToken("other-secret", "points", "1", RoleAdmin, time.Hour)
	require.NoError(t, err)

	w := call(r, "/me", userToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "17", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, call(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, call(r, "/me", expired).Code)
	assert.Equal(t, http.StatusUnauthorized, call(r, "/me", forged).Code)

	assert.Equal(t, http.StatusForbidden, call(r, "/admin", userToken).Code)
	assert.Equal(t, http.StatusNoContent, call(r, "/admin", adminToken).Code)
}

func TestParseTokenRejectsMissingSubject(t *testing.T) {
	token, err := IssueToken(secret, "points", "", RoleAdmin, time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(secret, token)
	assert.Error(t, err)
}
