package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lapkipomoshi/help-paw-backend/internal/access"
	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
)

type stubAuthenticator struct {
	fn func(ctx context.Context, token string) (*access.Actor, error)
}

func (s stubAuthenticator) Authenticate(ctx context.Context, token string) (*access.Actor, error) {
	return s.fn(ctx, token)
}

func authRouter(t *testing.T, auth Authenticator) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Authenticate(auth))
	r.GET("/whoami", func(c *gin.Context) {
		a := access.FromContext(c)
		if a == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, a.ID)
	})
	return r
}

func TestAuthenticate(t *testing.T) {
	good := stubAuthenticator{fn: func(_ context.Context, token string) (*access.Actor, error) {
		if token != "good" {
			return nil, errors.New("bad token")
		}
		return &access.Actor{ID: "u1", Role: domain.RoleUser}, nil
	}}

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"no header stays anonymous", "", http.StatusOK, "anonymous"},
		{"valid bearer", "Bearer good", http.StatusOK, "u1"},
		{"scheme is case-insensitive", "bearer good", http.StatusOK, "u1"},
		{"rejected token", "Bearer stale", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic Zm9vOmJhcg==", http.StatusUnauthorized, ""},
		{"missing token", "Bearer ", http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			authRouter(t, good).ServeHTTP(w, req)

			require.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, tc.body, w.Body.String())
				return
			}
			assert.Contains(t, w.Body.String(), `"code":"unauthorized"`)
			assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestAuthenticate_SetsUserIDForRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := stubAuthenticator{fn: func(context.Context, string) (*access.Actor, error) {
		return &access.Actor{ID: "u7", Role: domain.RoleUser}, nil
	}}
	r := gin.New()
	r.Use(Authenticate(auth))
	var key string
	r.GET("/k", func(c *gin.Context) {
		key = KeyByUserOrIP()(c)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/k", nil)
	req.Header.Set("Authorization", "Bearer x")
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "user:u7", key)
}
