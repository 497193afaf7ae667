package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestKeyFuncs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/shelters", nil)
	c.Request.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")

	assert.Equal(t, "ip:203.0.113.9", KeyByUserOrIP()(c))
	c.Set("userID", "u123")
	assert.Equal(t, "user:u123", KeyByUserOrIP()(c))
	assert.Equal(t, "ip:203.0.113.9", KeyByIP()(c), "credential endpoints ignore the user")
}

func TestRateLimiter_VisitorBuckets(t *testing.T) {
	rl := NewRateLimiter(2, 0, KeyByUserOrIP())
	require.Equal(t, 1, rl.burst)

	first := rl.getVisitor("user:u1")
	assert.Same(t, first, rl.getVisitor("user:u1"))
	assert.NotSame(t, first, rl.getVisitor("user:u2"))
}

func TestRateLimiter_SweepsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 1, KeyByUserOrIP())
	rl.ttl = time.Nanosecond
	rl.mu.Lock()
	rl.visitors["ip:198.51.100.7"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: time.Now().Add(-time.Hour)}
	rl.cleanupN = 4999
	rl.mu.Unlock()

	rl.getVisitor("user:fresh")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.visitors, "ip:198.51.100.7")
	assert.Contains(t, rl.visitors, "user:fresh")
	assert.Zero(t, rl.cleanupN)
}

func TestIsRateBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.False(t, IsRateBypass(c))
	c.Set(ctxKeyRateBypass, true)
	assert.True(t, IsRateBypass(c))
	c.Set(ctxKeyRateBypass, 1)
	assert.False(t, IsRateBypass(c))
}

func TestRateLimiter_LimitsAndLetsReplaysThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(1, 1, KeyByUserOrIP())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Header(requestIDHeader, "rid-7")
		if c.GetHeader(HeaderIdempotencyKey) == "replayed" {
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	})
	r.Use(rl.Handler())
	r.POST("/api/v1/shelters/:id/donate", func(c *gin.Context) { c.Status(http.StatusCreated) })

	donate := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/shelters/s1/donate", nil)
		if key != "" {
			req.Header.Set(HeaderIdempotencyKey, key)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	require.Equal(t, http.StatusCreated, donate("").Code)

	w := donate("")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "rate_limited", body["code"])
	assert.Equal(t, "rate limit exceeded", body["message"])

	assert.Equal(t, http.StatusCreated, donate("replayed").Code, "replays skip the bucket")
}

func TestRateLimiter_CredentialEndpointsKeyByIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	// One attempt every two seconds.
	rl := NewRateLimiter(0.5, 1, KeyByIP())
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("userID", "ignored"); c.Next() })
	r.POST("/auth/jwt/create", rl.Handler(), func(c *gin.Context) { c.Status(http.StatusOK) })

	login := func(ip string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/jwt/create", nil)
		req.RemoteAddr = net.JoinHostPort(ip, "1000")
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, login("198.51.100.1").Code)
	w := login("198.51.100.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, login("198.51.100.2").Code)
}
