package access

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ContextKey is the Gin context key holding the request *Actor.
const ContextKey = "actor"

// SetActor stores a on the request. The user id is also stored under
// "userID" for the rate limiter and access logs.
func SetActor(c *gin.Context, a *Actor) {
	c.Set(ContextKey, a)
	if a.Authenticated() {
		c.Set("userID", a.ID)
	}
}

// FromContext returns the request actor or nil when anonymous.
func FromContext(c *gin.Context) *Actor {
	if v, ok := c.Get(ContextKey); ok {
		if a, ok := v.(*Actor); ok {
			return a
		}
	}
	return nil
}

// Require aborts the request unless rule admits the actor for the action
// implied by the HTTP method. Object-level checks stay with the handler.
func Require(rule Rule) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := Check(rule, FromContext(c), ActionFromMethod(c.Request.Method))
		if err == nil {
			c.Next()
			return
		}
		status, code := StatusOf(err)
		c.AbortWithStatusJSON(status, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       code,
			"message":    err.Error(),
		})
	}
}

// StatusOf maps an access error onto an HTTP status and error code.
func StatusOf(err error) (int, string) {
	if errors.Is(err, ErrUnauthenticated) {
		return http.StatusUnauthorized, "unauthorized"
	}
	return http.StatusForbidden, "forbidden"
}
