// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// RedactingLogger is the access logger. It never logs bodies, masks
// credential headers and query parameters, and scrubs e-mail addresses,
// phone numbers and UUIDs from what it does log.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures additional scrubbing for RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are extra header names whose values are replaced with
	// "[REDACTED]". Authorization, Cookie and Set-Cookie are always masked.
	MaskHeaders []string
	// MaskParams are extra query parameter names whose values are replaced.
	// Activation, reset and partner-callback secrets are always masked.
	MaskParams []string
}

var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Digits only, so UUID hex segments never match.
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

var defaultMaskParams = []string{"token", "code", "state", "password", "new_password", "refresh", "access"}

// redactor scrubs strings destined for logs.
type redactor struct {
	headers map[string]struct{}
	params  *regexp.Regexp
}

func newRedactor(opts RedactOptions) *redactor {
	headers := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			headers[h] = struct{}{}
		}
	}
	names := make([]string, 0, len(defaultMaskParams)+len(opts.MaskParams))
	for _, p := range append(append([]string{}, defaultMaskParams...), opts.MaskParams...) {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, regexp.QuoteMeta(p))
		}
	}
	return &redactor{
		headers: headers,
		params:  regexp.MustCompile(`(?i)(^|&)(` + strings.Join(names, "|") + `)=[^&]*`),
	}
}

// text applies the pattern redactions. UUIDs go first because the phone
// pattern is the loosest.
func (r *redactor) text(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

func (r *redactor) query(raw string) string {
	if raw == "" {
		return raw
	}
	return r.text(r.params.ReplaceAllString(raw, "${1}${2}=[REDACTED]"))
}

func (r *redactor) header(name string, values []string) string {
	if _, ok := r.headers[strings.ToLower(name)]; ok {
		return "[REDACTED]"
	}
	return r.text(strings.Join(values, ", "))
}

// RedactingLogger returns a Gin middleware that attaches a request-scoped
// logger (see LoggerFrom) and writes one access log line per request: info
// by default, warn for 4xx, error for 5xx or when handlers recorded errors.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	rd := newRedactor(opts)

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		rid := RequestIDFrom(c)
		if rid == "" {
			rid = c.GetHeader(requestIDHeader)
		}
		query := truncate(rd.query(c.Request.URL.RawQuery), maxQueryLogLength)

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			headers[k] = rd.header(k, vv)
		}

		attachLogger(c, log.With().
			Str("request_id", rid).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger())

		c.Next()

		status := c.Writer.Status()
		if v := c.Writer.Header().Get(requestIDHeader); v != "" {
			rid = v
		}

		ev := log.Info()
		switch {
		case len(c.Errors) > 0:
			ev = log.Error().Str("errors", c.Errors.String())
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}

		ev.
			Str("request_id", rid).
			Str("user_id", asString(c.Value("userID"))).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Str("remote_ip", c.ClientIP()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}
