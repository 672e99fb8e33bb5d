package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/wide/core"
	"github.com/layer-3/wide/internal/metrics"
	"github.com/layer-3/wide/service"
)

const (
	sessionKey   = "session"
	authErrorKey = "authError"
)

// LimitBody caps the bytes read from any request body at limit.
func LimitBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

// SessionMiddleware resolves the session cookie into a live session. Requests
// without a usable cookie pass through anonymously; RequireSession decides
// whether a route needs one.
func SessionMiddleware(authService *service.AuthService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			c.Next()
			return
		}

		session, err := authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, core.ErrAuthentication) {
				writeError(c, err)
				return
			}
			c.Set(authErrorKey, err)
			c.Next()
			return
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

// RequireSession rejects requests without a live session.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := sessionFrom(c); ok {
			c.Next()
			return
		}

		if v, ok := c.Get(authErrorKey); ok {
			if err, ok := v.(error); ok {
				writeError(c, err)
				return
			}
		}
		writeError(c, core.AuthFailure(core.ReasonSessionInvalid, errors.New("no session cookie")))
	}
}

// sessionFrom returns the session resolved by SessionMiddleware, if any.
func sessionFrom(c *gin.Context) (*core.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	session, ok := v.(*core.Session)
	return session, ok && session != nil
}

// accountParam parses the :accountAddress path parameter.
func accountParam(c *gin.Context) (core.Address, bool) {
	account, err := core.ParseAddress(c.Param("accountAddress"))
	if err != nil {
		writeError(c, err)
		return "", false
	}
	return account, true
}

// Observe records request metrics and logs each request once it completes.
func Observe(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(status), duration)

		attrs := []any{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration", duration,
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.Last().Err)
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request failed", attrs...)
		case status >= http.StatusBadRequest:
			logger.Warn("request rejected", attrs...)
		default:
			logger.Debug("request served", attrs...)
		}
	}
}
