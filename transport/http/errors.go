package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/wide/core"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// mapErrorToStatusCode maps domain errors to HTTP status codes.
func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, core.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidRequest),
		errors.Is(err, core.ErrInvalidAddress),
		errors.Is(err, core.ErrInvalidSignature):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrLedgerDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError aborts the request with the status mapped from err. Server-side
// failures are reported without their cause, which is kept on the context
// for the request logger.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	status := mapErrorToStatusCode(err)
	resp := ErrorResponse{Error: err.Error()}

	switch status {
	case http.StatusUnauthorized:
		resp.Error = core.ErrAuthentication.Error()
		if reason, ok := core.ReasonOf(err); ok {
			resp.Reason = string(reason)
		}
	case http.StatusServiceUnavailable:
		resp.Error = core.ErrLedgerDisabled.Error()
	case http.StatusBadGateway:
		resp.Error = core.ErrUpstream.Error()
	case http.StatusInternalServerError:
		resp.Error = http.StatusText(status)
	}

	c.AbortWithStatusJSON(status, resp)
}

// badRequest reports a request body or query that could not be bound.
func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "Request body too large"})
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request"})
}
