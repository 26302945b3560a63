// Package handlers provides HTTP handler implementations for the public API.
//
// This file holds the response utilities shared by every endpoint: a stable
// error envelope and small helpers for success responses. Every failure path
// in the API answers with an ErrorResponse carrying a machine-readable code,
// so the upstream platform can branch on `code` rather than parse messages.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "check request not found"
//	}
//
// Example success response:
//
//	HTTP/1.1 201 Created
//	{ "id": "abc123", "telegram_status": "PROCESSING" }
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/paperpeak/go-check-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by all endpoints. RequestID is
// echoed from X-Request-ID so client reports can be matched to server logs.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// stable machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// human-readable message, safe to show to end users
	Message string `json:"message" example:"check request not found"`
}

// fail aborts the request with a structured error envelope. Server errors
// (>= 500) are additionally logged through the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	reqID := c.Writer.Header().Get("X-Request-ID")
	resp := ErrorResponse{
		RequestID: reqID,
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail() for use outside this package,
// e.g. the router's NoRoute and NoMethod handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes body as JSON with the given status.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent answers 204 with no body.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
