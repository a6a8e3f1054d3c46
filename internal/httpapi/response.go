package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	arcerrors "github.com/gezibash/arc-contract/pkg/errors"
)

// APIError is the body of a failed response.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorEnvelope wraps APIError as {"error": {...}}.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// StatusFor maps a classified error onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, arcerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, arcerrors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, arcerrors.ErrAlreadyExists), errors.Is(err, arcerrors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, arcerrors.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, arcerrors.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes the envelope for err. Internal errors are logged and
// reported without their message.
func RespondError(c *gin.Context, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		msg = "internal error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{Message: msg, Code: arcerrors.Kind(err)},
	})
}

// RespondOK writes payload with status 200.
func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
