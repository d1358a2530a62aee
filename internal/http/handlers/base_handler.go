// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"wali/internal/apperr"
	"wali/internal/modules/pricing"
)

type errorResponse struct {
	Error     string      `json:"error"`
	Kind      apperr.Kind `json:"kind"`
	Retryable bool        `json:"retryable"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidCoordinate, apperr.KindInvalidRequest, apperr.KindOutOfServiceArea:
		return http.StatusBadRequest
	case apperr.KindMissingPrecondition:
		return http.StatusUnprocessableEntity
	case apperr.KindInvalidTransition, apperr.KindInvalidState, apperr.KindConcurrentModification:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidSignature:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status and a {error, kind, retryable} body.
// Internal errors are logged and never echoed to the client.
func writeError(c *gin.Context, err error) {
	if errors.Is(err, pricing.ErrNoTable) {
		writeJSON(c, http.StatusServiceUnavailable, errorResponse{Error: "pricing unavailable", Kind: apperr.KindInternal})
		return
	}
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "err", err)
		msg = "internal error"
	}
	writeJSON(c, status, errorResponse{Error: msg, Kind: kind, Retryable: apperr.Retryable(err)})
}

// bindJSON decodes the body, answering 400 itself on failure.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResponse{Error: "invalid json: " + err.Error(), Kind: apperr.KindInvalidRequest})
		return false
	}
	return true
}
