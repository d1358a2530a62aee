// README: Payment provider webhook handler.
package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"wali/internal/apperr"
	"wali/internal/modules/payment"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	reconciler *payment.Reconciler
}

func NewWebhookHandler(r *payment.Reconciler) *WebhookHandler {
	return &WebhookHandler{reconciler: r}
}

// Payment acknowledges every verified delivery with 200, including ones that
// changed nothing, so providers stop redelivering. Only an unknown provider
// or a bad signature is refused.
func (h *WebhookHandler) Payment(c *gin.Context) {
	provider := c.Param("provider")
	header, err := h.reconciler.SignatureHeader(provider)
	if err != nil {
		writeError(c, err)
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResponse{Error: "unreadable body", Kind: apperr.KindInvalidRequest})
		return
	}
	res, err := h.reconciler.HandleProviderEvent(c.Request.Context(), provider, body, c.GetHeader(header))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}
