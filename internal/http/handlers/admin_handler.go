// README: Admin handlers (tariff reload) and liveness.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wali/internal/modules/pricing"
)

type AdminHandler struct {
	pricing *pricing.Service
}

func NewAdminHandler(svc *pricing.Service) *AdminHandler {
	return &AdminHandler{pricing: svc}
}

// ReloadPricing swaps in the current tariff table. A failed reload keeps the
// previous table and answers 500.
func (h *AdminHandler) ReloadPricing(c *gin.Context) {
	if err := h.pricing.Reload(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	table, _ := h.pricing.Table()
	writeJSON(c, http.StatusOK, gin.H{"currency": table.Currency, "tariffs": table.Tariffs})
}

func Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}
