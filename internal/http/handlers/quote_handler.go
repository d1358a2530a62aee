// README: Price quote handler; prices a prospective order without storing it.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"wali/internal/apperr"
	"wali/internal/modules/pricing"
	"wali/internal/types"
)

type QuoteHandler struct {
	pricing *pricing.Service
}

func NewQuoteHandler(svc *pricing.Service) *QuoteHandler {
	return &QuoteHandler{pricing: svc}
}

type quoteReq struct {
	Type     string            `json:"type"`
	Pickup   types.Point       `json:"pickup"`
	Delivery types.Point       `json:"delivery"`
	Items    []types.OrderItem `json:"items"`
}

type quoteResp struct {
	types.PriceBreakdown
	PickupZone   string `json:"pickup_zone"`
	DeliveryZone string `json:"delivery_zone"`
}

func (h *QuoteHandler) Quote(c *gin.Context) {
	var req quoteReq
	if !bindJSON(c, &req) {
		return
	}
	ot, err := types.ParseOrderType(req.Type)
	if err != nil {
		writeError(c, fmt.Errorf("%w: %v", apperr.ErrInvalidRequest, err))
		return
	}
	b, err := h.pricing.Calculate(c.Request.Context(), pricing.Request{
		Type:     ot,
		Pickup:   req.Pickup,
		Delivery: req.Delivery,
		Items:    req.Items,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	area := h.pricing.Area()
	writeJSON(c, http.StatusOK, quoteResp{
		PriceBreakdown: b,
		PickupZone:     area.ZoneOf(req.Pickup),
		DeliveryZone:   area.ZoneOf(req.Delivery),
	})
}
