// README: Order handlers for create/get/events/transitions/cancel/reprice.
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"wali/internal/apperr"
	"wali/internal/modules/order"
	"wali/internal/types"
)

type OrderHandler struct {
	order *order.Service
}

func NewOrderHandler(svc *order.Service) *OrderHandler {
	return &OrderHandler{order: svc}
}

type createOrderReq struct {
	CustomerID  string            `json:"customer_id"`
	Type        string            `json:"type"`
	Pickup      types.Place       `json:"pickup"`
	Delivery    types.Place       `json:"delivery"`
	Items       []types.OrderItem `json:"items"`
	Notes       string            `json:"notes"`
	ScheduledAt *time.Time        `json:"scheduled_at"`
}

type transitionReq struct {
	TargetStatus    string    `json:"target_status"`
	ActorType       string    `json:"actor_type"`
	ActorID         *types.ID `json:"actor_id"`
	DriverID        *types.ID `json:"driver_id"`
	Reason          string    `json:"reason"`
	ProofOfDelivery string    `json:"proof_of_delivery"`
}

type cancelReq struct {
	Reason    string    `json:"reason"`
	ActorType string    `json:"actor_type"`
	ActorID   *types.ID `json:"actor_id"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if !bindJSON(c, &req) {
		return
	}
	ot, err := types.ParseOrderType(req.Type)
	if err != nil {
		writeError(c, fmt.Errorf("%w: %v", apperr.ErrInvalidRequest, err))
		return
	}
	o, err := h.order.Create(c.Request.Context(), order.CreateCommand{
		CustomerID:  types.ID(req.CustomerID),
		Type:        ot,
		Pickup:      req.Pickup,
		Delivery:    req.Delivery,
		Items:       req.Items,
		Notes:       req.Notes,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, o)
}

// Get accepts an order id or an order number.
func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.order.GetByReference(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

func (h *OrderHandler) Events(c *gin.Context) {
	events, err := h.order.Events(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": c.Param("id"), "events": events})
}

func (h *OrderHandler) Transition(c *gin.Context) {
	var req transitionReq
	if !bindJSON(c, &req) {
		return
	}
	target, err := order.ParseStatus(req.TargetStatus)
	if err != nil {
		writeError(c, err)
		return
	}
	o, err := h.order.RequestTransition(c.Request.Context(), order.TransitionCommand{
		OrderID: types.ID(c.Param("id")),
		Target:  target,
		TransitionContext: order.TransitionContext{
			ActorType:       req.ActorType,
			ActorID:         req.ActorID,
			DriverID:        req.DriverID,
			Reason:          req.Reason,
			ProofOfDelivery: req.ProofOfDelivery,
		},
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	var req cancelReq
	if !bindJSON(c, &req) {
		return
	}
	o, err := h.order.Cancel(c.Request.Context(), order.CancelCommand{
		OrderID:   types.ID(c.Param("id")),
		Reason:    req.Reason,
		ActorType: req.ActorType,
		ActorID:   req.ActorID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

func (h *OrderHandler) Reprice(c *gin.Context) {
	b, err := h.order.RecalculatePrice(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": c.Param("id"), "price": b})
}
