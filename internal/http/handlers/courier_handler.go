// README: Courier handlers for position reports and dispatch candidates.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wali/internal/modules/dispatch"
	"wali/internal/types"
)

type CourierHandler struct {
	dispatch *dispatch.Service
}

func NewCourierHandler(svc *dispatch.Service) *CourierHandler {
	return &CourierHandler{dispatch: svc}
}

func (h *CourierHandler) UpdatePosition(c *gin.Context) {
	var req types.Point
	if !bindJSON(c, &req) {
		return
	}
	if err := h.dispatch.UpdatePosition(c.Request.Context(), types.ID(c.Param("id")), req); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CourierHandler) RemovePosition(c *gin.Context) {
	if err := h.dispatch.RemoveCourier(c.Request.Context(), types.ID(c.Param("id"))); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Candidates lists couriers near the pickup of a confirmed order.
func (h *CourierHandler) Candidates(c *gin.Context) {
	list, err := h.dispatch.Candidates(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []dispatch.Candidate{}
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": c.Param("id"), "candidates": list})
}
