// README: Travel consignment handlers: OTP pickup/delivery and the admin cancel.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"carryhub/internal/modules/handover"
)

type HandoverHandler struct {
	handovers *handover.Service
}

func NewHandoverHandler(svc *handover.Service) *HandoverHandler {
	return &HandoverHandler{handovers: svc}
}

type otpReq struct {
	OTP string `json:"otp"`
}

func (h *HandoverHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	callerID, isAdmin := caller(c)
	v, err := h.handovers.Get(c.Request.Context(), id, callerID, isAdmin)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, v)
}

func (h *HandoverHandler) Pickup(c *gin.Context) {
	h.verify(c, h.handovers.VerifyPickup)
}

func (h *HandoverHandler) Deliver(c *gin.Context) {
	h.verify(c, h.handovers.VerifyDelivery)
}

func (h *HandoverHandler) verify(c *gin.Context, step func(context.Context, handover.VerifyCommand) (*handover.TravelConsignment, error)) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req otpReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.OTP) == "" {
		writeError(c, http.StatusBadRequest, "otp is required", "missing_otp")
		return
	}
	actorID, isAdmin := caller(c)
	tc, err := step(c.Request.Context(), handover.VerifyCommand{TravelConsignmentID: id, ActorID: actorID, IsAdmin: isAdmin, OTP: req.OTP})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, handover.ViewFor(tc, actorID))
}

func (h *HandoverHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	actorID, isAdmin := caller(c)
	if err := h.handovers.Cancel(c.Request.Context(), handover.CancelCommand{TravelConsignmentID: id, ActorID: actorID, IsAdmin: isAdmin}); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"travel_consignment_id": id, "status": handover.StatusCancelled})
}
