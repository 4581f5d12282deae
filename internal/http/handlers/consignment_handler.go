// README: Consignment handlers for create/get/cancel and the request list a sender reviews.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"carryhub/internal/modules/carryrequest"
	"carryhub/internal/modules/consignment"
)

type ConsignmentHandler struct {
	consignments *consignment.Service
	requests     *carryrequest.Service
}

func NewConsignmentHandler(consignments *consignment.Service, requests *carryrequest.Service) *ConsignmentHandler {
	return &ConsignmentHandler{consignments: consignments, requests: requests}
}

type createConsignmentReq struct {
	From          addressJSON `json:"from"`
	To            addressJSON `json:"to"`
	ReceiverName  string      `json:"receiver_name"`
	ReceiverPhone string      `json:"receiver_phone"`
	Description   string      `json:"description"`
	WeightKg      float64     `json:"weight_kg"`
	LengthCm      float64     `json:"length_cm"`
	WidthCm       float64     `json:"width_cm"`
	HeightCm      float64     `json:"height_cm"`
}

type cancelReq struct {
	Reason string `json:"reason"`
}

// Create handles POST /api/consignments. Quotes for every mode are computed up front.
func (h *ConsignmentHandler) Create(c *gin.Context) {
	var req createConsignmentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json", "invalid_json")
		return
	}
	senderID, _ := caller(c)
	out, err := h.consignments.Create(c.Request.Context(), consignment.CreateCommand{
		SenderID:    senderID,
		From:        req.From.model(),
		To:          req.To.model(),
		Receiver:    consignment.Receiver{Name: strings.TrimSpace(req.ReceiverName), Phone: strings.TrimSpace(req.ReceiverPhone)},
		Description: req.Description,
		WeightKg:    req.WeightKg,
		LengthCm:    req.LengthCm,
		WidthCm:     req.WidthCm,
		HeightCm:    req.HeightCm,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, newConsignmentView(out))
}

func (h *ConsignmentHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	out, err := h.consignments.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newConsignmentView(out))
}

// Cancel handles both the sender route and the admin route; the service decides what each may do.
func (h *ConsignmentHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req cancelReq
	_ = c.ShouldBindJSON(&req)
	actorID, isAdmin := caller(c)
	err := h.consignments.Cancel(c.Request.Context(), consignment.CancelCommand{
		ConsignmentID: id,
		ActorID:       actorID,
		IsAdmin:       isAdmin,
		Reason:        req.Reason,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"consignment_id": id, "status": consignment.StatusCancelled})
}

func (h *ConsignmentHandler) ListRequests(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	callerID, isAdmin := caller(c)
	rs, err := h.requests.ListForConsignment(c.Request.Context(), id, callerID, isAdmin)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]carryRequestView, 0, len(rs))
	for i := range rs {
		out = append(out, newCarryRequestView(&rs[i]))
	}
	writeJSON(c, http.StatusOK, gin.H{"carry_requests": out})
}
