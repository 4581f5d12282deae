// README: Carry request handlers: either side proposes, the counterparty answers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carryhub/internal/modules/carryrequest"
	"carryhub/internal/types"
)

type CarryRequestHandler struct {
	requests *carryrequest.Service
}

func NewCarryRequestHandler(svc *carryrequest.Service) *CarryRequestHandler {
	return &CarryRequestHandler{requests: svc}
}

type createCarryRequestReq struct {
	ConsignmentID string `json:"consignment_id"`
	TravelID      string `json:"travel_id"`
}

type rejectReq struct {
	Reason string `json:"reason"`
}

func (h *CarryRequestHandler) bind(c *gin.Context) (createCarryRequestReq, bool) {
	var req createCarryRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json", "invalid_json")
		return req, false
	}
	if !isValidID(req.ConsignmentID) || !isValidID(req.TravelID) {
		writeError(c, http.StatusBadRequest, "consignment_id and travel_id are required", "invalid_id")
		return req, false
	}
	return req, true
}

// CreateBySender handles POST /api/carry-requests/sender.
func (h *CarryRequestHandler) CreateBySender(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	senderID, _ := caller(c)
	out, err := h.requests.CreateBySender(c.Request.Context(), carryrequest.CreateBySenderCommand{
		SenderID:      senderID,
		ConsignmentID: types.ID(req.ConsignmentID),
		TravelID:      types.ID(req.TravelID),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, newCarryRequestView(out))
}

// CreateByTraveller handles POST /api/carry-requests/traveller.
func (h *CarryRequestHandler) CreateByTraveller(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	travellerID, _ := caller(c)
	out, err := h.requests.CreateByTraveller(c.Request.Context(), carryrequest.CreateByTravellerCommand{
		TravellerID:   travellerID,
		ConsignmentID: types.ID(req.ConsignmentID),
		TravelID:      types.ID(req.TravelID),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, newCarryRequestView(out))
}

func (h *CarryRequestHandler) Accept(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	actorID, isAdmin := caller(c)
	out, err := h.requests.Accept(c.Request.Context(), carryrequest.AcceptCommand{RequestID: id, ActorID: actorID, IsAdmin: isAdmin})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newCarryRequestView(out))
}

func (h *CarryRequestHandler) Reject(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req rejectReq
	_ = c.ShouldBindJSON(&req)
	actorID, isAdmin := caller(c)
	out, err := h.requests.Reject(c.Request.Context(), carryrequest.RejectCommand{
		RequestID: id,
		ActorID:   actorID,
		IsAdmin:   isAdmin,
		Reason:    req.Reason,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newCarryRequestView(out))
}

func (h *CarryRequestHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	callerID, isAdmin := caller(c)
	out, err := h.requests.Get(c.Request.Context(), id, callerID, isAdmin)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newCarryRequestView(out))
}
