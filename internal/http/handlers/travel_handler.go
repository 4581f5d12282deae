// README: Travel handlers.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"carryhub/internal/modules/fare"
	"carryhub/internal/modules/travel"
)

type TravelHandler struct {
	travels *travel.Service
}

func NewTravelHandler(svc *travel.Service) *TravelHandler {
	return &TravelHandler{travels: svc}
}

type createTravelReq struct {
	From        placeJSON `json:"from"`
	To          placeJSON `json:"to"`
	DepartureAt time.Time `json:"departure_at"`
	ArrivalAt   time.Time `json:"arrival_at"`
	Mode        string    `json:"mode"`
}

func (h *TravelHandler) Create(c *gin.Context) {
	var req createTravelReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json", "invalid_json")
		return
	}
	travellerID, _ := caller(c)
	out, err := h.travels.Create(c.Request.Context(), travel.CreateCommand{
		TravellerID: travellerID,
		From:        travel.Place(req.From),
		To:          travel.Place(req.To),
		DepartureAt: req.DepartureAt,
		ArrivalAt:   req.ArrivalAt,
		Mode:        fare.Mode(req.Mode),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, newTravelView(out))
}

func (h *TravelHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	out, err := h.travels.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newTravelView(out))
}

func (h *TravelHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	actorID, isAdmin := caller(c)
	if err := h.travels.Cancel(c.Request.Context(), travel.CancelCommand{TravelID: id, ActorID: actorID, IsAdmin: isAdmin}); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"travel_id": id, "status": travel.StatusCancelled})
}
