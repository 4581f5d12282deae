// README: Fare quote and admin configuration handlers.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"carryhub/internal/modules/fare"
)

type FareHandler struct {
	fares *fare.Service
}

func NewFareHandler(svc *fare.Service) *FareHandler {
	return &FareHandler{fares: svc}
}

type fareConfigReq struct {
	BaseFareTrain               decimal.Decimal `json:"base_fare_train"`
	BaseFareFlight              decimal.Decimal `json:"base_fare_flight"`
	WeightRateTrain             decimal.Decimal `json:"weight_rate_train"`
	WeightRateFlight            decimal.Decimal `json:"weight_rate_flight"`
	DistanceRateTrain           decimal.Decimal `json:"distance_rate_train"`
	AdditionalDistanceRateTrain decimal.Decimal `json:"additional_distance_rate_train"`
	DistanceSlabRateFlight      decimal.Decimal `json:"distance_slab_rate_flight"`
	TE                          decimal.Decimal `json:"te"`
	Margin                      decimal.Decimal `json:"margin"`
}

// Quote handles GET /api/fares/quote?weight_kg=&distance_km=[&mode=].
func (h *FareHandler) Quote(c *gin.Context) {
	weight, err1 := strconv.ParseFloat(c.Query("weight_kg"), 64)
	distance, err2 := strconv.ParseFloat(c.Query("distance_km"), 64)
	if err1 != nil || err2 != nil {
		writeError(c, http.StatusBadRequest, "weight_kg and distance_km must be numbers", "invalid_query")
		return
	}
	ctx := c.Request.Context()
	if mode := c.Query("mode"); mode != "" {
		q, err := h.fares.Calculate(ctx, weight, distance, fare.Mode(mode))
		if err != nil {
			writeServiceError(c, err)
			return
		}
		writeJSON(c, http.StatusOK, gin.H{"quotes": map[fare.Mode]fare.Quote{fare.Mode(mode): q}})
		return
	}
	qs, err := h.fares.Quotes(ctx, weight, distance)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"quotes": qs})
}

// UpdateConfig handles PUT /api/admin/fare-config.
func (h *FareHandler) UpdateConfig(c *gin.Context) {
	var req fareConfigReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json", "invalid_json")
		return
	}
	err := h.fares.Update(c.Request.Context(), fare.Config{
		BaseFareTrain:               req.BaseFareTrain,
		BaseFareFlight:              req.BaseFareFlight,
		WeightRateTrain:             req.WeightRateTrain,
		WeightRateFlight:            req.WeightRateFlight,
		DistanceRateTrain:           req.DistanceRateTrain,
		AdditionalDistanceRateTrain: req.AdditionalDistanceRateTrain,
		DistanceSlabRateFlight:      req.DistanceSlabRateFlight,
		TE:                          req.TE,
		Margin:                      req.Margin,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
