// README: Payout handlers: bank account registration and admin-triggered payouts.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carryhub/internal/modules/payout"
	"carryhub/internal/types"
)

type PayoutHandler struct {
	payouts *payout.Service
}

func NewPayoutHandler(svc *payout.Service) *PayoutHandler {
	return &PayoutHandler{payouts: svc}
}

type registerAccountReq struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	IFSC          string `json:"ifsc"`
	AccountNumber string `json:"account_number"`
}

type requestPayoutReq struct {
	UserID        string `json:"user_id"`
	ConsignmentID string `json:"consignment_id"`
}

func (h *PayoutHandler) RegisterAccount(c *gin.Context) {
	var req registerAccountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json", "invalid_json")
		return
	}
	userID, _ := caller(c)
	a, err := h.payouts.RegisterAccount(c.Request.Context(), payout.RegisterAccountCommand{
		UserID:        userID,
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		IFSC:          req.IFSC,
		AccountNumber: req.AccountNumber,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"ifsc": a.IFSC, "account_last4": a.AccountLast4})
}

// Request handles POST /api/admin/payouts for one traveller's completed earnings on a consignment.
func (h *PayoutHandler) Request(c *gin.Context) {
	var req requestPayoutReq
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" || !isValidID(req.ConsignmentID) {
		writeError(c, http.StatusBadRequest, "user_id and consignment_id are required", "missing_fields")
		return
	}
	_, isAdmin := caller(c)
	p, err := h.payouts.RequestPayout(c.Request.Context(), payout.RequestCommand{
		UserID:        types.ID(req.UserID),
		ConsignmentID: types.ID(req.ConsignmentID),
		IsAdmin:       isAdmin,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusAccepted, newPayoutView(p))
}
