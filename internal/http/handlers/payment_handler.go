// README: Payment handlers: checkout initiation, client-side capture and lookup.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carryhub/internal/modules/payment"
	"carryhub/internal/types"
)

type PaymentHandler struct {
	payments *payment.Service
	keyID    string
}

func NewPaymentHandler(svc *payment.Service, keyID string) *PaymentHandler {
	return &PaymentHandler{payments: svc, keyID: keyID}
}

type initiatePaymentReq struct {
	CarryRequestID string `json:"carry_request_id"`
}

type capturePaymentReq struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// Initiate handles POST /api/payments/initiate. A retry returns the same order while it is fresh.
func (h *PaymentHandler) Initiate(c *gin.Context) {
	var req initiatePaymentReq
	if err := c.ShouldBindJSON(&req); err != nil || !isValidID(req.CarryRequestID) {
		writeError(c, http.StatusBadRequest, "carry_request_id is required", "invalid_json")
		return
	}
	payerID, _ := caller(c)
	res, err := h.payments.Initiate(c.Request.Context(), payment.InitiateCommand{
		CarryRequestID: types.ID(req.CarryRequestID),
		PayerID:        payerID,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	status := http.StatusCreated
	if res.Resumed {
		status = http.StatusOK
	}
	writeJSON(c, status, gin.H{
		"payment_id": res.Payment.ID,
		"order_id":   res.OrderID,
		"amount":     res.Amount,
		"currency":   res.Payment.Currency,
		"key_id":     h.keyID,
		"resumed":    res.Resumed,
	})
}

// Capture handles POST /api/payments/capture. Funds are only moved by the webhook.
func (h *PaymentHandler) Capture(c *gin.Context) {
	var req capturePaymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json", "invalid_json")
		return
	}
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		writeError(c, http.StatusBadRequest, "order_id, payment_id and signature are required", "missing_fields")
		return
	}
	payerID, _ := caller(c)
	out, err := h.payments.Capture(c.Request.Context(), payment.CaptureCommand{
		PayerID:   payerID,
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newPaymentView(out))
}

func (h *PaymentHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	callerID, isAdmin := caller(c)
	out, err := h.payments.Get(c.Request.Context(), id, callerID, isAdmin)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newPaymentView(out))
}
