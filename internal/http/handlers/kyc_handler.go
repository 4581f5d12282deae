// README: KYC handlers: document submission, status, and the provider callback.
package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"carryhub/internal/errs"
	"carryhub/internal/modules/kyc"
)

// KYCTokenHeader carries the shared token the provider sends with every callback.
const KYCTokenHeader = "X-KYC-Token"

type KYCHandler struct {
	kyc *kyc.Service
}

func NewKYCHandler(svc *kyc.Service) *KYCHandler {
	return &KYCHandler{kyc: svc}
}

type submitKYCReq struct {
	FrontImage string `json:"front_image"`
	BackImage  string `json:"back_image"`
	Selfie     string `json:"selfie"`
	Consent    bool   `json:"consent"`
}

// Submit handles POST /api/kyc/:type. Images are URLs the client already uploaded.
func (h *KYCHandler) Submit(c *gin.Context) {
	t, ok := kyc.ParseType(c.Param("type"))
	if !ok {
		writeServiceError(c, kyc.ErrUnknownType)
		return
	}
	var req submitKYCReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json", "invalid_json")
		return
	}
	userID, _ := caller(c)
	task, err := h.kyc.Submit(c.Request.Context(), kyc.SubmitCommand{
		UserID:     userID,
		Type:       t,
		FrontImage: req.FrontImage,
		BackImage:  req.BackImage,
		Selfie:     req.Selfie,
		Consent:    req.Consent,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusAccepted, gin.H{"type": task.Type, "request_id": task.RequestID, "status": task.Status})
}

func (h *KYCHandler) Status(c *gin.Context) {
	userID, _ := caller(c)
	p, err := h.kyc.Status(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

// Callback handles POST /webhooks/kyc. Unknown tasks answer 5xx so the provider retries.
func (h *KYCHandler) Callback(c *gin.Context) {
	if err := h.kyc.Authorize(c.GetHeader(KYCTokenHeader)); err != nil {
		c.String(http.StatusUnauthorized, "unauthorized")
		return
	}
	var cb kyc.Callback
	if err := c.ShouldBindJSON(&cb); err != nil {
		c.String(http.StatusBadRequest, "invalid json")
		return
	}
	dup, err := h.kyc.HandleCallback(c.Request.Context(), cb)
	if err != nil {
		switch status := statusOf(err); {
		case status == http.StatusNotFound:
			// the task row may not be committed yet; the provider retries on 503
			c.String(http.StatusServiceUnavailable, "task pending")
		case status >= http.StatusInternalServerError:
			log.Printf("[kyc] callback: %v", err)
			c.String(http.StatusInternalServerError, "retry")
		default:
			c.String(status, errs.CodeOf(err))
		}
		return
	}
	if dup {
		c.String(http.StatusOK, "duplicate")
		return
	}
	c.String(http.StatusOK, "applied")
}
