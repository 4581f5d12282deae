// README: Gateway webhook handler. Reads the raw body so the signature covers exactly what was sent.
package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"carryhub/internal/errs"
	"carryhub/internal/modules/webhook"
)

// SignatureHeader carries the gateway's HMAC of the raw body.
const SignatureHeader = "X-Gateway-Signature"

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	reconciler *webhook.Reconciler
}

func NewWebhookHandler(r *webhook.Reconciler) *WebhookHandler {
	return &WebhookHandler{reconciler: r}
}

// Gateway handles POST /webhooks/gateway and /webhooks/gateway/refunds.
// Anything other than 200 makes the gateway redeliver, so only bad input is rejected with 400.
func (h *WebhookHandler) Gateway(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.String(http.StatusBadRequest, "invalid body")
		return
	}
	res, err := h.reconciler.Handle(c.Request.Context(), body, c.GetHeader(SignatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrInvalidSignature):
			c.String(http.StatusBadRequest, "invalid signature")
		case errors.Is(err, errs.ErrValidation):
			c.String(http.StatusBadRequest, "malformed event")
		default:
			log.Printf("[webhook] %s: %v", c.FullPath(), err)
			c.String(http.StatusInternalServerError, "retry")
		}
		return
	}
	c.String(http.StatusOK, string(res))
}
