// README: HMAC-SHA256 signatures shared by the capture endpoint and every webhook stream.
package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Sign returns the lowercase hex HMAC-SHA256 of payload.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares in constant time. An empty secret never verifies.
func Verify(secret string, payload []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	want := Sign(secret, payload)
	return subtle.ConstantTimeCompare([]byte(want), []byte(signature)) == 1
}

// CapturePayload is the message the checkout signs: "<orderId>|<paymentId>".
func CapturePayload(orderID, paymentID string) []byte {
	return []byte(orderID + "|" + paymentID)
}
