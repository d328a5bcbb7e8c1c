package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignOrder is the checkout signature: hex HMAC-SHA256 of "order_id|payment_id".
func SignOrder(secret, orderID, paymentID string) string {
	return SignPayload(secret, []byte(orderID+"|"+paymentID))
}

// SignPayload is the webhook signature: hex HMAC-SHA256 of the raw body.
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func VerifyOrderSignature(secret, orderID, paymentID, signature string) bool {
	return equalHex(SignOrder(secret, orderID, paymentID), signature)
}

func VerifyWebhook(secret string, body []byte, signature string) bool {
	return equalHex(SignPayload(secret, body), signature)
}

func equalHex(expected, got string) bool {
	if got == "" {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(got))
}
