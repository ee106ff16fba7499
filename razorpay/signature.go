package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// PaymentSignature is the signature the gateway issues for a successful
// checkout: hex HMAC-SHA256 of "order_id|payment_id" keyed by the secret.
func PaymentSignature(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPaymentSignature recomputes the signature and compares in constant
// time.
func VerifyPaymentSignature(orderID, paymentID, signature, secret string) bool {
	if orderID == "" || paymentID == "" || signature == "" || secret == "" {
		return false
	}
	expected := PaymentSignature(orderID, paymentID, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
