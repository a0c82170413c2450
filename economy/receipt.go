/*
receipt.go - Keyed-hash receipt verification

PURPOSE:
  A purchase receipt token is an HMAC-SHA256 over the order id, keyed with
  a server-held secret. GenerateSignature mirrors what the external payment
  provider supplies; Verify recomputes and compares in constant time.

FAIL-CLOSED:
  Empty, malformed, truncated, or legacy-format tokens always fail. There
  is deliberately no bypass path, mock format, or dev shortcut.
*/
package economy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// ReceiptVerifier validates purchase receipt tokens.
type ReceiptVerifier struct {
	secret []byte
}

func NewReceiptVerifier(secret string) *ReceiptVerifier {
	return &ReceiptVerifier{secret: []byte(secret)}
}

// GenerateSignature computes the hex token for an order id.
func (v *ReceiptVerifier) GenerateSignature(orderID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares it to token.
func (v *ReceiptVerifier) Verify(orderID, token string) bool {
	if orderID == "" || token == "" {
		return false
	}
	raw, err := hex.DecodeString(token)
	if err != nil || len(raw) != sha256.Size {
		return false
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderID))
	return hmac.Equal(raw, mac.Sum(nil))
}
