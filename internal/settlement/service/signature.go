package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// signatureValid checks the gateway's capture signature: HMAC-SHA256 of
// "<orderID>|<paymentID>" keyed with the gateway secret, hex encoded.
func signatureValid(secret, orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
