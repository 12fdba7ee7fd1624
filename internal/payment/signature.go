package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"example.com/orderfulfillment/internal/apperr"
)

// VerifySignature checks an HMAC-SHA256 signature over the raw webhook
// request body against the provided secret, using a constant-time compare
// to avoid leaking timing information about the expected signature.
func VerifySignature(secret []byte, body []byte, signatureHex string) error {
	expected, err := hex.DecodeString(signatureHex)
	if err != nil {
		return apperr.New(apperr.KindSignatureFailure, "подпись webhook не в шестнадцатеричном формате")
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	computed := mac.Sum(nil)

	if !hmac.Equal(computed, expected) {
		return apperr.New(apperr.KindSignatureFailure, "подпись webhook не совпадает")
	}
	return nil
}
