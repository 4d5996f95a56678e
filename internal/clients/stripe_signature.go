package clients

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifyWebhookSignature checks a Stripe-style webhook signature header of
// the form "t={unix_ts},v1={hex_hmac}". The signed payload is
// "{t}.{rawBody}" and digests are compared in constant time.
func VerifyWebhookSignature(payload []byte, signatureHeader, secret string) bool {
	var timestamp, signature string

	for _, part := range strings.Split(signatureHeader, ",") {
		part = strings.TrimSpace(part)

		if strings.HasPrefix(part, "t=") {
			timestamp = part[len("t="):]
		} else if strings.HasPrefix(part, "v1=") {
			signature = part[len("v1="):]
		}
	}

	if timestamp == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	provided, err := hex.DecodeString(signature)

	if err != nil {
		return false
	}

	return hmac.Equal(provided, expected)
}
