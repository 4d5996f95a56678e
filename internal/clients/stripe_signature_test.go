package clients

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
)

func sign(payload []byte, timestamp, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "." + string(payload)))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	secret := "whsec_test"
	timestamp := "1700000000"

	header := fmt.Sprintf("t=%s,v1=%s", timestamp, sign(payload, timestamp, secret))

	if !VerifyWebhookSignature(payload, header, secret) {
		t.Fatal("expected valid signature to verify")
	}
}

func TestVerifyWebhookSignatureRejectsTamperedPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	timestamp := "1700000000"
	header := fmt.Sprintf("t=%s,v1=%s", timestamp, sign(payload, timestamp, "whsec_test"))

	if VerifyWebhookSignature([]byte(`{"id":"evt_2"}`), header, "whsec_test") {
		t.Fatal("expected tampered payload to fail")
	}
}

func TestVerifyWebhookSignatureRejectsWrongSecret(t *testing.T) {
	payload := []byte(`{}`)
	timestamp := "1700000000"
	header := fmt.Sprintf("t=%s,v1=%s", timestamp, sign(payload, timestamp, "whsec_other"))

	if VerifyWebhookSignature(payload, header, "whsec_test") {
		t.Fatal("expected wrong secret to fail")
	}
}

func TestVerifyWebhookSignatureRejectsMalformedHeaders(t *testing.T) {
	payload := []byte(`{}`)

	headers := []string{
		"",
		"v1=abcdef",
		"t=1700000000",
		"t=1700000000,v1=not-hex",
		"garbage",
	}

	for _, header := range headers {
		if VerifyWebhookSignature(payload, header, "whsec_test") {
			t.Fatalf("expected header %q to fail", header)
		}
	}
}
