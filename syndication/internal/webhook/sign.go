// Package webhook builds, signs, and delivers event notifications to
// subscriber endpoints.
//
// Payloads are signed with HMAC-SHA256 over the exact request body bytes.
// Subscribers verify with Verify, which compares in constant time.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the payload signature on delivery requests.
const SignatureHeader = "X-Inkwell-Signature"

// EventHeader carries the event type on delivery requests.
const EventHeader = "X-Inkwell-Event"

// DeliveryIDHeader carries the unique per-attempt delivery identifier.
const DeliveryIDHeader = "X-Inkwell-Delivery"

// Sign computes the signature for a payload: "sha256=<hex hmac>".
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches body under secret.
// Constant-time comparison; safe against timing side-channels on the secret.
func Verify(body []byte, secret, signature string) bool {
	hexDigest, ok := strings.CutPrefix(signature, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(hexDigest)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
