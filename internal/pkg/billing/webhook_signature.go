package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// StripeSignatureHeader is the request header carrying the webhook signature.
const StripeSignatureHeader = "Stripe-Signature"

// VerifyStripeWebhookSignature checks a "t=<unix>,v1=<hex>" signature header
// against HMAC-SHA256(secret, "<t>.<payload>"). A tolerance of zero disables
// the timestamp window check.
func VerifyStripeWebhookSignature(payload []byte, signatureHeader, webhookSecret string, tolerance time.Duration, now time.Time) error {
	header := strings.TrimSpace(signatureHeader)
	secret := strings.TrimSpace(webhookSecret)
	if header == "" {
		return fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
	}
	if secret == "" {
		return fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}

	var timestamp string
	var signatures [][]byte
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			sig, err := hex.DecodeString(strings.ToLower(value))
			if err == nil {
				signatures = append(signatures, sig)
			}
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return fmt.Errorf("%w: malformed signature header", ErrInvalidSignature)
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
	}
	if tolerance > 0 {
		signedAt := time.Unix(ts, 0)
		if now.Sub(signedAt) > tolerance || signedAt.Sub(now) > tolerance {
			return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
		}
	}

	expected := computeSignature(payload, timestamp, []byte(secret))
	for _, sig := range signatures {
		if hmac.Equal(expected, sig) {
			return nil
		}
	}
	return fmt.Errorf("%w: no matching v1 signature", ErrInvalidSignature)
}

// SignStripePayload builds a signature header for payload. Used by tooling
// and tests that replay gateway deliveries.
func SignStripePayload(payload []byte, webhookSecret string, at time.Time) string {
	timestamp := strconv.FormatInt(at.Unix(), 10)
	sig := computeSignature(payload, timestamp, []byte(webhookSecret))
	return "t=" + timestamp + ",v1=" + hex.EncodeToString(sig)
}

func computeSignature(payload []byte, timestamp string, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}
