// Package payments verifies processor webhooks and retrieves checkout sessions.
package payments

import (
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v78/webhook"
)

// Tolerance bounds how old a signed timestamp may be.
const Tolerance = webhook.DefaultTolerance

// VerifySignature checks every v1 entry of header against
// HMAC-SHA256(secret, t + "." + body). Failures are the webhook package's
// sentinel errors; see RejectionReason.
func VerifySignature(body []byte, header, secret string) error {
	return webhook.ValidatePayloadWithTolerance(body, strings.TrimSpace(header), secret, Tolerance)
}

// RejectionReason labels a VerifySignature failure for logs and metrics.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, webhook.ErrNotSigned):
		return "unsigned"
	case errors.Is(err, webhook.ErrInvalidHeader):
		return "malformed_signature"
	case errors.Is(err, webhook.ErrTooOld):
		return "expired_signature"
	case errors.Is(err, webhook.ErrNoValidSignature):
		return "bad_signature"
	default:
		return "rejected"
	}
}
