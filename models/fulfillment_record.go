package models

import "time"

type FulfillmentStatus string

const (
	FulfillmentStatusSending  FulfillmentStatus = "sending"
	FulfillmentStatusNotified FulfillmentStatus = "notified"
)

// FulfillmentRecord marks a processor session whose delivery email has been
// claimed or sent.
type FulfillmentRecord struct {
	SessionID  string            `json:"session_id"`
	Status     FulfillmentStatus `json:"status"`
	ClaimedAt  time.Time         `json:"claimed_at"`
	ClaimToken string            `json:"-"`
	NotifiedAt *time.Time        `json:"notified_at,omitempty"`
}
