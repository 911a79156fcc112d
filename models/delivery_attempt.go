package models

import "time"

// DeliveryStatus defines the set of allowed outcomes for a DeliveryAttempt.
type DeliveryStatus string

const (
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
	DeliveryStatusSkipped   DeliveryStatus = "skipped"
)

// DeliveryAttempt represents one try of one email transport,
// logging its status and any potential errors.
type DeliveryAttempt struct {
	ID           string         `json:"id"`
	SessionID    string         `json:"session_id,omitempty"`
	Transport    string         `json:"transport"`
	Sender       string         `json:"sender"`
	Status       DeliveryStatus `json:"status"`
	MessageID    string         `json:"message_id,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
