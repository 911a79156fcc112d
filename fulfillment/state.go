package fulfillment

import (
	"errors"

	"github.com/kfimusic/beatstore/models"
)

// State is the terminal position of one fulfillment run.
type State string

const (
	StateReceived      State = "received"
	StateAuthenticated State = "authenticated"
	StateResolved      State = "resolved"
	StateListed        State = "listed"
	// StateNotified ends a run that sent the download email.
	StateNotified State = "notified"
	// StateDone ends a run that listed files but sent no email.
	StateDone State = "done"

	StateRejected   State = "rejected"
	StateIgnored    State = "ignored"
	StateUnresolved State = "unresolved"
	StateFailed     State = "failed"
)

// Entry points into the orchestrator, used for logs and metrics.
const (
	EntryWebhook = "webhook"
	EntryPolling = "polling"
)

var (
	ErrNotConfigured      = errors.New("fulfillment dependency not configured")
	ErrPaymentNotVerified = errors.New("payment not verified")
	ErrNoFiles            = errors.New("no files found")
	ErrStorage            = errors.New("failed to generate download URLs")
	ErrProcessor          = errors.New("payment processor request failed")
)

// Outcome summarizes one run for logs, metrics and tests.
type Outcome struct {
	State     State
	SessionID string
	Product   string
	Folder    string
	Files     []models.DeliverableFile
	Notified  bool
	// Skipped explains why no email was sent when the run otherwise succeeded.
	Skipped string
	Err     error
}

// DownloadLink is one entry of the polling response.
type DownloadLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// DownloadConfirmation is the polling entry point's result.
type DownloadConfirmation struct {
	Product   string         `json:"product"`
	SessionID string         `json:"sessionId"`
	Count     int            `json:"count"`
	Files     []DownloadLink `json:"files"`
}
