package delivery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kfimusic/beatstore/models"
)

const (
	templateHeader   = "X-KFI-Template"
	senderModeHeader = "X-KFI-Sender-Mode"

	templatePrimary  = "download-v2"
	templateFallback = "download-v2-fallback"

	// TransportAuto runs the full chain; TransportSMTP skips straight to the relay.
	TransportAuto = "auto"
	TransportSMTP = "smtp"
)

// AttemptRecorder persists the trail of transport attempts.
type AttemptRecorder interface {
	CreateAttempt(ctx context.Context, attempt *models.DeliveryAttempt) error
}

// ChainError is returned when every configured transport failed.
type ChainError struct {
	Attempts []models.DeliveryAttempt
}

func (e *ChainError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s(%s): %s", a.Transport, a.Sender, a.ErrorMessage))
	}
	return "all email transports failed: " + strings.Join(parts, "; ")
}

// DownloadRequest asks the Notifier to email a set of signed links.
type DownloadRequest struct {
	SessionID   string
	To          string
	ProductName string
	Files       []models.DeliverableFile
	Expiry      time.Duration
	// Transport is TransportAuto (default) or TransportSMTP.
	Transport string
}

// Notifier renders download emails and walks the transport chain until one
// succeeds: primary identity, fallback identity, then the SMTP relay.
type Notifier struct {
	renderer    *Renderer
	identities  SenderIdentities
	modes       *ModeSwitch
	primary     Transport
	smtp        Transport
	smtpFrom    string
	attempts    AttemptRecorder
	fingerprint func(string) string
}

// NotifierOptions wires a Notifier. Nil transports are skipped.
type NotifierOptions struct {
	Renderer   *Renderer
	Identities SenderIdentities
	Modes      *ModeSwitch
	Primary    Transport
	SMTP       Transport
	SMTPFrom   string
	Attempts   AttemptRecorder
	// Fingerprint masks recipient addresses in logs.
	Fingerprint func(string) string
}

func NewNotifier(opts NotifierOptions) *Notifier {
	n := &Notifier{
		renderer:    opts.Renderer,
		identities:  opts.Identities,
		modes:       opts.Modes,
		primary:     opts.Primary,
		smtp:        opts.SMTP,
		smtpFrom:    opts.SMTPFrom,
		attempts:    opts.Attempts,
		fingerprint: opts.Fingerprint,
	}
	if n.modes == nil {
		n.modes = NewModeSwitch(SenderModeAuto)
	}
	if n.fingerprint == nil {
		n.fingerprint = func(s string) string { return s }
	}
	return n
}

// Configured reports whether at least one transport exists.
func (n *Notifier) Configured() bool {
	return n != nil && (n.primary != nil || n.smtp != nil)
}

type step struct {
	transport Transport
	from      string
	headers   map[string]string
}

func (n *Notifier) chain(transport string) []step {
	if transport == TransportSMTP {
		if n.smtp == nil {
			return nil
		}
		return []step{{transport: n.smtp, from: n.smtpFrom}}
	}

	var steps []step
	if n.primary != nil {
		mode := n.modes.Mode()
		from := n.identities.Effective(mode)
		steps = append(steps, step{
			transport: n.primary,
			from:      from,
			headers:   map[string]string{templateHeader: templatePrimary, senderModeHeader: string(mode)},
		})
		if fb := n.identities.FallbackFor(from); fb != "" {
			steps = append(steps, step{
				transport: n.primary,
				from:      fb,
				headers:   map[string]string{templateHeader: templateFallback},
			})
		}
	}
	if n.smtp != nil {
		steps = append(steps, step{transport: n.smtp, from: n.smtpFrom})
	}
	return steps
}

// Send renders req and delivers it. The returned attempts cover every
// transport tried, in order. The error is ErrNoTransport when nothing is
// configured and *ChainError when every transport failed.
func (n *Notifier) Send(ctx context.Context, req DownloadRequest) ([]models.DeliveryAttempt, error) {
	if n == nil {
		return nil, ErrNoTransport
	}
	steps := n.chain(req.Transport)
	if len(steps) == 0 {
		return nil, ErrNoTransport
	}

	rendered, err := n.renderer.Render(DownloadEmail{
		ProductName: req.ProductName,
		Files:       req.Files,
		Expiry:      req.Expiry,
	})
	if err != nil {
		return nil, err
	}

	recipient := n.fingerprint(req.To)
	attempts := make([]models.DeliveryAttempt, 0, len(steps))
	for _, s := range steps {
		msg := Message{
			From:    s.from,
			To:      req.To,
			Subject: rendered.Subject,
			HTML:    rendered.HTML,
			Text:    rendered.Text,
			Headers: s.headers,
		}
		messageID, sendErr := s.transport.Send(ctx, msg)

		attempt := models.DeliveryAttempt{
			ID:        uuid.NewString(),
			SessionID: req.SessionID,
			Transport: s.transport.Name(),
			Sender:    s.from,
			CreatedAt: time.Now().UTC(),
		}
		if sendErr != nil {
			attempt.Status = models.DeliveryStatusFailed
			attempt.ErrorMessage = sendErr.Error()
			log.Printf("WARN (Notifier): %s send as %q to %s failed: %v", attempt.Transport, s.from, recipient, sendErr)
		} else {
			attempt.Status = models.DeliveryStatusDelivered
			attempt.MessageID = messageID
			log.Printf("INFO (Notifier): %s send as %q to %s ok (id=%s, files=%d)", attempt.Transport, s.from, recipient, messageID, len(rendered.Files))
		}
		n.record(ctx, &attempt)
		attempts = append(attempts, attempt)

		if sendErr == nil {
			return attempts, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return attempts, errors.Join(&ChainError{Attempts: attempts}, ctxErr)
		}
	}

	err = &ChainError{Attempts: attempts}
	log.Printf("ERROR (Notifier): %v", err)
	return attempts, err
}

func (n *Notifier) record(ctx context.Context, attempt *models.DeliveryAttempt) {
	if n.attempts == nil {
		return
	}
	if err := n.attempts.CreateAttempt(context.WithoutCancel(ctx), attempt); err != nil {
		log.Printf("WARN (Notifier): Failed to record %s attempt for session %s: %v", attempt.Transport, attempt.SessionID, err)
	}
}

// Modes exposes the runtime sender-mode switch.
func (n *Notifier) Modes() *ModeSwitch { return n.modes }

// Identities returns the configured sender identities.
func (n *Notifier) Identities() SenderIdentities { return n.identities }

// TransportInfo describes the configured chain without secrets.
type TransportInfo struct {
	ResendConfigured   bool   `json:"resendConfigured"`
	ResendFrom         string `json:"resendFrom,omitempty"`
	ResendFromRaw      string `json:"resendFromRaw,omitempty"`
	ResendFallbackFrom string `json:"resendFallbackFrom,omitempty"`
	SenderMode         string `json:"senderMode"`
	SMTPEnabled        bool   `json:"smtpEnabled"`
	SMTPFrom           string `json:"smtpFrom,omitempty"`
}

func (n *Notifier) Describe() TransportInfo {
	mode := n.modes.Mode()
	info := TransportInfo{
		ResendConfigured:   n.primary != nil,
		ResendFrom:         n.identities.Effective(mode),
		ResendFromRaw:      n.identities.Branded,
		ResendFallbackFrom: n.identities.Fallback,
		SenderMode:         string(mode),
		SMTPEnabled:        n.smtp != nil,
	}
	if n.smtp != nil {
		info.SMTPFrom = n.smtpFrom
	}
	return info
}
