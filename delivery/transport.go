// Package delivery renders download emails and sends them through an ordered
// chain of transports.
package delivery

import (
	"context"
	"errors"
	"log"

	"github.com/jaytaylor/html2text"
)

// Message is one fully rendered email ready for a transport.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
	Headers map[string]string
}

// Transport is the adapter interface for outbound email mechanisms.
// Implement this to add new providers.
type Transport interface {
	// Name identifies the transport in logs and attempt records (e.g. "resend").
	Name() string
	// Send delivers msg and returns the provider's message id when available.
	Send(ctx context.Context, msg Message) (string, error)
}

var ErrNoTransport = errors.New("no email transport configured")

// PlainText returns the message's text part, deriving it from the HTML part
// when only HTML was supplied.
func (m Message) PlainText() string {
	if m.Text != "" || m.HTML == "" {
		return m.Text
	}
	text, err := htmlToText(m.HTML)
	if err != nil {
		log.Printf("WARN (delivery): failed to derive text part: %v", err)
		return ""
	}
	return text
}

// htmlToText renders an HTML body as plain text, keeping link targets.
func htmlToText(body string) (string, error) {
	return html2text.FromString(body, html2text.Options{})
}
