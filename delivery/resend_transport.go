package delivery

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// ResendTransport sends email through the Resend API.
type ResendTransport struct {
	client *resend.Client
}

// NewResendTransport returns nil when apiKey is empty. An empty baseURL selects
// the public API.
func NewResendTransport(apiKey, baseURL string) *ResendTransport {
	if apiKey == "" {
		return nil
	}
	client := resend.NewCustomClient(&http.Client{Timeout: 15 * time.Second}, apiKey)
	if baseURL != "" {
		// Resend paths are relative, so the base must end in a slash.
		if u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/"); err == nil {
			client.BaseURL = u
		}
	}
	return &ResendTransport{client: client}
}

func (t *ResendTransport) Name() string { return "resend" }

func (t *ResendTransport) Send(ctx context.Context, msg Message) (string, error) {
	sent, err := t.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.PlainText(),
		Headers: msg.Headers,
	})
	if err != nil {
		return "", fmt.Errorf("Resend send failed: %w", err)
	}
	return sent.Id, nil
}
