package delivery

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jhillyerd/enmime"
)

const implicitTLSPort = 465

// SMTPTransport builds a multipart message with enmime and hands it to an
// enmime.Sender.
type SMTPTransport struct {
	from   string
	host   string
	sender enmime.Sender
}

// NewSMTPTransport dials host:port with PLAIN auth. Port 465 uses implicit TLS;
// every other port relies on STARTTLS.
func NewSMTPTransport(host string, port int, user, password, from string) *SMTPTransport {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	auth := smtp.PlainAuth("", user, password, host)

	var sender enmime.Sender
	if port == implicitTLSPort {
		sender = &implicitTLSSender{addr: addr, host: host, auth: auth}
	} else {
		sender = enmime.NewSMTP(addr, auth)
	}
	return NewSMTPTransportWithSender(from, host, sender)
}

// NewSMTPTransportWithSender wraps an existing sender.
func NewSMTPTransportWithSender(from, host string, sender enmime.Sender) *SMTPTransport {
	return &SMTPTransport{from: from, host: host, sender: sender}
}

func (t *SMTPTransport) Name() string { return "smtp" }

// From is the fixed envelope identity of the relay account.
func (t *SMTPTransport) From() string { return t.from }

func (t *SMTPTransport) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fromAddr, err := mail.ParseAddress(firstNonEmpty(msg.From, t.from))
	if err != nil {
		return "", fmt.Errorf("invalid sender address: %w", err)
	}
	toAddr, err := mail.ParseAddress(msg.To)
	if err != nil {
		return "", fmt.Errorf("invalid recipient address: %w", err)
	}

	domain := t.host
	if domain == "" {
		domain = "localhost"
	}
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)

	builder := enmime.Builder().
		From(fromAddr.Name, fromAddr.Address).
		To(toAddr.Name, toAddr.Address).
		Subject(msg.Subject).
		Date(time.Now()).
		Header("Message-ID", messageID).
		Text([]byte(msg.PlainText())).
		HTML([]byte(msg.HTML))
	for k, v := range msg.Headers {
		builder = builder.Header(k, v)
	}

	if err := builder.Send(t.sender); err != nil {
		return "", fmt.Errorf("SMTP send failed: %w", err)
	}
	return messageID, nil
}

// implicitTLSSender speaks SMTP over a TLS connection from the first byte.
type implicitTLSSender struct {
	addr string
	host string
	auth smtp.Auth
}

func (s *implicitTLSSender) Send(reversePath string, recipients []string, msg []byte) error {
	dialer := &net.Dialer{Timeout: 15 * time.Second}
	conn, err := tls.DialWithDialer(dialer, "tcp", s.addr, &tls.Config{ServerName: s.host})
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.addr, err)
	}

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if s.auth != nil {
		if err := c.Auth(s.auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(reversePath); err != nil {
		return err
	}
	for _, rcpt := range recipients {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
