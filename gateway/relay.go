package gateway

import (
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// Message is one outbound email addressed to a single recipient. The
// gateway fans a submission out into one Message per recipient.
type Message struct {
	From        string
	To          string
	Subject     string
	ReplyTo     string
	ContentType string
	Body        string
}

// headerValue strips CR and LF from a header field. The subject and
// reply-to arrive from the submitter, so a raw line break here would let
// them smuggle extra headers into the outbound message.
func headerValue(v string) string {
	v = strings.ReplaceAll(v, "\r", "")
	return strings.ReplaceAll(v, "\n", "")
}

// Format renders the message headers and body for the SMTP DATA command.
func (m Message) Format() string {
	contentType := m.ContentType
	if contentType == "" {
		contentType = "text/plain"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", headerValue(m.From))
	fmt.Fprintf(&b, "To: %s\r\n", headerValue(m.To))
	fmt.Fprintf(&b, "Subject: %s\r\n", headerValue(m.Subject))
	if m.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", headerValue(m.ReplyTo))
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s; charset=UTF-8\r\n", contentType)
	b.WriteString("\r\n")
	b.WriteString(m.Body)
	b.WriteString("\r\n")
	return b.String()
}

// Relay delivers a batch of messages. Implementations perform no
// retries: a returned error means delivery stopped at the failing
// message and the caller decides what to tell the submitter.
type Relay interface {
	Send(messages []Message) error
}

// RelayConfig holds the settings for one SMTP relay connection.
type RelayConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// Crypto selects the transport security: "tls" for STARTTLS, "ssl"
	// for implicit TLS, empty for a plaintext connection.
	Crypto string
}

// SMTPRelay sends messages through a single upstream SMTP server. Each
// Send call dials a fresh connection; the gateway keeps no long-lived
// connections or pools.
type SMTPRelay struct {
	cfg RelayConfig
}

// NewSMTPRelay returns a relay for the given settings.
func NewSMTPRelay(cfg RelayConfig) *SMTPRelay {
	return &SMTPRelay{cfg: cfg}
}

func (r *SMTPRelay) dial() (*smtp.Client, error) {
	addr := fmt.Sprintf("%s:%d", r.cfg.Host, r.cfg.Port)

	switch strings.ToLower(r.cfg.Crypto) {
	case "tls":
		return smtp.DialStartTLS(addr, &tls.Config{ServerName: r.cfg.Host})
	case "ssl":
		return smtp.DialTLS(addr, &tls.Config{ServerName: r.cfg.Host})
	case "":
		return smtp.Dial(addr)
	default:
		return nil, fmt.Errorf("unsupported crypto type: %s", r.cfg.Crypto)
	}
}

// Send implements Relay. All messages in the batch go over one
// connection, one SMTP transaction each.
func (r *SMTPRelay) Send(messages []Message) error {
	c, err := r.dial()
	if err != nil {
		return fmt.Errorf("can't connect to the SMTP relay: %w", err)
	}
	defer c.Close()

	if r.cfg.Username != "" {
		auth := sasl.NewLoginClient(r.cfg.Username, r.cfg.Password)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("can't authenticate against the SMTP relay: %w", err)
		}
	}

	for _, m := range messages {
		if err := c.SendMail(m.From, []string{m.To}, strings.NewReader(m.Format())); err != nil {
			return fmt.Errorf("can't send to %s: %w", m.To, err)
		}
	}
	return nil
}
