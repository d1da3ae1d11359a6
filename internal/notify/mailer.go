package notify

import (
	"errors"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/campusfind/apiserver/config"
)

// Mailer hands a rendered message to an external transport. Implementations
// report success or a transport error; neither outcome reaches back into the
// claim workflow.
type Mailer interface {
	Send(email Email) error
}

// SMTPMailer sends mail through a plain SMTP relay.
type SMTPMailer struct {
	addr string
	auth smtp.Auth
	from string
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPMailer{
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		auth: auth,
		from: cfg.From,
	}
}

func (m *SMTPMailer) Send(email Email) error {
	if strings.TrimSpace(email.To) == "" {
		return errors.New("missing recipient address")
	}

	msg := buildMIMEMessage(m.from, email)
	return smtp.SendMail(m.addr, m.auth, envelopeAddress(m.from), []string{email.To}, msg)
}

// buildMIMEMessage assembles a multipart/alternative message with text and
// HTML parts, matching the two variants RenderEmail produces.
func buildMIMEMessage(from string, email Email) []byte {
	const boundary = "claim-notice-boundary"

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", email.To)
	if email.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", email.ReplyTo)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", email.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(email.Text)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(email.HTML)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}

// envelopeAddress strips a display name ("Name <addr>") down to the bare
// address required by the SMTP envelope.
func envelopeAddress(from string) string {
	if start := strings.LastIndex(from, "<"); start != -1 {
		if end := strings.LastIndex(from, ">"); end > start {
			return from[start+1 : end]
		}
	}
	return strings.TrimSpace(from)
}
