package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/mediaflow/api/internal/config"
)

// Mailer sends plain-text emails.
type Mailer interface {
	Send(ctx context.Context, msg *MailMessage) error
}

type MailMessage struct {
	To      []string
	Subject string
	Body    string
}

// SMTPMailer delivers through an SMTP relay, upgrading to TLS when the
// server offers STARTTLS.
type SMTPMailer struct {
	host     string
	addr     string
	username string
	password string
	from     string
	now      func() time.Time
}

func NewSMTPMailer(cfg *config.MailConfig) *SMTPMailer {
	return &SMTPMailer{
		host:     cfg.Server,
		addr:     net.JoinHostPort(cfg.Server, strconv.Itoa(cfg.Port)),
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		now:      time.Now,
	}
}

func (m *SMTPMailer) IsConfigured() bool {
	return m.host != "" && m.from != ""
}

func (m *SMTPMailer) Send(ctx context.Context, msg *MailMessage) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("mail has no recipients")
	}

	dialer := net.Dialer{Timeout: 30 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", m.addr)
	if err != nil {
		return fmt.Errorf("failed to connect to mail server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to start smtp session: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return fmt.Errorf("failed to start tls: %w", err)
		}
	}
	if m.username != "" {
		if err := c.Auth(smtp.PlainAuth("", m.username, m.password, m.host)); err != nil {
			return fmt.Errorf("smtp auth failed: %w", err)
		}
	}

	if err := c.Mail(m.from); err != nil {
		return fmt.Errorf("smtp MAIL FROM failed: %w", err)
	}
	for _, rcpt := range msg.To {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp RCPT TO %s failed: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA failed: %w", err)
	}
	if _, err := w.Write(m.compose(msg)); err != nil {
		w.Close()
		return fmt.Errorf("failed to write mail body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mail server rejected message: %w", err)
	}
	return c.Quit()
}

// compose renders headers and body with CRLF line endings. Header values are
// stripped of line breaks.
func (m *SMTPMailer) compose(msg *MailMessage) []byte {
	var buf bytes.Buffer
	header := func(k, v string) {
		v = strings.NewReplacer("\r", "", "\n", "").Replace(v)
		fmt.Fprintf(&buf, "%s: %s\r\n", k, v)
	}

	header("From", m.from)
	header("To", strings.Join(msg.To, ", "))
	header("Subject", msg.Subject)
	header("Date", m.now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=UTF-8")
	buf.WriteString("\r\n")

	body := strings.ReplaceAll(msg.Body, "\r\n", "\n")
	buf.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	if !strings.HasSuffix(body, "\n") {
		buf.WriteString("\r\n")
	}
	return buf.Bytes()
}
