package identity

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Message is an outbound transactional email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers transactional email. Delivery is synchronous: the reset
// request operation is not complete until the send was attempted and either
// confirmed or reported failed.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, msg Message) error

// Send implements Mailer.
func (f MailerFunc) Send(ctx context.Context, msg Message) error {
	if f == nil {
		return nil
	}
	return f(ctx, msg)
}

// SMTPSettings configures the SMTP mailer.
type SMTPSettings struct {
	Host      string
	Port      int
	Username  string
	Password  string
	TLSMode   string // "tls", "starttls" (default), or "none"
	FromName  string
	FromEmail string
}

// SMTPMailer sends mail through a plain SMTP relay.
type SMTPMailer struct {
	settings SMTPSettings
}

var _ Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer creates a mailer for the given relay settings.
func NewSMTPMailer(settings SMTPSettings) *SMTPMailer {
	return &SMTPMailer{settings: settings}
}

// Send delivers the message, wrapping any transport failure as a delivery
// error so callers can surface it instead of swallowing it.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled before email delivery")
	}

	if err := m.send(msg); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "email delivery failed").
			WithTextCode(TextCodeEmailDeliveryFailed).
			WithMetadata(map[string]any{"to": msg.To})
	}

	return nil
}

func (m *SMTPMailer) send(msg Message) error {
	settings := m.settings
	addr := fmt.Sprintf("%s:%d", settings.Host, settings.Port)

	client, err := smtpConnect(settings, addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if settings.Username != "" {
		auth := smtp.PlainAuth("", settings.Username, settings.Password, settings.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(settings.FromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}

	from := settings.FromEmail
	if settings.FromName != "" {
		from = fmt.Sprintf("%s <%s>", settings.FromName, settings.FromEmail)
	}
	body := buildMessage(from, msg.To, msg.Subject, msg.Body)
	if _, err := writer.Write([]byte(body)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	if err := client.Quit(); err != nil && !strings.Contains(err.Error(), "use of closed network connection") {
		return fmt.Errorf("smtp quit: %w", err)
	}
	return nil
}

func smtpConnect(settings SMTPSettings, addr string) (*smtp.Client, error) {
	tlsMode := settings.TLSMode
	if tlsMode == "" {
		tlsMode = "starttls"
	}
	switch tlsMode {
	case "tls":
		conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: settings.Host, MinVersion: tls.VersionTLS12})
		if err != nil {
			return nil, fmt.Errorf("smtp tls dial: %w", err)
		}
		client, err := smtp.NewClient(conn, settings.Host)
		if err != nil {
			return nil, fmt.Errorf("smtp client: %w", err)
		}
		return client, nil
	default:
		client, err := smtp.Dial(addr)
		if err != nil {
			return nil, fmt.Errorf("smtp dial: %w", err)
		}
		if tlsMode == "starttls" {
			if err := client.StartTLS(&tls.Config{ServerName: settings.Host, MinVersion: tls.VersionTLS12}); err != nil {
				_ = client.Close()
				return nil, fmt.Errorf("smtp starttls: %w", err)
			}
		}
		return client, nil
	}
}

func buildMessage(from, to, subject, body string) string {
	lines := []string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}
	return strings.Join(lines, "\r\n")
}

// logMailer prints the notification instead of delivering it. Used as the
// default in development wiring.
type logMailer struct {
	logger Logger
}

func (l logMailer) Send(_ context.Context, msg Message) error {
	logger := l.logger
	if logger == nil {
		logger = defLogger{}
	}
	logger.Info("email notification", "to", msg.To, "subject", msg.Subject)
	logger.Debug("email body: %s", msg.Body)
	return nil
}

// NewLogMailer returns a mailer that only logs outbound messages.
func NewLogMailer(logger Logger) Mailer {
	return logMailer{logger: logger}
}
