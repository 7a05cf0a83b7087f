package notify

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"qr-entry/internal/config"

	gomail "github.com/wneessen/go-mail"
)

type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Message struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Mailer delivers one message.
type Mailer interface {
	Send(msg Message) error
}

// sender is the part of *gomail.Client the mailer uses.
type sender interface {
	DialAndSend(messages ...*gomail.Msg) error
}

type SMTPMailer struct {
	from   string
	client sender
}

// NewSMTPMailer builds a go-mail client for cfg. PLAIN auth is enabled when a
// username is configured and STARTTLS is used whenever the server offers it.
func NewSMTPMailer(cfg config.EmailConfig) (*SMTPMailer, error) {
	port, err := strconv.Atoi(cfg.SMTPPort)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP port %q: %w", cfg.SMTPPort, err)
	}
	opts := []gomail.Option{
		gomail.WithPort(port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.SMTPUsername),
			gomail.WithPassword(cfg.SMTPPassword),
		)
	}
	client, err := gomail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client for %s: %w", cfg.SMTPHost, err)
	}
	return &SMTPMailer{from: cfg.From, client: client}, nil
}

func (m *SMTPMailer) Send(msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("message has no recipient")
	}
	out, err := BuildMessage(m.from, msg)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSend(out); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

// BuildMessage turns msg into a go-mail message: a plain text body followed by
// the attachments.
func BuildMessage(from string, msg Message) (*gomail.Msg, error) {
	out := gomail.NewMsg()
	if err := out.From(from); err != nil {
		return nil, fmt.Errorf("sender %q: %w", from, err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("recipient %q: %w", msg.To, err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(gomail.TypeTextPlain, msg.Body)

	for _, a := range msg.Attachments {
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		out.AttachReadSeeker(a.Filename, bytes.NewReader(a.Data), gomail.WithFileContentType(gomail.ContentType(ct)))
	}
	return out, nil
}
