// Package notify sends the onboarding e-mails through an SMTP relay.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/sievert/ingreso/internal/core"
	"github.com/sievert/ingreso/internal/logging"
)

// Config configures a Mailer.
type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	TLSPolicy string // mandatory, opportunistic or none
	Timeout   time.Duration

	From             string
	InternalTo       []string
	PolicyAttachment string
	PortalURL        string
}

// Sender delivers built messages. *mail.Client satisfies it.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Mailer is the core.Notifier that talks to an SMTP relay.
type Mailer struct {
	sender Sender
	cfg    Config
}

// New creates a Mailer with a go-mail client for cfg.
func New(cfg Config) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(tlsPolicy(cfg.TLSPolicy)),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return NewWithSender(client, cfg), nil
}

// NewWithSender creates a Mailer that hands messages to s.
func NewWithSender(s Sender, cfg Config) *Mailer {
	return &Mailer{sender: s, cfg: cfg}
}

func tlsPolicy(name string) mail.TLSPolicy {
	switch name {
	case "mandatory":
		return mail.TLSMandatory
	case "none":
		return mail.NoTLS
	default:
		return mail.TLSOpportunistic
	}
}

// NotifyInternal alerts the operations mailbox that a client registered.
// It is a no-op when no internal recipient is configured.
func (m *Mailer) NotifyInternal(ctx context.Context, n core.Notice) error {
	if len(m.cfg.InternalTo) == 0 {
		return nil
	}

	body, err := buildAlert(alertData(n))
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("send mail: from: %w", err)
	}
	if err := msg.To(m.cfg.InternalTo...); err != nil {
		return fmt.Errorf("send mail: to: %w", err)
	}
	msg.Subject(AlertSubject(n.Client.LegalName))
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, body)

	return m.send(ctx, msg, "internal alert", m.cfg.InternalTo...)
}

// SendWelcome sends the client its portal credentials. The password is
// only ever sent here; it is never logged.
func (m *Mailer) SendWelcome(ctx context.Context, n core.Notice, creds core.Credentials) error {
	text, html, err := buildWelcome(welcomeData(n, creds, m.cfg.PortalURL))
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("send mail: from: %w", err)
	}
	if err := msg.To(n.Client.Email); err != nil {
		return fmt.Errorf("send mail: to: %w", err)
	}
	msg.Subject(WelcomeSubject(n.Client.LegalName))
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, text)
	msg.AddAlternativeString(mail.TypeTextHTML, html)

	if path := m.cfg.PolicyAttachment; path != "" {
		if _, err := os.Stat(path); err != nil {
			logging.FromContext(ctx).Warn("policy attachment not found, sending without it",
				"path", path, "error", err)
		} else {
			msg.AttachFile(path)
		}
	}

	return m.send(ctx, msg, "welcome", n.Client.Email)
}

func (m *Mailer) send(ctx context.Context, msg *mail.Msg, kind string, to ...string) error {
	start := time.Now()
	if err := m.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %s: %w", kind, err)
	}
	logging.FromContext(ctx).Info("mail sent",
		slog.String("kind", kind),
		slog.Any("to", to),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}
