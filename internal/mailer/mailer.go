// Package mailer delivers transactional email such as signup codes.
package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"realtime-chat/internal/config"
	"realtime-chat/internal/logging"
)

// Sender delivers a plain-text email.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// New builds an SMTP sender, or a log-only sender when no SMTP host is configured.
func New(cfg config.SMTP, log *zap.Logger) (Sender, error) {
	log = logging.OrNop(log)
	if cfg.Host == "" {
		log.Warn("smtp disabled, using log sender", zap.String("reason", "empty smtp host"))
		return LogSender{log: log}, nil
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(15 * time.Second),
	}
	if cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
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
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	log.Info("smtp sender configured", zap.String("host", cfg.Host), zap.Int("port", cfg.Port))
	return &SMTPSender{client: client, from: cfg.From}, nil
}

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	client *mail.Client
	from   string
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	msg, err := buildMessage(s.from, to, subject, body)
	if err != nil {
		return err
	}
	return s.client.DialAndSendWithContext(ctx, msg)
}

func buildMessage(from, to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat("Real-Time Chat", from); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

// LogSender writes the email to the log instead of delivering it.
type LogSender struct {
	log *zap.Logger
}

func (s LogSender) Send(ctx context.Context, to, subject, body string) error {
	logging.OrNop(s.log).Info("mail not delivered, smtp disabled",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("body_len", len(body)),
	)
	return nil
}

// OTPSubject and OTPBody render the verification email.
const OTPSubject = "Your verification code"

func OTPBody(code string, ttl time.Duration) string {
	return fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(ttl.Minutes()))
}
