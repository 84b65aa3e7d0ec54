package mail

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender renders a message and delivers it through an SMTP relay.
type SMTPSender struct {
	dialer dialer
	from   string
	log    *zap.Logger
}

func NewSMTPSender(host string, port int, user, password, from string, log *zap.Logger) *SMTPSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
		log:    log,
	}
}

func (s *SMTPSender) build(msg Message) (*gomail.Message, error) {
	if strings.TrimSpace(msg.To) == "" {
		return nil, fmt.Errorf("empty recipient")
	}
	subject, text, html, err := Render(msg)
	if err != nil {
		return nil, err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", text)
	m.AddAlternative("text/html", html)
	return m, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := s.build(msg)
	if err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send %s email: %w", msg.Purpose, err)
	}
	s.log.Info("email sent", zap.String("to", msg.To), zap.String("purpose", string(msg.Purpose)))
	return nil
}
