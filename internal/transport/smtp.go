package transport

import (
	"context"
	"fmt"

	courrier "github.com/ouvrio/courrier"
	"github.com/ouvrio/courrier/internal/dao"
	"gopkg.in/gomail.v2"
)

type smtpSender struct {
	cfg dao.MailConfig
}

// NewSMTP returns a sender that submits through the configured SMTP relay.
// One connection per send, the dispatcher makes at most one attempt anyway.
func NewSMTP(cfg dao.MailConfig) Sender {
	return &smtpSender{cfg: cfg}
}

func (s *smtpSender) Send(ctx context.Context, msg courrier.Message) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", msg.From.Email, msg.From.Name)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if len(msg.Text) > 0 {
		m.SetBody("text/plain", msg.Text)
	}
	if len(msg.HTML) > 0 {
		if len(msg.Text) > 0 {
			m.AddAlternative("text/html", msg.HTML)
		} else {
			m.SetBody("text/html", msg.HTML)
		}
	}

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.User, s.cfg.Secret)
	err := d.DialAndSend(m)
	if err != nil {
		return fmt.Errorf("smtp submission to %s:%d failed, %w", s.cfg.Host, s.cfg.Port, err)
	}
	return nil
}
