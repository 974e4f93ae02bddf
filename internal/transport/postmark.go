package transport

import (
	"context"
	"fmt"

	courrier "github.com/ouvrio/courrier"
	"github.com/ouvrio/courrier/internal/dao"

	"github.com/mrz1836/postmark"
)

type postmarkSender struct {
	client *postmark.Client
	cfg    dao.MailConfig
}

// NewPostmark returns a sender backed by the Postmark transactional API.
// The config secret is the server token.
func NewPostmark(cfg dao.MailConfig) Sender {
	return &postmarkSender{
		client: postmark.NewClient(cfg.Secret, ""),
		cfg:    cfg,
	}
}

func (p *postmarkSender) Send(ctx context.Context, msg courrier.Message) error {
	resp, err := p.client.SendEmail(ctx, postmark.Email{
		From:     msg.From.String(),
		To:       msg.To,
		Subject:  msg.Subject,
		HTMLBody: msg.HTML,
		TextBody: msg.Text,
	})
	if err != nil {
		return fmt.Errorf("postmark submission failed, %w", err)
	}
	if resp.ErrorCode > 0 {
		return fmt.Errorf("postmark rejected message, %d - %s", resp.ErrorCode, resp.Message)
	}
	return nil
}
