// Package transport is the outbound boundary. The dispatcher hands it a
// fully rendered message and a mail config, and gets back success or a
// provider error. Nothing in here retries.
package transport

import (
	"context"

	courrier "github.com/ouvrio/courrier"
	"github.com/ouvrio/courrier/internal/dao"
)

type Sender interface {
	Send(ctx context.Context, msg courrier.Message) error
}

// Factory builds a sender for a config. The dispatcher takes one of these
// so tests can swap the wire out entirely.
type Factory func(cfg dao.MailConfig) Sender

// NewSender picks the provider implementation the config asks for.
func NewSender(cfg dao.MailConfig) Sender {
	switch cfg.Provider {
	case dao.ProviderAPI:
		return NewPostmark(cfg)
	default:
		return NewSMTP(cfg)
	}
}
