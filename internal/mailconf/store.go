// Package mailconf owns the single active outbound mail configuration. It
// gates whether the dispatcher may run at all, so loading is deliberately
// forgiving, anything unreadable falls back to the built-in defaults.
package mailconf

import (
	"errors"

	"github.com/ouvrio/courrier/internal/dao"
	"github.com/ouvrio/courrier/tools"
	"github.com/sirupsen/logrus"
)

func New(lc *tools.Logger, db dao.DAO) *Store {
	return &Store{
		db:  db,
		log: lc.New("mailconf"),
	}
}

type Store struct {
	db  dao.DAO
	log *logrus.Logger
}

// Defaults is the configuration courrier starts with before an operator has
// saved anything. Simulate is on and enabled is off, a fresh install can
// never send real mail by accident.
func Defaults() dao.MailConfig {
	return dao.MailConfig{
		Provider: dao.ProviderSMTP,
		Port:     587,
		Enabled:  false,
		Simulate: true,
	}
}

// Load returns the saved configuration, or the defaults if nothing has been
// saved or the stored row cannot be read. It never fails outward.
func (s *Store) Load() dao.MailConfig {
	cfg, err := s.db.LoadMailConfig()
	if errors.Is(err, dao.ErrNoMailConfig) {
		return Defaults()
	}
	if err != nil {
		s.log.WithError(err).Warn("could not load mail config, falling back to defaults")
		return Defaults()
	}
	return *cfg
}

// Save replaces the configuration wholesale. Partial patches do not exist.
func (s *Store) Save(cfg dao.MailConfig) error {
	err := s.db.SaveMailConfig(cfg)
	if err != nil {
		return err
	}
	s.log.WithField("provider", cfg.Provider).WithField("host", cfg.Host).Info("mail config saved")
	return nil
}

// IsUsable tells whether a config may be handed to the dispatcher, enabled
// and with a sender address that at least looks like an email.
func IsUsable(cfg dao.MailConfig) bool {
	return cfg.Enabled && tools.ValidEmail(cfg.FromAddress)
}
