package mailconf

import (
	"errors"
	"io"
	"testing"

	"github.com/ouvrio/courrier/internal/dao"
	"github.com/ouvrio/courrier/tools"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type fakeDAO struct {
	dao.DAO
	cfg     *dao.MailConfig
	loadErr error
	saved   []dao.MailConfig
}

func (f *fakeDAO) LoadMailConfig() (*dao.MailConfig, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.cfg, nil
}

func (f *fakeDAO) SaveMailConfig(cfg dao.MailConfig) error {
	f.saved = append(f.saved, cfg)
	f.cfg = &cfg
	return nil
}

func quietLogger() *tools.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return tools.LoggerCloner(l)
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	t.Run("nothing saved yet", func(t *testing.T) {
		s := New(quietLogger(), &fakeDAO{loadErr: dao.ErrNoMailConfig})
		assert.Equal(t, Defaults(), s.Load())
	})

	t.Run("unreadable row", func(t *testing.T) {
		s := New(quietLogger(), &fakeDAO{loadErr: errors.New("database is locked")})
		assert.Equal(t, Defaults(), s.Load())
	})
}

func TestDefaultsAreSafe(t *testing.T) {
	t.Parallel()

	d := Defaults()
	assert.False(t, d.Enabled)
	assert.True(t, d.Simulate)
	assert.False(t, IsUsable(d))
}

func TestLoadReturnsSaved(t *testing.T) {
	t.Parallel()

	db := &fakeDAO{}
	s := New(quietLogger(), db)

	cfg := dao.MailConfig{
		Provider:    dao.ProviderSMTP,
		Host:        "smtp.ouvrio.fr",
		Port:        587,
		User:        "notify@ouvrio.fr",
		Secret:      "hunter2",
		FromAddress: "notify@ouvrio.fr",
		Enabled:     true,
	}
	err := s.Save(cfg)
	assert.NoError(t, err)
	assert.Equal(t, cfg, s.Load())
	assert.Len(t, db.saved, 1)
}

func TestIsUsable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		cfg    dao.MailConfig
		usable bool
	}{
		{
			name:   "enabled with valid from address",
			cfg:    dao.MailConfig{Enabled: true, FromAddress: "notify@ouvrio.fr"},
			usable: true,
		},
		{
			name:   "disabled",
			cfg:    dao.MailConfig{Enabled: false, FromAddress: "notify@ouvrio.fr"},
			usable: false,
		},
		{
			name:   "enabled but empty from address",
			cfg:    dao.MailConfig{Enabled: true, FromAddress: ""},
			usable: false,
		},
		{
			name:   "enabled but malformed from address",
			cfg:    dao.MailConfig{Enabled: true, FromAddress: "not-an-email"},
			usable: false,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.usable, IsUsable(tc.cfg))
		})
	}
}
