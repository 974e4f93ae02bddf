package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	courrier "github.com/ouvrio/courrier"
	"github.com/ouvrio/courrier/internal/dao"
	"github.com/ouvrio/courrier/internal/dispatch"
	"github.com/ouvrio/courrier/internal/mailconf"
	"github.com/ouvrio/courrier/internal/transport"
	"github.com/ouvrio/courrier/tools"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type memDAO struct {
	dao.DAO
	cfg     *dao.MailConfig
	records []dao.DispatchRecord
}

func (m *memDAO) LoadMailConfig() (*dao.MailConfig, error) {
	if m.cfg == nil {
		return nil, dao.ErrNoMailConfig
	}
	return m.cfg, nil
}

func (m *memDAO) AddDispatchRecord(rec dao.DispatchRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func (m *memDAO) SetDispatchStatus(messageId string, status string, errorDetail string) error {
	for i := range m.records {
		if m.records[i].MessageId == messageId && m.records[i].Status == dao.StatusPending {
			m.records[i].Status = status
			m.records[i].ErrorDetail = errorDetail
			return nil
		}
	}
	return fmt.Errorf("could not transition dispatch %s", messageId)
}

func (m *memDAO) AddDispatchLogEntry(messageId, log string) error { return nil }

func quietLogger() *tools.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return tools.LoggerCloner(l)
}

func workingConfig() *dao.MailConfig {
	return &dao.MailConfig{
		Provider:    dao.ProviderSMTP,
		Host:        "smtp.ouvrio.fr",
		Port:        587,
		User:        "notify@ouvrio.fr",
		Secret:      "hunter2",
		FromAddress: "notify@ouvrio.fr",
		Enabled:     true,
		Simulate:    true,
	}
}

func newTestPipeline(t *testing.T, db *memDAO) *Pipeline {
	t.Helper()
	lc := quietLogger()
	store := mailconf.New(lc, db)
	dispatcher := dispatch.New(dispatch.Config{
		PublicBaseURL: "https://www.ouvrio.fr",
		SimulationDir: t.TempDir(),
		Hostname:      "test.ouvrio.fr",
	}, lc, db, store, func(dao.MailConfig) transport.Sender { return nil }, nil)

	p := New(Config{}, lc, store, dispatcher)
	p.resolve = func(ctx context.Context, host string) ([]string, error) {
		return []string{"192.0.2.10"}, nil
	}
	p.dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		a, b := net.Pipe()
		go func() { _, _ = io.Copy(io.Discard, b) }()
		return a, nil
	}
	return p
}

func stepByName(t *testing.T, steps []courrier.DiagnosticStep, name string) courrier.DiagnosticStep {
	t.Helper()
	for _, s := range steps {
		if s.StepName == name {
			return s
		}
	}
	t.Fatalf("no step named %s in %v", name, steps)
	return courrier.DiagnosticStep{}
}

func TestRunWithoutRecipientHasFourStages(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, &memDAO{cfg: workingConfig()})
	steps := p.Run(context.Background(), "")

	assert.Len(t, steps, 4)
	assert.Equal(t, "config-validation", steps[0].StepName)
	assert.Equal(t, "dns-resolution", steps[1].StepName)
	assert.Equal(t, "tcp-connect", steps[2].StepName)
	assert.Equal(t, "credential-domain", steps[3].StepName)
	for _, s := range steps {
		assert.True(t, s.Success, "%s failed: %s", s.StepName, s.ErrorDetail)
		assert.GreaterOrEqual(t, s.DurationMs, int64(0))
	}
	assert.Equal(t, "ok", Summarize(steps))
}

func TestRunWithRecipientAddsEndToEnd(t *testing.T) {
	t.Parallel()

	db := &memDAO{cfg: workingConfig()}
	p := newTestPipeline(t, db)
	steps := p.Run(context.Background(), "operator@ouvrio.fr")

	assert.Len(t, steps, 5)
	last := steps[4]
	assert.Equal(t, "end-to-end-send", last.StepName)
	assert.True(t, last.Success, last.ErrorDetail)

	// the test message went through the regular controller and was recorded
	assert.Len(t, db.records, 1)
	assert.Equal(t, "diagnostic", db.records[0].TemplateId)
	assert.Equal(t, "operator@ouvrio.fr", db.records[0].Recipient)
	assert.Equal(t, dao.StatusSent, db.records[0].Status)
}

func TestStageFailuresDoNotStopLaterStages(t *testing.T) {
	t.Parallel()

	cfg := workingConfig()
	cfg.Host = ""
	cfg.User = ""
	p := newTestPipeline(t, &memDAO{cfg: cfg})

	steps := p.Run(context.Background(), "")
	assert.Len(t, steps, 4, "every stage runs regardless of earlier failures")

	assert.False(t, stepByName(t, steps, "config-validation").Success)
	assert.False(t, stepByName(t, steps, "dns-resolution").Success)
	assert.False(t, stepByName(t, steps, "credential-domain").Success)
	assert.NotEqual(t, "ok", Summarize(steps))
}

func TestCredentialDomainStage(t *testing.T) {
	t.Parallel()

	t.Run("mismatch fails", func(t *testing.T) {
		cfg := workingConfig()
		cfg.User = "notify@gmail.com"
		p := newTestPipeline(t, &memDAO{cfg: cfg})

		step := stepByName(t, p.Run(context.Background(), ""), "credential-domain")
		assert.False(t, step.Success)
		assert.Contains(t, step.ErrorDetail, "gmail.com")
		assert.Contains(t, step.ErrorDetail, "ouvrio.fr")
	})

	t.Run("case differences are fine", func(t *testing.T) {
		cfg := workingConfig()
		cfg.User = "notify@OUVRIO.FR"
		p := newTestPipeline(t, &memDAO{cfg: cfg})

		step := stepByName(t, p.Run(context.Background(), ""), "credential-domain")
		assert.True(t, step.Success, step.ErrorDetail)
	})

	t.Run("user without a domain fails", func(t *testing.T) {
		cfg := workingConfig()
		cfg.User = "justauser"
		p := newTestPipeline(t, &memDAO{cfg: cfg})

		step := stepByName(t, p.Run(context.Background(), ""), "credential-domain")
		assert.False(t, step.Success)
	})
}

func TestNetworkStageErrors(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, &memDAO{cfg: workingConfig()})
	p.resolve = func(ctx context.Context, host string) ([]string, error) {
		return nil, errors.New("no such host")
	}
	p.dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}

	steps := p.Run(context.Background(), "")
	assert.False(t, stepByName(t, steps, "dns-resolution").Success)
	assert.False(t, stepByName(t, steps, "tcp-connect").Success)
	assert.True(t, stepByName(t, steps, "config-validation").Success)
	assert.True(t, stepByName(t, steps, "credential-domain").Success)
	assert.Equal(t, "warning", Summarize(steps))
}

func TestPanickingStageIsIsolated(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, &memDAO{cfg: workingConfig()})
	p.resolve = func(ctx context.Context, host string) ([]string, error) {
		panic("resolver went sideways")
	}

	steps := p.Run(context.Background(), "")
	assert.Len(t, steps, 4)

	dns := stepByName(t, steps, "dns-resolution")
	assert.False(t, dns.Success)
	assert.Equal(t, "stage aborted internally", dns.Message)
	assert.Contains(t, dns.ErrorDetail, "resolver went sideways")

	assert.True(t, stepByName(t, steps, "tcp-connect").Success)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	ok := courrier.DiagnosticStep{Success: true}
	bad := courrier.DiagnosticStep{Success: false}

	assert.Equal(t, "ok", Summarize([]courrier.DiagnosticStep{ok, ok, ok, ok}))
	assert.Equal(t, "warning", Summarize([]courrier.DiagnosticStep{ok, bad, ok, ok}))
	assert.Equal(t, "warning", Summarize([]courrier.DiagnosticStep{ok, bad, bad, ok}))
	assert.Equal(t, "error", Summarize([]courrier.DiagnosticStep{bad, bad, bad, ok}))
}
