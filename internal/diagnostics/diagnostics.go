// Package diagnostics validates an outbound mail configuration in staged
// passes, cheapest first. Every stage always runs and always produces
// exactly one result, a failing or panicking stage never takes its siblings
// down with it.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	courrier "github.com/ouvrio/courrier"
	"github.com/ouvrio/courrier/internal/dao"
	"github.com/ouvrio/courrier/internal/dispatch"
	"github.com/ouvrio/courrier/internal/mailconf"
	"github.com/ouvrio/courrier/template"
	"github.com/ouvrio/courrier/tools"

	"github.com/sirupsen/logrus"
)

// Resolver and Dialer are injectable so tests never touch a real network.
type Resolver func(ctx context.Context, host string) ([]string, error)
type Dialer func(ctx context.Context, network, addr string) (net.Conn, error)

type Config struct {
	ConnectTimeout time.Duration `cli:"diagnostic-connect-timeout"`
}

func New(cfg Config, lc *tools.Logger, store *mailconf.Store, dispatcher *dispatch.Dispatcher) *Pipeline {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return &Pipeline{
		cfg:        cfg,
		log:        lc.New("diagnostics"),
		store:      store,
		dispatcher: dispatcher,
		resolve:    net.DefaultResolver.LookupHost,
		dial:       (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
	}
}

type Pipeline struct {
	cfg        Config
	log        *logrus.Logger
	store      *mailconf.Store
	dispatcher *dispatch.Dispatcher

	resolve Resolver
	dial    Dialer
}

type stage struct {
	name string
	run  func(ctx context.Context) (message string, detail map[string]any, err error)
}

// Run executes the fixed stage sequence against the currently saved mail
// config. With a test recipient a fifth end-to-end stage dispatches the
// diagnostic template through the regular controller.
func (p *Pipeline) Run(ctx context.Context, testRecipient string) []courrier.DiagnosticStep {

	cfg := p.store.Load()

	stages := []stage{
		{name: "config-validation", run: p.validateConfig(cfg)},
		{name: "dns-resolution", run: p.resolveHost(cfg)},
		{name: "tcp-connect", run: p.connectHost(cfg)},
		{name: "credential-domain", run: p.credentialDomain(cfg)},
	}
	if testRecipient != "" {
		stages = append(stages, stage{name: "end-to-end-send", run: p.endToEnd(cfg, testRecipient)})
	}

	var results []courrier.DiagnosticStep
	for _, s := range stages {
		res := p.runStage(ctx, s)
		p.log.WithField("stage", res.StepName).
			WithField("success", res.Success).
			WithField("duration_ms", res.DurationMs).
			Debug(res.Message)
		results = append(results, res)
	}
	return results
}

func (p *Pipeline) runStage(ctx context.Context, s stage) (res courrier.DiagnosticStep) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res = courrier.DiagnosticStep{
				StepName:    s.name,
				Success:     false,
				Message:     "stage aborted internally",
				ErrorDetail: fmt.Sprint(r),
				DurationMs:  time.Since(start).Milliseconds(),
			}
		}
	}()

	message, detail, err := s.run(ctx)
	res = courrier.DiagnosticStep{
		StepName:   s.name,
		Success:    err == nil,
		Message:    message,
		Detail:     detail,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		res.ErrorDetail = err.Error()
	}
	return res
}

// Stage 1, structural checks only, no network.
func (p *Pipeline) validateConfig(cfg dao.MailConfig) func(ctx context.Context) (string, map[string]any, error) {
	return func(ctx context.Context) (string, map[string]any, error) {
		var problems []error
		if cfg.Host == "" {
			problems = append(problems, errors.New("host is empty"))
		}
		if cfg.Port < 1 || cfg.Port > 65535 {
			problems = append(problems, fmt.Errorf("port %d is out of range 1-65535", cfg.Port))
		}
		if cfg.User == "" || cfg.Secret == "" {
			problems = append(problems, errors.New("credentials are incomplete"))
		}
		if !tools.ValidEmail(cfg.FromAddress) {
			problems = append(problems, fmt.Errorf("from address %q is not well formed", cfg.FromAddress))
		}

		detail := map[string]any{
			"provider": cfg.Provider,
			"host":     cfg.Host,
			"port":     cfg.Port,
			"enabled":  cfg.Enabled,
			"simulate": cfg.Simulate,
		}
		if len(problems) > 0 {
			return fmt.Sprintf("mail config has %d structural problems", len(problems)), detail, errors.Join(problems...)
		}
		return "mail config is structurally valid", detail, nil
	}
}

// Stage 2, name resolution only, nothing is sent.
func (p *Pipeline) resolveHost(cfg dao.MailConfig) func(ctx context.Context) (string, map[string]any, error) {
	return func(ctx context.Context) (string, map[string]any, error) {
		if cfg.Host == "" {
			return "no host to resolve", nil, errors.New("host is empty")
		}
		addrs, err := p.resolve(ctx, cfg.Host)
		if err != nil {
			return fmt.Sprintf("could not resolve %s", cfg.Host), nil, err
		}
		return fmt.Sprintf("%s resolved to %d address(es)", cfg.Host, len(addrs)),
			map[string]any{"addresses": addrs}, nil
	}
}

// Stage 3, a connection is opened and closed, no protocol handshake.
func (p *Pipeline) connectHost(cfg dao.MailConfig) func(ctx context.Context) (string, map[string]any, error) {
	return func(ctx context.Context) (string, map[string]any, error) {
		addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
		conn, err := p.dial(ctx, "tcp", addr)
		if err != nil {
			return fmt.Sprintf("could not connect to %s", addr), map[string]any{"address": addr}, err
		}
		_ = conn.Close()
		return fmt.Sprintf("connection to %s opened", addr), map[string]any{"address": addr}, nil
	}
}

// Stage 4, the sending identity must live in the same domain as the from
// address, mismatches are the most common silent rejection cause.
func (p *Pipeline) credentialDomain(cfg dao.MailConfig) func(ctx context.Context) (string, map[string]any, error) {
	return func(ctx context.Context) (string, map[string]any, error) {
		userDomain, err := tools.DomainOfEmail(cfg.User)
		if err != nil {
			return "user identity has no domain", nil, fmt.Errorf("user %q, %w", cfg.User, err)
		}
		fromDomain, err := tools.DomainOfEmail(cfg.FromAddress)
		if err != nil {
			return "from address has no domain", nil, fmt.Errorf("from address %q, %w", cfg.FromAddress, err)
		}
		detail := map[string]any{"user_domain": userDomain, "from_domain": fromDomain}
		if !strings.EqualFold(userDomain, fromDomain) {
			return "sending identity does not match from domain", detail,
				fmt.Errorf("user domain %s differs from from-address domain %s", userDomain, fromDomain)
		}
		return "sending identity matches from domain", detail, nil
	}
}

// Stage 5, a full render and dispatch through the regular controller.
func (p *Pipeline) endToEnd(cfg dao.MailConfig, recipient string) func(ctx context.Context) (string, map[string]any, error) {
	return func(ctx context.Context) (string, map[string]any, error) {
		res, err := p.dispatcher.Dispatch(ctx, "diagnostic", recipient, template.Vars{
			"host":      cfg.Host,
			"checkedAt": time.Now().In(time.UTC).Format(time.RFC3339),
		}, "diagnostic")

		detail := map[string]any{"recipient": recipient}
		if res.MessageId != "" {
			detail["message_id"] = res.MessageId
		}
		if err != nil {
			return "test dispatch failed", detail, err
		}
		return "test dispatch succeeded", detail, nil
	}
}

// Summarize collapses a run into an overall status for display, "ok" with
// no failing stages, "warning" with one or two, "error" beyond that.
func Summarize(steps []courrier.DiagnosticStep) string {
	var failed int
	for _, s := range steps {
		if !s.Success {
			failed++
		}
	}
	switch {
	case failed == 0:
		return "ok"
	case failed <= 2:
		return "warning"
	default:
		return "error"
	}
}
