// Package dispatch turns an event into exactly one audited delivery attempt.
// A record is written in state pending before the wire is touched, moved
// forward once, and never retried.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	courrier "github.com/ouvrio/courrier"
	"github.com/ouvrio/courrier/internal/dao"
	"github.com/ouvrio/courrier/internal/mailconf"
	"github.com/ouvrio/courrier/internal/metrics"
	"github.com/ouvrio/courrier/internal/transport"
	"github.com/ouvrio/courrier/template"
	"github.com/ouvrio/courrier/tools"

	"github.com/google/uuid"
	"github.com/modfin/henry/compare"
	"github.com/sirupsen/logrus"
)

var (
	// ErrSendingDisabled and ErrMisconfigured are configuration errors, the
	// operator can recover by fixing the mail config. No record is written.
	ErrSendingDisabled = errors.New("outbound mail is disabled")
	ErrMisconfigured   = errors.New("outbound mail config is not usable")

	// ErrUnknownTemplate and ErrBadRecipient are caller errors. No record
	// is written, nothing was attempted.
	ErrUnknownTemplate = errors.New("unknown template id")
	ErrBadRecipient    = errors.New("recipient is not a valid email address")
)

type Config struct {
	// PublicBaseURL is the marketplace origin used to assemble the deep
	// link and unsubscribe link variables, eg https://www.ouvrio.fr
	PublicBaseURL string `cli:"public-base-url"`

	// SimulationDir is where simulate mode records would-be payloads.
	SimulationDir string `cli:"simulation-dir"`

	// Hostname tags message ids, defaults to os.Hostname.
	Hostname string `cli:"hostname"`
}

func New(cfg Config, lc *tools.Logger, db dao.DAO, store *mailconf.Store, senders transport.Factory, m *metrics.Metrics) *Dispatcher {

	if cfg.Hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "localhost"
		}
		cfg.Hostname = hostname
	}

	if senders == nil {
		senders = transport.NewSender
	}

	d := &Dispatcher{
		cfg:       cfg,
		db:        db,
		store:     store,
		log:       lc.New("dispatch"),
		newSender: senders,
		recorder:  transport.NewRecorder(compare.Coalesce(cfg.SimulationDir, "./simulated-mail")),
	}
	if m != nil {
		counters := m.Dispatch()
		d.counters = &counters
	}
	return d
}

type Dispatcher struct {
	cfg   Config
	db    dao.DAO
	store *mailconf.Store
	log   *logrus.Logger

	newSender transport.Factory
	recorder  *transport.Recorder
	counters  *metrics.Dispatch
}

// DispatchEvent sends the notification a marketplace event calls for.
func (d *Dispatcher) DispatchEvent(ctx context.Context, ev courrier.Event) (courrier.DispatchResult, error) {
	d.log.WithField("kind", ev.Kind()).WithField("ref", ev.Ref()).Debug("dispatching event")
	return d.Dispatch(ctx, ev.TemplateId(), ev.Recipient(), ev.Variables(), ev.Ref())
}

// Dispatch renders the named template against vars and makes at most one
// delivery attempt. Two identical calls produce two independent records,
// deduplication belongs to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, templateId, recipient string, vars template.Vars, sourceEventRef string) (courrier.DispatchResult, error) {

	cfg := d.store.Load()
	if !cfg.Enabled {
		return courrier.DispatchResult{ErrorDetail: "disabled"}, ErrSendingDisabled
	}
	if !mailconf.IsUsable(cfg) {
		return courrier.DispatchResult{ErrorDetail: "misconfigured"}, ErrMisconfigured
	}

	tmpl, ok := template.Lookup(templateId)
	if !ok {
		return courrier.DispatchResult{}, fmt.Errorf("%w: %s", ErrUnknownTemplate, templateId)
	}

	if !tools.ValidEmail(recipient) {
		return courrier.DispatchResult{}, fmt.Errorf("%w: %s", ErrBadRecipient, recipient)
	}

	subject, html, text := tmpl.Render(d.withDerived(vars, recipient, sourceEventRef))

	messageId := newMessageId(d.cfg.Hostname)
	rec := dao.DispatchRecord{
		MessageId:       messageId,
		TemplateId:      templateId,
		Recipient:       recipient,
		RenderedSubject: subject,
		SourceEventRef:  sourceEventRef,
		Status:          dao.StatusPending,
	}
	err := d.db.AddDispatchRecord(rec)
	if err != nil {
		return courrier.DispatchResult{}, fmt.Errorf("could not persist dispatch record, %w", err)
	}

	msg := courrier.Message{
		From:    courrier.Address{Name: cfg.FromName, Email: cfg.FromAddress},
		To:      recipient,
		Subject: subject,
		HTML:    html,
		Text:    text,
	}

	d.inc(func(c *metrics.Dispatch) { c.Attempted.Inc() })

	if cfg.Simulate {
		err = d.recorder.Record(messageId, msg)
		if err != nil {
			d.log.WithError(err).WithField("message_id", messageId).Warn("could not record simulated payload")
		}
		_ = d.db.AddDispatchLogEntry(messageId, "simulate mode, no transport attempted")
		err = d.db.SetDispatchStatus(messageId, dao.StatusSent, "")
		if err != nil {
			return courrier.DispatchResult{MessageId: messageId}, fmt.Errorf("could not finalize dispatch record, %w", err)
		}
		d.inc(func(c *metrics.Dispatch) { c.Simulated.Inc(); c.Sent.Inc() })
		return courrier.DispatchResult{Success: true, MessageId: messageId}, nil
	}

	sender := d.newSender(cfg)
	err = sender.Send(ctx, msg)
	if err != nil {
		d.log.WithError(err).WithField("message_id", messageId).Info("delivery failed")
		ferr := d.db.SetDispatchStatus(messageId, dao.StatusFailed, err.Error())
		if ferr != nil {
			d.log.WithError(ferr).WithField("message_id", messageId).Error("could not mark dispatch as failed")
		}
		d.inc(func(c *metrics.Dispatch) { c.Failed.Inc() })
		return courrier.DispatchResult{
			MessageId:   messageId,
			ErrorDetail: err.Error(),
		}, fmt.Errorf("delivery failed, %w", err)
	}

	err = d.db.SetDispatchStatus(messageId, dao.StatusSent, "")
	if err != nil {
		return courrier.DispatchResult{Success: true, MessageId: messageId}, fmt.Errorf("message sent but record not finalized, %w", err)
	}
	d.inc(func(c *metrics.Dispatch) { c.Sent.Inc() })
	return courrier.DispatchResult{Success: true, MessageId: messageId}, nil
}

// withDerived adds the variables the dispatcher owes to every template, the
// request deep link and the unsubscribe link. Derived values win over caller
// supplied ones.
func (d *Dispatcher) withDerived(vars template.Vars, recipient, ref string) template.Vars {
	base := strings.TrimRight(d.cfg.PublicBaseURL, "/")

	all := template.Vars{}
	for k, v := range vars {
		all[k] = v
	}
	all["siteUrl"] = base
	all["unsubscribeLink"] = fmt.Sprintf("%s/preferences/notifications?email=%s", base, url.QueryEscape(recipient))
	if ref != "" {
		all["requestLink"] = fmt.Sprintf("%s/demandes/%s", base, url.PathEscape(ref))
	}
	return all
}

func (d *Dispatcher) inc(f func(c *metrics.Dispatch)) {
	if d.counters != nil {
		f(d.counters)
	}
}

func newMessageId(hostname string) string {
	return fmt.Sprintf("%s@%s", uuid.New().String(), hostname)
}
