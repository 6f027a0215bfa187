// Package notification fans out best-effort messages after a successful
// mutation: signed webhooks, email and SMS. Delivery runs on the worker pool,
// is attempted once per channel, and never reports back to the caller.
package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicops/clinicops/internal/platform/metrics"
	"github.com/clinicops/clinicops/internal/platform/webhook"
	"github.com/clinicops/clinicops/internal/platform/worker"
)

type Channel string

const (
	ChannelWebhook Channel = "webhook"
	ChannelEmail   Channel = "email"
	ChannelSMS     Channel = "sms"
)

// EventTypeCreated is the webhook envelope type for new events.
const EventTypeCreated = "event.created"

const deliveryTimeout = 30 * time.Second

// EventCreated describes a freshly composed event and who it was assigned to.
type EventCreated struct {
	EventID        uuid.UUID
	DepartmentID   uuid.UUID
	DepartmentName string
	Name           string
	Schedule       string
	AssigneeName   string
	AssigneeEmail  string
	AssigneePhone  string
}

// webhookPayload is the body receivers see inside the envelope.
type webhookPayload struct {
	EventID      uuid.UUID `json:"event_id"`
	DepartmentID uuid.UUID `json:"department_id"`
	Name         string    `json:"name"`
}

// Report holds one success flag per attempted channel.
type Report map[Channel]bool

// OK reports whether every attempted channel succeeded.
func (r Report) OK() bool {
	for _, ok := range r {
		if !ok {
			return false
		}
	}
	return true
}

type Submitter interface {
	SubmitDetached(task worker.Task) error
}

type Dispatcher struct {
	pool      Submitter
	webhooks  *webhook.Deliverer
	email     EmailSender
	sms       SMSSender
	templates *TemplateEngine
	metrics   *metrics.Registry
	logger    zerolog.Logger
}

type Option func(*Dispatcher)

func WithWebhooks(d *webhook.Deliverer) Option { return func(x *Dispatcher) { x.webhooks = d } }
func WithEmail(s EmailSender) Option           { return func(x *Dispatcher) { x.email = s } }
func WithSMS(s SMSSender) Option               { return func(x *Dispatcher) { x.sms = s } }
func WithMetrics(m *metrics.Registry) Option   { return func(x *Dispatcher) { x.metrics = m } }

func NewDispatcher(pool Submitter, logger zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		pool:      pool,
		templates: NewTemplateEngine(),
		logger:    logger.With().Str("component", "notification").Logger(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// DispatchEventCreated schedules delivery and returns immediately. It reports
// whether the work was queued.
func (d *Dispatcher) DispatchEventCreated(_ context.Context, n EventCreated) bool {
	err := d.pool.SubmitDetached(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
		defer cancel()
		d.Deliver(ctx, n)
	})
	if err != nil {
		d.logger.Error().Err(err).Str("event_id", n.EventID.String()).Msg("notification not scheduled")
		return false
	}
	return true
}

// Deliver attempts every configured channel once, logs each outcome and
// returns them.
func (d *Dispatcher) Deliver(ctx context.Context, n EventCreated) Report {
	report := Report{}
	log := d.logger.With().Str("event_id", n.EventID.String()).Logger()

	if d.webhooks != nil && d.webhooks.Receivers() > 0 {
		report[ChannelWebhook] = d.deliverWebhooks(ctx, log, n)
	}

	data := map[string]string{
		"event_id":        n.EventID.String(),
		"event_name":      n.Name,
		"department_name": n.DepartmentName,
		"assignee_name":   n.AssigneeName,
		"schedule":        n.Schedule,
	}

	if d.email != nil && n.AssigneeEmail != "" {
		ok := true
		subject, body, err := d.templates.Render(TemplateEventAssigned, data)
		if err == nil {
			err = d.email.SendEmail(ctx, n.AssigneeEmail, subject, body)
		}
		if err != nil {
			ok = false
			log.Warn().Err(err).Str("channel", string(ChannelEmail)).Msg("notification delivery failed")
		}
		report[ChannelEmail] = ok
	}

	if d.sms != nil && n.AssigneePhone != "" {
		ok := true
		_, body, err := d.templates.Render(TemplateEventAssignedSMS, data)
		if err == nil {
			err = d.sms.SendSMS(ctx, n.AssigneePhone, body)
		}
		if err != nil {
			ok = false
			log.Warn().Err(err).Str("channel", string(ChannelSMS)).Msg("notification delivery failed")
		}
		report[ChannelSMS] = ok
	}

	for ch, ok := range report {
		d.metrics.ObserveDelivery(string(ch), ok)
	}
	log.Info().Interface("report", report).Bool("ok", report.OK()).Msg("notifications delivered")
	return report
}

func (d *Dispatcher) deliverWebhooks(ctx context.Context, log zerolog.Logger, n EventCreated) bool {
	evt, err := webhook.NewEvent(EventTypeCreated, webhookPayload{
		EventID:      n.EventID,
		DepartmentID: n.DepartmentID,
		Name:         n.Name,
	})
	if err != nil {
		log.Warn().Err(err).Str("channel", string(ChannelWebhook)).Msg("notification delivery failed")
		return false
	}

	ok := true
	for _, res := range d.webhooks.Deliver(ctx, evt) {
		if !res.Success {
			ok = false
			log.Warn().
				Str("channel", string(ChannelWebhook)).
				Str("url", res.URL).
				Int("status", res.StatusCode).
				Str("error", res.Error).
				Msg("notification delivery failed")
		}
	}
	return ok
}
