package services

import (
	"context"
	"time"

	"github.com/alumnijourney/apiserver/internal/events"
	"github.com/alumnijourney/apiserver/internal/monitoring"
	"github.com/sirupsen/logrus"
)

// Option configures the shared collaborators of a service.
type Option func(*base)

// WithEvents sets where domain events are published. The default drops them.
func WithEvents(p events.Publisher) Option {
	return func(b *base) { b.events = p }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(b *base) { b.log = log }
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

type base struct {
	events events.Publisher
	log    logrus.FieldLogger
	now    func() time.Time
}

func newBase(opts []Option) base {
	b := base{
		events: events.Nop{},
		log:    logrus.StandardLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// publish emits event without failing the caller; the write it describes already happened.
func (b base) publish(ctx context.Context, event events.Event) {
	if err := b.events.Publish(ctx, event); err != nil {
		monitoring.EventsPublished.WithLabelValues(string(event.Type), "error").Inc()
		b.log.WithError(err).WithField("event_type", event.Type).Warn("publish event failed")
		return
	}
	monitoring.EventsPublished.WithLabelValues(string(event.Type), "ok").Inc()
}
