package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/roach88/searchql/internal/attr"
	logpkg "github.com/roach88/searchql/internal/logger"
	"github.com/roach88/searchql/internal/metrics"
)

// Handler applies a change event. *attr.Registry satisfies it.
type Handler interface {
	HandleEvent(ctx context.Context, ev attr.ChangeEvent) error
}

// Subscriber forwards change events from a channel to a Handler.
type Subscriber struct {
	client  rueidis.Client
	channel string
	handler Handler
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// SubscriberOption configures a Subscriber.
type SubscriberOption func(*Subscriber)

// WithLogger sets the subscriber logger.
func WithLogger(l *zap.Logger) SubscriberOption {
	return func(s *Subscriber) { s.logger = l }
}

// WithMetrics records handled events.
func WithMetrics(m *metrics.Metrics) SubscriberOption {
	return func(s *Subscriber) { s.metrics = m }
}

// NewSubscriber creates a subscriber on channel (DefaultChannel if empty).
func NewSubscriber(client rueidis.Client, channel string, handler Handler, opts ...SubscriberOption) *Subscriber {
	s := &Subscriber{
		client:  client,
		channel: channelOrDefault(channel),
		handler: handler,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run subscribes and blocks until ctx is cancelled or the connection
// fails. Cancellation is not an error.
//
// A message that fails to decode or apply is logged and counted; it never
// stops the subscription.
func (s *Subscriber) Run(ctx context.Context) error {
	s.logger.Info("subscribing to attribute changes", zap.String("channel", s.channel))

	cmd := s.client.B().Subscribe().Channel(s.channel).Build()
	err := s.client.Receive(ctx, cmd, func(msg rueidis.PubSubMessage) {
		s.handleMessage(ctx, msg.Message)
	})
	if err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	return nil
}

// handleMessage decodes one payload and applies it, reporting the outcome.
// Failures end here: they are logged and counted.
func (s *Subscriber) handleMessage(ctx context.Context, payload string) string {
	log := logpkg.FromContextOr(ctx, s.logger).With(zap.String("channel", s.channel))

	ev, err := decodeEvent(payload)
	if err != nil {
		log.Warn("dropping malformed change event", zap.Error(err))
		s.metrics.ObserveEvent("unknown", StatusInvalid)
		return StatusInvalid
	}

	ctx = logpkg.ContextWithLogger(ctx, log.With(zap.String("event_id", ev.ID), zap.String("tenant", ev.Tenant)))
	if err := s.handler.HandleEvent(ctx, ev); err != nil {
		logpkg.FromContext(ctx).Error("change event failed", zap.Error(err))
		s.metrics.ObserveEvent(string(ev.Kind), StatusFailed)
		return StatusFailed
	}

	s.metrics.ObserveEvent(string(ev.Kind), StatusHandled)
	return StatusHandled
}
