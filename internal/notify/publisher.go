package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/roach88/searchql/internal/attr"
)

// Publisher announces attribute model changes.
type Publisher struct {
	client  rueidis.Client
	channel string
	logger  *zap.Logger
}

// NewPublisher creates a publisher on channel (DefaultChannel if empty).
func NewPublisher(client rueidis.Client, channel string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{client: client, channel: channelOrDefault(channel), logger: logger}
}

// Publish sends a change event for tenant ("" for every tenant) and
// returns it. Event ids are UUIDv7, so they sort by publication time.
func (p *Publisher) Publish(ctx context.Context, tenant string, kind attr.EventKind) (attr.ChangeEvent, error) {
	ev, err := newEvent(tenant, kind)
	if err != nil {
		return attr.ChangeEvent{}, err
	}

	payload, err := encodeEvent(ev)
	if err != nil {
		return attr.ChangeEvent{}, err
	}

	cmd := p.client.B().Publish().Channel(p.channel).Message(payload).Build()
	receivers, err := p.client.Do(ctx, cmd).AsInt64()
	if err != nil {
		return attr.ChangeEvent{}, fmt.Errorf("publish event %s: %w", ev.ID, err)
	}

	p.logger.Debug("published attribute change",
		zap.String("event_id", ev.ID),
		zap.String("tenant", tenant),
		zap.String("kind", string(kind)),
		zap.Int64("receivers", receivers),
	)
	return ev, nil
}

func newEvent(tenant string, kind attr.EventKind) (attr.ChangeEvent, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return attr.ChangeEvent{}, fmt.Errorf("generate event id: %w", err)
	}
	return attr.ChangeEvent{ID: id.String(), Tenant: tenant, Kind: kind}, nil
}
