// Package notify carries attribute model change events between processes
// over Redis pub/sub.
//
// A Publisher announces that a tenant's catalog changed; every Subscriber
// on the same channel decodes the event and hands it to a Handler, usually
// the attribute registry, which invalidates or rebuilds the tenant's
// snapshot.
package notify

import (
	"encoding/json"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/roach88/searchql/internal/attr"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "searchql:attributes"

// Event handling outcomes, as reported to metrics.
const (
	StatusHandled = "handled"
	StatusInvalid = "invalid"
	StatusFailed  = "failed"
)

// Config holds connection parameters for the Redis transport.
type Config struct {
	Addrs    []string
	Channel  string
	Username string
	Password string
}

// NewClient creates a rueidis client for pub/sub.
func NewClient(cfg Config) (rueidis.Client, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

func channelOrDefault(ch string) string {
	if ch == "" {
		return DefaultChannel
	}
	return ch
}

// encodeEvent renders an event as its wire payload.
func encodeEvent(ev attr.ChangeEvent) (string, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}
	return string(b), nil
}

// decodeEvent parses and validates a wire payload.
func decodeEvent(payload string) (attr.ChangeEvent, error) {
	var ev attr.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return attr.ChangeEvent{}, fmt.Errorf("decode event: %w", err)
	}
	switch ev.Kind {
	case attr.EventCreated, attr.EventUpdated, attr.EventDeleted:
	default:
		return attr.ChangeEvent{}, fmt.Errorf("decode event %s: unknown kind %q", ev.ID, ev.Kind)
	}
	return ev, nil
}
