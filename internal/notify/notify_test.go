package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/searchql/internal/attr"
	logpkg "github.com/roach88/searchql/internal/logger"
	"github.com/roach88/searchql/internal/metrics"
)

type recordingHandler struct {
	events []attr.ChangeEvent
	err    error
}

func (h *recordingHandler) HandleEvent(ctx context.Context, ev attr.ChangeEvent) error {
	h.events = append(h.events, ev)
	logpkg.FromContext(ctx).Debug("handling change event")
	return h.err
}

func TestEventCodec(t *testing.T) {
	ev := attr.ChangeEvent{ID: "0190b6d2-0000-7000-8000-000000000001", Tenant: "acme", Kind: attr.EventUpdated}

	payload, err := encodeEvent(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"0190b6d2-0000-7000-8000-000000000001","tenant":"acme","kind":"updated"}`, payload)

	got, err := decodeEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestDecodeEvent_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "refresh please"},
		{"missing kind", `{"id":"1","tenant":"acme"}`},
		{"unknown kind", `{"id":"1","tenant":"acme","kind":"renamed"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeEvent(tt.payload)
			require.Error(t, err)
		})
	}
}

func TestNewEvent_UsesTimeOrderedIDs(t *testing.T) {
	ev, err := newEvent("", attr.EventCreated)
	require.NoError(t, err)

	id, err := uuid.Parse(ev.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.Empty(t, ev.Tenant)
	assert.Equal(t, attr.EventCreated, ev.Kind)

	next, err := newEvent("", attr.EventCreated)
	require.NoError(t, err)
	assert.Less(t, ev.ID, next.ID)
}

func TestDefaultChannel(t *testing.T) {
	assert.Equal(t, DefaultChannel, NewPublisher(nil, "", nil).channel)
	assert.Equal(t, "custom", NewSubscriber(nil, "custom", &recordingHandler{}).channel)
}

func TestNewClient_RequiresAddrs(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestSubscriber_HandleMessage(t *testing.T) {
	m := metrics.New("", prometheus.NewRegistry())
	core, logs := observer.New(zap.DebugLevel)
	h := &recordingHandler{}
	s := NewSubscriber(nil, "", h, WithMetrics(m), WithLogger(zap.New(core)))
	ctx := context.Background()

	assert.Equal(t, StatusHandled, s.handleMessage(ctx, `{"id":"e1","tenant":"acme","kind":"updated"}`))
	assert.Equal(t, StatusInvalid, s.handleMessage(ctx, `garbage`))

	h.err = errors.New("catalog unavailable")
	assert.Equal(t, StatusFailed, s.handleMessage(ctx, `{"id":"e2","tenant":"","kind":"deleted"}`))

	require.Len(t, h.events, 2)
	assert.Equal(t, "acme", h.events[0].Tenant)
	assert.Equal(t, attr.EventDeleted, h.events[1].Kind)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues("updated", StatusHandled)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues("unknown", StatusInvalid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues("deleted", StatusFailed)))

	assert.Equal(t, 1, logs.FilterMessage("dropping malformed change event").Len())
	failed := logs.FilterMessage("change event failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "e2", failed[0].ContextMap()["event_id"])
	assert.Equal(t, DefaultChannel, failed[0].ContextMap()["channel"])
}

func TestSubscriber_HandlerSeesScopedLogger(t *testing.T) {
	configured, configuredLogs := observer.New(zap.DebugLevel)
	scoped, scopedLogs := observer.New(zap.DebugLevel)
	s := NewSubscriber(nil, "custom", &recordingHandler{}, WithLogger(zap.New(configured)))

	ctx := logpkg.ContextWithLogger(context.Background(), zap.New(scoped))
	assert.Equal(t, StatusHandled, s.handleMessage(ctx, `{"id":"e1","tenant":"acme","kind":"updated"}`))

	assert.Equal(t, 0, configuredLogs.Len())
	handled := scopedLogs.FilterMessage("handling change event").All()
	require.Len(t, handled, 1)
	fields := handled[0].ContextMap()
	assert.Equal(t, "custom", fields["channel"])
	assert.Equal(t, "e1", fields["event_id"])
	assert.Equal(t, "acme", fields["tenant"])
}

func TestSubscriber_InvalidatesRegistry(t *testing.T) {
	provider := attr.NewStaticProvider(map[string][]attr.Definition{
		"acme": {{Name: "status", Type: attr.TypeString, Dynamic: true}},
	})
	reg := attr.NewRegistry(provider)
	ctx := context.Background()

	_, ok, err := reg.Resolve(ctx, "acme", "owner")
	require.NoError(t, err)
	require.False(t, ok)

	provider.Set("acme", []attr.Definition{
		{Name: "status", Type: attr.TypeString, Dynamic: true},
		{Name: "owner", Type: attr.TypeString, Dynamic: true},
	})

	// Stale until the event arrives.
	_, ok, err = reg.Resolve(ctx, "acme", "owner")
	require.NoError(t, err)
	require.False(t, ok)

	s := NewSubscriber(nil, "", reg)
	assert.Equal(t, StatusHandled, s.handleMessage(ctx, `{"id":"e1","tenant":"acme","kind":"updated"}`))

	def, ok, err := reg.Resolve(ctx, "acme", "owner")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "feature.properties.owner", def.FullPath())
}
