package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/searchql/internal/attr"
	"github.com/roach88/searchql/internal/catalog"
	"github.com/roach88/searchql/internal/logger"
)

const (
	watchCatalogV1 = `
tenant: acme: attributes: [{name: "status", type: "STRING"}]
tenant: globex: attributes: [{name: "status", type: "STRING"}]
`
	watchCatalogV2 = `
tenant: acme: attributes: [
	{name: "status", type: "STRING"},
	{name: "size", type: "INTEGER"},
]
tenant: globex: attributes: [{name: "status", type: "STRING"}]
`
)

func newTestWatcher(t *testing.T, path string) *watcher {
	t.Helper()
	provider, err := catalog.NewProvider(path, zap.NewNop())
	require.NoError(t, err)
	return &watcher{
		catalog:  provider,
		registry: attr.NewRegistry(provider),
		logger:   zap.NewNop(),
		interval: 10 * time.Millisecond,
	}
}

func TestWatcherReloadInvalidatesChangedTenants(t *testing.T) {
	ctx := context.Background()
	path := writeCatalog(t, t.TempDir(), watchCatalogV1)
	w := newTestWatcher(t, path)

	_, found, err := w.registry.Resolve(ctx, "acme", "size")
	require.NoError(t, err)
	assert.False(t, found)
	globex, err := w.registry.Snapshot(ctx, "globex")
	require.NoError(t, err)

	writeCatalog(t, filepath.Dir(path), watchCatalogV2)
	ev := w.reload(ctx)
	require.NotNil(t, ev)
	assert.Equal(t, []string{"acme"}, ev.Tenants)
	assert.Empty(t, ev.EventIDs)

	def, found, err := w.registry.Resolve(ctx, "acme", "size")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, attr.TypeInteger, def.Type)

	again, err := w.registry.Snapshot(ctx, "globex")
	require.NoError(t, err)
	assert.Same(t, globex, again)
}

func TestWatcherReloadLogsPerTenant(t *testing.T) {
	path := writeCatalog(t, t.TempDir(), watchCatalogV1)
	w := newTestWatcher(t, path)

	core, logs := observer.New(zapcore.InfoLevel)
	ctx := logger.ContextWithLogger(context.Background(), zap.New(core).With(zap.String("command", "watch")))

	writeCatalog(t, filepath.Dir(path), watchCatalogV2)
	require.NotNil(t, w.reload(ctx))

	changed := logs.FilterMessage("catalog changed for tenant").All()
	require.Len(t, changed, 1)
	fields := changed[0].ContextMap()
	assert.Equal(t, "acme", fields["tenant"])
	assert.Equal(t, "watch", fields["command"])
}

func TestWatcherReloadUnchanged(t *testing.T) {
	path := writeCatalog(t, t.TempDir(), watchCatalogV1)
	w := newTestWatcher(t, path)

	assert.Nil(t, w.reload(context.Background()))
}

func TestWatcherReloadKeepsCatalogOnError(t *testing.T) {
	ctx := context.Background()
	path := writeCatalog(t, t.TempDir(), watchCatalogV1)
	w := newTestWatcher(t, path)

	writeCatalog(t, filepath.Dir(path), `tenant: acme: attributes: [{name: "x", type: "BLOB"}]`)
	assert.Nil(t, w.reload(ctx))

	_, found, err := w.registry.Resolve(ctx, "acme", "status")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestWatcherPollReports(t *testing.T) {
	path := writeCatalog(t, t.TempDir(), watchCatalogV1)
	w := newTestWatcher(t, path)

	events := make(chan WatchEvent, 4)
	w.report = func(ev WatchEvent) { events <- ev }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.poll(ctx) }()

	writeCatalog(t, filepath.Dir(path), watchCatalogV2)

	select {
	case ev := <-events:
		assert.Equal(t, []string{"acme"}, ev.Tenants)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload reported")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestWatchCommandRunsUntilCancelled(t *testing.T) {
	path := writeCatalog(t, t.TempDir(), watchCatalogV1)

	cmd := NewWatchCommand(&RootOptions{Format: "text", Catalog: path})
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--interval", "10ms"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = replaceFile(path, watchCatalogV2)
	}()

	require.NoError(t, cmd.ExecuteContext(ctx))
	assert.Contains(t, out.String(), "↻ catalog reloaded, changed: acme")
}

func TestWatchCommandErrors(t *testing.T) {
	db := seedDatabase(t)

	tests := []struct {
		name string
		opts *RootOptions
		args []string
		code string
	}{
		{"non-positive interval", &RootOptions{Format: "text", Catalog: testCatalog}, []string{"--interval", "0s"}, ErrCodeConfig},
		{"sqlite without subscribe", &RootOptions{Format: "text", Catalog: db, Source: "sqlite"}, nil, ErrCodeConfig},
		{"subscribe without transport", &RootOptions{Format: "text", Catalog: testCatalog}, []string{"--subscribe"}, ErrCodeNotify},
		{"no catalog", &RootOptions{Format: "text"}, nil, ErrCodeNoCatalog},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, NewWatchCommand(tt.opts), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.code+"]")
		})
	}
}

func TestReportWatchEvent(t *testing.T) {
	buf := &bytes.Buffer{}
	reportWatchEvent(&OutputFormatter{Format: "text", Writer: buf}, WatchEvent{Tenants: []string{"acme", "globex"}})
	assert.Equal(t, "↻ catalog reloaded, changed: acme, globex\n", buf.String())

	buf.Reset()
	reportWatchEvent(&OutputFormatter{Format: "json", Writer: buf}, WatchEvent{Tenants: []string{"acme"}, EventIDs: []string{"e1"}})

	var resp struct {
		Status string     `json:"status"`
		Data   WatchEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, WatchEvent{Tenants: []string{"acme"}, EventIDs: []string{"e1"}}, resp.Data)
}

func TestServeMetricsStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveMetrics(ctx, "127.0.0.1:0", prometheus.NewRegistry(), zap.NewNop()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}
