package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/rueidis"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/searchql/internal/attr"
	"github.com/roach88/searchql/internal/catalog"
	logpkg "github.com/roach88/searchql/internal/logger"
	"github.com/roach88/searchql/internal/notify"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Interval    time.Duration
	Subscribe   bool
	MetricsAddr string
}

// WatchEvent reports a catalog reload that changed tenants.
type WatchEvent struct {
	Tenants  []string `json:"tenants"`
	EventIDs []string `json:"event_ids,omitempty"`
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload the catalog and announce attribute changes",
		Long: `Poll a CUE catalog and announce every tenant whose attribute
definitions changed.

Changed tenants are invalidated in the local registry and, when
notify.addrs is configured, published as change events so other
processes rebuild their snapshots. With --subscribe the command also
applies events published by others. Runs until interrupted.

Examples:
  searchql watch --catalog ./catalog --interval 5s
  searchql watch --config searchql.yaml --subscribe --metrics-addr :9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Interval, "interval", 2*time.Second, "catalog poll interval")
	cmd.Flags().BoolVar(&opts.Subscribe, "subscribe", false, "apply change events published by other processes")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Interval <= 0 {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "--interval must be positive", nil)
	}

	sess, err := openSession(opts.RootOptions, formatter)
	if err != nil {
		return err
	}
	defer sess.Close()

	if sess.catalog == nil && !opts.Subscribe {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "watch polls cue catalogs only; use --subscribe with a sqlite catalog", nil)
	}

	var client rueidis.Client
	if sess.cfg.NotifyEnabled() {
		client, err = notify.NewClient(notifyConfig(sess.cfg))
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeNotify, err.Error(), nil)
		}
		defer client.Close()
	}
	if opts.Subscribe && client == nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotify, "--subscribe requires notify.addrs", nil)
	}

	ctx, stop := signal.NotifyContext(sess.commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if sess.catalog != nil {
		w := &watcher{
			catalog:  sess.catalog,
			registry: sess.registry,
			logger:   sess.logger,
			interval: opts.Interval,
			report:   func(ev WatchEvent) { reportWatchEvent(formatter, ev) },
		}
		if client != nil {
			w.publisher = notify.NewPublisher(client, sess.cfg.Notify.Channel, sess.logger)
		}
		g.Go(func() error { return w.poll(gctx) })
		formatter.VerboseLog("Watching %s every %s", sess.cfg.Catalog.Path, opts.Interval)
	}

	if opts.Subscribe {
		sub := notify.NewSubscriber(client, sess.cfg.Notify.Channel, sess.registry,
			notify.WithLogger(sess.logger),
			notify.WithMetrics(sess.metrics),
		)
		g.Go(func() error { return sub.Run(gctx) })
		formatter.VerboseLog("Subscribed to %s", sess.cfg.Notify.Channel)
	}

	if opts.MetricsAddr != "" {
		g.Go(func() error { return serveMetrics(gctx, opts.MetricsAddr, sess.gatherer, sess.logger) })
	}

	if err := g.Wait(); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	return nil
}

// watcher polls a catalog provider and propagates changed tenants.
type watcher struct {
	catalog   *catalog.Provider
	registry  *attr.Registry
	publisher *notify.Publisher // nil without a transport
	logger    *zap.Logger
	interval  time.Duration
	report    func(WatchEvent)
}

func (w *watcher) poll(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if ev := w.reload(ctx); ev != nil && w.report != nil {
				w.report(*ev)
			}
		}
	}
}

// reload re-reads the catalog once. It returns nil when nothing changed or
// the catalog failed to load; the provider keeps serving the previous
// catalog in that case.
func (w *watcher) reload(ctx context.Context) *WatchEvent {
	changed, err := w.catalog.Reload()
	if err != nil || len(changed) == 0 {
		return nil
	}

	base := logpkg.ContextWithLogger(ctx, logpkg.FromContextOr(ctx, w.logger))
	ev := &WatchEvent{Tenants: changed}
	for _, tenant := range changed {
		tctx := logpkg.WithFields(base, zap.String("tenant", tenant))
		log := logpkg.FromContext(tctx)
		log.Info("catalog changed for tenant")

		change := attr.ChangeEvent{Tenant: tenant, Kind: attr.EventUpdated}
		if w.publisher != nil {
			published, err := w.publisher.Publish(tctx, tenant, attr.EventUpdated)
			if err != nil {
				log.Warn("publish attribute change failed", zap.Error(err))
			} else {
				change = published
				ev.EventIDs = append(ev.EventIDs, published.ID)
			}
		}
		if err := w.registry.HandleEvent(tctx, change); err != nil {
			log.Warn("registry refresh failed", zap.Error(err))
		}
	}
	return ev
}

func reportWatchEvent(formatter *OutputFormatter, ev WatchEvent) {
	if formatter.Format == "json" {
		_ = formatter.Success(ev)
		return
	}
	fmt.Fprintf(formatter.Writer, "↻ catalog reloaded, changed: %s\n", strings.Join(ev.Tenants, ", "))
}

// serveMetrics serves the Prometheus registry until ctx is done.
func serveMetrics(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}
