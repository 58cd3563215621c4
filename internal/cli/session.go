package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/searchql/internal/attr"
	"github.com/roach88/searchql/internal/catalog"
	"github.com/roach88/searchql/internal/compiler"
	"github.com/roach88/searchql/internal/config"
	"github.com/roach88/searchql/internal/logger"
	"github.com/roach88/searchql/internal/metrics"
	"github.com/roach88/searchql/internal/store"
)

// session wires the configured catalog into a registry and compiler.
// Exactly one of store and catalog is set, depending on catalog.source.
type session struct {
	cfg      config.Config
	logger   *zap.Logger
	gatherer *prometheus.Registry
	metrics  *metrics.Metrics

	store   *store.Store
	catalog *catalog.Provider

	registry *attr.Registry
	compiler *compiler.Compiler
}

// loadConfig reads the configuration and applies the global overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return config.Config{}, err
	}
	if opts.Catalog != "" {
		cfg.Catalog.Path = opts.Catalog
	}
	if opts.Source != "" {
		cfg.Catalog.Source = opts.Source
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the command logger. Commands stay quiet below warn
// unless --verbose is set or the configuration picks a level.
func newLogger(opts *RootOptions, cfg config.Config) (*zap.Logger, error) {
	level := cfg.Logging.Level
	switch {
	case opts.Verbose:
		level = "debug"
	case level == "":
		level = "warn"
	}
	return logger.NewLogger(cfg.Logging.Env, level)
}

// openSession loads configuration and the attribute catalog. Failures are
// reported on f and returned as ExitErrors.
func openSession(opts *RootOptions, f *OutputFormatter) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	if cfg.Catalog.Path == "" {
		return nil, f.Fail(ExitCommandError, ErrCodeNoCatalog, "no catalog configured: set catalog.path or pass --catalog", nil)
	}

	log, err := newLogger(opts, cfg)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}

	s := &session{
		cfg:      cfg,
		logger:   log,
		gatherer: prometheus.NewRegistry(),
	}
	s.metrics = metrics.New(cfg.Metrics.Namespace, s.gatherer)

	var provider attr.Provider
	switch cfg.Catalog.Source {
	case config.SourceSQLite:
		if _, err := os.Stat(cfg.Catalog.Path); err != nil {
			return nil, f.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("database not found: %s", cfg.Catalog.Path), nil)
		}
		st, err := store.Open(cfg.Catalog.Path)
		if err != nil {
			return nil, f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
		s.store, provider = st, st
	default:
		p, err := catalog.NewProvider(cfg.Catalog.Path, log)
		if err != nil {
			return nil, failCatalog(f, err)
		}
		s.catalog, provider = p, p
	}
	f.VerboseLog("Catalog: %s (%s)", cfg.Catalog.Path, cfg.Catalog.Source)

	regOpts := []attr.Option{attr.WithLogger(log), attr.WithObserver(s.metrics)}
	if cfg.Registry.EagerRefresh {
		regOpts = append(regOpts, attr.WithEagerRefresh())
	}
	s.registry = attr.NewRegistry(provider, regOpts...)
	s.compiler = compiler.New(s.registry,
		compiler.WithLogger(log),
		compiler.WithMetrics(s.metrics),
		compiler.WithDefaultField(cfg.Parser.DefaultField),
	)
	return s, nil
}

// commandContext returns the command's context carrying the session
// logger, scoped to the command name.
func (s *session) commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return logger.ContextWithLogger(ctx, s.logger.With(zap.String("command", cmd.Name())))
}

// Close releases the store, if any, and flushes the logger.
func (s *session) Close() error {
	_ = s.logger.Sync()
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// failCatalog reports a catalog load failure with its own error code.
func failCatalog(f *OutputFormatter, err error) error {
	var loadErr *catalog.LoadError
	if !errors.As(err, &loadErr) {
		return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	msg := loadErr.Message
	if loadErr.Pos.IsValid() {
		msg = fmt.Sprintf("%s:%d:%d: %s", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column(), msg)
	}
	return f.Fail(ExitCommandError, loadErr.Code, msg, nil)
}
