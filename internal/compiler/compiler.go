// Package compiler is the entry point of searchql: it compiles a tenant's
// query string into a criterion tree.
//
// A compilation takes the tenant's current attribute snapshot once and uses
// it for both phases, so a concurrent catalog change never mixes two
// versions of the catalog within one query:
//
//	raw -> query.Parse(WithTypes(snapshot)) -> builder.Build(snapshot) -> criterion
package compiler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/searchql/internal/attr"
	"github.com/roach88/searchql/internal/builder"
	"github.com/roach88/searchql/internal/criterion"
	logpkg "github.com/roach88/searchql/internal/logger"
	"github.com/roach88/searchql/internal/metrics"
	"github.com/roach88/searchql/internal/query"
)

// SnapshotSource hands out per-tenant attribute snapshots. *attr.Registry
// satisfies it.
type SnapshotSource interface {
	Snapshot(ctx context.Context, tenant string) (*attr.Snapshot, error)
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the compiler logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Compiler) { c.logger = l }
}

// WithMetrics records every compilation on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Compiler) { c.metrics = m }
}

// WithDefaultField sets the field used by terms written without one.
func WithDefaultField(field string) Option {
	return func(c *Compiler) { c.defaultField = field }
}

// Compiler compiles query strings. Safe for concurrent use.
type Compiler struct {
	snapshots    SnapshotSource
	logger       *zap.Logger
	metrics      *metrics.Metrics
	defaultField string
}

// New creates a Compiler over a snapshot source.
func New(snapshots SnapshotSource, opts ...Option) *Compiler {
	c := &Compiler{
		snapshots: snapshots,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result is a compiled query together with the syntax tree it came from and
// the snapshot version it was resolved against.
type Result struct {
	Criterion criterion.Criterion
	AST       query.Node
	Snapshot  *attr.Snapshot
}

// Compile turns raw into a criterion tree for tenant.
//
// Syntax and build failures are returned as *CompileError. A failure to
// obtain the attribute snapshot is returned wrapped as is; retrying after
// the catalog recovers may succeed, while retrying a CompileError never will.
func (c *Compiler) Compile(ctx context.Context, tenant, raw string) (criterion.Criterion, error) {
	res, err := c.CompileResult(ctx, tenant, raw)
	if err != nil {
		return nil, err
	}
	return res.Criterion, nil
}

// CompileResult is Compile with the intermediate artifacts kept.
func (c *Compiler) CompileResult(ctx context.Context, tenant, raw string) (*Result, error) {
	start := time.Now()

	snap, err := c.snapshots.Snapshot(ctx, tenant)
	if err != nil {
		c.metrics.ObserveCompile(string(StageSnapshot), time.Since(start), err)
		return nil, fmt.Errorf("load attributes for tenant %q: %w", tenant, err)
	}

	node, err := query.Parse(raw, query.WithTypes(snap), query.WithDefaultField(c.defaultField))
	if err != nil {
		return nil, c.fail(ctx, StageParse, tenant, raw, start, err)
	}

	crit, err := builder.Build(node, snap)
	if err != nil {
		return nil, c.fail(ctx, StageBuild, tenant, raw, start, err)
	}

	c.metrics.ObserveCompile("", time.Since(start), nil)
	logpkg.FromContextOr(ctx, c.logger).Debug("query compiled",
		zap.String("tenant", tenant),
		zap.String("query", raw),
		zap.Uint64("snapshot_version", snap.Version),
		zap.Stringer("criterion", crit),
	)
	return &Result{Criterion: crit, AST: node, Snapshot: snap}, nil
}

func (c *Compiler) fail(ctx context.Context, stage Stage, tenant, raw string, start time.Time, err error) error {
	c.metrics.ObserveCompile(string(stage), time.Since(start), err)
	logpkg.FromContextOr(ctx, c.logger).Debug("query rejected",
		zap.String("tenant", tenant),
		zap.String("query", raw),
		zap.String("stage", string(stage)),
		zap.Error(err),
	)
	return &CompileError{Stage: stage, Tenant: tenant, Query: raw, Err: err}
}
