package attr

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	logpkg "github.com/roach88/searchql/internal/logger"
)

// Snapshot is an immutable view of one tenant's attribute catalog.
type Snapshot struct {
	Tenant      string
	Version     uint64
	Definitions []Definition
	Properties  PropertyMap
	Ambiguous   []string
	BuiltAt     time.Time
}

// Resolve looks up a key in the snapshot.
func (s *Snapshot) Resolve(key string) (Definition, bool) {
	return s.Properties.Resolve(key)
}

// TypeOf returns the declared type of a key.
func (s *Snapshot) TypeOf(key string) (SemanticType, bool) {
	d, ok := s.Properties.Resolve(key)
	return d.Type, ok
}

// Observer receives rebuild outcomes. err is nil on success.
type Observer interface {
	ObserveRebuild(tenant string, keys int, err error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithObserver reports every rebuild to o.
func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observer = o }
}

// WithEagerRefresh makes HandleEvent rebuild immediately instead of
// deferring the rebuild to the next reader.
func WithEagerRefresh() Option {
	return func(r *Registry) { r.eager = true }
}

// WithClock overrides the snapshot timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// Registry caches one Snapshot per tenant.
//
// Reads are lock-free once a snapshot is published. A snapshot built from a
// provider read that started before an invalidation is returned to the
// caller that asked for it but never published.
type Registry struct {
	provider Provider
	logger   *zap.Logger
	observer Observer
	eager    bool
	now      func() time.Time

	mu      sync.Mutex
	slots   map[string]*slot
	loads   singleflight.Group
	version atomic.Uint64
}

type slot struct {
	current atomic.Pointer[Snapshot]

	mu         sync.Mutex // guards generation and publication
	generation uint64
}

// NewRegistry creates a registry backed by provider.
func NewRegistry(provider Provider, opts ...Option) *Registry {
	r := &Registry{
		provider: provider,
		logger:   zap.NewNop(),
		now:      time.Now,
		slots:    make(map[string]*slot),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Snapshot returns the current snapshot of tenant, building it on first use
// or after an invalidation.
func (r *Registry) Snapshot(ctx context.Context, tenant string) (*Snapshot, error) {
	s := r.slot(tenant)
	if snap := s.current.Load(); snap != nil {
		return snap, nil
	}
	return r.load(ctx, tenant, s)
}

// Resolve looks up key in the tenant's current snapshot.
func (r *Registry) Resolve(ctx context.Context, tenant, key string) (Definition, bool, error) {
	snap, err := r.Snapshot(ctx, tenant)
	if err != nil {
		return Definition{}, false, err
	}
	d, ok := snap.Resolve(key)
	return d, ok, nil
}

// Invalidate discards the tenant's snapshot. The next reader rebuilds it.
func (r *Registry) Invalidate(tenant string) {
	s := r.slot(tenant)
	s.mu.Lock()
	s.generation++
	s.current.Store(nil)
	s.mu.Unlock()

	r.logger.Debug("attribute registry invalidated", zap.String("tenant", tenant))
}

// Refresh rebuilds the tenant's snapshot now and publishes it.
func (r *Registry) Refresh(ctx context.Context, tenant string) (*Snapshot, error) {
	r.Invalidate(tenant)
	return r.load(ctx, tenant, r.slot(tenant))
}

// HandleEvent applies an attribute model change. An event without a tenant
// affects every tenant seen so far.
func (r *Registry) HandleEvent(ctx context.Context, ev ChangeEvent) error {
	tenants := []string{ev.Tenant}
	if ev.Tenant == "" {
		tenants = r.Tenants()
	}

	logpkg.FromContextOr(ctx, r.logger).Info("attribute model changed",
		zap.String("event_id", ev.ID),
		zap.String("tenant", ev.Tenant),
		zap.String("kind", string(ev.Kind)),
		zap.Bool("eager", r.eager),
	)

	for _, tenant := range tenants {
		if !r.eager {
			r.Invalidate(tenant)
			continue
		}
		if _, err := r.Refresh(ctx, tenant); err != nil {
			return fmt.Errorf("refresh tenant %q: %w", tenant, err)
		}
	}
	return nil
}

// Tenants returns the tenants the registry has seen, sorted.
func (r *Registry) Tenants() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	tenants := make([]string, 0, len(r.slots))
	for t := range r.slots {
		tenants = append(tenants, t)
	}
	sort.Strings(tenants)
	return tenants
}

func (r *Registry) slot(tenant string) *slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[tenant]
	if !ok {
		s = &slot{}
		r.slots[tenant] = s
	}
	return s
}

func (r *Registry) load(ctx context.Context, tenant string, s *slot) (*Snapshot, error) {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	key := tenant + "\x00" + strconv.FormatUint(gen, 10)
	v, err, _ := r.loads.Do(key, func() (any, error) {
		return r.rebuild(ctx, tenant, s, gen)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (r *Registry) rebuild(ctx context.Context, tenant string, s *slot, gen uint64) (*Snapshot, error) {
	log := logpkg.FromContextOr(ctx, r.logger)
	defs, err := r.provider.ListAttributes(ctx, tenant)
	if err != nil {
		log.Warn("attribute registry rebuild failed",
			zap.String("tenant", tenant), zap.Error(err))
		if r.observer != nil {
			r.observer.ObserveRebuild(tenant, 0, err)
		}
		return nil, fmt.Errorf("list attributes for tenant %q: %w", tenant, err)
	}

	snap := &Snapshot{
		Tenant:      tenant,
		Version:     r.version.Add(1),
		Definitions: append([]Definition(nil), defs...),
		Properties:  ComputePropertyMap(defs),
		Ambiguous:   AmbiguousNames(defs),
		BuiltAt:     r.now(),
	}

	s.mu.Lock()
	published := s.generation == gen
	if published {
		s.current.Store(snap)
	}
	s.mu.Unlock()

	log.Info("attribute registry rebuilt",
		zap.String("tenant", tenant),
		zap.Uint64("version", snap.Version),
		zap.Int("definitions", len(snap.Definitions)),
		zap.Int("keys", len(snap.Properties)),
		zap.Bool("published", published),
	)
	if len(snap.Ambiguous) > 0 {
		log.Debug("ambiguous bare names omitted",
			zap.String("tenant", tenant), zap.Strings("names", snap.Ambiguous))
	}
	if r.observer != nil {
		r.observer.ObserveRebuild(tenant, len(snap.Properties), nil)
	}
	return snap, nil
}
