package catalog

import (
	"context"
	"slices"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/searchql/internal/attr"
)

// Provider serves a catalog file and reloads it on demand. Safe for
// concurrent use.
type Provider struct {
	path   string
	logger *zap.Logger

	mu      sync.RWMutex
	current *Catalog
}

// NewProvider loads path and returns a provider serving it.
func NewProvider(path string, logger *zap.Logger) (*Provider, error) {
	cat, err := Load(path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{path: path, logger: logger, current: cat}, nil
}

// Catalog returns the catalog currently served.
func (p *Provider) Catalog() *Catalog {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// ListAttributes implements attr.Provider.
func (p *Provider) ListAttributes(ctx context.Context, tenant string) ([]attr.Definition, error) {
	return p.Catalog().ListAttributes(ctx, tenant)
}

// Reload re-reads the catalog and returns the tenants whose definitions
// were added, removed or changed, sorted. On error the previous catalog
// stays in service.
func (p *Provider) Reload() ([]string, error) {
	next, err := Load(p.path)
	if err != nil {
		p.logger.Warn("catalog reload failed", zap.String("path", p.path), zap.Error(err))
		return nil, err
	}

	p.mu.Lock()
	prev := p.current
	p.current = next
	p.mu.Unlock()

	changed := Diff(prev, next)
	p.logger.Info("catalog reloaded",
		zap.String("path", p.path),
		zap.Int("tenants", len(next.tenants)),
		zap.Strings("changed", changed),
	)
	return changed, nil
}

// Diff returns the tenants whose definitions differ between two catalogs,
// sorted.
func Diff(prev, next *Catalog) []string {
	changed := []string{}
	for tenant, defs := range next.tenants {
		old, ok := prev.tenants[tenant]
		if !ok || !slices.Equal(old, defs) {
			changed = append(changed, tenant)
		}
	}
	for tenant := range prev.tenants {
		if _, ok := next.tenants[tenant]; !ok {
			changed = append(changed, tenant)
		}
	}
	sort.Strings(changed)
	return changed
}
