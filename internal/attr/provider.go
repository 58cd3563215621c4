package attr

import (
	"context"
	"sync"
)

// Provider supplies the attribute definitions of a tenant.
//
// Implementations may perform I/O. A tenant without attributes is not an
// error: ListAttributes returns an empty slice.
type Provider interface {
	ListAttributes(ctx context.Context, tenant string) ([]Definition, error)
}

// StaticProvider serves definitions from memory. Safe for concurrent use.
type StaticProvider struct {
	mu      sync.RWMutex
	tenants map[string][]Definition
}

// NewStaticProvider creates a provider over a tenant -> definitions map.
// The map is copied.
func NewStaticProvider(catalog map[string][]Definition) *StaticProvider {
	p := &StaticProvider{tenants: make(map[string][]Definition, len(catalog))}
	for tenant, defs := range catalog {
		p.tenants[tenant] = append([]Definition(nil), defs...)
	}
	return p
}

// Set replaces the definitions of a tenant.
func (p *StaticProvider) Set(tenant string, defs []Definition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tenants[tenant] = append([]Definition(nil), defs...)
}

// ListAttributes implements Provider.
func (p *StaticProvider) ListAttributes(_ context.Context, tenant string) ([]Definition, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Definition(nil), p.tenants[tenant]...), nil
}

// EventKind classifies attribute model changes.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

// ChangeEvent announces that the attribute model of a tenant changed.
// An empty Tenant means every tenant.
type ChangeEvent struct {
	ID     string    `json:"id"`
	Tenant string    `json:"tenant"`
	Kind   EventKind `json:"kind"`
}
