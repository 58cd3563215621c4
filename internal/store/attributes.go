package store

import (
	"context"
	"fmt"

	"github.com/roach88/searchql/internal/attr"
)

// PutAttributes replaces the attribute catalog of a tenant.
// Definitions keep their slice order; ListAttributes returns them in the
// same order. Every definition is validated before anything is written.
func (s *Store) PutAttributes(ctx context.Context, tenant string, defs []attr.Definition) error {
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("put attributes for %q: %w", tenant, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put attributes: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM attributes WHERE tenant = ?`, tenant); err != nil {
		return fmt.Errorf("put attributes: clear %q: %w", tenant, err)
	}

	for seq, def := range defs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO attributes (tenant, namespace, name, type, dynamic, seq)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			tenant,
			def.Namespace,
			def.Name,
			string(def.Type),
			def.Dynamic,
			seq,
		)
		if err != nil {
			return fmt.Errorf("put attributes: insert %s: %w", def.QualifiedKey(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put attributes: commit: %w", err)
	}
	return nil
}

// ListAttributes returns the definitions of a tenant in declaration order.
// Implements attr.Provider; an unknown tenant yields an empty slice.
func (s *Store) ListAttributes(ctx context.Context, tenant string) ([]attr.Definition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT namespace, name, type, dynamic
		FROM attributes
		WHERE tenant = ?
		ORDER BY seq ASC
	`, tenant)
	if err != nil {
		return nil, fmt.Errorf("list attributes: %w", err)
	}
	defer rows.Close()

	defs := []attr.Definition{}
	for rows.Next() {
		var def attr.Definition
		var typ string
		if err := rows.Scan(&def.Namespace, &def.Name, &typ, &def.Dynamic); err != nil {
			return nil, fmt.Errorf("scan attribute: %w", err)
		}
		def.Type, err = attr.ParseSemanticType(typ)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", def.QualifiedKey(), err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list attributes: %w", err)
	}
	return defs, nil
}

// Tenants returns every tenant with at least one attribute, sorted.
func (s *Store) Tenants(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT tenant FROM attributes ORDER BY tenant ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var tenant string
		if err := rows.Scan(&tenant); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

var _ attr.Provider = (*Store)(nil)

