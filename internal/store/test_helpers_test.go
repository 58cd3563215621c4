package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"slices"
	"testing"

	"github.com/roach88/searchql/internal/attr"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testDefinitions is a small catalog covering every value column.
func testDefinitions() []attr.Definition {
	return []attr.Definition{
		{Name: "status", Type: attr.TypeString, Dynamic: true},
		{Name: "size", Type: attr.TypeInteger, Dynamic: true},
		{Name: "count", Type: attr.TypeLong, Dynamic: true},
		{Name: "ratio", Type: attr.TypeFloat, Dynamic: true},
		{Name: "score", Type: attr.TypeDouble, Dynamic: true},
		{Name: "issued", Type: attr.TypeDate, Dynamic: true},
		{Name: "active", Type: attr.TypeBoolean, Dynamic: true},
		{Name: "payload", Type: attr.TypeJSON, Dynamic: true},
		{Name: "title", Type: attr.TypeString, Dynamic: false},
		{Name: "START_DATE", Type: attr.TypeDate, Namespace: "fragment1", Dynamic: true},
	}
}

// seedTenant stores testDefinitions for tenant.
func seedTenant(t *testing.T, s *Store, tenant string) {
	t.Helper()
	if err := s.PutAttributes(context.Background(), tenant, testDefinitions()); err != nil {
		t.Fatalf("PutAttributes() failed: %v", err)
	}
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(slice []string, item string) bool {
	return slices.Contains(slice, item)
}
