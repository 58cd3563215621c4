// Package store provides SQLite-backed storage for attribute catalogs and
// the documents searched with compiled criteria.
//
// The store holds:
//   - Attributes: per-tenant attribute definitions, in declaration order
//   - Documents: per-tenant document ids
//   - Document values: one typed value per document and attribute path
//
// # Critical Patterns
//
// Deterministic Query Results
//   - Attribute listings are ordered by seq (declaration order)
//   - Search results are ordered by id ASC COLLATE BINARY
//
// Typed Values
//   - Values are coerced to the attribute's declared type on write
//   - DATE values are stored as fixed-width UTC text so that text order is
//     chronological order
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Search SQL is produced by the querysql package.
package store
