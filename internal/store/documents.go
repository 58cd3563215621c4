package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/searchql/internal/attr"
	"github.com/roach88/searchql/internal/criterion"
	"github.com/roach88/searchql/internal/querysql"
)

// Document is a searchable record. Fields are keyed by any name the
// tenant's attribute catalog resolves (bare, qualified or full path).
type Document struct {
	ID     string         `json:"id" yaml:"id"`
	Fields map[string]any `json:"fields" yaml:"fields"`
}

// column is one typed value row of document_values.
type column struct {
	text    *string
	integer *int64
	number  *float64
	boolean *bool
}

// PutDocument writes a document, replacing any previous version with the
// same id. Field values are coerced to the declared attribute types; a
// field the catalog does not know is an error.
func (s *Store) PutDocument(ctx context.Context, tenant string, doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("put document: id is required")
	}

	defs, err := s.ListAttributes(ctx, tenant)
	if err != nil {
		return fmt.Errorf("put document %s: %w", doc.ID, err)
	}
	props := attr.ComputePropertyMap(defs)

	values := make(map[string]column, len(doc.Fields))
	for key, raw := range doc.Fields {
		def, ok := props.Resolve(key)
		if !ok {
			return fmt.Errorf("put document %s: unknown attribute %q", doc.ID, key)
		}
		col, err := encodeValue(def.Type, raw)
		if err != nil {
			return fmt.Errorf("put document %s: field %s: %w", doc.ID, key, err)
		}
		values[def.FullPath()] = col
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put document: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	// Cascade removes the previous values.
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE tenant = ? AND id = ?`, tenant, doc.ID); err != nil {
		return fmt.Errorf("put document %s: %w", doc.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO documents (tenant, id) VALUES (?, ?)`, tenant, doc.ID); err != nil {
		return fmt.Errorf("put document %s: %w", doc.ID, err)
	}

	for path, col := range values {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO document_values (tenant, doc_id, path, text_value, int_value, num_value, bool_value)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			tenant,
			doc.ID,
			path,
			col.text,
			col.integer,
			col.number,
			col.boolean,
		)
		if err != nil {
			return fmt.Errorf("put document %s: value %s: %w", doc.ID, path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put document %s: commit: %w", doc.ID, err)
	}
	return nil
}

// DeleteDocument removes a document and its values. Deleting a missing
// document is not an error.
func (s *Store) DeleteDocument(ctx context.Context, tenant, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE tenant = ? AND id = ?`, tenant, id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

// Search returns the ids of the tenant's documents matching crit, sorted
// by id.
func (s *Store) Search(ctx context.Context, tenant string, crit criterion.Criterion) ([]string, error) {
	query, params, err := querysql.NewSQLCompiler().Compile(tenant, crit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("search: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return ids, nil
}

// encodeValue coerces a field value to the column of its declared type.
// Numbers and dates may also be given as text, as they are when read from
// YAML or JSON fixtures.
func encodeValue(typ attr.SemanticType, raw any) (column, error) {
	switch {
	case typ == attr.TypeBoolean:
		switch v := raw.(type) {
		case bool:
			return column{boolean: &v}, nil
		case string:
			b, err := strconv.ParseBool(strings.ToLower(v))
			if err != nil {
				return column{}, fmt.Errorf("%q is not a boolean", v)
			}
			return column{boolean: &b}, nil
		}

	case typ.IsNumeric():
		num, err := toNumber(typ, raw)
		if err != nil {
			return column{}, err
		}
		if num.IsIntegral() {
			i := num.Int64()
			return column{integer: &i}, nil
		}
		f := num.Float64()
		return column{number: &f}, nil

	case typ == attr.TypeDate:
		var d criterion.DateValue
		switch v := raw.(type) {
		case time.Time:
			d = criterion.NewDate(v)
		case string:
			var err error
			if d, err = criterion.ParseDate(v); err != nil {
				return column{}, err
			}
		default:
			return column{}, fmt.Errorf("%v (%T) is not a date", raw, raw)
		}
		text := d.String()
		return column{text: &text}, nil

	case typ == attr.TypeJSON:
		if v, ok := raw.(string); ok {
			return column{text: &v}, nil
		}
		b, err := json.Marshal(raw)
		if err != nil {
			return column{}, fmt.Errorf("encode JSON value: %w", err)
		}
		text := string(b)
		return column{text: &text}, nil

	default:
		if v, ok := raw.(string); ok {
			return column{text: &v}, nil
		}
	}
	return column{}, fmt.Errorf("%v (%T) is not a valid %s value", raw, raw, typ)
}

// toNumber converts decoded numeric input to a Number of the declared
// width, going through its text form so width checks live in one place.
func toNumber(typ attr.SemanticType, raw any) (criterion.Number, error) {
	var text string
	switch v := raw.(type) {
	case string:
		text = v
	case int:
		text = strconv.Itoa(v)
	case int32:
		text = strconv.FormatInt(int64(v), 10)
	case int64:
		text = strconv.FormatInt(v, 10)
	case uint64:
		text = strconv.FormatUint(v, 10)
	case float32:
		text = strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		if typ.IsIntegral() && v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			text = strconv.FormatInt(int64(v), 10)
		} else {
			text = strconv.FormatFloat(v, 'g', -1, 64)
		}
	case json.Number:
		text = v.String()
	default:
		return criterion.Number{}, fmt.Errorf("%v (%T) is not a number", raw, raw)
	}
	return criterion.ParseNumber(text, typ)
}
