// Package catalog loads tenant attribute catalogs from CUE files.
//
// A catalog is one .cue file or a directory of them; all files are unified
// into a single value and checked against an embedded schema:
//
//	tenant: acme: attributes: [
//		{name: "status", type: "STRING"},
//		{name: "START_DATE", type: "DATE", namespace: "fragment1"},
//		{name: "title", type: "STRING", dynamic: false},
//	]
//
// Attributes are dynamic unless stated otherwise. Catalog implements
// attr.Provider; Provider adds reloading for long-running processes.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/searchql/internal/attr"
)

//go:embed schema.cue
var schemaSource string

// Error codes for catalog loading.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE file unreadable or unparsable
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE unification or schema violation

	ErrCodeInvalidAttribute   = "E101" // Attribute rejected by attr.Definition.Validate
	ErrCodeDuplicateAttribute = "E102" // Same qualified key declared twice for a tenant
)

// LoadError represents an error that occurred during catalog loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Catalog is an immutable set of tenant attribute definitions.
type Catalog struct {
	tenants map[string][]attr.Definition
	files   []string
}

// Tenants returns the tenant names, sorted.
func (c *Catalog) Tenants() []string {
	names := make([]string, 0, len(c.tenants))
	for name := range c.tenants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Files returns the CUE files the catalog was loaded from.
func (c *Catalog) Files() []string {
	return append([]string(nil), c.files...)
}

// Definitions returns a tenant's definitions in declaration order.
func (c *Catalog) Definitions(tenant string) []attr.Definition {
	return append([]attr.Definition(nil), c.tenants[tenant]...)
}

// ListAttributes implements attr.Provider.
func (c *Catalog) ListAttributes(_ context.Context, tenant string) ([]attr.Definition, error) {
	return c.Definitions(tenant), nil
}

// Load reads a catalog from a .cue file or a directory of .cue files.
func Load(path string) (*Catalog, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("catalog not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing catalog: %v", err)}
	}

	files := []string{path}
	if info.IsDir() {
		files, err = FindCUEFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(files) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
	}

	ctx := cuecontext.New()
	value := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("catalog schema: %v", err)}
	}

	for _, file := range files {
		src, err := os.ReadFile(filepath.Clean(file))
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", file, err)}
		}
		v := ctx.CompileBytes(src, cue.Filename(file))
		if err := v.Err(); err != nil {
			return nil, formatCUEError(ErrCodeLoadFailed, err)
		}
		value = value.Unify(v)
	}

	cat, err := decode(value)
	if err != nil {
		return nil, err
	}
	cat.files = files
	return cat, nil
}

// LoadString reads a catalog from CUE source. filename is used in error
// positions only.
func LoadString(filename, src string) (*Catalog, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(ErrCodeLoadFailed, err)
	}
	return decode(schema.Unify(v))
}

// rawAttribute mirrors #Attribute.
type rawAttribute struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Namespace string `json:"namespace"`
	Dynamic   bool   `json:"dynamic"`
}

func decode(value cue.Value) (*Catalog, error) {
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(ErrCodeBuildFailed, err)
	}

	cat := &Catalog{tenants: make(map[string][]attr.Definition)}

	tenantsVal := value.LookupPath(cue.ParsePath("tenant"))
	if !tenantsVal.Exists() {
		return cat, nil
	}
	iter, err := tenantsVal.Fields()
	if err != nil {
		return nil, formatCUEError(ErrCodeBuildFailed, err)
	}

	for iter.Next() {
		tenant := iter.Label()
		list, err := iter.Value().LookupPath(cue.ParsePath("attributes")).List()
		if err != nil {
			return nil, formatCUEError(ErrCodeBuildFailed, err)
		}

		defs := []attr.Definition{}
		seen := make(map[string]token.Pos)
		for list.Next() {
			elem := list.Value()

			var raw rawAttribute
			if err := elem.Decode(&raw); err != nil {
				return nil, formatCUEError(ErrCodeBuildFailed, err)
			}
			typ, err := attr.ParseSemanticType(raw.Type)
			if err != nil {
				return nil, &LoadError{Code: ErrCodeInvalidAttribute, Message: err.Error(), Pos: elem.Pos()}
			}
			def := attr.Definition{Name: raw.Name, Type: typ, Namespace: raw.Namespace, Dynamic: raw.Dynamic}
			if err := def.Validate(); err != nil {
				return nil, &LoadError{Code: ErrCodeInvalidAttribute, Message: err.Error(), Pos: elem.Pos()}
			}

			key := def.QualifiedKey()
			if first, dup := seen[key]; dup {
				return nil, &LoadError{
					Code:    ErrCodeDuplicateAttribute,
					Message: fmt.Sprintf("tenant %s declares attribute %s twice (first at %s)", tenant, key, first),
					Pos:     elem.Pos(),
				}
			}
			seen[key] = elem.Pos()
			defs = append(defs, def)
		}
		cat.tenants[tenant] = defs
	}
	return cat, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(code string, err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}

	// Return first error with position info
	firstErr := errs[0]
	loadErr := &LoadError{Code: code, Message: firstErr.Error()}
	if positions := errors.Positions(firstErr); len(positions) > 0 {
		loadErr.Pos = positions[0]
	}
	return loadErr
}
