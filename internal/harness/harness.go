package harness

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/roach88/searchql/internal/attr"
	"github.com/roach88/searchql/internal/catalog"
	"github.com/roach88/searchql/internal/compiler"
	"github.com/roach88/searchql/internal/criterion"
	"github.com/roach88/searchql/internal/store"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every case met its expectation.
	Pass bool

	// Cases holds one outcome per scenario case, in order.
	Cases []CaseResult

	// Errors contains expectation failures. Empty if Pass is true.
	Errors []string
}

// CaseResult is the observed outcome of one case.
type CaseResult struct {
	Query string

	// Criterion is set when compilation succeeded.
	Criterion criterion.Criterion

	// Stage and Code are set when compilation failed.
	Stage compiler.Stage
	Code  string
	Err   error

	// Matches is set when the case searched the documents.
	Matches []string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true, Cases: []CaseResult{}, Errors: []string{}}
}

// AddError adds an expectation failure and marks the result as failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// Harness executes scenarios.
type Harness struct {
	store    *store.Store
	compiler *compiler.Compiler
	logger   *zap.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Load the CUE catalog and store the tenant's attributes
// 2. Index the scenario documents
// 3. Compile every case through a registry backed by the store
// 4. Search when the case lists expected matches
//
// An error is returned only when the scenario cannot be executed; failed
// expectations are reported in the Result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	return RunWithLogger(ctx, scenario, zap.NewNop())
}

// RunWithLogger is Run with compiler and registry logging sent to logger.
func RunWithLogger(ctx context.Context, scenario *Scenario, logger *zap.Logger) (*Result, error) {
	cat, err := catalog.Load(scenario.Catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	if !slices.Contains(cat.Tenants(), scenario.Tenant) {
		return nil, fmt.Errorf("tenant %q is not in catalog %s", scenario.Tenant, scenario.Catalog)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := st.PutAttributes(ctx, scenario.Tenant, cat.Definitions(scenario.Tenant)); err != nil {
		return nil, fmt.Errorf("failed to store attributes: %w", err)
	}
	for _, doc := range scenario.Documents {
		if err := st.PutDocument(ctx, scenario.Tenant, doc); err != nil {
			return nil, fmt.Errorf("failed to index document: %w", err)
		}
	}

	reg := attr.NewRegistry(st, attr.WithLogger(logger))
	h := &Harness{
		store:    st,
		compiler: compiler.New(reg, compiler.WithLogger(logger), compiler.WithDefaultField(scenario.DefaultField)),
		logger:   logger,
	}

	result := NewResult()
	for i, c := range scenario.Cases {
		cr, err := h.runCase(ctx, scenario.Tenant, c)
		if err != nil {
			return nil, fmt.Errorf("cases[%d]: %w", i, err)
		}
		result.Cases = append(result.Cases, cr)
		for _, msg := range checkCase(cr, c.Expect) {
			result.AddError(fmt.Sprintf("cases[%d] %q: %s", i, c.Query, msg))
		}
	}

	return result, nil
}

func (h *Harness) runCase(ctx context.Context, tenant string, c Case) (CaseResult, error) {
	cr := CaseResult{Query: c.Query}

	crit, err := h.compiler.Compile(ctx, tenant, c.Query)
	if err != nil {
		var ce *compiler.CompileError
		if !errors.As(err, &ce) {
			return cr, err
		}
		cr.Stage, cr.Code, cr.Err = ce.Stage, compiler.Code(err), ce.Err
		return cr, nil
	}
	cr.Criterion = crit

	if c.Expect.Matches != nil {
		ids, err := h.store.Search(ctx, tenant, crit)
		if err != nil {
			return cr, err
		}
		cr.Matches = ids
	}
	return cr, nil
}

// checkCase compares an outcome with its expectation.
func checkCase(cr CaseResult, e Expect) []string {
	var failures []string

	if e.Error != "" {
		switch {
		case cr.Criterion != nil:
			failures = append(failures, fmt.Sprintf("expected error %s, compiled to %s", e.Error, cr.Criterion))
		case cr.Code != e.Error:
			failures = append(failures, fmt.Sprintf("expected error %s, got %s: %v", e.Error, cr.Code, cr.Err))
		}
		if e.Stage != "" && string(cr.Stage) != e.Stage {
			failures = append(failures, fmt.Sprintf("expected stage %s, got %q", e.Stage, cr.Stage))
		}
		return failures
	}

	if cr.Criterion == nil {
		return append(failures, fmt.Sprintf("expected %s, got %s error: %v", e.Criterion, cr.Code, cr.Err))
	}
	if got := cr.Criterion.String(); got != e.Criterion {
		failures = append(failures, fmt.Sprintf("criterion mismatch:\n  want: %s\n  got:  %s", e.Criterion, got))
	}
	if e.Matches != nil && !slices.Equal(cr.Matches, e.Matches) {
		failures = append(failures, fmt.Sprintf("matches: want %v, got %v", e.Matches, cr.Matches))
	}
	return failures
}
