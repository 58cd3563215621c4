package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/searchql/internal/builder"
	"github.com/roach88/searchql/internal/compiler"
	"github.com/roach88/searchql/internal/criterion"
	"github.com/roach88/searchql/internal/query"
	"github.com/roach88/searchql/internal/querysql"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	SQL    bool // print the SQLite translation
	Search bool // run the query against the store
}

// CompileOutput is the JSON payload of a successful compilation.
type CompileOutput struct {
	Tenant      string          `json:"tenant"`
	Query       string          `json:"query"`
	Snapshot    uint64          `json:"snapshot"`
	Criterion   json.RawMessage `json:"criterion"`
	Fingerprint string          `json:"fingerprint"`
	SQL         string          `json:"sql,omitempty"`
	Params      []any           `json:"params,omitempty"`
	Matches     []string        `json:"matches,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <tenant> <query>",
		Short: "Compile a query string for a tenant",
		Long: `Compile an OpenSearch/Lucene query string into a criterion tree.

Field names are resolved against the tenant's attribute catalog and
values are coerced to the declared attribute types.

Exit codes:
  0 - Query compiled
  1 - Query rejected (E201-E206)
  2 - Command error (configuration, catalog or store unavailable)

Examples:
  searchql compile acme 'status:active AND size:[1 TO 10]' --catalog ./catalog
  searchql compile acme 'owner:bob*' --catalog ./search.db --source sqlite --search
  searchql compile acme 'active:true' --catalog ./catalog --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.SQL, "sql", false, "print the SQLite translation of the criterion")
	cmd.Flags().BoolVar(&opts.Search, "search", false, "search the store for matching documents (sqlite source only)")

	return cmd
}

func runCompile(opts *CompileOptions, tenant, raw string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	sess, err := openSession(opts.RootOptions, formatter)
	if err != nil {
		return err
	}
	defer sess.Close()

	if opts.Search && sess.store == nil {
		return formatter.Fail(ExitCommandError, ErrCodeSearchSource, "--search requires catalog.source sqlite", nil)
	}

	ctx := sess.commandContext(cmd)

	res, err := sess.compiler.CompileResult(ctx, tenant, raw)
	if err != nil {
		return outputCompileFailure(formatter, err)
	}
	formatter.VerboseLog("Resolved against snapshot v%d of tenant %s (%d attributes)",
		res.Snapshot.Version, tenant, len(res.Snapshot.Definitions))

	doc, err := criterion.MarshalCanonical(res.Criterion)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	fingerprint, err := criterion.Fingerprint(res.Criterion)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	formatter.VerboseLog("Criterion fingerprint %s", fingerprint)

	out := CompileOutput{
		Tenant:      tenant,
		Query:       raw,
		Snapshot:    res.Snapshot.Version,
		Criterion:   doc,
		Fingerprint: fingerprint,
	}

	if opts.SQL {
		out.SQL, out.Params, err = querysql.NewSQLCompiler().Compile(tenant, res.Criterion)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
	}
	if opts.Search {
		out.Matches, err = sess.store.Search(ctx, tenant, res.Criterion)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(out)
	}

	w := formatter.Writer
	fmt.Fprintln(w, res.Criterion)
	if opts.SQL {
		fmt.Fprintf(w, "\nSQL: %s\nParams: %v\n", out.SQL, out.Params)
	}
	if opts.Search {
		fmt.Fprintf(w, "\n%d match(es)\n", len(out.Matches))
		for _, id := range out.Matches {
			fmt.Fprintf(w, "  %s\n", id)
		}
	}
	return nil
}

// outputCompileFailure reports a rejected query. Snapshot failures are
// command errors; parse and build failures reject the query.
func outputCompileFailure(formatter *OutputFormatter, err error) error {
	if !compiler.IsCompileError(err) {
		return formatter.Fail(ExitCommandError, ErrCodeCompile, err.Error(), nil)
	}

	code := MapCompileErrorCode(err)
	details := compileErrorDetails(err)

	var pe *query.ParseError
	if formatter.Format != "json" && errors.As(err, &pe) {
		_ = formatter.Error(code, err.Error(), nil)
		fmt.Fprintln(formatter.Writer, pe.Snippet())
		return WrapExitError(ExitFailure, fmt.Sprintf("%s: %s", code, err.Error()), nil)
	}
	return formatter.Fail(ExitFailure, code, err.Error(), details)
}

func compileErrorDetails(err error) map[string]any {
	var pe *query.ParseError
	if errors.As(err, &pe) {
		return map[string]any{
			"stage":    string(compiler.StageParse),
			"code":     compiler.CodeParseError,
			"position": pe.Pos,
			"message":  pe.Message,
		}
	}

	var be *builder.BuildError
	if errors.As(err, &be) {
		details := map[string]any{
			"stage": string(compiler.StageBuild),
			"code":  string(be.Code),
		}
		if be.Field != "" {
			details["field"] = be.Field
		}
		if be.Code == builder.ErrCodeTypeMismatch {
			details["declared_type"] = string(be.DeclaredType)
			details["value"] = be.RawValue
		}
		return details
	}
	return nil
}
