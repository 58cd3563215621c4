package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/searchql/internal/attr"
	"github.com/roach88/searchql/internal/catalog"
	"github.com/roach88/searchql/internal/config"
	"github.com/roach88/searchql/internal/notify"
	"github.com/roach88/searchql/internal/store"
)

// Import outcomes per tenant.
const (
	ChangeUnchanged = "unchanged"
)

// CatalogImportOptions holds flags for the catalog import command.
type CatalogImportOptions struct {
	*RootOptions
	DB    string // target SQLite database
	Prune bool   // clear tenants missing from the catalog
}

// TenantImport is the outcome of importing one tenant.
type TenantImport struct {
	Tenant     string `json:"tenant"`
	Attributes int    `json:"attributes"`
	Change     string `json:"change"` // created, updated, deleted or unchanged
	EventID    string `json:"event_id,omitempty"`
}

// ImportOutput is the JSON payload of catalog import.
type ImportOutput struct {
	Database string         `json:"database"`
	Tenants  []TenantImport `json:"tenants"`
}

// TenantSummary describes one tenant of a checked catalog.
type TenantSummary struct {
	Tenant     string   `json:"tenant"`
	Attributes int      `json:"attributes"`
	Ambiguous  []string `json:"ambiguous"`
}

// CheckOutput is the JSON payload of catalog check.
type CheckOutput struct {
	Files   []string        `json:"files"`
	Tenants []TenantSummary `json:"tenants"`
}

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and import attribute catalogs",
	}
	cmd.AddCommand(newCatalogCheckCommand(rootOpts))
	cmd.AddCommand(newCatalogImportCommand(rootOpts))
	return cmd
}

func newCatalogCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <catalog>",
		Short: "Validate a CUE catalog",
		Long: `Load a CUE catalog file or directory and validate every tenant.

Reports the attribute count of each tenant and the bare names that are
ambiguous because several namespaces declare them.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogCheck(rootOpts, args[0], cmd)
		},
	}
}

func runCatalogCheck(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cat, err := catalog.Load(path)
	if err != nil {
		return failCatalog(formatter, err)
	}
	formatter.VerboseLog("Loaded %d CUE file(s) from %s", len(cat.Files()), path)

	out := CheckOutput{Files: cat.Files(), Tenants: []TenantSummary{}}
	for _, tenant := range cat.Tenants() {
		defs := cat.Definitions(tenant)
		ambiguous := attr.AmbiguousNames(defs)
		if ambiguous == nil {
			ambiguous = []string{}
		}
		out.Tenants = append(out.Tenants, TenantSummary{
			Tenant:     tenant,
			Attributes: len(defs),
			Ambiguous:  ambiguous,
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(out)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Catalog valid: %d tenant(s)\n\n", len(out.Tenants))
	for _, t := range out.Tenants {
		fmt.Fprintf(w, "  %s: %d attribute(s)", t.Tenant, t.Attributes)
		if len(t.Ambiguous) > 0 {
			fmt.Fprintf(w, ", ambiguous: %v", t.Ambiguous)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func newCatalogImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <catalog>",
		Short: "Import a CUE catalog into a SQLite store",
		Long: `Load a CUE catalog and replace the attribute definitions of every
tenant it declares in a SQLite store.

When notify.addrs is configured, an attribute change event is published
for every tenant whose definitions changed, so running compilers rebuild
their snapshots.

Examples:
  searchql catalog import ./catalog --db ./search.db
  searchql catalog import ./catalog --db ./search.db --prune --config searchql.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite database file (required)")
	cmd.Flags().BoolVar(&opts.Prune, "prune", false, "clear tenants that are no longer in the catalog")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runCatalogImport(opts *CatalogImportOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	log, err := newLogger(opts.RootOptions, cfg)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	defer func() { _ = log.Sync() }()

	cat, err := catalog.Load(path)
	if err != nil {
		return failCatalog(formatter, err)
	}

	st, err := store.Open(opts.DB)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	imports, err := importCatalog(ctx, st, cat, opts.Prune)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	if cfg.NotifyEnabled() {
		if err := announceImports(ctx, cfg, log, imports); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeNotify, err.Error(), nil)
		}
	}

	out := ImportOutput{Database: opts.DB, Tenants: imports}
	if formatter.Format == "json" {
		return formatter.Success(out)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Imported %d tenant(s) into %s\n\n", len(imports), opts.DB)
	for _, t := range imports {
		fmt.Fprintf(w, "  %s: %d attribute(s), %s", t.Tenant, t.Attributes, t.Change)
		if t.EventID != "" {
			fmt.Fprintf(w, " (event %s)", t.EventID)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// importCatalog writes every catalog tenant into st and classifies the
// change against what st held before.
func importCatalog(ctx context.Context, st *store.Store, cat *catalog.Catalog, prune bool) ([]TenantImport, error) {
	existing, err := st.Tenants(ctx)
	if err != nil {
		return nil, err
	}

	imports := []TenantImport{}
	for _, tenant := range cat.Tenants() {
		defs := cat.Definitions(tenant)
		prev, err := st.ListAttributes(ctx, tenant)
		if err != nil {
			return nil, err
		}

		change := string(attr.EventUpdated)
		switch {
		case !slices.Contains(existing, tenant):
			change = string(attr.EventCreated)
		case slices.Equal(prev, defs):
			change = ChangeUnchanged
		}

		if change != ChangeUnchanged {
			if err := st.PutAttributes(ctx, tenant, defs); err != nil {
				return nil, fmt.Errorf("import tenant %q: %w", tenant, err)
			}
		}
		imports = append(imports, TenantImport{Tenant: tenant, Attributes: len(defs), Change: change})
	}

	if prune {
		for _, tenant := range existing {
			if slices.Contains(cat.Tenants(), tenant) {
				continue
			}
			if err := st.PutAttributes(ctx, tenant, nil); err != nil {
				return nil, fmt.Errorf("prune tenant %q: %w", tenant, err)
			}
			imports = append(imports, TenantImport{Tenant: tenant, Change: string(attr.EventDeleted)})
		}
	}
	return imports, nil
}

// announceImports publishes a change event for every changed tenant and
// records the event ids on imports.
func announceImports(ctx context.Context, cfg config.Config, log *zap.Logger, imports []TenantImport) error {
	client, err := notify.NewClient(notifyConfig(cfg))
	if err != nil {
		return err
	}
	defer client.Close()

	pub := notify.NewPublisher(client, cfg.Notify.Channel, log)
	for i := range imports {
		if imports[i].Change == ChangeUnchanged {
			continue
		}
		ev, err := pub.Publish(ctx, imports[i].Tenant, attr.EventKind(imports[i].Change))
		if err != nil {
			return err
		}
		imports[i].EventID = ev.ID
	}
	return nil
}

func notifyConfig(cfg config.Config) notify.Config {
	return notify.Config{
		Addrs:    cfg.Notify.Addrs,
		Channel:  cfg.Notify.Channel,
		Username: cfg.Notify.Username,
		Password: cfg.Notify.Password,
	}
}
