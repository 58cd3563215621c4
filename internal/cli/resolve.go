package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/searchql/internal/attr"
)

// ResolveEntry describes how one key resolves for a tenant.
type ResolveEntry struct {
	Key        string   `json:"key"`
	Found      bool     `json:"found"`
	Name       string   `json:"name,omitempty"`
	Namespace  string   `json:"namespace,omitempty"`
	Type       string   `json:"type,omitempty"`
	Dynamic    bool     `json:"dynamic,omitempty"`
	Path       string   `json:"path,omitempty"`
	Namespaces []string `json:"namespaces,omitempty"` // set when a bare name is ambiguous
}

// ResolveOutput is the JSON payload of the resolve command.
type ResolveOutput struct {
	Tenant    string         `json:"tenant"`
	Snapshot  uint64         `json:"snapshot"`
	Entries   []ResolveEntry `json:"entries"`
	Ambiguous []string       `json:"ambiguous"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <tenant> [key...]",
		Short: "Show how field names resolve for a tenant",
		Long: `Resolve field names against a tenant's attribute catalog.

Each key is looked up the way the compiler looks up query fields:
qualified keys (namespace.name) always resolve, bare names only when a
single namespace declares them. Without keys, every definition of the
tenant is listed.

Examples:
  searchql resolve acme status fragment1.START_DATE --catalog ./catalog
  searchql resolve acme --catalog ./catalog --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(rootOpts, args[0], args[1:], cmd)
		},
	}
	return cmd
}

func runResolve(opts *RootOptions, tenant string, keys []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	sess, err := openSession(opts, formatter)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx := sess.commandContext(cmd)
	snap, err := sess.registry.Snapshot(ctx, tenant)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeCompile, err.Error(), nil)
	}

	out := ResolveOutput{
		Tenant:    tenant,
		Snapshot:  snap.Version,
		Entries:   []ResolveEntry{},
		Ambiguous: append([]string{}, snap.Ambiguous...),
	}
	if len(keys) == 0 {
		for _, def := range snap.Definitions {
			out.Entries = append(out.Entries, entryFor(def.QualifiedKey(), def))
		}
	} else {
		for _, key := range keys {
			out.Entries = append(out.Entries, resolveKey(snap, key))
		}
	}

	var missing []string
	for _, e := range out.Entries {
		if !e.Found {
			missing = append(missing, e.Key)
		}
	}

	if formatter.Format == "json" {
		if len(missing) > 0 {
			_ = formatter.Error(ErrCodeNotResolved, fmt.Sprintf("%d key(s) did not resolve", len(missing)), out)
			return NewExitError(ExitFailure, fmt.Sprintf("%s: unresolved keys %v", ErrCodeNotResolved, missing))
		}
		return formatter.Success(out)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Tenant %s (snapshot v%d)\n\n", tenant, snap.Version)
	for _, e := range out.Entries {
		switch {
		case e.Found:
			fmt.Fprintf(w, "  %-28s %-8s %s\n", e.Key, e.Type, e.Path)
		case len(e.Namespaces) > 0:
			fmt.Fprintf(w, "  %-28s ambiguous in %v\n", e.Key, e.Namespaces)
		default:
			fmt.Fprintf(w, "  %-28s not found\n", e.Key)
		}
	}
	if len(keys) == 0 && len(out.Ambiguous) > 0 {
		fmt.Fprintf(w, "\nAmbiguous bare names: %v\n", out.Ambiguous)
	}

	if len(missing) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: unresolved keys %v", ErrCodeNotResolved, missing))
	}
	return nil
}

func resolveKey(snap *attr.Snapshot, key string) ResolveEntry {
	if def, ok := snap.Resolve(key); ok {
		return entryFor(key, def)
	}
	entry := ResolveEntry{Key: key}
	if slices.Contains(snap.Ambiguous, key) {
		for _, def := range snap.Definitions {
			if def.BareKey() == key {
				entry.Namespaces = append(entry.Namespaces, def.Namespace)
			}
		}
	}
	return entry
}

func entryFor(key string, def attr.Definition) ResolveEntry {
	return ResolveEntry{
		Key:       key,
		Found:     true,
		Name:      def.Name,
		Namespace: def.Namespace,
		Type:      string(def.Type),
		Dynamic:   def.Dynamic,
		Path:      def.FullPath(),
	}
}
