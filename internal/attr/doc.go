// Package attr holds the attribute registry: the per-tenant catalog of
// attribute definitions that query field names are resolved against.
//
// KEY DERIVATION:
//
// Every definition is reachable through up to three keys:
//
//	bare            START_DATE
//	qualified       fragment1.START_DATE
//	fully-qualified feature.properties.fragment1.START_DATE
//
// The fully-qualified key is always present, and the qualified key whenever
// the definition has a namespace. The bare key is present only when exactly
// one definition in the tenant carries that name; an ambiguous bare name
// resolves to nothing rather than to an arbitrary winner.
//
// The fully-qualified key is the document path seen by the search engine.
// Static attributes live under "feature.", dynamic ones under
// "feature.properties.". Every criterion emitted by the builder names its
// field by this path.
//
// SNAPSHOTS:
//
// Registry keeps one immutable Snapshot per tenant behind an atomic pointer.
// A rebuild computes a fresh PropertyMap and swaps it in whole; readers
// never observe a partially built map. Invalidation drops the pointer and
// the next reader rebuilds it (or, with eager refresh, the invalidation
// itself rebuilds).
package attr
