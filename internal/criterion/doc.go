// Package criterion defines the typed, backend-neutral predicate tree that
// compiled queries produce.
//
// Criterion is a sealed interface. Leaves (Equals, BooleanMatch,
// NumberMatch, Pattern, Between) name their field by its fully-qualified
// document path and carry values typed by the attribute's declared
// SemanticType. Composites (And, Or, Not) nest leaves; All matches every
// document.
//
// Backends consume a tree through Visitor and Accept. MarshalCanonical
// renders a tree as canonical JSON for golden tests and logs: keys sorted,
// strings NFC-normalized, byte-identical for equal trees.
package criterion
