// Package query parses Lucene-style query strings into a syntax tree.
//
// The parser recognizes field terms, quoted phrases, wildcards, ranges,
// boolean operators (AND, OR, NOT, &&, ||), the +, - and ! modifiers and
// parenthesized groups. Fuzzy terms, proximity slop, boosts and regular
// expressions are parsed so they can be reported precisely, but have no
// criterion equivalent.
//
// Parsing is purely syntactic. Field names stay as written; resolving them
// against the attribute registry is the builder's job. The single exception
// is range typing: given a TypeLookup, ranges over numeric fields carry
// bounds parsed at the declared width.
package query
