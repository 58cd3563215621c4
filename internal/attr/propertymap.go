package attr

import "sort"

// PropertyMap maps every resolvable key of a tenant to its definition.
type PropertyMap map[string]Definition

// ComputePropertyMap derives the key space of a set of definitions.
//
// Fully-qualified and namespace-qualified keys are inserted for every
// distinct definition. A bare key is inserted only when exactly one distinct
// definition carries that name. For a definition without a namespace the
// qualified key is the bare key, so it follows the bare-key rule and the
// definition stays reachable through its fully-qualified path.
//
// When one spelling is claimed by two different definitions, precedence is
// fully-qualified over qualified over bare.
//
// Definitions sharing a qualified key are the same attribute; the first one
// wins. The input slice is not modified.
func ComputePropertyMap(defs []Definition) PropertyMap {
	distinct := dedupe(defs)
	props := make(PropertyMap, len(distinct)*3)

	byName := make(map[string][]Definition, len(distinct))
	for _, d := range distinct {
		if _, taken := props[d.FullPath()]; !taken {
			props[d.FullPath()] = d
		}
		byName[d.BareKey()] = append(byName[d.BareKey()], d)
	}
	for _, d := range distinct {
		if d.Namespace == "" {
			continue
		}
		if _, taken := props[d.QualifiedKey()]; !taken {
			props[d.QualifiedKey()] = d
		}
	}

	for name, group := range byName {
		if len(group) != 1 {
			continue
		}
		if _, taken := props[name]; taken {
			continue
		}
		props[name] = group[0]
	}

	return props
}

// AmbiguousNames returns the bare names carried by more than one distinct
// definition, sorted.
func AmbiguousNames(defs []Definition) []string {
	counts := make(map[string]int)
	for _, d := range dedupe(defs) {
		counts[d.BareKey()]++
	}

	var names []string
	for name, n := range counts {
		if n > 1 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Resolve looks up a key.
func (p PropertyMap) Resolve(key string) (Definition, bool) {
	d, ok := p[key]
	return d, ok
}

// Keys returns every key in lexical order.
func (p PropertyMap) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func dedupe(defs []Definition) []Definition {
	seen := make(map[string]bool, len(defs))
	out := make([]Definition, 0, len(defs))
	for _, d := range defs {
		key := d.QualifiedKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	return out
}
