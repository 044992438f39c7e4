// Package elide skips key lookups when every field a client asked for can be
// derived from the key itself.
package elide

import (
	"sort"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// FieldSet is a set of GraphQL field names.
type FieldSet map[string]struct{}

// NewFieldSet builds a set from names.
func NewFieldSet(names ...string) FieldSet {
	s := make(FieldSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether name is in the set.
func (s FieldSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Covers reports whether every name in requested is in s.
func (s FieldSet) Covers(requested []string) bool {
	for _, name := range requested {
		if !s.Has(name) {
			return false
		}
	}
	return true
}

// RequestedFields lists the distinct field names selected directly beneath
// the field being resolved. Inline fragments and fragment spreads are
// flattened and __typename is ignored. The result is sorted.
func RequestedFields(info graphql.ResolveInfo) []string {
	seen := make(map[string]struct{})
	visited := make(map[string]struct{})

	var visit func(selections []ast.Selection)
	visit = func(selections []ast.Selection) {
		for _, selection := range selections {
			switch sel := selection.(type) {
			case *ast.Field:
				if sel.Name == nil || sel.Name.Value == "__typename" {
					continue
				}
				seen[sel.Name.Value] = struct{}{}
			case *ast.InlineFragment:
				if sel.SelectionSet != nil {
					visit(sel.SelectionSet.Selections)
				}
			case *ast.FragmentSpread:
				if sel.Name == nil {
					continue
				}
				if _, done := visited[sel.Name.Value]; done {
					continue
				}
				visited[sel.Name.Value] = struct{}{}
				fragment, ok := info.Fragments[sel.Name.Value].(*ast.FragmentDefinition)
				if !ok || fragment.SelectionSet == nil {
					continue
				}
				visit(fragment.SelectionSet.Selections)
			}
		}
	}

	for _, field := range info.FieldASTs {
		if field == nil || field.SelectionSet == nil {
			continue
		}
		visit(field.SelectionSet.Selections)
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
