// Package gqlrequest decodes GraphQL HTTP requests and derives what the
// server needs before execution: the selected operation, its root fields,
// its size, and a stable hash for grouping requests in metrics and logs.
package gqlrequest

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
)

// Analysis stores parsed and derived GraphQL request metadata.
type Analysis struct {
	Envelope               Envelope
	RequestedOperationName string

	Document  *ast.Document
	Fragments map[string]*ast.FragmentDefinition
	Operation *ast.OperationDefinition

	OperationName string
	OperationType string
	// RootFields are the distinct top-level fields of the operation in
	// document order, e.g. ["pages", "users"].
	RootFields []string

	FieldCount     int
	SelectionDepth int
	VariableCount  int

	CanonicalOperation string
	OperationHash      string

	DecodeError     error
	ParseError      error
	SelectionError  error
	CanonicalizeErr error
}

// AnalyzeRequest decodes and analyzes a GraphQL request payload.
func AnalyzeRequest(r *http.Request) *Analysis {
	envelope, err := DecodeEnvelope(r)
	analysis := AnalyzeEnvelope(envelope)
	analysis.DecodeError = err
	return analysis
}

// AnalyzeEnvelope parses the document and measures the selected operation.
// Failures are recorded on the analysis rather than returned; validation and
// execution report them to the client.
func AnalyzeEnvelope(env Envelope) *Analysis {
	analysis := &Analysis{
		Envelope:               env,
		RequestedOperationName: env.OperationName,
		Fragments:              map[string]*ast.FragmentDefinition{},
	}
	if strings.TrimSpace(env.Query) == "" {
		return analysis
	}

	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{
			Body: []byte(env.Query),
			Name: "graphql",
		}),
	})
	if err != nil {
		analysis.ParseError = err
		return analysis
	}
	analysis.Document = doc
	analysis.Fragments = fragmentsByName(doc)

	op, err := selectOperation(doc, env.OperationName)
	if err != nil {
		analysis.SelectionError = err
		return analysis
	}

	analysis.Operation = op
	analysis.OperationName = effectiveOperationName(op)
	analysis.OperationType = string(op.Operation)
	analysis.VariableCount = len(op.VariableDefinitions)

	w := &walker{fragments: analysis.Fragments, used: map[string]bool{}, inFlight: map[string]bool{}}
	analysis.FieldCount, analysis.SelectionDepth = w.walk(op.SelectionSet, 1)
	analysis.RootFields = rootFields(op.SelectionSet, analysis.Fragments)

	canonical, hash, err := canonicalOperationAndHash(op, analysis.Fragments, w.usedNames())
	if err != nil {
		analysis.CanonicalizeErr = err
		return analysis
	}
	analysis.CanonicalOperation = canonical
	analysis.OperationHash = hash
	return analysis
}

// LimitError reports a request rejected by CheckLimits.
type LimitError struct {
	Limit  string
	Actual int
	Max    int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("query %s %d exceeds the maximum of %d", e.Limit, e.Actual, e.Max)
}

// CheckLimits rejects operations deeper than maxDepth or selecting more than
// maxFields fields. A zero or negative maximum disables that check.
func (a *Analysis) CheckLimits(maxDepth, maxFields int) error {
	if a == nil || a.Operation == nil {
		return nil
	}
	if maxDepth > 0 && a.SelectionDepth > maxDepth {
		return &LimitError{Limit: "depth", Actual: a.SelectionDepth, Max: maxDepth}
	}
	if maxFields > 0 && a.FieldCount > maxFields {
		return &LimitError{Limit: "field count", Actual: a.FieldCount, Max: maxFields}
	}
	return nil
}

func fragmentsByName(doc *ast.Document) map[string]*ast.FragmentDefinition {
	fragments := map[string]*ast.FragmentDefinition{}
	for _, def := range doc.Definitions {
		fragment, ok := def.(*ast.FragmentDefinition)
		if !ok || fragment == nil || fragment.Name == nil || fragment.Name.Value == "" {
			continue
		}
		fragments[fragment.Name.Value] = fragment
	}
	return fragments
}

func selectOperation(doc *ast.Document, operationName string) (*ast.OperationDefinition, error) {
	var operations []*ast.OperationDefinition
	for _, def := range doc.Definitions {
		if op, ok := def.(*ast.OperationDefinition); ok && op != nil {
			operations = append(operations, op)
		}
	}

	if operationName != "" {
		for _, op := range operations {
			if op.Name != nil && op.Name.Value == operationName {
				return op, nil
			}
		}
		return nil, fmt.Errorf("unknown operation named %q", operationName)
	}

	switch len(operations) {
	case 0:
		return nil, fmt.Errorf("request does not include an operation")
	case 1:
		return operations[0], nil
	default:
		return nil, fmt.Errorf("operationName is required when request has multiple operations")
	}
}

// walker counts fields and depth through fragments. Each named fragment is
// expanded once; a spread that is already being expanded is ignored.
type walker struct {
	fragments map[string]*ast.FragmentDefinition
	used      map[string]bool
	inFlight  map[string]bool
}

func (w *walker) walk(set *ast.SelectionSet, depth int) (fields, maxDepth int) {
	if set == nil {
		return 0, depth - 1
	}
	maxDepth = depth
	merge := func(f, d int) {
		fields += f
		if d > maxDepth {
			maxDepth = d
		}
	}

	for _, selection := range set.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			fields++
			if sel.SelectionSet != nil {
				merge(w.walk(sel.SelectionSet, depth+1))
			}
		case *ast.InlineFragment:
			merge(w.walk(sel.SelectionSet, depth))
		case *ast.FragmentSpread:
			name := spreadName(sel)
			if name == "" || w.used[name] || w.inFlight[name] {
				continue
			}
			w.used[name] = true
			fragment, ok := w.fragments[name]
			if !ok || fragment == nil {
				continue
			}
			w.inFlight[name] = true
			merge(w.walk(fragment.SelectionSet, depth))
			delete(w.inFlight, name)
		}
	}
	return fields, maxDepth
}

func (w *walker) usedNames() []string {
	names := make([]string, 0, len(w.used))
	for name := range w.used {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func rootFields(set *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition) []string {
	var names []string
	seen := map[string]bool{}
	var collect func(*ast.SelectionSet, map[string]bool)
	collect = func(set *ast.SelectionSet, expanding map[string]bool) {
		if set == nil {
			return
		}
		for _, selection := range set.Selections {
			switch sel := selection.(type) {
			case *ast.Field:
				if sel.Name != nil && !seen[sel.Name.Value] {
					seen[sel.Name.Value] = true
					names = append(names, sel.Name.Value)
				}
			case *ast.InlineFragment:
				collect(sel.SelectionSet, expanding)
			case *ast.FragmentSpread:
				name := spreadName(sel)
				if fragment, ok := fragments[name]; ok && fragment != nil && !expanding[name] {
					expanding[name] = true
					collect(fragment.SelectionSet, expanding)
					delete(expanding, name)
				}
			}
		}
	}
	collect(set, map[string]bool{})
	return names
}

func spreadName(sel *ast.FragmentSpread) string {
	if sel.Name == nil {
		return ""
	}
	return sel.Name.Value
}
