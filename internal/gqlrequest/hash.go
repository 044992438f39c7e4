package gqlrequest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/printer"
)

const anonymousOperationName = "<anonymous>"

// canonicalOperationAndHash prints the operation followed by the fragments it
// uses, in name order, and hashes the result together with the operation
// name. Formatting and unused definitions do not change the hash.
func canonicalOperationAndHash(op *ast.OperationDefinition, fragments map[string]*ast.FragmentDefinition, used []string) (string, string, error) {
	definitions := make([]ast.Node, 0, 1+len(used))
	definitions = append(definitions, op)
	for _, name := range used {
		fragment, ok := fragments[name]
		if !ok || fragment == nil {
			return "", "", fmt.Errorf("fragment %q not found", name)
		}
		definitions = append(definitions, fragment)
	}

	printed, ok := printer.Print(ast.NewDocument(&ast.Document{Definitions: definitions})).(string)
	if !ok {
		return "", "", fmt.Errorf("canonical document did not print as a string")
	}

	sum := sha256.New()
	for _, part := range []string{printed, effectiveOperationName(op)} {
		_, _ = fmt.Fprintf(sum, "%d:%s|", len(part), part)
	}
	return printed, hex.EncodeToString(sum.Sum(nil)), nil
}

func effectiveOperationName(op *ast.OperationDefinition) string {
	if op == nil || op.Name == nil || op.Name.Value == "" {
		return anonymousOperationName
	}
	return op.Name.Value
}
