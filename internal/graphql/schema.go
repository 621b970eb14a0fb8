// Package graphql wires the social read API: the embedded schema, the
// resolver registry, the pre-execution guards and the request pipeline that
// drives the executor.
package graphql

import (
	_ "embed"
	"fmt"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

//go:embed schema.graphql
var schemaSource string

// LoadSchema parses and validates the embedded schema.
func LoadSchema() (*ast.Schema, error) {
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: schemaSource, BuiltIn: false})
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	return schema, nil
}

// SchemaSDL returns the schema source served to tooling.
func SchemaSDL() string {
	return schemaSource
}
