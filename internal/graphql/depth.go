package graphql

import (
	"context"
	"fmt"
	"strings"

	gqlgen "github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/errcode"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// DefaultMaxDepth is the nesting ceiling used when none is configured.
const DefaultMaxDepth = 5

// CheckDepth rejects operations whose selections nest deeper than maxDepth.
//
// Top-level fields sit at depth 0 and every selection set below a field adds
// one level. Fragments are expanded in place without adding depth and
// introspection fields are not counted.
func CheckDepth(doc *ast.QueryDocument, maxDepth int) gqlerror.List {
	var errs gqlerror.List
	for _, op := range doc.Operations {
		d := &depthWalker{doc: doc, max: maxDepth}
		d.selections(op.SelectionSet, 0, make(map[string]bool))
		if d.offender != nil {
			err := &gqlerror.Error{Message: depthMessage(op, maxDepth)}
			if pos := d.offender.Position; pos != nil {
				err.Locations = []gqlerror.Location{{Line: pos.Line, Column: pos.Column}}
			}
			errcode.Set(err, errcode.ValidationFailed)
			errs = append(errs, err)
		}
	}
	return errs
}

// DepthLimit is a handler extension that rejects operations nested deeper
// than Max once they have been parsed and validated.
type DepthLimit struct {
	Max int
}

var _ interface {
	gqlgen.HandlerExtension
	gqlgen.OperationContextMutator
} = DepthLimit{}

func (DepthLimit) ExtensionName() string {
	return "DepthLimit"
}

func (d DepthLimit) Validate(gqlgen.ExecutableSchema) error {
	if d.Max < 1 {
		return fmt.Errorf("depth limit must be at least 1, got %d", d.Max)
	}
	return nil
}

func (d DepthLimit) MutateOperationContext(_ context.Context, oc *gqlgen.OperationContext) *gqlerror.Error {
	if errs := CheckDepth(oc.Doc, d.Max); len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Depth returns the deepest level reached by op's selections.
func Depth(doc *ast.QueryDocument, op *ast.OperationDefinition) int {
	d := &depthWalker{doc: doc, max: -1}
	return d.selections(op.SelectionSet, 0, make(map[string]bool))
}

func depthMessage(op *ast.OperationDefinition, maxDepth int) string {
	if op.Name == "" {
		return fmt.Sprintf("operation exceeds maximum depth of %d", maxDepth)
	}
	return fmt.Sprintf("'%s' exceeds maximum operation depth of %d", op.Name, maxDepth)
}

type depthWalker struct {
	doc      *ast.QueryDocument
	max      int
	offender *ast.Field
}

// selections returns the depth of the deepest field in set, which starts at
// level.
func (d *depthWalker) selections(set ast.SelectionSet, level int, expanding map[string]bool) int {
	deepest := level
	for _, sel := range set {
		if d.offender != nil {
			return deepest
		}
		var depth int
		switch sel := sel.(type) {
		case *ast.Field:
			depth = d.field(sel, level, expanding)
		case *ast.InlineFragment:
			depth = d.selections(sel.SelectionSet, level, expanding)
		case *ast.FragmentSpread:
			if expanding[sel.Name] {
				continue
			}
			def := sel.Definition
			if def == nil {
				def = d.doc.Fragments.ForName(sel.Name)
			}
			if def == nil {
				continue
			}
			expanding[sel.Name] = true
			depth = d.selections(def.SelectionSet, level, expanding)
			delete(expanding, sel.Name)
		}
		if depth > deepest {
			deepest = depth
		}
	}
	return deepest
}

func (d *depthWalker) field(f *ast.Field, level int, expanding map[string]bool) int {
	if strings.HasPrefix(f.Name, "__") {
		return 0
	}
	if d.max >= 0 && level > d.max {
		d.offender = f
		return level
	}
	if len(f.SelectionSet) == 0 {
		return level
	}
	return d.selections(f.SelectionSet, level+1, expanding)
}
