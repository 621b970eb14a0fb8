package executor

import (
	"github.com/vektah/gqlparser/v2/ast"
)

// collectedField groups every AST field sharing a response key.
type collectedField struct {
	ResponseName string
	Fields       []*ast.Field
}

type collectedFields struct {
	fields []collectedField
	index  map[string]int
}

func (c *collectedFields) add(f *ast.Field) {
	name := f.Alias
	if name == "" {
		name = f.Name
	}
	if i, ok := c.index[name]; ok {
		c.fields[i].Fields = append(c.fields[i].Fields, f)
		return
	}
	c.index[name] = len(c.fields)
	c.fields = append(c.fields, collectedField{ResponseName: name, Fields: []*ast.Field{f}})
}

// collectFields flattens fragments and applies @skip/@include, preserving
// the order in which response keys first appear.
func (s *state) collectFields(objectType *ast.Definition, set ast.SelectionSet) []collectedField {
	c := &collectedFields{index: make(map[string]int)}
	s.collectInto(c, objectType, set, make(map[string]bool))
	return c.fields
}

func (s *state) collectInto(c *collectedFields, objectType *ast.Definition, set ast.SelectionSet, visited map[string]bool) {
	for _, sel := range set {
		switch sel := sel.(type) {
		case *ast.Field:
			if !ShouldInclude(sel.Directives, s.vars) {
				continue
			}
			c.add(sel)
		case *ast.InlineFragment:
			if !ShouldInclude(sel.Directives, s.vars) || !s.applies(sel.TypeCondition, objectType) {
				continue
			}
			s.collectInto(c, objectType, sel.SelectionSet, visited)
		case *ast.FragmentSpread:
			if !ShouldInclude(sel.Directives, s.vars) || visited[sel.Name] {
				continue
			}
			visited[sel.Name] = true
			def := sel.Definition
			if def == nil {
				def = s.doc.Fragments.ForName(sel.Name)
			}
			if def == nil || !s.applies(def.TypeCondition, objectType) {
				continue
			}
			s.collectInto(c, objectType, def.SelectionSet, visited)
		}
	}
}

// applies reports whether a fragment with the given type condition selects
// fields on objectType.
func (s *state) applies(condition string, objectType *ast.Definition) bool {
	if condition == "" || condition == objectType.Name {
		return true
	}
	cond := s.schema.Types[condition]
	if cond == nil || !cond.IsAbstractType() {
		return false
	}
	for _, possible := range s.schema.GetPossibleTypes(cond) {
		if possible.Name == objectType.Name {
			return true
		}
	}
	return false
}

// ShouldInclude evaluates @skip and @include against the request variables.
func ShouldInclude(directives ast.DirectiveList, vars map[string]any) bool {
	if d := directives.ForName("skip"); d != nil {
		if v, ok := directiveIf(d, vars); ok && v {
			return false
		}
	}
	if d := directives.ForName("include"); d != nil {
		if v, ok := directiveIf(d, vars); ok && !v {
			return false
		}
	}
	return true
}

func directiveIf(d *ast.Directive, vars map[string]any) (bool, bool) {
	arg := d.Arguments.ForName("if")
	if arg == nil || arg.Value == nil {
		return false, false
	}
	v, err := arg.Value.Value(vars)
	if err != nil {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func mergeSelectionSets(fields []*ast.Field) ast.SelectionSet {
	if len(fields) == 1 {
		return fields[0].SelectionSet
	}
	var merged ast.SelectionSet
	for _, f := range fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}

func appendPath(path ast.Path, elem ast.PathElement) ast.Path {
	out := make(ast.Path, len(path)+1)
	copy(out, path)
	out[len(path)] = elem
	return out
}
