// Package executor runs validated GraphQL operations breadth first.
//
// Each pass starts every field reachable without waiting: synchronous fields
// complete at once and descend immediately, while fields backed by a batch
// loader hand back a Thunk. When nothing more can start, the executor awaits
// every outstanding thunk of the pass before completing any of them, so all
// loads of the next level are issued together and coalesce into one batch per
// loader. Batches of different loaders run concurrently.
//
// Failed fields are reported as located errors. A null in a non-null position
// nulls the nearest nullable ancestor; sibling subtrees are unaffected.
package executor

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Thunk blocks until a deferred field value is available.
type Thunk func() (any, error)

// Resolution is the outcome of starting a field. Exactly one of Value, Err or
// Pending is meaningful; a zero Resolution resolves to null.
type Resolution struct {
	Value   any
	Err     error
	Pending Thunk
}

// Done resolves a field synchronously.
func Done(v any) Resolution { return Resolution{Value: v} }

// Failed fails a field synchronously.
func Failed(err error) Resolution { return Resolution{Err: err} }

// Deferred resolves a field once thunk returns.
func Deferred(thunk Thunk) Resolution { return Resolution{Pending: thunk} }

// Runtime starts field resolution for the executor.
//
// objectType is the parent type name, field the selected field, source the
// parent value (nil at the root) and args the coerced field arguments.
// Implementations must not block in ResolveField; anything that waits on I/O
// returns a Pending thunk.
type Runtime interface {
	ResolveField(ctx context.Context, objectType string, field *ast.Field, source any, args map[string]any) Resolution
}

// Dispatcher is implemented by runtimes whose Pending thunks wait on shared
// batches. Dispatch is called once per pass, after every field of the pass
// has started and before any thunk is awaited.
type Dispatcher interface {
	Dispatch(ctx context.Context)
}

type Executor struct {
	schema  *ast.Schema
	runtime Runtime
}

// New creates an executor for schema.
func New(schema *ast.Schema, rt Runtime) *Executor {
	return &Executor{schema: schema, runtime: rt}
}

// slot is a position in the response tree that holds one value.
type slot struct {
	parent   *slot
	nullable bool
	dead     bool
	set      func(any)
}

func (s *slot) write(v any) {
	if !s.dead {
		s.set(v)
	}
}

func (s *slot) alive() bool {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.dead {
			return false
		}
	}
	return true
}

type task struct {
	slot   *slot
	thunk  Thunk
	typ    *ast.Type
	fields []*ast.Field
	path   ast.Path
}

type state struct {
	ctx      context.Context
	schema   *ast.Schema
	runtime  Runtime
	doc      *ast.QueryDocument
	vars     map[string]any
	errors   gqlerror.List
	pending  []task
	dataNull bool
}

// Execute runs op against doc. The document must already be validated and the
// variables coerced.
func (e *Executor) Execute(ctx context.Context, doc *ast.QueryDocument, op *ast.OperationDefinition, vars map[string]any) *Result {
	if op.Operation != ast.Query {
		return &Result{Errors: gqlerror.List{gqlerror.Errorf("%s operations are not supported", op.Operation)}}
	}
	root := e.schema.Query
	if root == nil {
		return &Result{Errors: gqlerror.List{gqlerror.Errorf("schema has no query type")}}
	}
	if vars == nil {
		vars = map[string]any{}
	}

	s := &state{
		ctx:     ctx,
		schema:  e.schema,
		runtime: e.runtime,
		doc:     doc,
		vars:    vars,
	}

	data := newObject(len(op.SelectionSet))
	s.executeFields(root, op.SelectionSet, nil, nil, data, nil)

	for len(s.pending) > 0 {
		s.drain()
	}

	if s.dataNull {
		return &Result{Data: nil, Errors: s.errors}
	}
	return &Result{Data: data, Errors: s.errors}
}

// drain dispatches the pass, awaits every outstanding thunk, then completes
// them in the order they were started. Completion may queue the next level.
func (s *state) drain() {
	batch := s.pending
	s.pending = nil

	if d, ok := s.runtime.(Dispatcher); ok {
		d.Dispatch(s.ctx)
	}

	type outcome struct {
		value any
		err   error
		skip  bool
	}
	outcomes := make([]outcome, len(batch))
	for i, t := range batch {
		if !t.slot.alive() || s.dataNull {
			outcomes[i].skip = true
			continue
		}
		outcomes[i].value, outcomes[i].err = t.thunk()
	}

	for i, t := range batch {
		if outcomes[i].skip || !t.slot.alive() || s.dataNull {
			continue
		}
		if err := outcomes[i].err; err != nil {
			s.fail(t.slot, t.fields[0], t.path, err)
			continue
		}
		s.complete(t.slot, t.typ, t.fields, outcomes[i].value, t.path)
	}
}

// executeFields starts every collected field of objectType against source and
// writes the results into obj. owner is the slot that holds obj.
func (s *state) executeFields(objectType *ast.Definition, set ast.SelectionSet, source any, path ast.Path, obj *Object, owner *slot) {
	for _, cf := range s.collectFields(objectType, set) {
		if (owner != nil && !owner.alive()) || s.dataNull {
			return
		}
		field := cf.Fields[0]
		fieldPath := appendPath(path, ast.PathName(cf.ResponseName))
		idx := obj.add(cf.ResponseName)

		if field.Name == "__typename" {
			obj.values[idx] = objectType.Name
			continue
		}

		def := field.Definition
		if def == nil {
			def = objectType.Fields.ForName(field.Name)
		}
		if def == nil {
			s.addError(field, fieldPath, fmt.Errorf("cannot query field %q on type %q", field.Name, objectType.Name))
			continue
		}

		fs := &slot{
			parent:   owner,
			nullable: !def.Type.NonNull,
			set:      func(v any) { obj.values[idx] = v },
		}

		var args map[string]any
		if field.Definition != nil {
			args = field.ArgumentMap(s.vars)
		} else {
			args = map[string]any{}
		}

		res := s.runtime.ResolveField(s.ctx, objectType.Name, field, source, args)
		switch {
		case res.Err != nil:
			s.fail(fs, field, fieldPath, res.Err)
		case res.Pending != nil:
			s.pending = append(s.pending, task{
				slot:   fs,
				thunk:  res.Pending,
				typ:    def.Type,
				fields: cf.Fields,
				path:   fieldPath,
			})
		default:
			s.complete(fs, def.Type, cf.Fields, res.Value, fieldPath)
		}
	}
}

// complete writes value into sl according to typ, descending into lists and
// objects.
func (s *state) complete(sl *slot, typ *ast.Type, fields []*ast.Field, value any, path ast.Path) {
	if isNullish(value) {
		if typ.NonNull {
			parent := "Query"
			if fields[0].ObjectDefinition != nil {
				parent = fields[0].ObjectDefinition.Name
			}
			s.fail(sl, fields[0], path, fmt.Errorf("cannot return null for non-nullable field %s.%s", parent, fields[0].Name))
			return
		}
		sl.write(nil)
		return
	}

	if typ.Elem != nil {
		s.completeList(sl, typ, fields, value, path)
		return
	}

	def := s.schema.Types[typ.NamedType]
	if def == nil {
		s.fail(sl, fields[0], path, fmt.Errorf("unknown type %s", typ.NamedType))
		return
	}

	switch def.Kind {
	case ast.Scalar, ast.Enum:
		leaf, err := serializeLeaf(def, value)
		if err != nil {
			s.fail(sl, fields[0], path, err)
			return
		}
		sl.write(leaf)
	case ast.Object:
		obj := newObject(len(fields[0].SelectionSet))
		sl.write(obj)
		s.executeFields(def, mergeSelectionSets(fields), value, path, obj, sl)
	default:
		s.fail(sl, fields[0], path, fmt.Errorf("cannot complete value of kind %s", def.Kind))
	}
}

func (s *state) completeList(sl *slot, typ *ast.Type, fields []*ast.Field, value any, path ast.Path) {
	var items []any
	if direct, ok := value.([]any); ok {
		items = direct
	} else {
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			s.fail(sl, fields[0], path, fmt.Errorf("expected a list for %s, got %T", fields[0].Name, value))
			return
		}
		items = make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
	}

	list := make([]any, len(items))
	sl.write(list)
	for i, item := range items {
		if !sl.alive() {
			return
		}
		is := &slot{
			parent:   sl,
			nullable: !typ.Elem.NonNull,
			set:      func(v any) { list[i] = v },
		}
		s.complete(is, typ.Elem, fields, item, appendPath(path, ast.PathIndex(i)))
	}
}

// fail records err at path and nulls the nearest nullable slot.
func (s *state) fail(sl *slot, field *ast.Field, path ast.Path, err error) {
	s.addError(field, path, err)
	s.nullify(sl)
}

func (s *state) nullify(sl *slot) {
	for cur := sl; cur != nil; cur = cur.parent {
		if cur.nullable {
			cur.write(nil)
			cur.dead = true
			return
		}
	}
	s.dataNull = true
}

func (s *state) addError(field *ast.Field, path ast.Path, err error) {
	located := &gqlerror.Error{
		Err:     err,
		Message: err.Error(),
		Path:    path,
	}
	var gqlErr *gqlerror.Error
	if errors.As(err, &gqlErr) {
		located.Message = gqlErr.Message
		located.Extensions = gqlErr.Extensions
	}
	if field != nil && field.Position != nil {
		located.Locations = []gqlerror.Location{{Line: field.Position.Line, Column: field.Position.Column}}
	}
	s.errors = append(s.errors, located)
}

// isNullish reports nil interfaces and typed nils.
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
