package graphql

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/rpattn/socialql/internal/executor"

	gqlintrospection "github.com/99designs/gqlgen/graphql/introspection"
	"github.com/vektah/gqlparser/v2/ast"
)

// introspection serves __schema and __type by reading gqlgen's schema
// wrappers reflectively, the same values gqlgen's generated code hands out.
type introspection struct {
	schema   *ast.Schema
	disabled bool
}

func (i *introspection) handles(objectType, field string) bool {
	if strings.HasPrefix(objectType, "__") {
		return true
	}
	return objectType == "Query" && (field == "__schema" || field == "__type")
}

func (i *introspection) resolve(objectType, field string, source any, args map[string]any) executor.Resolution {
	if objectType == "Query" {
		if i.disabled {
			return executor.Failed(fmt.Errorf("introspection disabled"))
		}
		switch field {
		case "__schema":
			return executor.Done(gqlintrospection.WrapSchema(i.schema))
		case "__type":
			name, _ := args["name"].(string)
			def := i.schema.Types[name]
			if def == nil {
				return executor.Done(nil)
			}
			return executor.Done(gqlintrospection.WrapTypeFromDef(i.schema, def))
		}
	}
	v, err := reflectField(source, field, args)
	return executor.Resolution{Value: v, Err: err}
}

// reflectField reads field from v through an exported method or struct field
// of the same name. Methods taking a bool receive includeDeprecated.
func reflectField(v any, field string, args map[string]any) (any, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, nil
	}
	if rv.Kind() != reflect.Ptr {
		ptr := reflect.New(rv.Type())
		ptr.Elem().Set(rv)
		rv = ptr
	}
	name := exportedName(field)

	if m := rv.MethodByName(name); m.IsValid() {
		mt := m.Type()
		if mt.NumOut() == 0 {
			return nil, fmt.Errorf("%s returns no value", name)
		}
		in := make([]reflect.Value, mt.NumIn())
		for n := range in {
			if mt.In(n).Kind() != reflect.Bool {
				return nil, fmt.Errorf("cannot call %s: unsupported parameter %s", name, mt.In(n))
			}
			include, _ := args["includeDeprecated"].(bool)
			in[n] = reflect.ValueOf(include)
		}
		return m.Call(in)[0].Interface(), nil
	}

	if elem := rv.Elem(); elem.Kind() == reflect.Struct {
		if f := elem.FieldByName(name); f.IsValid() && f.CanInterface() {
			return f.Interface(), nil
		}
	}
	return nil, fmt.Errorf("%T has no field %s", v, field)
}

func exportedName(field string) string {
	if field == "" {
		return field
	}
	r := []rune(field)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
