package executor

import (
	"encoding"
	"fmt"
	"math"
	"reflect"

	"github.com/vektah/gqlparser/v2/ast"
)

// serializeLeaf turns a resolved scalar or enum value into a JSON-safe value.
func serializeLeaf(def *ast.Definition, value any) (any, error) {
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Ptr {
		if _, ok := rv.Interface().(fmt.Stringer); ok {
			break
		}
		rv = rv.Elem()
	}
	value = rv.Interface()

	switch def.Name {
	case "Int":
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n := rv.Int()
			if n < math.MinInt32 || n > math.MaxInt32 {
				return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %d", n)
			}
			return n, nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
			return int64(rv.Uint()), nil
		}
		return nil, fmt.Errorf("Int cannot represent value %v", value)
	case "Float":
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			return rv.Float(), nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return float64(rv.Int()), nil
		}
		return nil, fmt.Errorf("Float cannot represent value %v", value)
	case "Boolean":
		if rv.Kind() == reflect.Bool {
			return rv.Bool(), nil
		}
		return nil, fmt.Errorf("Boolean cannot represent value %v", value)
	case "String", "ID":
		return stringOf(value)
	}

	if def.Kind == ast.Enum {
		name, err := stringOf(value)
		if err != nil {
			return nil, err
		}
		if def.EnumValues.ForName(name) == nil {
			return nil, fmt.Errorf("enum %s cannot represent value %q", def.Name, name)
		}
		return name, nil
	}

	// custom scalars
	switch v := value.(type) {
	case fmt.Stringer:
		return v.String(), nil
	case encoding.TextMarshaler:
		b, err := v.MarshalText()
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	return value, nil
}

func stringOf(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.String {
		return rv.String(), nil
	}
	return "", fmt.Errorf("cannot represent %T as a string", value)
}
