package executor

import (
	"bytes"
	"encoding/json"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Result is the response of one operation.
type Result struct {
	Data   any           `json:"data"`
	Errors gqlerror.List `json:"errors,omitempty"`
}

// Object is a response object that keeps its keys in selection order.
type Object struct {
	keys   []string
	values []any
}

func newObject(size int) *Object {
	return &Object{
		keys:   make([]string, 0, size),
		values: make([]any, 0, size),
	}
}

func (o *Object) add(key string) int {
	o.keys = append(o.keys, key)
	o.values = append(o.values, nil)
	return len(o.keys) - 1
}

// Keys returns the response keys in order.
func (o *Object) Keys() []string {
	return o.keys
}

func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(o.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
