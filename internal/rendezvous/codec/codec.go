// Package codec implements the reference envelope encoding from
// spec.md §4.1/§6: a JSON-like dictionary carrying id/method/params
// (or result/error), with argument schemas serialized into a
// positional params array ordered alphabetically by field name.
package codec

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// ResponseCallback is invoked exactly once when a request/response
// call completes, with either a result or an error. Defined here
// (the lowest layer that needs it) so transport and types can share
// one function type without an import cycle.
type ResponseCallback func(result interface{}, err error)

// Request is the wire shape of an RPC request or P+S push. ID == 0 is
// reserved for notifications (spec.md §3).
type Request struct {
	ID     uint32        `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// ResponseError is the {code,message} pair carried on failure.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response is the wire shape of an RPC response. Exactly one of
// Result/Error is present (spec.md §3).
type Response struct {
	ID     uint32         `json:"id"`
	Result interface{}    `json:"result,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

// classTagKey is the optional polymorphism tag from spec.md §4.1: a
// nested schema object implementing ClassTagged gets its type name
// folded into the normalized map under this key so the far side can
// pick the right concrete type to decode into.
const classTagKey = "__class__"

// ClassTagged is implemented by nested argument types that need
// polymorphic tagging on the wire.
type ClassTagged interface {
	ClassName() string
}

// EncodeArguments turns an argument schema value into the positional
// params array, walking its fields in alphabetical order (spec.md
// §4.1, §8 ordering law). v may be a struct or a pointer to one.
func EncodeArguments(v interface{}) ([]interface{}, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("codec: EncodeArguments requires a struct, got %s", rv.Kind())
	}

	plans := schemaOf(rv.Type())
	params := make([]interface{}, 0, len(plans))
	for _, p := range plans {
		fv := rv.FieldByIndex(p.index)
		normalized, err := normalize(fv.Interface())
		if err != nil {
			return nil, err
		}
		params = append(params, normalized)
	}
	return params, nil
}

// normalize round-trips a value through JSON so every field value —
// scalars, timestamps, byte slices (base64), nested schema objects,
// ordered lists, sets emitted as lists, mappings — ends up in the same
// JSON-compatible representation the reference codec uses on the wire.
func normalize(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: failed encoding field value: %w", err)
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("codec: failed normalizing field value: %w", err)
	}
	if tagged, ok := v.(ClassTagged); ok {
		if m, ok := out.(map[string]interface{}); ok {
			m[classTagKey] = tagged.ClassName()
		}
	}
	return out, nil
}

// DecodeArguments re-populates target (a pointer to a struct) from a
// params array produced by EncodeArguments, walking the same
// alphabetical field order.
func DecodeArguments(params []interface{}, target interface{}) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("codec: DecodeArguments requires a non-nil pointer")
	}
	elem := rv.Elem()
	if elem.Kind() != reflect.Struct {
		return fmt.Errorf("codec: DecodeArguments requires a pointer to struct")
	}

	plans := schemaOf(elem.Type())
	if len(params) != len(plans) {
		return fmt.Errorf("codec: expected %d params, got %d", len(plans), len(params))
	}

	for i, p := range plans {
		fv := elem.FieldByIndex(p.index)
		if !fv.CanSet() {
			continue
		}
		if err := assign(fv, params[i]); err != nil {
			return fmt.Errorf("codec: field %q: %w", p.name, err)
		}
	}
	return nil
}

// assign decodes a generic JSON value (as produced by
// encoding/json.Unmarshal into interface{}) into the destination
// field, by re-marshaling and unmarshaling into the field's concrete
// type. This keeps scalar, timestamp, binary-blob, nested-object,
// list and map fields all going through one code path instead of a
// type switch per kind.
func assign(dst reflect.Value, src interface{}) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	ptr := reflect.New(dst.Type())
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return err
	}
	dst.Set(ptr.Elem())
	return nil
}

// EncodeRequest builds the wire Request for a command invocation. id
// == 0 marks a notification/push (spec.md §3).
func EncodeRequest(id uint32, method string, args interface{}) (*Request, error) {
	params, err := EncodeArguments(args)
	if err != nil {
		return nil, err
	}
	return &Request{ID: id, Method: method, Params: params}, nil
}

// Marshal/Unmarshal convert envelopes to/from bytes for the body
// portion of a framed message or a single unreliable datagram.
func Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func UnmarshalRequest(data []byte) (*Request, error) {
	var r Request
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func UnmarshalResponse(data []byte) (*Response, error) {
	var r Response
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// FieldNames exposes the alphabetical field ordering for a type,
// mainly so tests can assert the ordering law without round-tripping
// through JSON.
func FieldNames(v interface{}) []string {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	return fieldNames(rv.Type())
}
