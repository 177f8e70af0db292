package cache

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
)

const maxEncodeDepth = 64

var (
	errTooDeep = errors.New("value is cyclic or nested too deeply")

	jsonMarshalerType = reflect.TypeFor[json.Marshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

// encode marshals value to JSON. Leaves JSON has no representation for
// (channels, funcs, complex numbers, NaN and infinities) are written in
// their fmt.Sprint form; only cyclic values fail.
func encode(value any) ([]byte, error) {
	b, err := json.Marshal(value)
	if err == nil {
		return b, nil
	}

	var typeErr *json.UnsupportedTypeError
	var valueErr *json.UnsupportedValueError
	if !errors.As(err, &typeErr) && !errors.As(err, &valueErr) {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	plain, err := stringify(reflect.ValueOf(value), 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	b, err = json.Marshal(plain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return b, nil
}

// stringify rebuilds v from maps, slices and JSON-safe leaves, following the
// field naming of encoding/json.
func stringify(v reflect.Value, depth int) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}
	if depth > maxEncodeDepth {
		return nil, errTooDeep
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
	}

	if t := v.Type(); t.Implements(jsonMarshalerType) || t.Implements(textMarshalerType) {
		if b, err := json.Marshal(v.Interface()); err == nil {
			return json.RawMessage(b), nil
		}
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		return stringify(v.Elem(), depth+1)

	case reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return fmt.Sprint(v.Interface()), nil

	case reflect.Float32, reflect.Float64:
		if f := v.Float(); math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Sprint(f), nil
		}
		return v.Interface(), nil

	case reflect.Map:
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			elem, err := stringify(iter.Value(), depth+1)
			if err != nil {
				return nil, err
			}
			out[mapKey(iter.Key())] = elem
		}
		return out, nil

	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Bytes(), nil
		}
		fallthrough
	case reflect.Array:
		out := make([]any, v.Len())
		for i := range v.Len() {
			elem, err := stringify(v.Index(i), depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = elem
		}
		return out, nil

	case reflect.Struct:
		out := make(map[string]any, v.NumField())
		if err := stringifyFields(v, out, depth); err != nil {
			return nil, err
		}
		return out, nil

	default:
		return v.Interface(), nil
	}
}

func stringifyFields(v reflect.Value, out map[string]any, depth int) error {
	t := v.Type()
	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" && opts == "" {
			continue
		}

		fv := v.Field(i)
		if field.Anonymous && name == "" {
			inner := fv
			if inner.Kind() == reflect.Pointer {
				if inner.IsNil() {
					continue
				}
				inner = inner.Elem()
			}
			if inner.Kind() == reflect.Struct {
				if err := stringifyFields(inner, out, depth+1); err != nil {
					return err
				}
				continue
			}
		}

		if name == "" {
			name = field.Name
		}
		if strings.Contains(opts, "omitempty") && fv.Kind() != reflect.Struct && fv.IsZero() {
			continue
		}
		elem, err := stringify(fv, depth+1)
		if err != nil {
			return err
		}
		out[name] = elem
	}
	return nil
}

func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	if tm, ok := k.Interface().(encoding.TextMarshaler); ok {
		if b, err := tm.MarshalText(); err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(k.Interface())
}
