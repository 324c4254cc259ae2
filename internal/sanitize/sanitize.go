// Package sanitize turns arbitrary object graphs into tree-shaped,
// JSON-serializable values before they are persisted. Upstream client
// libraries attach self-referential machinery (connections, parent
// handles) to their request/response objects; persisting those verbatim
// would not terminate.
package sanitize

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"
)

// Tree returns a cycle-free copy of v. Objects already seen on the walk
// are elided, unexported fields are dropped, and every scalar leaf is
// rendered as text.
func Tree(v any) any {
	out, _ := walk(reflect.ValueOf(v), map[uintptr]struct{}{})
	return out
}

func walk(rv reflect.Value, seen map[uintptr]struct{}) (any, bool) {
	switch rv.Kind() {
	case reflect.Invalid:
		return nil, false

	case reflect.Interface:
		if rv.IsNil() {
			return nil, false
		}
		return walk(rv.Elem(), seen)

	case reflect.Pointer:
		if rv.IsNil() {
			return nil, false
		}
		if !mark(rv.Pointer(), seen) {
			return nil, false
		}
		return walk(rv.Elem(), seen)

	case reflect.Map:
		if rv.IsNil() {
			return nil, false
		}
		if !mark(rv.Pointer(), seen) {
			return nil, false
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			child, ok := walk(iter.Value(), seen)
			if !ok {
				continue
			}
			out[fmt.Sprint(iter.Key().Interface())] = child
		}
		return out, true

	case reflect.Slice:
		if rv.IsNil() {
			return nil, false
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes()), true
		}
		if !mark(rv.Pointer(), seen) {
			return nil, false
		}
		return walkSeq(rv, seen)

	case reflect.Array:
		return walkSeq(rv, seen)

	case reflect.Struct:
		t := rv.Type()
		out := make(map[string]any, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			child, ok := walk(rv.Field(i), seen)
			if !ok {
				continue
			}
			out[fieldName(f)] = child
		}
		return out, true

	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return nil, false

	default:
		return fmt.Sprint(rv.Interface()), true
	}
}

func walkSeq(rv reflect.Value, seen map[uintptr]struct{}) (any, bool) {
	out := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		child, ok := walk(rv.Index(i), seen)
		if !ok {
			continue
		}
		out = append(out, child)
	}
	return out, true
}

func mark(p uintptr, seen map[uintptr]struct{}) bool {
	if _, ok := seen[p]; ok {
		return false
	}
	seen[p] = struct{}{}
	return true
}

func fieldName(f reflect.StructField) string {
	if tag, ok := f.Tag.Lookup("json"); ok {
		if name, _, _ := strings.Cut(tag, ","); name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}

// Query extracts the query parameters of a raw URL for the persisted
// request record. First value wins for repeated keys.
func Query(rawURL string) map[string]string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	q := u.Query()
	if len(q) == 0 {
		return nil
	}
	out := make(map[string]string, len(q))
	for k, vs := range q {
		out[k] = vs[0]
	}
	return out
}
