// Package value defines the structured payload carried by events: a tree of
// maps, sequences and scalars in a single canonical representation.
//
// Canonical types are nil, bool, int64, uint64, float64, string, []byte,
// []any and map[string]any. Codecs run their output through Normalize so
// that values compare equal after any codec or log round trip.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// Normalize converts v into canonical form. Signed integers become int64,
// unsigned integers become uint64, float32 becomes float64, json.Number
// becomes int64, uint64 or float64, and maps with non-string keys have their
// keys formatted with fmt. The input is not modified.
func Normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case bool, string, int64, uint64, float64:
		return t
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint:
		return uint64(t)
	case uint8:
		return uint64(t)
	case uint16:
		return uint64(t)
	case uint32:
		return uint64(t)
	case float32:
		return float64(t)
	case json.Number:
		return normalizeNumber(t)
	case []byte:
		return bytes.Clone(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Normalize(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[keyString(k)] = Normalize(e)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[keyString(iter.Key().Interface())] = Normalize(iter.Value().Interface())
		}
		return out
	case reflect.String:
		return rv.String()
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return Normalize(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}

func normalizeNumber(n json.Number) any {
	s := n.String()
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return u
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func keyString(k any) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprint(k)
}

// Clone returns a deep copy of a canonical value. Scalars are returned as is.
func Clone(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	case map[string]any:
		return CloneMap(t)
	case []byte:
		return bytes.Clone(t)
	default:
		return t
	}
}

// CloneMap deep copies a map. A nil map clones to nil.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, e := range m {
		out[k] = Clone(e)
	}
	return out
}

// Equal reports whether two values are structurally equal. NaN floats are
// considered equal to each other so that a logged NaN replays as equal.
func Equal(a, b any) bool {
	switch at := a.(type) {
	case float64:
		bt, ok := b.(float64)
		if !ok {
			return false
		}
		if math.IsNaN(at) && math.IsNaN(bt) {
			return true
		}
		return at == bt
	case []any:
		bt, ok := b.([]any)
		if !ok || len(at) != len(bt) {
			return false
		}
		for i := range at {
			if !Equal(at[i], bt[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bt, ok := b.(map[string]any)
		if !ok || len(at) != len(bt) {
			return false
		}
		for k, av := range at {
			bv, ok := bt[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case []byte:
		bt, ok := b.([]byte)
		return ok && bytes.Equal(at, bt)
	default:
		return reflect.DeepEqual(a, b)
	}
}

// State is the free-form, operator-private state a pipeline hands to each
// operator call. It is scoped to one operator instance.
type State struct {
	Value any
}
