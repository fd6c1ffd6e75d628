// Package values holds the runtime value helpers shared by the expression
// core and its collaborators: container kinds, truthiness, numeric coercion
// and the operator rules used by binary expressions.
package values

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Kind is the access strategy selected for an indexed object.
type Kind int

const (
	KindGeneric Kind = iota
	KindMapping
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	default:
		return "generic"
	}
}

// Indexable is implemented by values that support property-style indexing
// but are neither mappings nor sequences.
type Indexable interface {
	GetIndex(key any) (any, error)
	SetIndex(key, value any) error
}

// KindOf classifies v. It never caches; callers re-classify on every access.
func KindOf(v any) Kind {
	switch v.(type) {
	case *Map, map[string]any, map[any]any:
		return KindMapping
	case []any, *List:
		return KindSequence
	default:
		return KindGeneric
	}
}

// Truthy reports whether v counts as true in a condition.
// nil (typed nil pointers included), false, zero numbers, NaN and the
// empty string are false.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	}
	if IsNumber(v) {
		if i, ok := v.(int); ok {
			return i != 0
		}
		f, _ := ToFloat(v)
		return f != 0 && !math.IsNaN(f)
	}
	return !IsNull(v)
}

// IsNull reports whether v is nil or a nil pointer, func or channel, as a
// getter returning a typed nil would produce. Nil slices and maps are empty
// containers, not null.
func IsNull(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}

// IsNumber reports whether v is a Go numeric value.
func IsNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

// isInteger reports whether v is a Go integer value.
func isInteger(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

// ToFloat converts any numeric value to float64.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// ToInt converts integers, and floats with no fractional part, to int.
func ToInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int8:
		return int(x), true
	case int16:
		return int(x), true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case uint:
		return int(x), true
	case uint8:
		return int(x), true
	case uint16:
		return int(x), true
	case uint32:
		return int(x), true
	case uint64:
		return int(x), true
	case float32, float64:
		f, _ := ToFloat(x)
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int(f), true
		}
	}
	return 0, false
}

// TypeName returns the name used for v in error messages.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case string:
		return "string"
	case *Map, map[string]any, map[any]any:
		return "map"
	case []any, *List:
		return "list"
	}
	if isInteger(v) {
		return "int"
	}
	if IsNumber(v) {
		return "float"
	}
	if reflect.TypeOf(v).Kind() == reflect.Func {
		return "function"
	}
	return fmt.Sprintf("%T", v)
}

// ToString renders v the way string concatenation does.
func ToString(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case fmt.Stringer:
		return x.String()
	case *Map, map[string]any, map[any]any, []any, *List:
		return Inspect(v)
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case math.Abs(f) >= 1e21:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Inspect returns a debug representation of v: strings are quoted and
// containers are rendered recursively.
func Inspect(v any) string {
	var sb strings.Builder
	inspect(&sb, v)
	return sb.String()
}

func inspect(sb *strings.Builder, v any) {
	switch x := v.(type) {
	case string:
		sb.WriteString(strconv.Quote(x))
	case *Map:
		sb.WriteByte('{')
		first := true
		x.Range(func(k, val any) bool {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			sb.WriteString(ToString(k))
			sb.WriteString(": ")
			inspect(sb, val)
			return true
		})
		sb.WriteByte('}')
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteString(": ")
			inspect(sb, x[k])
		}
		sb.WriteByte('}')
	case map[any]any:
		keys := make([]string, 0, len(x))
		byName := make(map[string]any, len(x))
		for k, val := range x {
			name := ToString(k)
			keys = append(keys, name)
			byName[name] = val
		}
		sort.Strings(keys)
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteString(": ")
			inspect(sb, byName[k])
		}
		sb.WriteByte('}')
	case []any:
		inspectList(sb, x)
	case *List:
		inspectList(sb, x.Elements)
	default:
		sb.WriteString(ToString(v))
	}
}

func inspectList(sb *strings.Builder, elements []any) {
	sb.WriteByte('[')
	for i, e := range elements {
		if i > 0 {
			sb.WriteString(", ")
		}
		inspect(sb, e)
	}
	sb.WriteByte(']')
}
