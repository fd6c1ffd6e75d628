package closure

import (
	"reflect"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	terrors "github.com/sambeau/tether/pkg/tether/errors"
	"github.com/sambeau/tether/pkg/tether/values"
)

// structInfo caches the member names of one struct type.
type structInfo struct {
	fields map[string][]int // tag or field name -> field index path
	order  []string         // member names in declaration order, for hints
}

func (m *Map) structInfo(t reflect.Type) *structInfo {
	if cached, ok := m.types.Load(t); ok {
		return cached.(*structInfo)
	}
	info := &structInfo{fields: make(map[string][]int)}
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("tether"); ok {
			tag, _, _ = strings.Cut(tag, ",")
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		if _, dup := info.fields[name]; dup {
			continue
		}
		info.fields[name] = f.Index
		info.order = append(info.order, name)
		// The Go name stays reachable when a tag renames the field.
		if name != f.Name {
			if _, dup := info.fields[f.Name]; !dup {
				info.fields[f.Name] = f.Index
			}
		}
	}
	actual, _ := m.types.LoadOrStore(t, info)
	return actual.(*structInfo)
}

// field finds name by tag, then by exact field name, then by its exported form.
func (s *structInfo) field(name string) ([]int, bool) {
	if index, ok := s.fields[name]; ok {
		return index, true
	}
	index, ok := s.fields[exported(name)]
	return index, ok
}

// names lists the fields and methods reachable from rv.
func (s *structInfo) names(rv reflect.Value) []string {
	out := append([]string(nil), s.order...)
	return append(out, methodNames(rv)...)
}

func methodNames(rv reflect.Value) []string {
	if !rv.IsValid() {
		return nil
	}
	t := rv.Type()
	names := make([]string, 0, t.NumMethod())
	for i := 0; i < t.NumMethod(); i++ {
		names = append(names, t.Method(i).Name)
	}
	return names
}

// exported upper-cases the first letter of name.
func exported(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

// indirect follows pointers and interfaces down to a concrete value. It
// returns the zero Value for nil.
func indirect(rv reflect.Value) reflect.Value {
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}

func findMethod(rv reflect.Value, name string) (reflect.Value, bool) {
	if !rv.IsValid() {
		return reflect.Value{}, false
	}
	for _, candidate := range []string{name, exported(name)} {
		if method := rv.MethodByName(candidate); method.IsValid() {
			return method, true
		}
	}
	return reflect.Value{}, false
}

func mapKeyValue(mapType reflect.Type, name string) (reflect.Value, bool) {
	if mapType.Key().Kind() != reflect.String {
		return reflect.Value{}, false
	}
	return reflect.ValueOf(name).Convert(mapType.Key()), true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// callFunc calls fn with args converted to its parameter types. Missing
// trailing arguments are passed as zero values; surplus arguments are an
// error unless fn is variadic. A trailing error result is returned as the
// call's error.
func callFunc(name string, fn reflect.Value, args []any) (any, error) {
	ft := fn.Type()
	numIn := ft.NumIn()
	fixed := numIn
	if ft.IsVariadic() {
		fixed = numIn - 1
	}
	if !ft.IsVariadic() && len(args) > numIn {
		return nil, terrors.New("CALL-0002", map[string]any{"Name": name, "Expected": numIn, "Got": len(args)})
	}

	in := make([]reflect.Value, 0, max(len(args), fixed))
	for i := 0; i < fixed; i++ {
		pt := ft.In(i)
		if i >= len(args) {
			in = append(in, reflect.Zero(pt))
			continue
		}
		v, ok := convertValue(args[i], pt)
		if !ok {
			return nil, argumentError(name, i, args[i], pt)
		}
		in = append(in, v)
	}
	if ft.IsVariadic() {
		elem := ft.In(numIn - 1).Elem()
		for i := fixed; i < len(args); i++ {
			v, ok := convertValue(args[i], elem)
			if !ok {
				return nil, argumentError(name, i, args[i], elem)
			}
			in = append(in, v)
		}
	}

	out := fn.Call(in)
	if n := len(out); n > 0 && ft.Out(n-1) == errorType {
		if err, _ := out[n-1].Interface().(error); err != nil {
			return nil, err
		}
		out = out[:n-1]
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0].Interface(), nil
}

func argumentError(name string, index int, got any, want reflect.Type) error {
	return terrors.New("TYPE-0003", map[string]any{
		"Index":    index + 1,
		"Name":     name,
		"Got":      values.TypeName(got),
		"Expected": want.String(),
	})
}

// convertValue converts v to type t. Numbers convert between Go numeric
// types when no precision is lost; other conversions must be assignable or
// a plain Go conversion that does not turn numbers into strings.
func convertValue(v any, t reflect.Type) (reflect.Value, bool) {
	if v == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), true
		}
		return reflect.Value{}, false
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, true
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, ok := values.ToInt(v)
		if !ok {
			return reflect.Value{}, false
		}
		out := reflect.New(t).Elem()
		if out.OverflowInt(int64(i)) {
			return reflect.Value{}, false
		}
		out.SetInt(int64(i))
		return out, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		i, ok := values.ToInt(v)
		if !ok || i < 0 {
			return reflect.Value{}, false
		}
		out := reflect.New(t).Elem()
		if out.OverflowUint(uint64(i)) {
			return reflect.Value{}, false
		}
		out.SetUint(uint64(i))
		return out, true
	case reflect.Float32, reflect.Float64:
		f, ok := values.ToFloat(v)
		if !ok {
			return reflect.Value{}, false
		}
		out := reflect.New(t).Elem()
		out.SetFloat(f)
		return out, true
	case reflect.String:
		if rv.Kind() != reflect.String {
			return reflect.Value{}, false
		}
	}

	if rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), true
	}
	return reflect.Value{}, false
}
