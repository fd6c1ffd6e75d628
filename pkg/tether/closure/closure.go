// Package closure resolves member and method names into the closures that
// expression nodes carry.
//
// Names are bound when a tree is built; the closures themselves dispatch on
// the receiver they are handed at evaluation time. Ordered maps and Go maps
// are read by key, structs by field (honouring `tether:"name"` tags) and
// methods are called through reflection.
package closure

import (
	"reflect"
	"sync"

	"github.com/sambeau/tether/pkg/tether/ast"
	terrors "github.com/sambeau/tether/pkg/tether/errors"
	"github.com/sambeau/tether/pkg/tether/values"
)

// Map implements ast.ClosureMap. The zero value is ready to use and safe for
// concurrent use.
type Map struct {
	types sync.Map // reflect.Type -> *structInfo
}

// New returns an empty closure map.
func New() *Map {
	return &Map{}
}

var _ ast.ClosureMap = (*Map)(nil)

// Getter returns a closure that reads name from its receiver. A nil
// receiver reads as nil.
func (m *Map) Getter(name string) ast.Getter {
	return func(receiver any) (any, error) {
		return m.get(receiver, name)
	}
}

// Setter returns a closure that writes name on its receiver.
func (m *Map) Setter(name string) ast.Setter {
	return func(receiver, value any) (any, error) {
		if err := m.set(receiver, name, value); err != nil {
			return nil, err
		}
		return value, nil
	}
}

// Invoker returns a closure that calls method name on its receiver. For
// mapping receivers the entry under name is called if it holds a function.
func (m *Map) Invoker(name string) ast.Invoker {
	return func(receiver any, args []any) (any, error) {
		return m.invoke(receiver, name, args)
	}
}

// Callable adapts v into an ast.Function. Besides ast.Function and
// ast.Callable values, any Go func is accepted and called through
// reflection.
func (m *Map) Callable(v any) (ast.Function, bool) {
	switch f := v.(type) {
	case nil:
		return nil, false
	case ast.Function:
		return f, f != nil
	case func([]any) (any, error):
		return f, f != nil
	case ast.Callable:
		return f.Call, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return nil, false
	}
	return func(args []any) (any, error) {
		return callFunc("function", rv, args)
	}, true
}

func (m *Map) get(receiver any, name string) (any, error) {
	switch r := receiver.(type) {
	case nil:
		return nil, nil
	case *values.Map:
		if r == nil {
			return nil, nil
		}
		v, _ := r.Get(name)
		return v, nil
	case map[string]any:
		return r[name], nil
	case map[any]any:
		return r[name], nil
	case values.Indexable:
		return r.GetIndex(name)
	}

	rv := reflect.ValueOf(receiver)
	target := indirect(rv)
	if !target.IsValid() {
		return nil, nil
	}

	switch target.Kind() {
	case reflect.Struct:
		info := m.structInfo(target.Type())
		if index, ok := info.field(name); ok {
			f, err := target.FieldByIndexErr(index)
			if err != nil {
				// Nil embedded pointer on the path.
				return nil, nil
			}
			return f.Interface(), nil
		}
		if method, ok := findMethod(rv, name); ok && method.Type().NumIn() == 0 {
			return callFunc(name, method, nil)
		}
		return nil, terrors.NewUndefinedMember(name, values.TypeName(receiver), info.names(rv))
	case reflect.Map:
		key, ok := mapKeyValue(target.Type(), name)
		if !ok {
			break
		}
		v := target.MapIndex(key)
		if !v.IsValid() {
			return nil, nil
		}
		return v.Interface(), nil
	}

	return nil, terrors.New("TYPE-0004", map[string]any{"Name": name, "Got": values.TypeName(receiver)})
}

func (m *Map) set(receiver any, name string, value any) error {
	switch r := receiver.(type) {
	case nil:
		return terrors.New("OPERAND-0002", map[string]any{"Name": name})
	case *values.Map:
		if r == nil {
			return terrors.New("OPERAND-0002", map[string]any{"Name": name})
		}
		r.Set(name, value)
		return nil
	case map[string]any:
		if r == nil {
			return terrors.New("OPERAND-0002", map[string]any{"Name": name})
		}
		r[name] = value
		return nil
	case map[any]any:
		if r == nil {
			return terrors.New("OPERAND-0002", map[string]any{"Name": name})
		}
		r[name] = value
		return nil
	case values.Indexable:
		return r.SetIndex(name, value)
	}

	rv := reflect.ValueOf(receiver)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return terrors.New("OPERAND-0002", map[string]any{"Name": name})
	}
	target := indirect(rv)

	switch target.Kind() {
	case reflect.Struct:
		info := m.structInfo(target.Type())
		index, ok := info.field(name)
		if !ok {
			return terrors.NewUndefinedMember(name, values.TypeName(receiver), info.names(rv))
		}
		if !target.CanAddr() {
			return terrors.New("UNSUP-0002", map[string]any{"Node": "member `" + name + "` of a " + values.TypeName(receiver) + " value"})
		}
		f, err := target.FieldByIndexErr(index)
		if err != nil {
			return terrors.New("OPERAND-0002", map[string]any{"Name": name})
		}
		v, ok := convertValue(value, f.Type())
		if !ok {
			return terrors.New("TYPE-0005", map[string]any{
				"Name":     name,
				"Got":      values.TypeName(value),
				"Expected": f.Type().String(),
			})
		}
		f.Set(v)
		return nil
	case reflect.Map:
		key, ok := mapKeyValue(target.Type(), name)
		if !ok {
			break
		}
		if target.IsNil() {
			return terrors.New("OPERAND-0002", map[string]any{"Name": name})
		}
		v, ok := convertValue(value, target.Type().Elem())
		if !ok {
			return terrors.New("TYPE-0005", map[string]any{
				"Name":     name,
				"Got":      values.TypeName(value),
				"Expected": target.Type().Elem().String(),
			})
		}
		target.SetMapIndex(key, v)
		return nil
	}

	return terrors.New("UNSUP-0002", map[string]any{"Node": "member `" + name + "` of " + values.TypeName(receiver)})
}

func (m *Map) invoke(receiver any, name string, args []any) (any, error) {
	if receiver == nil {
		return nil, terrors.New("CALL-0003", map[string]any{"Name": name})
	}

	switch r := receiver.(type) {
	case *values.Map:
		if r == nil {
			return nil, terrors.New("CALL-0003", map[string]any{"Name": name})
		}
		fnValue, ok := r.Get(name)
		if !ok {
			return nil, terrors.NewUndefinedMethod(name, "map", r.StringKeys())
		}
		return m.callValue(name, fnValue, args)
	case map[string]any:
		fnValue, ok := r[name]
		if !ok {
			return nil, terrors.NewUndefinedMethod(name, "map", sortedKeys(r))
		}
		return m.callValue(name, fnValue, args)
	}

	rv := reflect.ValueOf(receiver)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil, terrors.New("CALL-0003", map[string]any{"Name": name})
	}
	if method, ok := findMethod(rv, name); ok {
		return callFunc(name, method, args)
	}

	var available []string
	if target := indirect(rv); target.Kind() == reflect.Struct {
		available = m.structInfo(target.Type()).names(rv)
	} else {
		available = methodNames(rv)
	}
	return nil, terrors.NewUndefinedMethod(name, values.TypeName(receiver), available)
}

func (m *Map) callValue(name string, fnValue any, args []any) (any, error) {
	fn, ok := m.Callable(fnValue)
	if !ok {
		return nil, terrors.New("CALL-0001", map[string]any{"Value": "`" + name + "`"})
	}
	return fn(args)
}
