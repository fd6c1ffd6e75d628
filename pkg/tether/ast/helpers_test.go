package ast

import (
	"github.com/sambeau/tether/pkg/tether/values"
)

// mapGetter and mapSetter stand in for the resolution layer: they read and
// write string keys on *values.Map receivers.
func mapGetter(name string) Getter {
	return func(receiver any) (any, error) {
		m, _ := receiver.(*values.Map)
		v, _ := m.Get(name)
		return v, nil
	}
}

func mapSetter(name string) Setter {
	return func(receiver, value any) (any, error) {
		receiver.(*values.Map).Set(name, value)
		return value, nil
	}
}

func member(name string) *AccessMember {
	return NewAccessMember(NewImplicitReceiver(), name, mapGetter(name), mapSetter(name))
}

func lit(v any) *LiteralPrimitive { return NewLiteralPrimitive(v) }

// recorder returns a node that appends tag to log when evaluated and yields value.
func recorder(log *[]string, tag string, value any) AST {
	fn := func(receiver any, args []any) (any, error) {
		*log = append(*log, tag)
		return value, nil
	}
	return NewMethodCall(NewImplicitReceiver(), tag, fn, nil)
}

// box is a generic indexable value.
type box struct {
	slots map[string]any
}

func (b *box) GetIndex(key any) (any, error) {
	return b.slots[values.ToString(key)], nil
}

func (b *box) SetIndex(key, value any) error {
	b.slots[values.ToString(key)] = value
	return nil
}
