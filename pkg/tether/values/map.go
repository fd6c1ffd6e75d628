package values

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// Map is an insertion-ordered mapping. It is the mapping kind produced by
// literal maps and decoded contexts. The zero value is not usable; call NewMap.
type Map struct {
	keys  []any
	vals  []any
	index map[any]int
}

// NewMap creates an empty Map with room for n entries.
func NewMap(n int) *Map {
	return &Map{
		keys:  make([]any, 0, n),
		vals:  make([]any, 0, n),
		index: make(map[any]int, n),
	}
}

// MapOf builds a Map from alternating key/value arguments.
// It is intended for tests and fixtures; odd trailing keys map to nil.
func MapOf(pairs ...any) *Map {
	m := NewMap(len(pairs) / 2)
	for i := 0; i < len(pairs); i += 2 {
		var v any
		if i+1 < len(pairs) {
			v = pairs[i+1]
		}
		m.Set(pairs[i], v)
	}
	return m
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Get returns the value stored under key.
func (m *Map) Get(key any) (any, bool) {
	if m == nil || !Hashable(key) {
		return nil, false
	}
	i, ok := m.index[normalizeKey(key)]
	if !ok {
		return nil, false
	}
	return m.vals[i], true
}

// Has reports whether key is present.
func (m *Map) Has(key any) bool {
	_, ok := m.Get(key)
	return ok
}

// Set stores value under key. Existing keys keep their position; new keys
// are appended. Set reports false when the key cannot be used as a map key.
func (m *Map) Set(key, value any) bool {
	if !Hashable(key) {
		return false
	}
	k := normalizeKey(key)
	if i, ok := m.index[k]; ok {
		m.vals[i] = value
		return true
	}
	m.index[k] = len(m.keys)
	m.keys = append(m.keys, k)
	m.vals = append(m.vals, value)
	return true
}

// Delete removes key, preserving the order of the remaining entries.
func (m *Map) Delete(key any) bool {
	if m == nil || !Hashable(key) {
		return false
	}
	k := normalizeKey(key)
	i, ok := m.index[k]
	if !ok {
		return false
	}
	m.keys = append(m.keys[:i], m.keys[i+1:]...)
	m.vals = append(m.vals[:i], m.vals[i+1:]...)
	delete(m.index, k)
	for j := i; j < len(m.keys); j++ {
		m.index[m.keys[j]] = j
	}
	return true
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []any {
	if m == nil {
		return nil
	}
	out := make([]any, len(m.keys))
	copy(out, m.keys)
	return out
}

// StringKeys returns the keys that are strings, in insertion order.
func (m *Map) StringKeys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m.keys))
	for _, k := range m.keys {
		if s, ok := k.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Range calls fn for each entry in insertion order until fn returns false.
func (m *Map) Range(fn func(key, value any) bool) {
	if m == nil {
		return
	}
	for i, k := range m.keys {
		if !fn(k, m.vals[i]) {
			return
		}
	}
}

// MarshalJSON writes the entries as a JSON object in insertion order.
func (m *Map) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(ToString(k))
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(m.vals[i])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// List is a growable sequence with reference semantics.
type List struct {
	Elements []any
}

// NewList wraps elements in a List.
func NewList(elements ...any) *List {
	return &List{Elements: elements}
}

// Len returns the number of elements.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Elements)
}

// MarshalJSON writes the elements as a JSON array.
func (l *List) MarshalJSON() ([]byte, error) {
	if l == nil || l.Elements == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.Elements)
}

// Hashable reports whether v can be used as a Map key.
func Hashable(v any) bool {
	if v == nil {
		return true
	}
	return reflect.TypeOf(v).Comparable()
}

// normalizeKey folds numeric keys so that 1, int64(1) and 1.0 address the
// same entry.
func normalizeKey(k any) any {
	if !IsNumber(k) {
		return k
	}
	if i, ok := ToInt(k); ok {
		return i
	}
	f, _ := ToFloat(k)
	return f
}
