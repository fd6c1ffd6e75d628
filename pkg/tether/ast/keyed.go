package ast

import (
	terrors "github.com/sambeau/tether/pkg/tether/errors"
	"github.com/sambeau/tether/pkg/tether/values"
)

// getKeyed reads obj[key] using the strategy for obj's runtime kind.
// A sequence index outside the bounds yields nil rather than an error.
func getKeyed(obj, key any) (any, error) {
	switch values.KindOf(obj) {
	case values.KindMapping:
		switch m := obj.(type) {
		case *values.Map:
			v, _ := m.Get(key)
			return v, nil
		case map[string]any:
			return m[mapKey(key)], nil
		case map[any]any:
			if !values.Hashable(key) {
				return nil, nil
			}
			return m[key], nil
		}
	case values.KindSequence:
		elements := sequenceElements(obj)
		i, ok := values.ToInt(key)
		if !ok {
			return nil, terrors.New("TYPE-0002", map[string]any{"Got": values.TypeName(key)})
		}
		if i < 0 || i >= len(elements) {
			return nil, nil
		}
		return elements[i], nil
	}

	if values.IsNull(obj) {
		return nil, nil
	}
	if o, ok := obj.(values.Indexable); ok {
		return o.GetIndex(key)
	}
	return nil, terrors.New("TYPE-0001", map[string]any{"Got": values.TypeName(obj)})
}

// setKeyed writes obj[key] = value using the strategy for obj's runtime kind.
// Mapping entries other than key are preserved; sequence writes must land
// inside the existing bounds.
func setKeyed(obj, key, value any) error {
	switch values.KindOf(obj) {
	case values.KindMapping:
		switch m := obj.(type) {
		case *values.Map:
			if m == nil {
				return terrors.New("OPERAND-0003", map[string]any{"Key": values.Inspect(key)})
			}
			if !m.Set(key, value) {
				return terrors.New("TYPE-0001", map[string]any{"Got": "map with " + values.TypeName(key) + " key"})
			}
			return nil
		case map[string]any:
			if m == nil {
				return terrors.New("OPERAND-0003", map[string]any{"Key": values.Inspect(key)})
			}
			m[mapKey(key)] = value
			return nil
		case map[any]any:
			if m == nil {
				return terrors.New("OPERAND-0003", map[string]any{"Key": values.Inspect(key)})
			}
			if !values.Hashable(key) {
				return terrors.New("TYPE-0001", map[string]any{"Got": "map with " + values.TypeName(key) + " key"})
			}
			m[key] = value
			return nil
		}
	case values.KindSequence:
		elements := sequenceElements(obj)
		i, ok := values.ToInt(key)
		if !ok {
			return terrors.New("TYPE-0002", map[string]any{"Got": values.TypeName(key)})
		}
		if i < 0 || i >= len(elements) {
			return terrors.New("INDEX-0001", map[string]any{"Index": i, "Length": len(elements)})
		}
		elements[i] = value
		return nil
	}

	if values.IsNull(obj) {
		return terrors.New("OPERAND-0003", map[string]any{"Key": values.Inspect(key)})
	}
	if o, ok := obj.(values.Indexable); ok {
		return o.SetIndex(key, value)
	}
	return terrors.New("TYPE-0001", map[string]any{"Got": values.TypeName(obj)})
}

func sequenceElements(obj any) []any {
	switch s := obj.(type) {
	case []any:
		return s
	case *values.List:
		if s == nil {
			return nil
		}
		return s.Elements
	}
	return nil
}

// mapKey converts a key for string-keyed Go maps.
func mapKey(key any) string {
	if s, ok := key.(string); ok {
		return s
	}
	return values.ToString(key)
}
