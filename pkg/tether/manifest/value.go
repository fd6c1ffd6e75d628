package manifest

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sambeau/tether/pkg/tether/values"
)

// ParseValue reads a context value written as YAML flow text, such as
// `42`, `"text"`, `[1, 2]` or `{a: 1}`. Bare words are strings.
func ParseValue(text string) (any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("parsing value: %w", err)
	}
	if doc.Kind == 0 {
		return nil, nil
	}
	return toValue(&doc)
}

// Set stores value at a dotted path in the context, creating intermediate
// mappings as needed.
func (m *Manifest) Set(path string, value any) error {
	if path == "" {
		return fmt.Errorf("empty context path")
	}
	parts := strings.Split(path, ".")
	current := m.Context
	for i, part := range parts[:len(parts)-1] {
		next, ok := current.Get(part)
		if !ok || next == nil {
			child := values.NewMap(1)
			current.Set(part, child)
			current = child
			continue
		}
		child, ok := next.(*values.Map)
		if !ok {
			return fmt.Errorf("cannot set %s: %s is %s, not a mapping",
				path, strings.Join(parts[:i+1], "."), values.TypeName(next))
		}
		current = child
	}
	current.Set(parts[len(parts)-1], value)
	return nil
}
