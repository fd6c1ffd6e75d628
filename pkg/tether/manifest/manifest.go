// Package manifest loads a context and its template bindings from a YAML or
// TOML file.
//
// A manifest has two top-level sections:
//
//	context:
//	  user: {name: Ada}
//	bindings:
//	  - key: greeting
//	    expression: {binary: "+", left: "Hello, ", right: {member: name, receiver: {member: user}}}
//	  - key: item
//	    name: $implicit
//
// Expressions use the tree package's node shapes. TOML manifests are
// converted into the same node form before decoding.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sambeau/tether/pkg/tether/ast"
	terrors "github.com/sambeau/tether/pkg/tether/errors"
	"github.com/sambeau/tether/pkg/tether/format"
	"github.com/sambeau/tether/pkg/tether/tree"
	"github.com/sambeau/tether/pkg/tether/values"
)

// Manifest is a decoded manifest file.
type Manifest struct {
	Path     string
	Context  *values.Map
	Bindings []*ast.TemplateBinding
}

// Load reads and decodes the manifest at path. The format is chosen by
// extension: .toml for TOML, anything else is read as YAML.
func Load(path string, closures ast.ClosureMap) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m *Manifest
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		m, err = ParseTOML(data, path, closures)
	} else {
		m, err = ParseYAML(data, path, closures)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest %s: %w", path, err)
	}
	return m, nil
}

// ParseYAML decodes a YAML manifest. Name is used in binding locations.
func ParseYAML(data []byte, name string, closures ast.ClosureMap) (*Manifest, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return decode(&doc, name, closures)
}

// Binding returns the binding registered under key.
func (m *Manifest) Binding(key string) (*ast.TemplateBinding, bool) {
	for _, b := range m.Bindings {
		if b.Key == key {
			return b, true
		}
	}
	return nil, false
}

// Keys lists binding keys in manifest order.
func (m *Manifest) Keys() []string {
	keys := make([]string, len(m.Bindings))
	for i, b := range m.Bindings {
		keys[i] = b.Key
	}
	return keys
}

func decode(doc *yaml.Node, name string, closures ast.ClosureMap) (*Manifest, error) {
	m := &Manifest{Path: name, Context: values.NewMap(0)}
	root := doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return m, nil
		}
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, manifestError(root.Line, "expected a mapping at the top level")
	}

	decoder := tree.NewDecoder(closures)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		switch key.Value {
		case "context":
			if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
				continue
			}
			ctx, err := toValue(value)
			if err != nil {
				return nil, err
			}
			cm, ok := ctx.(*values.Map)
			if !ok {
				return nil, manifestError(value.Line, "context must be a mapping")
			}
			m.Context = cm
		case "bindings":
			bindings, err := decodeBindings(value, name, decoder)
			if err != nil {
				return nil, err
			}
			m.Bindings = bindings
		default:
			return nil, manifestError(key.Line, "unknown section `"+key.Value+"`")
		}
	}
	return m, nil
}

func decodeBindings(node *yaml.Node, name string, decoder *tree.Decoder) ([]*ast.TemplateBinding, error) {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, manifestError(node.Line, "bindings must be a list")
	}
	seen := make(map[string]bool, len(node.Content))
	out := make([]*ast.TemplateBinding, 0, len(node.Content))
	for _, item := range node.Content {
		if item.Kind != yaml.MappingNode {
			return nil, manifestError(item.Line, "binding must be a mapping")
		}
		var key, ref string
		var expr *yaml.Node
		for i := 0; i+1 < len(item.Content); i += 2 {
			field, value := item.Content[i], item.Content[i+1]
			switch field.Value {
			case "key":
				key = value.Value
			case "name":
				ref = value.Value
			case "expression":
				expr = value
			default:
				return nil, manifestError(field.Line, "unknown binding field `"+field.Value+"`")
			}
		}
		if key == "" {
			return nil, manifestError(item.Line, "binding is missing `key`")
		}
		if seen[key] {
			return nil, manifestError(item.Line, "duplicate binding `"+key+"`")
		}
		seen[key] = true
		if (ref == "") == (expr == nil) {
			return nil, terrors.New("DECODE-0003", map[string]any{"Key": key})
		}

		if expr == nil {
			out = append(out, ast.NewNameBinding(key, ref))
			continue
		}
		n, err := decoder.Decode(expr)
		if err != nil {
			if te, ok := err.(*terrors.TetherError); ok {
				return nil, te.WithBinding(key)
			}
			return nil, err
		}
		location := fmt.Sprintf("%s:%d", name, expr.Line)
		out = append(out, ast.NewExpressionBinding(key, format.Source(n, location)))
	}
	return out, nil
}

// toValue converts a YAML node into a context value: mappings become
// *values.Map in document order, sequences []any.
func toValue(node *yaml.Node) (any, error) {
	return convertValue(node, map[*yaml.Node]bool{})
}

// convertValue does the work of toValue. expanding holds the anchors whose
// aliases are being followed, so an anchor that contains itself is an error.
func convertValue(node *yaml.Node, expanding map[*yaml.Node]bool) (any, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return convertValue(node.Content[0], expanding)
	case yaml.AliasNode:
		if expanding[node.Alias] {
			return nil, manifestError(node.Line, "recursive alias `*"+node.Value+"`")
		}
		expanding[node.Alias] = true
		defer delete(expanding, node.Alias)
		return convertValue(node.Alias, expanding)
	case yaml.MappingNode:
		m := values.NewMap(len(node.Content) / 2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var key any
			if err := node.Content[i].Decode(&key); err != nil {
				return nil, manifestError(node.Content[i].Line, err.Error())
			}
			if !values.Hashable(key) {
				return nil, manifestError(node.Content[i].Line, "mapping key must be a scalar")
			}
			v, err := convertValue(node.Content[i+1], expanding)
			if err != nil {
				return nil, err
			}
			m.Set(key, v)
		}
		return m, nil
	case yaml.SequenceNode:
		list := make([]any, 0, len(node.Content))
		for _, item := range node.Content {
			v, err := convertValue(item, expanding)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	}
	var v any
	if err := node.Decode(&v); err != nil {
		return nil, manifestError(node.Line, err.Error())
	}
	return v, nil
}

func manifestError(line int, reason string) *terrors.TetherError {
	if line > 0 {
		reason = fmt.Sprintf("%s (line %d)", reason, line)
	}
	return terrors.New("DECODE-0002", map[string]any{"Kind": "manifest", "Reason": reason})
}
