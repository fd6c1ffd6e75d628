// Package tree reads and writes expression trees as YAML.
//
// This is a serialisation of already-built trees, not a parser of
// expression text. Every node is a mapping whose kind is named by one key:
//
//	binary: "=="
//	left: {member: ctxProp}
//	right: {literal: Hello}
//
// A bare scalar is shorthand for a literal. Member and method names are
// bound to closures from an ast.ClosureMap while decoding.
package tree

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sambeau/tether/pkg/tether/ast"
	"github.com/sambeau/tether/pkg/tether/closure"
	terrors "github.com/sambeau/tether/pkg/tether/errors"
)

// kinds maps each kind key to the other keys its node may carry.
var kinds = map[string][]string{
	"implicit":    nil,
	"literal":     nil,
	"member":      {"receiver"},
	"keyed":       {"key"},
	"binary":      {"left", "right"},
	"not":         nil,
	"conditional": {"then", "else"},
	"array":       nil,
	"map":         nil,
	"chain":       nil,
	"assign":      {"value"},
	"call":        {"receiver", "args"},
	"apply":       {"args"},
	"pipe":        {"input", "args"},
}

// Decoder builds trees from YAML nodes. A Decoder is not safe for
// concurrent use.
type Decoder struct {
	closures ast.ClosureMap

	// Anchors whose aliases are being expanded.
	expanding map[*yaml.Node]bool
}

// NewDecoder returns a decoder that binds names through closures. A nil
// closure map uses closure.New().
func NewDecoder(closures ast.ClosureMap) *Decoder {
	if closures == nil {
		closures = closure.New()
	}
	return &Decoder{closures: closures}
}

// Unmarshal decodes a single tree from YAML text.
func Unmarshal(data []byte, closures ast.ClosureMap) (ast.AST, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing tree: %w", err)
	}
	return NewDecoder(closures).Decode(&doc)
}

// Decode builds the tree described by node.
func (d *Decoder) Decode(node *yaml.Node) (ast.AST, error) {
	if node == nil || node.Kind == 0 {
		return nil, decodeError("document", 0, "empty tree")
	}
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, decodeError("document", node.Line, "empty tree")
		}
		return d.Decode(node.Content[0])
	case yaml.AliasNode:
		if d.expanding[node.Alias] {
			return nil, decodeError("alias", node.Line, "recursive alias `*"+node.Value+"`")
		}
		if d.expanding == nil {
			d.expanding = make(map[*yaml.Node]bool)
		}
		d.expanding[node.Alias] = true
		defer delete(d.expanding, node.Alias)
		return d.Decode(node.Alias)
	case yaml.ScalarNode:
		return d.literal(node)
	case yaml.MappingNode:
		return d.mapping(node)
	}
	return nil, decodeError("node", node.Line, "expected a mapping or a scalar")
}

func (d *Decoder) mapping(node *yaml.Node) (ast.AST, error) {
	fields := make(map[string]*yaml.Node, len(node.Content)/2)
	var kind string
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if _, dup := fields[key]; dup {
			return nil, decodeError(key, node.Content[i].Line, "duplicate key")
		}
		fields[key] = node.Content[i+1]
		if _, ok := kinds[key]; ok {
			if kind != "" {
				return nil, decodeError(key, node.Content[i].Line, "node already has kind `"+kind+"`")
			}
			kind = key
		}
	}
	if kind == "" {
		keys := slices.Sorted(maps.Keys(fields))
		name := strings.Join(keys, ", ")
		if len(keys) == 1 {
			err := terrors.New("DECODE-0001", map[string]any{"Kind": name})
			if suggestion := terrors.FindClosestMatch(name, kindNames()); suggestion != "" {
				err.Hints = append(err.Hints, "Did you mean `"+suggestion+"`?")
			}
			return nil, err
		}
		return nil, terrors.New("DECODE-0001", map[string]any{"Kind": name})
	}
	for key := range fields {
		if key != kind && !slices.Contains(kinds[kind], key) {
			return nil, decodeError(kind, fields[key].Line, "unexpected key `"+key+"`")
		}
	}

	value := fields[kind]
	switch kind {
	case "implicit":
		return ast.NewImplicitReceiver(), nil
	case "literal":
		return d.literal(value)
	case "member":
		name, err := scalar(kind, value)
		if err != nil {
			return nil, err
		}
		receiver, err := d.optional(fields["receiver"])
		if err != nil {
			return nil, err
		}
		return ast.NewAccessMember(receiver, name, d.closures.Getter(name), d.closures.Setter(name)), nil
	case "keyed":
		obj, err := d.Decode(value)
		if err != nil {
			return nil, err
		}
		key, err := d.required(kind, "key", fields, node.Line)
		if err != nil {
			return nil, err
		}
		return ast.NewKeyedAccess(obj, key), nil
	case "binary":
		op, err := scalar(kind, value)
		if err != nil {
			return nil, err
		}
		if !ast.IsBinaryOperator(op) {
			return nil, decodeError(kind, value.Line, "unknown operator `"+op+"`")
		}
		left, err := d.required(kind, "left", fields, node.Line)
		if err != nil {
			return nil, err
		}
		right, err := d.required(kind, "right", fields, node.Line)
		if err != nil {
			return nil, err
		}
		return ast.NewBinary(op, left, right), nil
	case "not":
		operand, err := d.Decode(value)
		if err != nil {
			return nil, err
		}
		return ast.NewPrefixNot(operand), nil
	case "conditional":
		cond, err := d.Decode(value)
		if err != nil {
			return nil, err
		}
		then, err := d.required(kind, "then", fields, node.Line)
		if err != nil {
			return nil, err
		}
		otherwise, err := d.required(kind, "else", fields, node.Line)
		if err != nil {
			return nil, err
		}
		return ast.NewConditional(cond, then, otherwise), nil
	case "array":
		elements, err := d.sequence(kind, value)
		if err != nil {
			return nil, err
		}
		return ast.NewLiteralArray(elements), nil
	case "map":
		return d.literalMap(value)
	case "chain":
		exprs, err := d.sequence(kind, value)
		if err != nil {
			return nil, err
		}
		return ast.NewChain(exprs), nil
	case "assign":
		target, err := d.Decode(value)
		if err != nil {
			return nil, err
		}
		if !target.IsAssignable() {
			return nil, decodeError(kind, value.Line, "target is not assignable")
		}
		v, err := d.required(kind, "value", fields, node.Line)
		if err != nil {
			return nil, err
		}
		return ast.NewAssignment(target, v), nil
	case "call":
		name, err := scalar(kind, value)
		if err != nil {
			return nil, err
		}
		receiver, err := d.optional(fields["receiver"])
		if err != nil {
			return nil, err
		}
		args, err := d.sequence(kind, fields["args"])
		if err != nil {
			return nil, err
		}
		return ast.NewMethodCall(receiver, name, d.closures.Invoker(name), args), nil
	case "apply":
		target, err := d.Decode(value)
		if err != nil {
			return nil, err
		}
		args, err := d.sequence(kind, fields["args"])
		if err != nil {
			return nil, err
		}
		return ast.NewFunctionCall(target, d.closures, args), nil
	case "pipe":
		name, err := scalar(kind, value)
		if err != nil {
			return nil, err
		}
		input, err := d.required(kind, "input", fields, node.Line)
		if err != nil {
			return nil, err
		}
		args, err := d.sequence(kind, fields["args"])
		if err != nil {
			return nil, err
		}
		return ast.NewFormatter(input, name, args), nil
	}
	return nil, terrors.New("DECODE-0001", map[string]any{"Kind": kind})
}

func (d *Decoder) literal(node *yaml.Node) (ast.AST, error) {
	if node.Kind != yaml.ScalarNode {
		return nil, decodeError("literal", node.Line, "expected a scalar")
	}
	var v any
	if err := node.Decode(&v); err != nil {
		return nil, decodeError("literal", node.Line, err.Error())
	}
	return ast.NewLiteralPrimitive(v), nil
}

func (d *Decoder) literalMap(node *yaml.Node) (ast.AST, error) {
	if node.Kind != yaml.MappingNode {
		return nil, decodeError("map", node.Line, "expected a mapping")
	}
	n := len(node.Content) / 2
	keys := make([]any, 0, n)
	vals := make([]ast.AST, 0, n)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var key any
		if err := node.Content[i].Decode(&key); err != nil {
			return nil, decodeError("map", node.Content[i].Line, err.Error())
		}
		val, err := d.Decode(node.Content[i+1])
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
		vals = append(vals, val)
	}
	return ast.NewLiteralMap(keys, vals), nil
}

// optional decodes node, or returns the implicit receiver when it is absent.
func (d *Decoder) optional(node *yaml.Node) (ast.AST, error) {
	if node == nil {
		return ast.NewImplicitReceiver(), nil
	}
	return d.Decode(node)
}

func (d *Decoder) required(kind, key string, fields map[string]*yaml.Node, line int) (ast.AST, error) {
	node, ok := fields[key]
	if !ok {
		return nil, decodeError(kind, line, "missing `"+key+"`")
	}
	return d.Decode(node)
}

func (d *Decoder) sequence(kind string, node *yaml.Node) ([]ast.AST, error) {
	if node == nil {
		return nil, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, decodeError(kind, node.Line, "expected a list")
	}
	out := make([]ast.AST, 0, len(node.Content))
	for _, item := range node.Content {
		n, err := d.Decode(item)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func scalar(kind string, node *yaml.Node) (string, error) {
	if node.Kind != yaml.ScalarNode || node.Value == "" {
		return "", decodeError(kind, node.Line, "expected a name")
	}
	return node.Value, nil
}

func decodeError(kind string, line int, reason string) *terrors.TetherError {
	if line > 0 {
		reason = fmt.Sprintf("%s (line %d)", reason, line)
	}
	return terrors.New("DECODE-0002", map[string]any{"Kind": kind, "Reason": reason})
}

func kindNames() []string {
	return slices.Sorted(maps.Keys(kinds))
}
