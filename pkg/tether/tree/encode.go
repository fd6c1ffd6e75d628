package tree

import (
	"gopkg.in/yaml.v3"

	"github.com/sambeau/tether/pkg/tether/ast"
	terrors "github.com/sambeau/tether/pkg/tether/errors"
)

// Encode describes n as a YAML node in the shape Decode reads. Closures are
// not serialised; member and method names are, and are re-bound on decode.
func Encode(n ast.AST) (*yaml.Node, error) {
	e := &encoder{}
	out := e.encode(n)
	if e.err != nil {
		return nil, e.err
	}
	return out, nil
}

// Marshal encodes n as YAML text.
func Marshal(n ast.AST) ([]byte, error) {
	node, err := Encode(n)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(node)
}

// encoder is a visitor whose methods return *yaml.Node.
type encoder struct {
	err error
}

func (e *encoder) encode(n ast.AST) *yaml.Node {
	out, _ := n.Visit(e, nil).(*yaml.Node)
	return out
}

func (e *encoder) encodeAll(nodes []ast.AST) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, n := range nodes {
		seq.Content = append(seq.Content, e.encode(n))
	}
	return seq
}

func (e *encoder) scalar(v any) *yaml.Node {
	node := &yaml.Node{}
	if err := node.Encode(v); err != nil && e.err == nil {
		e.err = terrors.New("DECODE-0002", map[string]any{"Kind": "literal", "Reason": err.Error()})
	}
	return node
}

// mapping builds a mapping node from alternating keys and values.
func mapping(pairs ...any) *yaml.Node {
	m := &yaml.Node{Kind: yaml.MappingNode}
	for i := 0; i+1 < len(pairs); i += 2 {
		key := &yaml.Node{Kind: yaml.ScalarNode, Value: pairs[i].(string)}
		m.Content = append(m.Content, key, pairs[i+1].(*yaml.Node))
	}
	return m
}

func ident(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: s}
}

func quoted(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: s, Style: yaml.DoubleQuotedStyle}
}

func isImplicit(n ast.AST) bool {
	_, ok := n.(*ast.ImplicitReceiver)
	return ok
}

func (e *encoder) VisitImplicitReceiver(n *ast.ImplicitReceiver, args any) any {
	return mapping("implicit", e.scalar(true))
}

func (e *encoder) VisitChain(n *ast.Chain, args any) any {
	return mapping("chain", e.encodeAll(n.Expressions))
}

func (e *encoder) VisitConditional(n *ast.Conditional, args any) any {
	return mapping(
		"conditional", e.encode(n.Condition),
		"then", e.encode(n.TrueExp),
		"else", e.encode(n.FalseExp),
	)
}

func (e *encoder) VisitAccessMember(n *ast.AccessMember, args any) any {
	if isImplicit(n.Receiver) {
		return mapping("member", ident(n.Name))
	}
	return mapping("member", ident(n.Name), "receiver", e.encode(n.Receiver))
}

func (e *encoder) VisitKeyedAccess(n *ast.KeyedAccess, args any) any {
	return mapping("keyed", e.encode(n.Obj), "key", e.encode(n.Key))
}

func (e *encoder) VisitFormatter(n *ast.Formatter, args any) any {
	pairs := []any{"pipe", ident(n.Name), "input", e.encode(n.Exp)}
	if len(n.Args) > 0 {
		pairs = append(pairs, "args", e.encodeAll(n.Args))
	}
	return mapping(pairs...)
}

func (e *encoder) VisitLiteralPrimitive(n *ast.LiteralPrimitive, args any) any {
	return mapping("literal", e.scalar(n.Value))
}

func (e *encoder) VisitLiteralArray(n *ast.LiteralArray, args any) any {
	return mapping("array", e.encodeAll(n.Expressions))
}

func (e *encoder) VisitLiteralMap(n *ast.LiteralMap, args any) any {
	m := &yaml.Node{Kind: yaml.MappingNode}
	for i, k := range n.Keys {
		m.Content = append(m.Content, e.scalar(k), e.encode(n.Values[i]))
	}
	return mapping("map", m)
}

func (e *encoder) VisitBinary(n *ast.Binary, args any) any {
	return mapping("binary", quoted(n.Operation), "left", e.encode(n.Left), "right", e.encode(n.Right))
}

func (e *encoder) VisitPrefixNot(n *ast.PrefixNot, args any) any {
	return mapping("not", e.encode(n.Expression))
}

func (e *encoder) VisitAssignment(n *ast.Assignment, args any) any {
	return mapping("assign", e.encode(n.Target), "value", e.encode(n.Value))
}

func (e *encoder) VisitMethodCall(n *ast.MethodCall, args any) any {
	pairs := []any{"call", ident(n.Name)}
	if !isImplicit(n.Receiver) {
		pairs = append(pairs, "receiver", e.encode(n.Receiver))
	}
	if len(n.Args) > 0 {
		pairs = append(pairs, "args", e.encodeAll(n.Args))
	}
	return mapping(pairs...)
}

func (e *encoder) VisitFunctionCall(n *ast.FunctionCall, args any) any {
	if len(n.Args) == 0 {
		return mapping("apply", e.encode(n.Target))
	}
	return mapping("apply", e.encode(n.Target), "args", e.encodeAll(n.Args))
}
