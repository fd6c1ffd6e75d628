// Package format prints expression trees back to source text.
//
// Output uses the fewest parentheses that keep the tree's structure when
// read back with the usual binding precedence: chains bind loosest, then
// pipes, assignment, the conditional operator, the binary operators from
// `||` up to `*`, prefix `!`, and finally member access and calls.
package format

import (
	"strings"

	"github.com/sambeau/tether/pkg/tether/ast"
)

// Precedence levels, loosest first.
const (
	precChain = iota + 1
	precPipe
	precAssign
	precConditional
	precOr
	precAnd
	precXor
	precBitAnd
	precEquality
	precRelational
	precAdditive
	precMultiplicative
	precPrefix
	precPostfix
)

var binaryPrecedence = map[string]int{
	"||": precOr,
	"&&": precAnd,
	"^":  precXor,
	"&":  precBitAnd,
	"==": precEquality, "!=": precEquality,
	"<": precRelational, ">": precRelational, "<=": precRelational, ">=": precRelational,
	"+": precAdditive, "-": precAdditive,
	"*": precMultiplicative, "/": precMultiplicative, "%": precMultiplicative,
}

// Node renders n as source text.
func Node(n ast.AST) string {
	if n == nil {
		return ""
	}
	return render(n, precChain)
}

// Source wraps n with its rendered source, for trees that were built
// without any text.
func Source(n ast.AST, location string) *ast.ASTWithSource {
	return ast.NewASTWithSource(n, Node(n), location)
}

// render renders n, adding parentheses if it binds looser than minPrec.
func render(n ast.AST, minPrec int) string {
	s, _ := n.Visit(printer{}, minPrec).(string)
	return s
}

func wrap(s string, prec, minPrec int) string {
	if prec < minPrec {
		return "(" + s + ")"
	}
	return s
}

func list(nodes []ast.AST, minPrec int) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = render(n, minPrec)
	}
	return strings.Join(parts, ", ")
}

type printer struct{}

func (printer) VisitImplicitReceiver(n *ast.ImplicitReceiver, args any) any { return "" }

func (printer) VisitChain(n *ast.Chain, args any) any {
	parts := make([]string, len(n.Expressions))
	for i, e := range n.Expressions {
		parts[i] = render(e, precPipe)
	}
	return wrap(strings.Join(parts, "; "), precChain, args.(int))
}

func (printer) VisitConditional(n *ast.Conditional, args any) any {
	s := render(n.Condition, precOr) + " ? " +
		render(n.TrueExp, precConditional) + " : " +
		render(n.FalseExp, precConditional)
	return wrap(s, precConditional, args.(int))
}

func (printer) VisitAccessMember(n *ast.AccessMember, args any) any {
	return qualify(n.Receiver, n.Name)
}

func (printer) VisitKeyedAccess(n *ast.KeyedAccess, args any) any {
	return render(n.Obj, precPostfix) + "[" + render(n.Key, precPipe) + "]"
}

func (printer) VisitFormatter(n *ast.Formatter, args any) any {
	var b strings.Builder
	b.WriteString(render(n.Exp, precPipe))
	b.WriteString(" | ")
	b.WriteString(n.Name)
	for _, a := range n.Args {
		b.WriteString(":")
		b.WriteString(render(a, precConditional))
	}
	return wrap(b.String(), precPipe, args.(int))
}

func (printer) VisitLiteralPrimitive(n *ast.LiteralPrimitive, args any) any {
	return ast.LiteralString(n.Value)
}

func (printer) VisitLiteralArray(n *ast.LiteralArray, args any) any {
	return "[" + list(n.Expressions, precPipe) + "]"
}

func (printer) VisitLiteralMap(n *ast.LiteralMap, args any) any {
	parts := make([]string, len(n.Keys))
	for i, k := range n.Keys {
		parts[i] = mapKey(k) + ": " + render(n.Values[i], precPipe)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (printer) VisitBinary(n *ast.Binary, args any) any {
	prec := binaryPrecedence[n.Operation]
	// Left-associative: an equal-precedence right operand needs parentheses.
	s := render(n.Left, prec) + " " + n.Operation + " " + render(n.Right, prec+1)
	return wrap(s, prec, args.(int))
}

func (printer) VisitPrefixNot(n *ast.PrefixNot, args any) any {
	return wrap("!"+render(n.Expression, precPrefix), precPrefix, args.(int))
}

func (printer) VisitAssignment(n *ast.Assignment, args any) any {
	s := render(n.Target, precPostfix) + " = " + render(n.Value, precAssign)
	return wrap(s, precAssign, args.(int))
}

func (printer) VisitMethodCall(n *ast.MethodCall, args any) any {
	return qualify(n.Receiver, n.Name) + "(" + list(n.Args, precPipe) + ")"
}

func (printer) VisitFunctionCall(n *ast.FunctionCall, args any) any {
	return render(n.Target, precPostfix) + "(" + list(n.Args, precPipe) + ")"
}

func qualify(receiver ast.AST, name string) string {
	if _, ok := receiver.(*ast.ImplicitReceiver); ok {
		return name
	}
	return render(receiver, precPostfix) + "." + name
}

// mapKey prints identifier-like string keys bare and everything else as a
// literal.
func mapKey(k any) string {
	if s, ok := k.(string); ok && isIdentifier(s) {
		return s
	}
	return ast.LiteralString(k)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
