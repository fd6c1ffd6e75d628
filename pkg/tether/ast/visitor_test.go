package ast

import (
	"fmt"
	"strings"
	"testing"
)

// countingVisitor records which method was called.
type countingVisitor struct {
	calls []string
}

func (c *countingVisitor) hit(name string, args any) any {
	c.calls = append(c.calls, name)
	return args
}

func (c *countingVisitor) VisitImplicitReceiver(n *ImplicitReceiver, args any) any {
	return c.hit("ImplicitReceiver", args)
}
func (c *countingVisitor) VisitChain(n *Chain, args any) any { return c.hit("Chain", args) }
func (c *countingVisitor) VisitConditional(n *Conditional, args any) any {
	return c.hit("Conditional", args)
}
func (c *countingVisitor) VisitAccessMember(n *AccessMember, args any) any {
	return c.hit("AccessMember", args)
}
func (c *countingVisitor) VisitKeyedAccess(n *KeyedAccess, args any) any {
	return c.hit("KeyedAccess", args)
}
func (c *countingVisitor) VisitFormatter(n *Formatter, args any) any {
	return c.hit("Formatter", args)
}
func (c *countingVisitor) VisitLiteralPrimitive(n *LiteralPrimitive, args any) any {
	return c.hit("LiteralPrimitive", args)
}
func (c *countingVisitor) VisitLiteralArray(n *LiteralArray, args any) any {
	return c.hit("LiteralArray", args)
}
func (c *countingVisitor) VisitLiteralMap(n *LiteralMap, args any) any {
	return c.hit("LiteralMap", args)
}
func (c *countingVisitor) VisitBinary(n *Binary, args any) any { return c.hit("Binary", args) }
func (c *countingVisitor) VisitPrefixNot(n *PrefixNot, args any) any {
	return c.hit("PrefixNot", args)
}
func (c *countingVisitor) VisitAssignment(n *Assignment, args any) any {
	return c.hit("Assignment", args)
}
func (c *countingVisitor) VisitMethodCall(n *MethodCall, args any) any {
	return c.hit("MethodCall", args)
}
func (c *countingVisitor) VisitFunctionCall(n *FunctionCall, args any) any {
	return c.hit("FunctionCall", args)
}

func allKinds() []AST {
	return []AST{
		NewImplicitReceiver(),
		NewChain([]AST{lit(1), lit(2)}),
		NewConditional(lit(true), lit(1), lit(2)),
		member("a"),
		NewKeyedAccess(member("a"), lit(0)),
		NewFormatter(member("a"), "upper", nil),
		lit("s"),
		NewLiteralArray([]AST{lit(1)}),
		NewLiteralMap([]any{"k"}, []AST{lit(1)}),
		NewBinary("+", lit(1), lit(2)),
		NewPrefixNot(lit(false)),
		NewAssignment(member("a"), lit(1)),
		NewMethodCall(member("a"), "m", nil, []AST{lit(1)}),
		NewFunctionCall(member("f"), nil, []AST{lit(1)}),
	}
}

func TestVisitCallsExactlyOneMethod(t *testing.T) {
	for _, n := range allKinds() {
		v := &countingVisitor{}
		got := n.Visit(v, "token")
		if len(v.calls) != 1 {
			t.Errorf("%s: %d visitor calls %v, want 1", KindOf(n), len(v.calls), v.calls)
			continue
		}
		if v.calls[0] != KindOf(n) {
			t.Errorf("%s: called Visit%s", KindOf(n), v.calls[0])
		}
		if got != "token" {
			t.Errorf("%s: Visit returned %v, want the visitor's result", KindOf(n), got)
		}
	}
}

func TestBaseVisitorReturnsNil(t *testing.T) {
	for _, n := range allKinds() {
		if got := n.Visit(BaseVisitor{}, 1); got != nil {
			t.Errorf("%s: BaseVisitor returned %v", KindOf(n), got)
		}
	}
}

func TestChildren(t *testing.T) {
	tests := []struct {
		node AST
		want int
	}{
		{NewImplicitReceiver(), 0},
		{lit(1), 0},
		{NewChain([]AST{lit(1), lit(2), lit(3)}), 3},
		{NewConditional(lit(true), lit(1), lit(2)), 3},
		{member("a"), 1},
		{NewKeyedAccess(member("a"), lit(0)), 2},
		{NewFormatter(member("a"), "f", []AST{lit(1)}), 2},
		{NewMethodCall(member("a"), "m", nil, []AST{lit(1), lit(2)}), 3},
		{NewFunctionCall(member("f"), nil, nil), 1},
	}
	for _, tt := range tests {
		if got := len(Children(tt.node)); got != tt.want {
			t.Errorf("%s: %d children, want %d", KindOf(tt.node), got, tt.want)
		}
	}
}

func TestWalkPreOrder(t *testing.T) {
	// a + !b
	tree := NewBinary("+", member("a"), NewPrefixNot(member("b")))
	var kinds []string
	Walk(tree, func(n AST) bool {
		kinds = append(kinds, KindOf(n))
		return true
	})
	want := "Binary AccessMember ImplicitReceiver PrefixNot AccessMember ImplicitReceiver"
	if got := strings.Join(kinds, " "); got != want {
		t.Errorf("Walk order = %s\nwant %s", got, want)
	}
}

func TestWalkSkipsChildren(t *testing.T) {
	tree := NewBinary("+", member("a"), member("b"))
	var count int
	Walk(tree, func(n AST) bool {
		count++
		_, isMember := n.(*AccessMember)
		return !isMember
	})
	if count != 3 {
		t.Errorf("visited %d nodes, want 3", count)
	}
}

// literalCollector gathers literal values, skipping negated subtrees.
type literalCollector struct {
	RecursiveVisitor
	values []any
}

func (c *literalCollector) VisitLiteralPrimitive(n *LiteralPrimitive, args any) any {
	c.values = append(c.values, n.Value)
	return nil
}

func (c *literalCollector) VisitPrefixNot(n *PrefixNot, args any) any { return nil }

func TestRecursiveVisitorOverrides(t *testing.T) {
	// [1, !2, 3 ? f(4) : {k: 5}]
	tree := NewLiteralArray([]AST{
		lit(1),
		NewPrefixNot(lit(2)),
		NewConditional(lit(3),
			NewFunctionCall(member("f"), nil, []AST{lit(4)}),
			NewLiteralMap([]any{"k"}, []AST{lit(5)})),
	})
	c := &literalCollector{}
	c.Self = c
	c.Visit(tree, nil)
	if got := fmt.Sprint(c.values); got != "[1 3 4 5]" {
		t.Errorf("collected %s, want [1 3 4 5]", got)
	}
}

func TestRecursiveVisitorHook(t *testing.T) {
	// user.greet("hi") | upper
	tree := NewFormatter(NewMethodCall(member("user"), "greet", nil, []AST{lit("hi")}), "upper", nil)
	var seen []string
	r := &RecursiveVisitor{Hook: func(n AST, args any) bool {
		seen = append(seen, fmt.Sprintf("%s:%v", KindOf(n), args))
		_, isMember := n.(*AccessMember)
		return !isMember
	}}
	r.Visit(tree, "x")
	want := "Formatter:x MethodCall:x AccessMember:x LiteralPrimitive:x"
	if got := strings.Join(seen, " "); got != want {
		t.Errorf("hook order = %s\nwant %s", got, want)
	}
}

func TestRecursiveVisitorWithoutHookVisitsAll(t *testing.T) {
	for _, n := range allKinds() {
		r := &RecursiveVisitor{}
		if got := n.Visit(r, nil); got != nil {
			t.Errorf("%s: Visit returned %v, want nil", KindOf(n), got)
		}
	}
}
