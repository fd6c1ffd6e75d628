package ast

// Visitor has one method per node kind. A node's Visit calls exactly one of
// them and does not recurse; visitors that want to descend call Visit on the
// children themselves.
type Visitor interface {
	VisitImplicitReceiver(n *ImplicitReceiver, args any) any
	VisitChain(n *Chain, args any) any
	VisitConditional(n *Conditional, args any) any
	VisitAccessMember(n *AccessMember, args any) any
	VisitKeyedAccess(n *KeyedAccess, args any) any
	VisitFormatter(n *Formatter, args any) any
	VisitLiteralPrimitive(n *LiteralPrimitive, args any) any
	VisitLiteralArray(n *LiteralArray, args any) any
	VisitLiteralMap(n *LiteralMap, args any) any
	VisitBinary(n *Binary, args any) any
	VisitPrefixNot(n *PrefixNot, args any) any
	VisitAssignment(n *Assignment, args any) any
	VisitMethodCall(n *MethodCall, args any) any
	VisitFunctionCall(n *FunctionCall, args any) any
}

// BaseVisitor implements every Visitor method as a no-op returning nil.
// Embed it to override only the methods you need.
type BaseVisitor struct{}

func (BaseVisitor) VisitImplicitReceiver(n *ImplicitReceiver, args any) any { return nil }
func (BaseVisitor) VisitChain(n *Chain, args any) any                       { return nil }
func (BaseVisitor) VisitConditional(n *Conditional, args any) any           { return nil }
func (BaseVisitor) VisitAccessMember(n *AccessMember, args any) any         { return nil }
func (BaseVisitor) VisitKeyedAccess(n *KeyedAccess, args any) any           { return nil }
func (BaseVisitor) VisitFormatter(n *Formatter, args any) any               { return nil }
func (BaseVisitor) VisitLiteralPrimitive(n *LiteralPrimitive, args any) any { return nil }
func (BaseVisitor) VisitLiteralArray(n *LiteralArray, args any) any         { return nil }
func (BaseVisitor) VisitLiteralMap(n *LiteralMap, args any) any             { return nil }
func (BaseVisitor) VisitBinary(n *Binary, args any) any                     { return nil }
func (BaseVisitor) VisitPrefixNot(n *PrefixNot, args any) any               { return nil }
func (BaseVisitor) VisitAssignment(n *Assignment, args any) any             { return nil }
func (BaseVisitor) VisitMethodCall(n *MethodCall, args any) any             { return nil }
func (BaseVisitor) VisitFunctionCall(n *FunctionCall, args any) any         { return nil }

// childVisitor returns the direct children of a node in source order.
type childVisitor struct{}

func (childVisitor) VisitImplicitReceiver(n *ImplicitReceiver, args any) any { return []AST(nil) }
func (childVisitor) VisitChain(n *Chain, args any) any                       { return n.Expressions }
func (childVisitor) VisitConditional(n *Conditional, args any) any {
	return []AST{n.Condition, n.TrueExp, n.FalseExp}
}
func (childVisitor) VisitAccessMember(n *AccessMember, args any) any { return []AST{n.Receiver} }
func (childVisitor) VisitKeyedAccess(n *KeyedAccess, args any) any   { return []AST{n.Obj, n.Key} }
func (childVisitor) VisitFormatter(n *Formatter, args any) any       { return n.AllArgs }
func (childVisitor) VisitLiteralPrimitive(n *LiteralPrimitive, args any) any {
	return []AST(nil)
}
func (childVisitor) VisitLiteralArray(n *LiteralArray, args any) any { return n.Expressions }
func (childVisitor) VisitLiteralMap(n *LiteralMap, args any) any     { return n.Values }
func (childVisitor) VisitBinary(n *Binary, args any) any             { return []AST{n.Left, n.Right} }
func (childVisitor) VisitPrefixNot(n *PrefixNot, args any) any       { return []AST{n.Expression} }
func (childVisitor) VisitAssignment(n *Assignment, args any) any {
	return []AST{n.Target, n.Value}
}
func (childVisitor) VisitMethodCall(n *MethodCall, args any) any {
	return append([]AST{n.Receiver}, n.Args...)
}
func (childVisitor) VisitFunctionCall(n *FunctionCall, args any) any {
	return append([]AST{n.Target}, n.Args...)
}

// Children returns the direct children of n in source order. The returned
// slice must not be modified.
func Children(n AST) []AST {
	children, _ := n.Visit(childVisitor{}, nil).([]AST)
	return children
}

// Walk traverses the tree rooted at n in depth-first pre-order. If fn
// returns false the children of that node are skipped.
func Walk(n AST, fn func(AST) bool) {
	r := &RecursiveVisitor{Hook: func(n AST, _ any) bool { return fn(n) }}
	r.Visit(n, nil)
}

// RecursiveVisitor visits every node of a tree, children in source order.
// Hook, if set, runs on each node before its children; returning false
// skips them.
//
// A type that embeds RecursiveVisitor to override some methods must set
// Self to itself, so that descent dispatches through the overrides:
//
//	v := &myVisitor{}
//	v.Self = v
//	v.Visit(tree, nil)
type RecursiveVisitor struct {
	Hook func(n AST, args any) bool
	Self Visitor
}

// Visit dispatches n to Self, or to r when Self is nil.
func (r *RecursiveVisitor) Visit(n AST, args any) {
	if n == nil {
		return
	}
	var v Visitor = r
	if r.Self != nil {
		v = r.Self
	}
	n.Visit(v, args)
}

// VisitAll visits each node in order.
func (r *RecursiveVisitor) VisitAll(nodes []AST, args any) {
	for _, n := range nodes {
		r.Visit(n, args)
	}
}

func (r *RecursiveVisitor) descend(n AST, args any) any {
	if r.Hook == nil || r.Hook(n, args) {
		r.VisitAll(Children(n), args)
	}
	return nil
}

func (r *RecursiveVisitor) VisitImplicitReceiver(n *ImplicitReceiver, args any) any {
	return r.descend(n, args)
}
func (r *RecursiveVisitor) VisitChain(n *Chain, args any) any { return r.descend(n, args) }
func (r *RecursiveVisitor) VisitConditional(n *Conditional, args any) any {
	return r.descend(n, args)
}
func (r *RecursiveVisitor) VisitAccessMember(n *AccessMember, args any) any {
	return r.descend(n, args)
}
func (r *RecursiveVisitor) VisitKeyedAccess(n *KeyedAccess, args any) any {
	return r.descend(n, args)
}
func (r *RecursiveVisitor) VisitFormatter(n *Formatter, args any) any { return r.descend(n, args) }
func (r *RecursiveVisitor) VisitLiteralPrimitive(n *LiteralPrimitive, args any) any {
	return r.descend(n, args)
}
func (r *RecursiveVisitor) VisitLiteralArray(n *LiteralArray, args any) any {
	return r.descend(n, args)
}
func (r *RecursiveVisitor) VisitLiteralMap(n *LiteralMap, args any) any {
	return r.descend(n, args)
}
func (r *RecursiveVisitor) VisitBinary(n *Binary, args any) any       { return r.descend(n, args) }
func (r *RecursiveVisitor) VisitPrefixNot(n *PrefixNot, args any) any { return r.descend(n, args) }
func (r *RecursiveVisitor) VisitAssignment(n *Assignment, args any) any {
	return r.descend(n, args)
}
func (r *RecursiveVisitor) VisitMethodCall(n *MethodCall, args any) any {
	return r.descend(n, args)
}
func (r *RecursiveVisitor) VisitFunctionCall(n *FunctionCall, args any) any {
	return r.descend(n, args)
}

// kindVisitor names the node kind.
type kindVisitor struct{}

func (kindVisitor) VisitImplicitReceiver(n *ImplicitReceiver, args any) any {
	return "ImplicitReceiver"
}
func (kindVisitor) VisitChain(n *Chain, args any) any               { return "Chain" }
func (kindVisitor) VisitConditional(n *Conditional, args any) any   { return "Conditional" }
func (kindVisitor) VisitAccessMember(n *AccessMember, args any) any { return "AccessMember" }
func (kindVisitor) VisitKeyedAccess(n *KeyedAccess, args any) any   { return "KeyedAccess" }
func (kindVisitor) VisitFormatter(n *Formatter, args any) any       { return "Formatter" }
func (kindVisitor) VisitLiteralPrimitive(n *LiteralPrimitive, args any) any {
	return "LiteralPrimitive"
}
func (kindVisitor) VisitLiteralArray(n *LiteralArray, args any) any { return "LiteralArray" }
func (kindVisitor) VisitLiteralMap(n *LiteralMap, args any) any     { return "LiteralMap" }
func (kindVisitor) VisitBinary(n *Binary, args any) any             { return "Binary" }
func (kindVisitor) VisitPrefixNot(n *PrefixNot, args any) any       { return "PrefixNot" }
func (kindVisitor) VisitAssignment(n *Assignment, args any) any     { return "Assignment" }
func (kindVisitor) VisitMethodCall(n *MethodCall, args any) any     { return "MethodCall" }
func (kindVisitor) VisitFunctionCall(n *FunctionCall, args any) any { return "FunctionCall" }

// KindOf returns the node kind name, e.g. "Binary".
func KindOf(n AST) string {
	kind, _ := n.Visit(kindVisitor{}, nil).(string)
	return kind
}
