// Package ast defines the immutable expression tree for template bindings
// together with its evaluation contract.
//
// Every node implements AST: Eval computes a value against a scope (the
// evaluation context), Assign writes a value back through assignable nodes,
// and Visit performs one call into the matching Visitor method. Trees are
// built once by a parser or decoder and never change afterwards; member and
// method names are resolved into closures before construction, so nodes
// never perform name lookup themselves.
package ast

import (
	"bytes"
	"strconv"
	"strings"

	terrors "github.com/sambeau/tether/pkg/tether/errors"
	"github.com/sambeau/tether/pkg/tether/values"
)

// AST is the contract every expression node implements.
type AST interface {
	// Eval computes the node's value against scope.
	Eval(scope any) (any, error)
	// IsAssignable reports whether Assign is supported.
	IsAssignable() bool
	// Assign writes value through the node and returns the assigned value.
	Assign(scope, value any) (any, error)
	// Visit calls exactly one method of v, passing the node and args.
	Visit(v Visitor, args any) any
	String() string
}

// Getter reads a member from an evaluated receiver.
type Getter func(receiver any) (any, error)

// Setter writes a member on an evaluated receiver and returns the value written.
type Setter func(receiver, value any) (any, error)

// Invoker calls a method on an evaluated receiver. The args slice is only
// valid for the duration of the call and must not be retained.
type Invoker func(receiver any, args []any) (any, error)

// Function is a value that function-call expressions can apply. Like an
// Invoker, it must not retain args after returning.
type Function func(args []any) (any, error)

// Callable is implemented by values that function-call expressions can apply.
type Callable interface {
	Call(args []any) (any, error)
}

// ClosureMap resolves member and method names into closures and adapts
// runtime values into Functions. It is supplied by the resolution layer.
type ClosureMap interface {
	Getter(name string) Getter
	Setter(name string) Setter
	Invoker(name string) Invoker
	Callable(v any) (Function, bool)
}

// Base supplies the default behaviour: not evaluable, not assignable.
// Nodes embed it and override what they support.
type Base struct{}

func (Base) Eval(scope any) (any, error) {
	return nil, terrors.New("UNSUP-0001", map[string]any{"Node": "expression"})
}

func (Base) IsAssignable() bool { return false }

func (Base) Assign(scope, value any) (any, error) {
	return nil, terrors.New("UNSUP-0002", map[string]any{"Node": "expression"})
}

// ImplicitReceiver is the root of unqualified names; it evaluates to the scope.
type ImplicitReceiver struct {
	Base
}

func NewImplicitReceiver() *ImplicitReceiver { return &ImplicitReceiver{} }

func (n *ImplicitReceiver) Eval(scope any) (any, error) { return scope, nil }
func (n *ImplicitReceiver) Visit(v Visitor, args any) any {
	return v.VisitImplicitReceiver(n, args)
}
func (n *ImplicitReceiver) String() string { return "" }

// Chain is a sequence of expressions separated by semicolons. It evaluates
// every expression in order and yields the last result that was not nil,
// which is not necessarily the result of the final expression.
type Chain struct {
	Base
	Expressions []AST
}

func NewChain(expressions []AST) *Chain {
	return &Chain{Expressions: cloneNodes(expressions)}
}

func (n *Chain) Eval(scope any) (any, error) {
	var result any
	for _, e := range n.Expressions {
		last, err := e.Eval(scope)
		if err != nil {
			return nil, err
		}
		if last != nil {
			result = last
		}
	}
	return result, nil
}

func (n *Chain) Visit(v Visitor, args any) any { return v.VisitChain(n, args) }

func (n *Chain) String() string {
	parts := make([]string, len(n.Expressions))
	for i, e := range n.Expressions {
		parts[i] = e.String()
	}
	return strings.Join(parts, "; ")
}

// Conditional is `condition ? trueExp : falseExp`. Only one branch is evaluated.
type Conditional struct {
	Base
	Condition AST
	TrueExp   AST
	FalseExp  AST
}

func NewConditional(condition, trueExp, falseExp AST) *Conditional {
	return &Conditional{Condition: condition, TrueExp: trueExp, FalseExp: falseExp}
}

func (n *Conditional) Eval(scope any) (any, error) {
	cond, err := n.Condition.Eval(scope)
	if err != nil {
		return nil, err
	}
	if values.Truthy(cond) {
		return n.TrueExp.Eval(scope)
	}
	return n.FalseExp.Eval(scope)
}

func (n *Conditional) Visit(v Visitor, args any) any { return v.VisitConditional(n, args) }

func (n *Conditional) String() string {
	return "(" + n.Condition.String() + " ? " + n.TrueExp.String() + " : " + n.FalseExp.String() + ")"
}

// AccessMember reads `receiver.name` through a pre-bound getter and writes
// it through a pre-bound setter.
type AccessMember struct {
	Base
	Receiver AST
	Name     string
	Getter   Getter
	Setter   Setter
}

func NewAccessMember(receiver AST, name string, getter Getter, setter Setter) *AccessMember {
	return &AccessMember{Receiver: receiver, Name: name, Getter: getter, Setter: setter}
}

func (n *AccessMember) Eval(scope any) (any, error) {
	receiver, err := n.Receiver.Eval(scope)
	if err != nil {
		return nil, err
	}
	return n.Getter(receiver)
}

func (n *AccessMember) IsAssignable() bool { return true }

func (n *AccessMember) Assign(scope, value any) (any, error) {
	if n.Setter == nil {
		return nil, terrors.New("UNSUP-0002", map[string]any{"Node": "member `" + n.Name + "`"})
	}
	receiver, err := n.Receiver.Eval(scope)
	if err != nil {
		return nil, err
	}
	return n.Setter(receiver, value)
}

func (n *AccessMember) Visit(v Visitor, args any) any { return v.VisitAccessMember(n, args) }

func (n *AccessMember) String() string {
	return qualify(n.Receiver, n.Name)
}

// KeyedAccess is `obj[key]`. The access strategy is chosen from the runtime
// kind of the evaluated object on every evaluation.
type KeyedAccess struct {
	Base
	Obj AST
	Key AST
}

func NewKeyedAccess(obj, key AST) *KeyedAccess {
	return &KeyedAccess{Obj: obj, Key: key}
}

func (n *KeyedAccess) Eval(scope any) (any, error) {
	obj, err := n.Obj.Eval(scope)
	if err != nil {
		return nil, err
	}
	key, err := n.Key.Eval(scope)
	if err != nil {
		return nil, err
	}
	return getKeyed(obj, key)
}

func (n *KeyedAccess) IsAssignable() bool { return true }

func (n *KeyedAccess) Assign(scope, value any) (any, error) {
	obj, err := n.Obj.Eval(scope)
	if err != nil {
		return nil, err
	}
	key, err := n.Key.Eval(scope)
	if err != nil {
		return nil, err
	}
	if err := setKeyed(obj, key, value); err != nil {
		return nil, err
	}
	return value, nil
}

func (n *KeyedAccess) Visit(v Visitor, args any) any { return v.VisitKeyedAccess(n, args) }

func (n *KeyedAccess) String() string {
	return n.Obj.String() + "[" + n.Key.String() + "]"
}

// Formatter is a pipe: `exp | name:arg1:arg2`. It is a descriptive record;
// the named formatter is looked up and applied by an external resolver, so
// evaluating it directly fails.
type Formatter struct {
	Base
	Exp     AST
	Name    string
	Args    []AST
	AllArgs []AST // Exp followed by Args
}

func NewFormatter(exp AST, name string, args []AST) *Formatter {
	all := make([]AST, 0, len(args)+1)
	all = append(all, exp)
	all = append(all, args...)
	return &Formatter{Exp: exp, Name: name, Args: cloneNodes(args), AllArgs: all}
}

func (n *Formatter) Eval(scope any) (any, error) {
	return nil, terrors.New("UNSUP-0003", map[string]any{"Name": n.Name})
}

func (n *Formatter) Visit(v Visitor, args any) any { return v.VisitFormatter(n, args) }

func (n *Formatter) String() string {
	var out bytes.Buffer
	out.WriteString("(")
	out.WriteString(n.Exp.String())
	out.WriteString(" | ")
	out.WriteString(n.Name)
	for _, a := range n.Args {
		out.WriteString(":")
		out.WriteString(a.String())
	}
	out.WriteString(")")
	return out.String()
}

// LiteralPrimitive holds a constant scalar.
type LiteralPrimitive struct {
	Base
	Value any
}

func NewLiteralPrimitive(value any) *LiteralPrimitive {
	return &LiteralPrimitive{Value: value}
}

func (n *LiteralPrimitive) Eval(scope any) (any, error) { return n.Value, nil }
func (n *LiteralPrimitive) Visit(v Visitor, args any) any {
	return v.VisitLiteralPrimitive(n, args)
}
func (n *LiteralPrimitive) String() string { return LiteralString(n.Value) }

// LiteralString renders a literal value as expression source.
func LiteralString(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(x)
	}
	return values.ToString(v)
}

// LiteralArray is `[e1, e2, ...]`; it evaluates to a fresh []any.
type LiteralArray struct {
	Base
	Expressions []AST
}

func NewLiteralArray(expressions []AST) *LiteralArray {
	return &LiteralArray{Expressions: cloneNodes(expressions)}
}

func (n *LiteralArray) Eval(scope any) (any, error) {
	result := make([]any, len(n.Expressions))
	for i, e := range n.Expressions {
		v, err := e.Eval(scope)
		if err != nil {
			return nil, err
		}
		result[i] = v
	}
	return result, nil
}

func (n *LiteralArray) Visit(v Visitor, args any) any { return v.VisitLiteralArray(n, args) }

func (n *LiteralArray) String() string {
	return "[" + joinNodes(n.Expressions) + "]"
}

// LiteralMap is `{k1: v1, k2: v2}`. Keys are literal values; it evaluates to
// a fresh *values.Map whose order is the declaration order.
type LiteralMap struct {
	Base
	Keys   []any
	Values []AST
}

// NewLiteralMap panics if keys and vals differ in length.
func NewLiteralMap(keys []any, vals []AST) *LiteralMap {
	if len(keys) != len(vals) {
		panic(terrors.NewSimple(terrors.ClassInternal, "literal map: keys and values differ in length"))
	}
	k := make([]any, len(keys))
	copy(k, keys)
	return &LiteralMap{Keys: k, Values: cloneNodes(vals)}
}

func (n *LiteralMap) Eval(scope any) (any, error) {
	result := values.NewMap(len(n.Keys))
	for i, k := range n.Keys {
		v, err := n.Values[i].Eval(scope)
		if err != nil {
			return nil, err
		}
		if !result.Set(k, v) {
			return nil, terrors.New("TYPE-0001", map[string]any{"Got": values.TypeName(k) + " key"})
		}
	}
	return result, nil
}

func (n *LiteralMap) Visit(v Visitor, args any) any { return v.VisitLiteralMap(n, args) }

func (n *LiteralMap) String() string {
	parts := make([]string, len(n.Keys))
	for i, k := range n.Keys {
		parts[i] = LiteralString(k) + ": " + n.Values[i].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// PrefixNot is `!expression`.
type PrefixNot struct {
	Base
	Expression AST
}

func NewPrefixNot(expression AST) *PrefixNot {
	return &PrefixNot{Expression: expression}
}

func (n *PrefixNot) Eval(scope any) (any, error) {
	v, err := n.Expression.Eval(scope)
	if err != nil {
		return nil, err
	}
	return !values.Truthy(v), nil
}

func (n *PrefixNot) Visit(v Visitor, args any) any { return v.VisitPrefixNot(n, args) }
func (n *PrefixNot) String() string                { return "!" + n.Expression.String() }

// Assignment is `target = value`; the target must be assignable.
type Assignment struct {
	Base
	Target AST
	Value  AST
}

// NewAssignment panics if target is not assignable. Builders check
// IsAssignable first and report the error themselves.
func NewAssignment(target, value AST) *Assignment {
	if !target.IsAssignable() {
		panic(terrors.New("UNSUP-0004", map[string]any{"Node": KindOf(target)}))
	}
	return &Assignment{Target: target, Value: value}
}

func (n *Assignment) Eval(scope any) (any, error) {
	v, err := n.Value.Eval(scope)
	if err != nil {
		return nil, err
	}
	return n.Target.Assign(scope, v)
}

func (n *Assignment) Visit(v Visitor, args any) any { return v.VisitAssignment(n, args) }
func (n *Assignment) String() string {
	return n.Target.String() + " = " + n.Value.String()
}

// MethodCall is `receiver.name(args...)` with the method pre-bound to Fn.
type MethodCall struct {
	Base
	Receiver AST
	Name     string
	Fn       Invoker
	Args     []AST
}

func NewMethodCall(receiver AST, name string, fn Invoker, args []AST) *MethodCall {
	return &MethodCall{Receiver: receiver, Name: name, Fn: fn, Args: cloneNodes(args)}
}

func (n *MethodCall) Eval(scope any) (any, error) {
	receiver, err := n.Receiver.Eval(scope)
	if err != nil {
		return nil, err
	}
	return withArgs(scope, n.Args, func(args []any) (any, error) {
		return n.Fn(receiver, args)
	})
}

func (n *MethodCall) Visit(v Visitor, args any) any { return v.VisitMethodCall(n, args) }
func (n *MethodCall) String() string {
	return qualify(n.Receiver, n.Name) + "(" + joinNodes(n.Args) + ")"
}

// FunctionCall is `target(args...)`. Target must evaluate to something the
// closure map can apply.
type FunctionCall struct {
	Base
	Target   AST
	Closures ClosureMap
	Args     []AST
}

func NewFunctionCall(target AST, closures ClosureMap, args []AST) *FunctionCall {
	return &FunctionCall{Target: target, Closures: closures, Args: cloneNodes(args)}
}

func (n *FunctionCall) Eval(scope any) (any, error) {
	obj, err := n.Target.Eval(scope)
	if err != nil {
		return nil, err
	}
	fn, ok := n.callable(obj)
	if !ok {
		return nil, terrors.New("CALL-0001", map[string]any{"Value": values.Inspect(obj)})
	}
	return withArgs(scope, n.Args, fn)
}

func (n *FunctionCall) callable(obj any) (Function, bool) {
	if n.Closures != nil {
		return n.Closures.Callable(obj)
	}
	switch f := obj.(type) {
	case Function:
		return f, f != nil
	case func([]any) (any, error):
		return f, f != nil
	case Callable:
		return f.Call, true
	}
	return nil, false
}

func (n *FunctionCall) Visit(v Visitor, args any) any { return v.VisitFunctionCall(n, args) }
func (n *FunctionCall) String() string {
	return n.Target.String() + "(" + joinNodes(n.Args) + ")"
}

func qualify(receiver AST, name string) string {
	if _, ok := receiver.(*ImplicitReceiver); ok {
		return name
	}
	return receiver.String() + "." + name
}

func joinNodes(nodes []AST) string {
	parts := make([]string, len(nodes))
	for i, e := range nodes {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

func cloneNodes(nodes []AST) []AST {
	if nodes == nil {
		return nil
	}
	out := make([]AST, len(nodes))
	copy(out, nodes)
	return out
}
