package ast

import (
	terrors "github.com/sambeau/tether/pkg/tether/errors"
	"github.com/sambeau/tether/pkg/tether/values"
)

// binaryOperators is the closed operator set fixed at parse time.
var binaryOperators = map[string]bool{
	"&&": true, "||": true,
	"+": true, "-": true, "*": true, "/": true, "%": true,
	"==": true, "!=": true,
	"<": true, ">": true, "<=": true, ">=": true,
	"^": true, "&": true,
}

// IsBinaryOperator reports whether op belongs to the binary operator set.
func IsBinaryOperator(op string) bool {
	return binaryOperators[op]
}

// Binary is `left operation right`.
type Binary struct {
	Base
	Operation string
	Left      AST
	Right     AST
}

// NewBinary panics if operation is not a known operator; operator sets are
// fixed by the parser, so an unknown one is an internal fault.
func NewBinary(operation string, left, right AST) *Binary {
	if !IsBinaryOperator(operation) {
		panic(terrors.New("INTERNAL-0001", map[string]any{"Operator": operation}))
	}
	return &Binary{Operation: operation, Left: left, Right: right}
}

func (n *Binary) Eval(scope any) (any, error) {
	left, err := n.Left.Eval(scope)
	if err != nil {
		return nil, err
	}

	switch n.Operation {
	case "&&":
		if !values.Truthy(left) {
			return false, nil
		}
		right, err := n.Right.Eval(scope)
		if err != nil {
			return nil, err
		}
		return values.Truthy(right), nil
	case "||":
		if values.Truthy(left) {
			return true, nil
		}
		right, err := n.Right.Eval(scope)
		if err != nil {
			return nil, err
		}
		return values.Truthy(right), nil
	}

	right, err := n.Right.Eval(scope)
	if err != nil {
		return nil, err
	}

	// Null check for every remaining operator, comparisons included.
	if values.IsNull(left) || values.IsNull(right) {
		return nil, terrors.New("OPERAND-0001", nil)
	}

	switch n.Operation {
	case "+":
		return values.AutoConvertAdd(left, right)
	case "-", "*", "/", "%":
		return values.Arith(n.Operation, left, right)
	case "==":
		return values.Equal(left, right), nil
	case "!=":
		return !values.Equal(left, right), nil
	case "<", ">", "<=", ">=":
		return values.Relational(n.Operation, left, right)
	case "^", "&":
		return values.Bitwise(n.Operation, left, right)
	}
	panic(terrors.New("INTERNAL-0001", map[string]any{"Operator": n.Operation}))
}

func (n *Binary) Visit(v Visitor, args any) any { return v.VisitBinary(n, args) }

func (n *Binary) String() string {
	return "(" + n.Left.String() + " " + n.Operation + " " + n.Right.String() + ")"
}
