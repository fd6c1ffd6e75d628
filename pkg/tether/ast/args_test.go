package ast

import (
	stderrors "errors"
	"fmt"
	"testing"

	terrors "github.com/sambeau/tether/pkg/tether/errors"
	"github.com/sambeau/tether/pkg/tether/values"
)

func literals(n int) []AST {
	exps := make([]AST, n)
	for i := range exps {
		exps[i] = lit(i)
	}
	return exps
}

func TestArgumentListLength(t *testing.T) {
	for n := 0; n <= MaxPooledArity+2; n++ {
		t.Run(fmt.Sprintf("arity %d", n), func(t *testing.T) {
			var seen []any
			fn := func(receiver any, args []any) (any, error) {
				seen = append([]any(nil), args...)
				return len(args), nil
			}
			got, err := NewMethodCall(NewImplicitReceiver(), "f", fn, literals(n)).Eval(nil)
			if err != nil {
				t.Fatal(err)
			}
			if got != n {
				t.Errorf("len(args) = %v, want %d", got, n)
			}
			for i, v := range seen {
				if v != i {
					t.Errorf("args[%d] = %v, want %d", i, v, i)
				}
			}
		})
	}
}

func TestArgumentsEvaluatedLeftToRight(t *testing.T) {
	var log []string
	args := []AST{
		recorder(&log, "a", 1),
		recorder(&log, "b", 2),
		recorder(&log, "c", 3),
	}
	sum := Function(func(args []any) (any, error) {
		return args[0].(int) + args[1].(int) + args[2].(int), nil
	})
	ctx := values.MapOf("sum", sum)

	got, err := NewFunctionCall(member("sum"), nil, args).Eval(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != 6 {
		t.Errorf("sum = %v, want 6", got)
	}
	if fmt.Sprint(log) != "[a b c]" {
		t.Errorf("evaluation order = %v, want [a b c]", log)
	}
}

func TestNestedCallsOfSameArity(t *testing.T) {
	// pair(pair(1, 2), pair(3, 4)): the inner calls run while the outer
	// call's argument list is being filled.
	pair := func(receiver any, args []any) (any, error) {
		return []any{args[0], args[1]}, nil
	}
	inner := func(a, b any) AST {
		return NewMethodCall(NewImplicitReceiver(), "pair", pair, []AST{lit(a), lit(b)})
	}
	outer := NewMethodCall(NewImplicitReceiver(), "pair", pair, []AST{inner(1, 2), inner(3, 4)})

	got, err := outer.Eval(nil)
	if err != nil {
		t.Fatal(err)
	}
	if values.Inspect(got) != "[[1, 2], [3, 4]]" {
		t.Errorf("Eval() = %s", values.Inspect(got))
	}
}

func TestReentrantCallFromInvoker(t *testing.T) {
	// An invoker that evaluates another call of the same arity before
	// reading its own arguments.
	var nested AST
	echo := func(receiver any, args []any) (any, error) { return args[0], nil }
	outerFn := func(receiver any, args []any) (any, error) {
		if _, err := nested.Eval(nil); err != nil {
			return nil, err
		}
		return args[0], nil
	}
	nested = NewMethodCall(NewImplicitReceiver(), "echo", echo, []AST{lit("inner")})
	outer := NewMethodCall(NewImplicitReceiver(), "outer", outerFn, []AST{lit("outer")})

	got, err := outer.Eval(nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "outer" {
		t.Errorf("Eval() = %v, want outer", got)
	}
}

func TestArgumentErrorStopsCall(t *testing.T) {
	called := false
	fn := func(receiver any, args []any) (any, error) {
		called = true
		return nil, nil
	}
	bad := NewBinary("+", lit(nil), lit(1))
	_, err := NewMethodCall(NewImplicitReceiver(), "f", fn, []AST{lit(1), bad}).Eval(nil)
	if !stderrors.Is(err, terrors.ErrOperandUndefined) {
		t.Errorf("error = %v, want operand undefined", err)
	}
	if called {
		t.Error("invoker should not run when an argument fails")
	}
}

func TestEvalArgsReturnsOwnedSlice(t *testing.T) {
	a, err := EvalArgs(nil, literals(3))
	if err != nil {
		t.Fatal(err)
	}
	b, _ := EvalArgs(nil, literals(3))
	a[0] = "changed"
	if b[0] != 0 {
		t.Errorf("EvalArgs results share storage")
	}
}

type adder struct{}

func (adder) Call(args []any) (any, error) { return args[0].(int) + args[1].(int), nil }

func TestFunctionCallTargets(t *testing.T) {
	tests := []struct {
		name   string
		target any
	}{
		{"Function", Function(func(args []any) (any, error) { return args[0].(int) + args[1].(int), nil })},
		{"func literal", func(args []any) (any, error) { return args[0].(int) + args[1].(int), nil }},
		{"Callable", adder{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := values.MapOf("f", tt.target)
			got, err := NewFunctionCall(member("f"), nil, []AST{lit(2), lit(3)}).Eval(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if got != 5 {
				t.Errorf("f(2, 3) = %v, want 5", got)
			}
		})
	}
}

func TestFunctionCallNotCallable(t *testing.T) {
	for _, target := range []any{42, "fn", nil, values.NewMap(0)} {
		ctx := values.MapOf("f", target)
		_, err := NewFunctionCall(member("f"), nil, nil).Eval(ctx)
		if !stderrors.Is(err, terrors.ErrNotCallable) {
			t.Errorf("call of %v: error = %v, want not callable", values.Inspect(target), err)
		}
	}
}

// fixedClosures applies every value by returning a fixed result.
type fixedClosures struct{ result any }

func (fixedClosures) Getter(string) Getter   { return nil }
func (fixedClosures) Setter(string) Setter   { return nil }
func (fixedClosures) Invoker(string) Invoker { return nil }
func (c fixedClosures) Callable(v any) (Function, bool) {
	if v == nil {
		return nil, false
	}
	return func(args []any) (any, error) { return c.result, nil }, true
}

func TestFunctionCallUsesClosureMap(t *testing.T) {
	ctx := values.MapOf("f", "anything")
	got, err := NewFunctionCall(member("f"), fixedClosures{result: "ok"}, nil).Eval(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != "ok" {
		t.Errorf("Eval() = %v, want ok", got)
	}

	_, err = NewFunctionCall(member("missing"), fixedClosures{}, nil).Eval(ctx)
	if !stderrors.Is(err, terrors.ErrNotCallable) {
		t.Errorf("error = %v, want not callable", err)
	}
}

func BenchmarkMethodCallPooledArgs(b *testing.B) {
	fn := func(receiver any, args []any) (any, error) { return args[0], nil }
	call := NewMethodCall(NewImplicitReceiver(), "f", fn, literals(3))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = call.Eval(nil)
	}
}
