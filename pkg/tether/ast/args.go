package ast

import "sync"

// MaxPooledArity is the largest argument count served from the buffer pools.
const MaxPooledArity = 5

// argPools hold reusable argument buffers, one pool per arity. A buffer is
// taken for the duration of a single call and returned afterwards, so nested
// calls of the same arity each get their own buffer.
var argPools [MaxPooledArity + 1]sync.Pool

func getArgs(n int) *[]any {
	if p, ok := argPools[n].Get().(*[]any); ok {
		return p
	}
	buf := make([]any, n)
	return &buf
}

func putArgs(n int, buf *[]any) {
	clear(*buf)
	argPools[n].Put(buf)
}

// withArgs evaluates exps left to right into a positional list of exactly
// len(exps) values and passes it to call. Lists of up to MaxPooledArity
// values come from argPools and are recycled once call returns.
func withArgs(scope any, exps []AST, call func(args []any) (any, error)) (any, error) {
	n := len(exps)
	if n > MaxPooledArity {
		args, err := EvalArgs(scope, exps)
		if err != nil {
			return nil, err
		}
		return call(args)
	}

	buf := getArgs(n)
	args := *buf
	for i, e := range exps {
		v, err := e.Eval(scope)
		if err != nil {
			putArgs(n, buf)
			return nil, err
		}
		args[i] = v
	}
	result, err := call(args)
	putArgs(n, buf)
	return result, err
}

// EvalArgs evaluates exps left to right into a freshly allocated list that
// the caller owns.
func EvalArgs(scope any, exps []AST) ([]any, error) {
	args := make([]any, len(exps))
	for i, e := range exps {
		v, err := e.Eval(scope)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}
