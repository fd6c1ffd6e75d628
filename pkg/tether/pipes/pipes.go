// Package pipes resolves formatter expressions (`value | name:arg`) against
// a registry of named pipes.
//
// Formatter nodes are descriptive: evaluating one directly fails. Resolve
// copies a tree and lowers every formatter into a method call whose invoker
// runs the registered pipe, so the result can be evaluated like any other
// tree.
package pipes

import (
	stderrors "errors"
	"sort"
	"sync"
	"time"

	"github.com/sambeau/tether/pkg/tether/ast"
	terrors "github.com/sambeau/tether/pkg/tether/errors"
)

// Pipe transforms input. args are the formatter arguments after the input;
// like every invoker, a pipe must not retain args.
type Pipe func(input any, args ...any) (any, error)

// Options configure the built-in pipes.
type Options struct {
	Locale string           // e.g. "en-GB"; defaults to "en-US"
	Now    func() time.Time // clock for relative dates; defaults to time.Now
}

// Registry holds named pipes. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	pipes map[string]Pipe
	opts  Options
}

// NewRegistry returns a registry populated with the built-in pipes.
func NewRegistry(opts Options) *Registry {
	if opts.Locale == "" {
		opts.Locale = "en-US"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	r := &Registry{pipes: make(map[string]Pipe), opts: opts}
	r.registerBuiltins()
	return r
}

// Register adds or replaces the pipe called name.
func (r *Registry) Register(name string, p Pipe) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipes[name] = p
}

// Lookup returns the pipe called name.
func (r *Registry) Lookup(name string) (Pipe, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pipes[name]
	return p, ok
}

// Names returns the registered pipe names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.pipes))
	for name := range r.pipes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Locale returns the locale the built-in pipes format with.
func (r *Registry) Locale() string { return r.opts.Locale }

// Resolve returns a copy of tree with every Formatter lowered to a
// MethodCall that invokes the named pipe on the formatter's input. tree
// itself is not modified. An unknown pipe name fails the whole resolution.
func (r *Registry) Resolve(tree ast.AST) (ast.AST, error) {
	if tree == nil {
		return nil, nil
	}
	res := &resolver{registry: r}
	out := res.rewrite(tree)
	if res.err != nil {
		return nil, res.err
	}
	return out, nil
}

// HasFormatters reports whether tree contains a Formatter node.
func HasFormatters(tree ast.AST) bool {
	found := false
	ast.Walk(tree, func(n ast.AST) bool {
		if _, ok := n.(*ast.Formatter); ok {
			found = true
		}
		return !found
	})
	return found
}

// invoker adapts a pipe into a method invoker: the receiver is the piped
// input and args are the formatter arguments.
func invoker(name string, p Pipe) ast.Invoker {
	return func(receiver any, args []any) (any, error) {
		out, err := p(receiver, args...)
		if err != nil {
			var te *terrors.TetherError
			if stderrors.As(err, &te) {
				return nil, err
			}
			return nil, pipeError(name, err.Error())
		}
		return out, nil
	}
}

func pipeError(name, reason string) *terrors.TetherError {
	return terrors.New("PIPE-0002", map[string]any{"Name": name, "Reason": reason})
}

// resolver is a rewriting visitor; every Visit method returns an ast.AST.
type resolver struct {
	registry *Registry
	err      error
}

func (r *resolver) rewrite(n ast.AST) ast.AST {
	if n == nil {
		return nil
	}
	out, _ := n.Visit(r, nil).(ast.AST)
	return out
}

func (r *resolver) rewriteAll(nodes []ast.AST) []ast.AST {
	if nodes == nil {
		return nil
	}
	out := make([]ast.AST, len(nodes))
	for i, n := range nodes {
		out[i] = r.rewrite(n)
	}
	return out
}

func (r *resolver) VisitImplicitReceiver(n *ast.ImplicitReceiver, args any) any { return n }

func (r *resolver) VisitChain(n *ast.Chain, args any) any {
	return ast.NewChain(r.rewriteAll(n.Expressions))
}

func (r *resolver) VisitConditional(n *ast.Conditional, args any) any {
	return ast.NewConditional(r.rewrite(n.Condition), r.rewrite(n.TrueExp), r.rewrite(n.FalseExp))
}

func (r *resolver) VisitAccessMember(n *ast.AccessMember, args any) any {
	return ast.NewAccessMember(r.rewrite(n.Receiver), n.Name, n.Getter, n.Setter)
}

func (r *resolver) VisitKeyedAccess(n *ast.KeyedAccess, args any) any {
	return ast.NewKeyedAccess(r.rewrite(n.Obj), r.rewrite(n.Key))
}

func (r *resolver) VisitFormatter(n *ast.Formatter, args any) any {
	p, ok := r.registry.Lookup(n.Name)
	if !ok {
		if r.err == nil {
			r.err = terrors.NewUnknownPipe(n.Name, r.registry.Names())
		}
		return n
	}
	return ast.NewMethodCall(r.rewrite(n.Exp), n.Name, invoker(n.Name, p), r.rewriteAll(n.Args))
}

func (r *resolver) VisitLiteralPrimitive(n *ast.LiteralPrimitive, args any) any { return n }

func (r *resolver) VisitLiteralArray(n *ast.LiteralArray, args any) any {
	return ast.NewLiteralArray(r.rewriteAll(n.Expressions))
}

func (r *resolver) VisitLiteralMap(n *ast.LiteralMap, args any) any {
	return ast.NewLiteralMap(n.Keys, r.rewriteAll(n.Values))
}

func (r *resolver) VisitBinary(n *ast.Binary, args any) any {
	return ast.NewBinary(n.Operation, r.rewrite(n.Left), r.rewrite(n.Right))
}

func (r *resolver) VisitPrefixNot(n *ast.PrefixNot, args any) any {
	return ast.NewPrefixNot(r.rewrite(n.Expression))
}

func (r *resolver) VisitAssignment(n *ast.Assignment, args any) any {
	return ast.NewAssignment(r.rewrite(n.Target), r.rewrite(n.Value))
}

func (r *resolver) VisitMethodCall(n *ast.MethodCall, args any) any {
	return ast.NewMethodCall(r.rewrite(n.Receiver), n.Name, n.Fn, r.rewriteAll(n.Args))
}

func (r *resolver) VisitFunctionCall(n *ast.FunctionCall, args any) any {
	return ast.NewFunctionCall(r.rewrite(n.Target), n.Closures, r.rewriteAll(n.Args))
}
