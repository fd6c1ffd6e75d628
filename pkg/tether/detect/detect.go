// Package detect evaluates binding expressions against a scope and reports
// which ones changed since the previous pass.
//
// The detector does not schedule itself: callers decide when to run a pass.
package detect

import (
	"sync"

	"github.com/sambeau/tether/pkg/tether/ast"
	terrors "github.com/sambeau/tether/pkg/tether/errors"
	"github.com/sambeau/tether/pkg/tether/logging"
	"github.com/sambeau/tether/pkg/tether/values"
)

// Record tracks one expression and the value it produced last.
type Record struct {
	Key        string
	Expression *ast.ASTWithSource

	last    any
	checked bool
}

// Last returns the value seen on the previous pass and whether there was one.
func (r *Record) Last() (any, bool) {
	return r.last, r.checked
}

// Change is one record whose value differs from the previous pass. On the
// first pass every record is reported with First set.
type Change struct {
	Record   *Record
	Previous any
	Current  any
	First    bool
	Err      error // evaluation failure; Current is nil
}

// Detector holds records and runs detection passes. It is safe for
// concurrent use; passes are serialised.
type Detector struct {
	mu      sync.Mutex
	records []*Record
	resolve func(tree ast.AST) (ast.AST, error)
	logger  logging.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger for pass diagnostics.
func WithLogger(l logging.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// WithResolver rewrites each expression once when it is added, for example
// to lower pipes into calls.
func WithResolver(resolve func(tree ast.AST) (ast.AST, error)) Option {
	return func(d *Detector) { d.resolve = resolve }
}

// New returns an empty detector.
func New(opts ...Option) *Detector {
	d := &Detector{logger: logging.NullLogger()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Add registers an expression under key.
func (d *Detector) Add(key string, expr *ast.ASTWithSource) (*Record, error) {
	if d.resolve != nil {
		resolved, err := d.resolve(expr.AST)
		if err != nil {
			return nil, withContext(err, key, expr)
		}
		expr = ast.NewASTWithSource(resolved, expr.Source, expr.Location)
	}
	r := &Record{Key: key, Expression: expr}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = append(d.records, r)
	return r, nil
}

// AddBindings registers every expression binding; name bindings carry no
// expression and are skipped.
func (d *Detector) AddBindings(bindings []*ast.TemplateBinding) error {
	for _, b := range bindings {
		if !b.HasExpression() {
			continue
		}
		if _, err := d.Add(b.Key, b.Expression); err != nil {
			return err
		}
	}
	return nil
}

// Records returns the registered records in insertion order.
func (d *Detector) Records() []*Record {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Record(nil), d.records...)
}

// Record returns the first record registered under key.
func (d *Detector) Record(key string) (*Record, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.records {
		if r.Key == key {
			return r, true
		}
	}
	return nil, false
}

// DetectChanges evaluates every record once against scope and returns the
// records whose value changed, in insertion order. A failing expression is
// reported as a Change with Err set and does not stop the pass.
func (d *Detector) DetectChanges(scope any) []Change {
	d.mu.Lock()
	defer d.mu.Unlock()

	var changes []Change
	for _, r := range d.records {
		current, err := r.Expression.AST.Eval(scope)
		if err != nil {
			err = withContext(err, r.Key, r.Expression)
			d.logger.Warnf("%s: %v", r.Key, err)
			changes = append(changes, Change{Record: r, Previous: r.last, Err: err})
			continue
		}
		if r.checked && values.Equal(r.last, current) {
			continue
		}
		changes = append(changes, Change{Record: r, Previous: r.last, Current: current, First: !r.checked})
		r.last = current
		r.checked = true
	}
	d.logger.Debugf("detection pass: %d records, %d changes", len(d.records), len(changes))
	return changes
}

// Reset forgets every previous value, so the next pass reports all records.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.records {
		r.last = nil
		r.checked = false
	}
}

// withContext attaches the binding key and source to tether errors.
func withContext(err error, key string, expr *ast.ASTWithSource) error {
	if te, ok := err.(*terrors.TetherError); ok {
		return te.WithBinding(key).WithSource(expr.Source)
	}
	return err
}
