package detect

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sambeau/tether/pkg/tether/ast"
	"github.com/sambeau/tether/pkg/tether/closure"
	terrors "github.com/sambeau/tether/pkg/tether/errors"
	"github.com/sambeau/tether/pkg/tether/logging"
	"github.com/sambeau/tether/pkg/tether/pipes"
	"github.com/sambeau/tether/pkg/tether/values"
)

var closures = closure.New()

func member(receiver ast.AST, name string) *ast.AccessMember {
	if receiver == nil {
		receiver = ast.NewImplicitReceiver()
	}
	return ast.NewAccessMember(receiver, name, closures.Getter(name), closures.Setter(name))
}

func source(n ast.AST) *ast.ASTWithSource {
	return ast.NewASTWithSource(n, n.String(), "test")
}

func summarize(changes []Change) string {
	parts := make([]string, len(changes))
	for i, c := range changes {
		if c.Err != nil {
			parts[i] = c.Record.Key + "!"
			continue
		}
		parts[i] = fmt.Sprintf("%s=%v", c.Record.Key, c.Current)
	}
	return strings.Join(parts, " ")
}

func TestDetectChanges(t *testing.T) {
	d := New()
	// ctxProp == "Hello" ? 1 : 0
	cond := ast.NewConditional(
		ast.NewBinary("==", member(nil, "ctxProp"), ast.NewLiteralPrimitive("Hello")),
		ast.NewLiteralPrimitive(1), ast.NewLiteralPrimitive(0))
	if _, err := d.Add("flag", source(cond)); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Add("name", source(member(nil, "name"))); err != nil {
		t.Fatal(err)
	}

	scope := values.MapOf("ctxProp", "Hello", "name", "Ada")

	first := d.DetectChanges(scope)
	if got := summarize(first); got != "flag=1 name=Ada" {
		t.Errorf("first pass = %q", got)
	}
	for _, c := range first {
		if !c.First {
			t.Errorf("%s: First = false on the first pass", c.Record.Key)
		}
	}

	if got := summarize(d.DetectChanges(scope)); got != "" {
		t.Errorf("unchanged pass = %q, want no changes", got)
	}

	scope.Set("ctxProp", "x")
	changes := d.DetectChanges(scope)
	if got := summarize(changes); got != "flag=0" {
		t.Errorf("after change = %q", got)
	}
	if changes[0].Previous != 1 || changes[0].First {
		t.Errorf("change = %+v", changes[0])
	}

	if last, ok := changes[0].Record.Last(); !ok || last != 0 {
		t.Errorf("Last() = %v, %v", last, ok)
	}
}

func TestDetectStructuralEquality(t *testing.T) {
	d := New()
	lit := ast.NewLiteralMap([]any{"a"}, []ast.AST{member(nil, "a")})
	if _, err := d.Add("m", source(lit)); err != nil {
		t.Fatal(err)
	}
	scope := values.MapOf("a", 1)
	d.DetectChanges(scope)
	// A fresh map with equal contents is not a change.
	if got := summarize(d.DetectChanges(scope)); got != "" {
		t.Errorf("second pass = %q", got)
	}
}

func TestDetectReportsErrors(t *testing.T) {
	log := logging.NewBufferedLogger()
	d := New(WithLogger(log))
	bad := ast.NewBinary("+", member(nil, "missing"), ast.NewLiteralPrimitive(1))
	if _, err := d.Add("bad", source(bad)); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Add("ok", source(member(nil, "a"))); err != nil {
		t.Fatal(err)
	}

	changes := d.DetectChanges(values.MapOf("a", 1))
	if got := summarize(changes); got != "bad! ok=1" {
		t.Errorf("changes = %q", got)
	}
	err := changes[0].Err
	if !stderrors.Is(err, terrors.ErrOperandUndefined) {
		t.Errorf("error = %v", err)
	}
	var te *terrors.TetherError
	if stderrors.As(err, &te) && (te.Binding != "bad" || te.Source != "(missing + 1)") {
		t.Errorf("error context = binding %q source %q", te.Binding, te.Source)
	}
	if len(log.Lines()) == 0 || !strings.HasPrefix(log.Lines()[0], "[WARN] bad:") {
		t.Errorf("log = %v", log.Lines())
	}

	// Errors are reported on every pass; they are never cached as values.
	if got := summarize(d.DetectChanges(values.MapOf("a", 1))); got != "bad!" {
		t.Errorf("second pass = %q", got)
	}
}

func TestDetectWithResolver(t *testing.T) {
	registry := pipes.NewRegistry(pipes.Options{})
	d := New(WithResolver(registry.Resolve))
	piped := ast.NewFormatter(member(nil, "name"), "uppercase", nil)
	if _, err := d.Add("shout", source(piped)); err != nil {
		t.Fatal(err)
	}
	if got := summarize(d.DetectChanges(values.MapOf("name", "ada"))); got != "shout=ADA" {
		t.Errorf("changes = %q", got)
	}

	_, err := d.Add("bad", source(ast.NewFormatter(member(nil, "x"), "nope", nil)))
	if !stderrors.Is(err, terrors.ErrPipe) {
		t.Errorf("Add() error = %v, want pipe error", err)
	}
}

func TestAddBindingsAndReset(t *testing.T) {
	d := New()
	bindings := []*ast.TemplateBinding{
		ast.NewNameBinding("var", "item"),
		ast.NewExpressionBinding("of", source(member(nil, "items"))),
	}
	if err := d.AddBindings(bindings); err != nil {
		t.Fatal(err)
	}
	if len(d.Records()) != 1 {
		t.Fatalf("records = %d, want 1", len(d.Records()))
	}
	if _, ok := d.Record("of"); !ok {
		t.Error("Record(of) not found")
	}
	if _, ok := d.Record("var"); ok {
		t.Error("name binding should not become a record")
	}

	scope := values.MapOf("items", []any{1, 2})
	d.DetectChanges(scope)
	d.Reset()
	if got := summarize(d.DetectChanges(scope)); got != "of=[1 2]" {
		t.Errorf("after Reset = %q", got)
	}
}

func TestDependencies(t *testing.T) {
	user := member(nil, "user")
	tests := []struct {
		name string
		node ast.AST
		want string
	}{
		{"member", member(nil, "a"), "a"},
		{"path", member(member(user, "address"), "city"), "user.address.city"},
		{"binary", ast.NewBinary("+", member(nil, "a"), member(nil, "b")), "a b"},
		{"dedup", ast.NewBinary("*", member(nil, "a"), member(nil, "a")), "a"},
		{"keyed", member(ast.NewKeyedAccess(member(nil, "items"), member(nil, "i")), "title"), "items i"},
		{"method", ast.NewMethodCall(user, "greet", nil, []ast.AST{member(nil, "greeting")}), "user greeting"},
		{"implicit method", ast.NewMethodCall(ast.NewImplicitReceiver(), "now", nil, nil), ""},
		{"pipe", ast.NewFormatter(member(nil, "price"), "currency", []ast.AST{member(nil, "code")}), "price code"},
		{"literal", ast.NewLiteralPrimitive(1), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := strings.Join(Dependencies(tt.node), " "); got != tt.want {
				t.Errorf("Dependencies() = %q, want %q", got, tt.want)
			}
		})
	}
}
