package pipes

import (
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/sambeau/tether/pkg/tether/ast"
	terrors "github.com/sambeau/tether/pkg/tether/errors"
	"github.com/sambeau/tether/pkg/tether/values"
)

func member(name string) *ast.AccessMember {
	return ast.NewAccessMember(ast.NewImplicitReceiver(), name,
		func(receiver any) (any, error) {
			v, _ := receiver.(*values.Map).Get(name)
			return v, nil
		}, nil)
}

func lit(v any) ast.AST { return ast.NewLiteralPrimitive(v) }

func TestResolveLowersFormatters(t *testing.T) {
	r := NewRegistry(Options{})
	// name | uppercase
	tree := ast.NewFormatter(member("name"), "uppercase", nil)

	resolved, err := r.Resolve(tree)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if pipesLeft := HasFormatters(resolved); pipesLeft {
		t.Error("resolved tree still contains formatters")
	}
	if _, ok := resolved.(*ast.MethodCall); !ok {
		t.Errorf("resolved root = %s, want MethodCall", ast.KindOf(resolved))
	}

	got, err := resolved.Eval(values.MapOf("name", "ada"))
	if err != nil {
		t.Fatal(err)
	}
	if got != "ADA" {
		t.Errorf("Eval() = %v, want ADA", got)
	}

	// The original tree is untouched and still refuses evaluation.
	if !HasFormatters(tree) {
		t.Error("Resolve modified its input")
	}
	if _, err := tree.Eval(values.MapOf("name", "ada")); !stderrors.Is(err, terrors.ErrUnsupported) {
		t.Errorf("unresolved Eval() error = %v", err)
	}
}

func TestResolveNestedPipesAndArguments(t *testing.T) {
	r := NewRegistry(Options{})
	// (title | default:"untitled" | uppercase) + "!"
	inner := ast.NewFormatter(member("title"), "default", []ast.AST{lit("untitled")})
	tree := ast.NewBinary("+", ast.NewFormatter(inner, "uppercase", nil), lit("!"))

	resolved, err := r.Resolve(tree)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		title any
		want  string
	}{
		{"hello", "HELLO!"},
		{nil, "UNTITLED!"},
		{"", "UNTITLED!"},
	}
	for _, tt := range tests {
		got, err := resolved.Eval(values.MapOf("title", tt.title))
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("title=%v: Eval() = %v, want %v", tt.title, got, tt.want)
		}
	}
}

func TestResolveUnknownPipe(t *testing.T) {
	r := NewRegistry(Options{})
	tree := ast.NewChain([]ast.AST{ast.NewFormatter(member("x"), "uppercas", nil)})
	_, err := r.Resolve(tree)
	if !stderrors.Is(err, terrors.ErrPipe) {
		t.Fatalf("error = %v, want pipe error", err)
	}
	var te *terrors.TetherError
	if !stderrors.As(err, &te) || len(te.Hints) == 0 || !strings.Contains(te.Hints[0], "uppercase") {
		t.Errorf("expected a hint for uppercase, got %v", err)
	}
}

func TestResolvePreservesOtherNodes(t *testing.T) {
	r := NewRegistry(Options{})
	tree := ast.NewConditional(
		ast.NewPrefixNot(member("hidden")),
		ast.NewLiteralMap([]any{"k"}, []ast.AST{ast.NewKeyedAccess(member("xs"), lit(1))}),
		ast.NewLiteralArray(nil),
	)
	resolved, err := r.Resolve(tree)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.String() != tree.String() {
		t.Errorf("String() = %s, want %s", resolved.String(), tree.String())
	}
	got, err := resolved.Eval(values.MapOf("hidden", false, "xs", []any{"a", "b"}))
	if err != nil {
		t.Fatal(err)
	}
	if values.Inspect(got) != `{k: "b"}` {
		t.Errorf("Eval() = %s", values.Inspect(got))
	}
}

func TestPipeErrorsAreWrapped(t *testing.T) {
	r := NewRegistry(Options{})
	r.Register("boom", func(input any, args ...any) (any, error) {
		return nil, stderrors.New("kaboom")
	})
	resolved, err := r.Resolve(ast.NewFormatter(lit(1), "boom", nil))
	if err != nil {
		t.Fatal(err)
	}
	_, err = resolved.Eval(nil)
	if !stderrors.Is(err, terrors.ErrPipe) || !strings.Contains(err.Error(), "kaboom") {
		t.Errorf("error = %v, want pipe error mentioning kaboom", err)
	}
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry(Options{})
	names := r.Names()
	for _, want := range []string{"currency", "date", "json", "markdown", "uppercase"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Errorf("Names() missing %q", want)
		}
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("Names() not sorted: %v", names)
		}
	}
}

func apply(t *testing.T, r *Registry, name string, input any, args ...any) any {
	t.Helper()
	p, ok := r.Lookup(name)
	if !ok {
		t.Fatalf("pipe %q not registered", name)
	}
	out, err := p(input, args...)
	if err != nil {
		t.Fatalf("%s(%v) error: %v", name, input, err)
	}
	return out
}

func TestBuiltins(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(Options{Locale: "en-US", Now: func() time.Time { return now }})

	tests := []struct {
		name  string
		pipe  string
		input any
		args  []any
		want  any
	}{
		{"uppercase", "uppercase", "hello", nil, "HELLO"},
		{"lowercase", "lowercase", "HeLLo", nil, "hello"},
		{"titlecase", "titlecase", "hello world", nil, "Hello World"},
		{"number", "number", 1234567.891, []any{2}, "1,234,567.89"},
		{"number from string", "number", "1000", nil, "1,000"},
		{"percent", "percent", 0.25, nil, "25%"},
		{"date medium", "date", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), nil, "Jan 5, 2024"},
		{"date iso from string", "date", "2024-02-29T10:00:00Z", []any{"iso"}, "2024-02-29"},
		{"date layout", "date", int64(0), []any{"2006"}, "1970"},
		{"date locale", "date", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), []any{"long", "de-DE"}, "5. Januar 2024"},
		{"ago", "ago", now.Add(-3 * time.Hour), nil, "3 hours ago"},
		{"bytes", "bytes", 82854982, nil, "83 MB"},
		{"bytes iec", "bytes", 1024, []any{"iec"}, "1.0 KiB"},
		{"ordinal", "ordinal", 3, nil, "3rd"},
		{"comma int", "comma", 1234567, nil, "1,234,567"},
		{"comma float", "comma", 1234.5, nil, "1,234.5"},
		{"replace", "replace", "2024-01-05", []any{`(\d+)-(\d+)-(\d+)`, "$3/$2/$1"}, "05/01/2024"},
		{"match", "match", "abc123", []any{`^[a-z]+\d+$`}, true},
		{"match lookahead", "match", "password1", []any{`^(?=.*\d).{8,}$`}, true},
		{"json", "json", values.MapOf("b", 1, "a", []any{true}), nil, `{"b":1,"a":[true]}`},
		{"default keeps value", "default", "x", []any{"y"}, "x"},
		{"join", "join", []any{1, "two", 3.5}, nil, "1, two, 3.5"},
		{"join sep", "join", values.NewList("a", "b"), []any{"-"}, "a-b"},
		{"nil passes through", "uppercase", nil, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := apply(t, r, tt.pipe, tt.input, tt.args...)
			if got != tt.want {
				t.Errorf("%s = %#v, want %#v", tt.pipe, got, tt.want)
			}
		})
	}
}

func TestCurrency(t *testing.T) {
	r := NewRegistry(Options{Locale: "en-US"})
	got, _ := apply(t, r, "currency", 1234.5).(string)
	if !strings.Contains(got, "$") || !strings.Contains(got, "1,234.50") {
		t.Errorf("currency = %q", got)
	}
	got, _ = apply(t, r, "currency", 10, "EUR").(string)
	if !strings.Contains(got, "€") {
		t.Errorf("currency EUR = %q", got)
	}
}

func TestMarkdown(t *testing.T) {
	r := NewRegistry(Options{})
	got, _ := apply(t, r, "markdown", "# Title\n\n~~gone~~").(string)
	if !strings.Contains(got, "<h1>Title</h1>") {
		t.Errorf("markdown = %q", got)
	}
	if !strings.Contains(got, "<del>gone</del>") {
		t.Errorf("GFM strikethrough missing: %q", got)
	}
}

func TestBuiltinErrors(t *testing.T) {
	r := NewRegistry(Options{})
	tests := []struct {
		pipe  string
		input any
		args  []any
	}{
		{"number", "abc", nil},
		{"number", 1, []any{-1}},
		{"currency", 1, []any{"XYZ1"}},
		{"date", "not a date at all", nil},
		{"date", true, nil},
		{"bytes", -1, nil},
		{"ordinal", 1.5, nil},
		{"replace", "x", []any{"("}},
		{"replace", "x", []any{"a"}},
		{"match", "x", nil},
		{"default", nil, nil},
		{"join", 42, nil},
		{"join", []any{1}, []any{3}},
	}
	for _, tt := range tests {
		p, _ := r.Lookup(tt.pipe)
		_, err := p(tt.input, tt.args...)
		if !stderrors.Is(err, terrors.ErrPipe) {
			t.Errorf("%s(%v, %v): error = %v, want pipe error", tt.pipe, tt.input, tt.args, err)
		}
	}
}

func TestUnknownLocale(t *testing.T) {
	r := NewRegistry(Options{Locale: "not a locale!"})
	p, _ := r.Lookup("number")
	if _, err := p(1); !stderrors.Is(err, terrors.ErrPipe) {
		t.Errorf("error = %v, want pipe error", err)
	}
}

func TestDayFirstParsing(t *testing.T) {
	us := NewRegistry(Options{Locale: "en-US"})
	gb := NewRegistry(Options{Locale: "en-GB"})
	if got := apply(t, us, "date", "02/03/2024", "iso"); got != "2024-02-03" {
		t.Errorf("en-US 02/03/2024 = %v", got)
	}
	if got := apply(t, gb, "date", "02/03/2024", "iso"); got != "2024-03-02" {
		t.Errorf("en-GB 02/03/2024 = %v", got)
	}
}
