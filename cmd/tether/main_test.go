package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testManifest = `
context:
  user: {name: ada}
  price: 1234.5
  count: 2
bindings:
  - key: shout
    expression: {pipe: uppercase, input: {member: name, receiver: {member: user}}}
  - key: price
    expression: {pipe: number, input: {member: price}, args: [2]}
  - key: double
    expression: {binary: "*", left: {member: count}, right: 2}
  - key: item
    name: $implicit
`

func noenv(string) string { return "" }

// workspace runs the test in an empty directory with no user config.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRunVersion(t *testing.T) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	err := run(context.Background(), []string{"--version"}, stdout, stderr, noenv)

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout.String(), "tether version") {
		t.Errorf("expected version output, got %q", stdout.String())
	}
}

func TestRunHelp(t *testing.T) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	err := run(context.Background(), []string{"--help"}, stdout, stderr, noenv)

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	output := stdout.String()
	for _, want := range []string{"tether - evaluate and watch", "--config", "eval", "watch", "repl"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in help, got %q", want, output)
		}
	}
}

func TestRunErrors(t *testing.T) {
	dir := workspace(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no command", nil, "no command given"},
		{"unknown command", []string{"serve"}, `unknown command "serve"`},
		{"invalid flag", []string{"eval", "--invalid-flag"}, "flag provided but not defined"},
		{"missing config", []string{"eval", "--config", "/nonexistent/config.yaml", "m.yaml"}, "config file not found"},
		{"no manifest", []string{"eval"}, "no manifest given"},
		{"missing manifest", []string{"eval", filepath.Join(dir, "nope.yaml")}, "failed to read manifest"},
		{"bad locale", []string{"eval", "--locale", "!!", "m.yaml"}, "invalid locale"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), tt.args, &bytes.Buffer{}, &bytes.Buffer{}, noenv)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("run(%v) = %v, want error containing %q", tt.args, err, tt.wantErr)
			}
		})
	}
}

func TestRunEval(t *testing.T) {
	dir := workspace(t)
	path := filepath.Join(dir, "bindings.yaml")
	writeFile(t, path, testManifest)

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"eval", path}, &stdout, &stderr, noenv); err != nil {
		t.Fatalf("eval failed: %v (stderr: %s)", err, stderr.String())
	}
	want := "shout = \"ADA\"\nprice = \"1,234.50\"\ndouble = 4\n"
	if stdout.String() != want {
		t.Errorf("stdout = %q, want %q", stdout.String(), want)
	}
}

func TestRunEvalLocaleAndBinding(t *testing.T) {
	dir := workspace(t)
	path := filepath.Join(dir, "bindings.yaml")
	writeFile(t, path, testManifest)

	var stdout bytes.Buffer
	args := []string{"eval", "--locale", "de-DE", "--binding", "price", path}
	if err := run(context.Background(), args, &stdout, &bytes.Buffer{}, noenv); err != nil {
		t.Fatal(err)
	}
	if stdout.String() != "price = \"1.234,50\"\n" {
		t.Errorf("stdout = %q", stdout.String())
	}

	err := run(context.Background(), []string{"eval", "--binding", "item", path}, &bytes.Buffer{}, &bytes.Buffer{}, noenv)
	if err == nil || !strings.Contains(err.Error(), `no expression binding "item"`) {
		t.Errorf("name binding error = %v", err)
	}
}

func TestRunEvalJSON(t *testing.T) {
	dir := workspace(t)
	path := filepath.Join(dir, "bindings.yaml")
	writeFile(t, path, testManifest)

	var stdout bytes.Buffer
	if err := run(context.Background(), []string{"eval", "--json", path}, &stdout, &bytes.Buffer{}, noenv); err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", stdout.String(), err)
	}
	if got["shout"] != "ADA" || got["double"] != float64(4) {
		t.Errorf("results = %v", got)
	}
	if strings.Index(stdout.String(), "shout") > strings.Index(stdout.String(), "double") {
		t.Errorf("results not in binding order: %s", stdout.String())
	}
}

func TestRunEvalReportsFailures(t *testing.T) {
	dir := workspace(t)
	path := filepath.Join(dir, "bindings.yaml")
	writeFile(t, path, `
context: {a: 1}
bindings:
  - key: ok
    expression: {member: a}
  - key: broken
    expression: {binary: "+", left: {member: missing}, right: 1}
`)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"eval", path}, &stdout, &stderr, noenv)
	if err == nil || err.Error() != "1 of 2 bindings failed" {
		t.Errorf("err = %v", err)
	}
	if stdout.String() != "ok = 1\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "broken: error:") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestRunUsesConfig(t *testing.T) {
	dir := workspace(t)
	writeFile(t, filepath.Join(dir, "bindings.toml"), `
[context]
price = 1234.5

[[bindings]]
key = "price"
expression = { pipe = "number", input = { member = "price" }, args = [2] }
`)
	writeFile(t, filepath.Join(dir, "tether.yaml"), `
locale: ${TETHER_LOCALE:-en-GB}
manifest: bindings.toml
logging:
  level: debug
  output: tether.log
`)

	var stdout bytes.Buffer
	if err := run(context.Background(), []string{"eval"}, &stdout, &bytes.Buffer{}, noenv); err != nil {
		t.Fatal(err)
	}
	if stdout.String() != "price = \"1,234.50\"\n" {
		t.Errorf("stdout = %q", stdout.String())
	}

	log, err := os.ReadFile(filepath.Join(dir, "tether.log"))
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(log), "[DEBUG] loaded") {
		t.Errorf("log = %q", log)
	}

	getenv := func(key string) string {
		if key == "TETHER_LOCALE" {
			return "fr-FR"
		}
		return ""
	}
	stdout.Reset()
	if err := run(context.Background(), []string{"eval"}, &stdout, &bytes.Buffer{}, getenv); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), "234,50") {
		t.Errorf("fr-FR stdout = %q", stdout.String())
	}
}

func TestRunFmt(t *testing.T) {
	dir := workspace(t)
	path := filepath.Join(dir, "bindings.yaml")
	writeFile(t, path, testManifest)

	var stdout bytes.Buffer
	if err := run(context.Background(), []string{"fmt", path}, &stdout, &bytes.Buffer{}, noenv); err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"shout = user.name | uppercase",
		"price = price | number:2",
		"double = count * 2",
		"item -> $implicit",
	}, "\n") + "\n"
	if stdout.String() != want {
		t.Errorf("stdout = %q, want %q", stdout.String(), want)
	}
}

func TestWatchReload(t *testing.T) {
	dir := workspace(t)
	path := filepath.Join(dir, "bindings.yaml")
	writeFile(t, path, testManifest)

	e, err := setup(commonFlags{configPath: new(string), locale: new(string)}, path, &bytes.Buffer{}, &bytes.Buffer{}, noenv)
	if err != nil {
		t.Fatal(err)
	}
	defer e.close()

	var out bytes.Buffer
	w := &watcher{env: e, out: &out}
	if err := w.rebuild(e.manifest); err != nil {
		t.Fatal(err)
	}
	w.pass()
	if !strings.Contains(out.String(), `shout = "ADA"`) {
		t.Errorf("first pass = %q", out.String())
	}

	// Context change: same detector, only the changed binding is reported.
	out.Reset()
	writeFile(t, path, strings.Replace(testManifest, "count: 2", "count: 5", 1))
	w.reload(path)
	if out.String() != "  double: 4 -> 10\n" {
		t.Errorf("after context change = %q", out.String())
	}

	// Binding change: the detector is rebuilt and every binding is new.
	out.Reset()
	writeFile(t, path, strings.Replace(testManifest, "right: 2}", "right: 3}", 1))
	w.reload(path)
	if !strings.Contains(out.String(), "double = 6") || !strings.Contains(out.String(), `shout = "ADA"`) {
		t.Errorf("after binding change = %q", out.String())
	}

	// A broken manifest keeps the previous one.
	out.Reset()
	writeFile(t, path, "bindings: {")
	w.reload(path)
	if out.String() != "" {
		t.Errorf("broken reload printed %q", out.String())
	}
	if _, ok := w.detector.Record("double"); !ok {
		t.Error("detector lost its bindings after a failed reload")
	}
}

func TestRunWatchStopsOnCancel(t *testing.T) {
	dir := workspace(t)
	path := filepath.Join(dir, "bindings.yaml")
	writeFile(t, path, testManifest)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var stdout bytes.Buffer
	if err := run(ctx, []string{"watch", path}, &stdout, &bytes.Buffer{}, noenv); err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	if !strings.Contains(stdout.String(), `shout = "ADA"`) {
		t.Errorf("stdout = %q", stdout.String())
	}
}
