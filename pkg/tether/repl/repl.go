// Package repl is an interactive shell over a loaded manifest: it evaluates
// bindings, edits the context and runs detection passes.
package repl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/sambeau/tether/pkg/tether/ast"
	"github.com/sambeau/tether/pkg/tether/detect"
	terrors "github.com/sambeau/tether/pkg/tether/errors"
	"github.com/sambeau/tether/pkg/tether/format"
	"github.com/sambeau/tether/pkg/tether/manifest"
	"github.com/sambeau/tether/pkg/tether/pipes"
	"github.com/sambeau/tether/pkg/tether/tree"
	"github.com/sambeau/tether/pkg/tether/values"
)

const PROMPT = "tether> "
const CONTINUATION_PROMPT = "   ...> "

var commands = []string{
	":help", ":bindings", ":context", ":eval", ":set", ":detect", ":tree", ":deps",
	"exit", "quit",
}

// Session is the state behind one REPL: a manifest, the pipe registry its
// expressions resolve against, and a detector over its bindings.
type Session struct {
	Manifest *manifest.Manifest
	closures ast.ClosureMap
	registry *pipes.Registry
	detector *detect.Detector
}

// NewSession registers every expression binding of m with a fresh detector.
func NewSession(m *manifest.Manifest, registry *pipes.Registry, closures ast.ClosureMap, opts ...detect.Option) (*Session, error) {
	opts = append(opts, detect.WithResolver(registry.Resolve))
	d := detect.New(opts...)
	if err := d.AddBindings(m.Bindings); err != nil {
		return nil, err
	}
	return &Session{Manifest: m, closures: closures, registry: registry, detector: d}, nil
}

// Start runs the REPL with line editing, history, and tab completion
func Start(out io.Writer, s *Session, version string) {
	line := liner.NewLiner()
	defer line.Close()

	// Enable Ctrl+C to abort current line
	line.SetCtrlCAborts(true)

	line.SetCompleter(s.complete)

	// Load command history from file
	historyFile := filepath.Join(os.TempDir(), ".tether_history")
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	// Save history on exit
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Fprintln(out, "tether", version)
	fmt.Fprintf(out, "%s: %d bindings\n", s.Manifest.Path, len(s.Manifest.Bindings))
	fmt.Fprintln(out, "Type ':help' for commands, 'exit' or Ctrl+D to quit")
	fmt.Fprintln(out, "")

	var inputBuffer strings.Builder
	for {
		currentPrompt := PROMPT
		if inputBuffer.Len() > 0 {
			currentPrompt = CONTINUATION_PROMPT
		}
		input, err := line.Prompt(currentPrompt)
		if err != nil {
			if err == liner.ErrPromptAborted {
				if inputBuffer.Len() > 0 {
					fmt.Fprintln(out, "^C (cleared)")
				} else {
					fmt.Fprintln(out, "^C")
				}
				inputBuffer.Reset()
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(out, "\nGoodbye!")
				return
			}
			fmt.Fprintf(out, "Error reading input: %v\n", err)
			continue
		}

		if inputBuffer.Len() > 0 {
			inputBuffer.WriteString("\n")
		}
		inputBuffer.WriteString(input)

		fullInput := inputBuffer.String()
		if needsMoreInput(fullInput) {
			continue
		}
		inputBuffer.Reset()

		if strings.TrimSpace(fullInput) != "" {
			line.AppendHistory(fullInput)
		}
		if quit := s.Execute(fullInput, out); quit {
			fmt.Fprintln(out, "Goodbye!")
			return
		}
	}
}

// Execute runs one complete input: a command, or a tree written as YAML
// flow text, which is evaluated against the context. It reports whether
// the user asked to quit.
func (s *Session) Execute(input string, out io.Writer) bool {
	trimmed := strings.TrimSpace(input)
	switch {
	case trimmed == "":
		return false
	case trimmed == "exit" || trimmed == "quit":
		return true
	case strings.HasPrefix(trimmed, ":"):
		s.command(trimmed, out)
		return false
	}

	n, err := tree.Unmarshal([]byte(trimmed), s.closures)
	if err != nil {
		printError(out, err)
		return false
	}
	s.evalTree(format.Source(n, "repl"), out)
	return false
}

func (s *Session) command(input string, out io.Writer) {
	name, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case ":help", ":h", ":?":
		fmt.Fprintln(out, "REPL Commands:")
		fmt.Fprintln(out, "  :help, :h, :?      Show this help")
		fmt.Fprintln(out, "  :bindings          List bindings and their sources")
		fmt.Fprintln(out, "  :context           Show the context")
		fmt.Fprintln(out, "  :eval KEY          Evaluate one binding")
		fmt.Fprintln(out, "  :set PATH VALUE    Set a context value, e.g. :set user.name \"Ada\"")
		fmt.Fprintln(out, "  :detect            Run a detection pass and show changes")
		fmt.Fprintln(out, "  :tree KEY          Show a binding's tree")
		fmt.Fprintln(out, "  :deps KEY          Show the context paths a binding reads")
		fmt.Fprintln(out, "  exit, quit         Exit the REPL")
		fmt.Fprintln(out, "")
		fmt.Fprintln(out, "Any other input is read as a tree, e.g. {binary: \"+\", left: 1, right: 2}")

	case ":bindings":
		if len(s.Manifest.Bindings) == 0 {
			fmt.Fprintln(out, "(no bindings)")
			return
		}
		for _, b := range s.Manifest.Bindings {
			if b.HasName() {
				fmt.Fprintf(out, "  %s -> %s\n", b.Key, b.Name)
				continue
			}
			fmt.Fprintf(out, "  %s = %s\n", b.Key, b.Expression.Source)
		}

	case ":context":
		fmt.Fprintln(out, values.Inspect(s.Manifest.Context))

	case ":eval":
		r, ok := s.record(rest, out)
		if !ok {
			return
		}
		s.evalTree(r.Expression, out)

	case ":set":
		path, text, _ := strings.Cut(rest, " ")
		if path == "" {
			fmt.Fprintln(out, "Usage: :set PATH VALUE")
			return
		}
		value, err := manifest.ParseValue(strings.TrimSpace(text))
		if err == nil {
			err = s.Manifest.Set(path, value)
		}
		if err != nil {
			printError(out, err)
			return
		}
		fmt.Fprintf(out, "%s = %s\n", path, values.Inspect(value))

	case ":detect":
		changes := s.detector.DetectChanges(s.Manifest.Context)
		if len(changes) == 0 {
			fmt.Fprintln(out, "(no changes)")
			return
		}
		for _, c := range changes {
			PrintChange(out, c)
		}

	case ":tree":
		b, ok := s.Manifest.Binding(rest)
		if !ok || !b.HasExpression() {
			fmt.Fprintf(out, "No expression binding %q\n", rest)
			return
		}
		data, err := tree.Marshal(b.Expression.AST)
		if err != nil {
			printError(out, err)
			return
		}
		out.Write(data)

	case ":deps":
		r, ok := s.record(rest, out)
		if !ok {
			return
		}
		deps := detect.Dependencies(r.Expression.AST)
		if len(deps) == 0 {
			fmt.Fprintln(out, "(none)")
			return
		}
		fmt.Fprintln(out, strings.Join(deps, "\n"))

	default:
		fmt.Fprintf(out, "Unknown command: %s (type :help for commands)\n", name)
		if suggestion := terrors.FindClosestMatch(name, commands); suggestion != "" {
			fmt.Fprintf(out, "  Did you mean `%s`?\n", suggestion)
		}
	}
}

func (s *Session) record(key string, out io.Writer) (*detect.Record, bool) {
	if key == "" {
		fmt.Fprintln(out, "A binding key is required")
		return nil, false
	}
	r, ok := s.detector.Record(key)
	if !ok {
		fmt.Fprintf(out, "No expression binding %q\n", key)
		if suggestion := terrors.FindClosestMatch(key, s.Manifest.Keys()); suggestion != "" {
			fmt.Fprintf(out, "  Did you mean `%s`?\n", suggestion)
		}
	}
	return r, ok
}

// evalTree resolves pipes in expr and evaluates it against the context.
func (s *Session) evalTree(expr *ast.ASTWithSource, out io.Writer) {
	resolved, err := s.registry.Resolve(expr.AST)
	if err != nil {
		printError(out, err)
		return
	}
	v, err := resolved.Eval(s.Manifest.Context)
	if err != nil {
		var te *terrors.TetherError
		if errors.As(err, &te) {
			err = te.WithSource(expr.Source)
		}
		printError(out, err)
		return
	}
	fmt.Fprintln(out, values.Inspect(v))
}

// PrintChange writes one detection result as a single line.
func PrintChange(out io.Writer, c detect.Change) {
	switch {
	case c.Err != nil:
		fmt.Fprintf(out, "  %s: error: %v\n", c.Record.Key, c.Err)
	case c.First:
		fmt.Fprintf(out, "  %s = %s\n", c.Record.Key, values.Inspect(c.Current))
	default:
		fmt.Fprintf(out, "  %s: %s -> %s\n", c.Record.Key, values.Inspect(c.Previous), values.Inspect(c.Current))
	}
}

func printError(out io.Writer, err error) {
	var te *terrors.TetherError
	if errors.As(err, &te) {
		io.WriteString(out, te.PrettyString())
		io.WriteString(out, "\n")
		return
	}
	fmt.Fprintf(out, "Error: %v\n", err)
}

// complete offers commands at the start of a line, then binding keys and
// context names.
func (s *Session) complete(line string) []string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasSuffix(line, " ") || strings.HasSuffix(line, "\t") {
		return nil
	}

	words := strings.Fields(line)
	last := words[len(words)-1]
	prefix := strings.TrimSuffix(line, last)

	var candidates []string
	if len(words) == 1 {
		candidates = commands
	} else {
		candidates = append(s.Manifest.Keys(), s.Manifest.Context.StringKeys()...)
	}

	var matches []string
	for _, word := range candidates {
		if strings.HasPrefix(word, last) {
			matches = append(matches, prefix+word)
		}
	}
	return matches
}

// needsMoreInput checks if the input has unclosed braces or brackets
func needsMoreInput(input string) bool {
	input = strings.TrimSpace(input)
	if input == "" || strings.HasPrefix(input, ":") {
		return false
	}

	depth := 0
	var quote byte
	escapeNext := false

	for i := 0; i < len(input); i++ {
		ch := input[i]

		if escapeNext {
			escapeNext = false
			continue
		}

		if quote != 0 {
			switch {
			case ch == '\\' && quote == '"':
				escapeNext = true
			case ch == quote:
				quote = 0
			}
			continue
		}

		switch ch {
		case '"', '\'':
			quote = ch
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		}
	}

	return depth > 0 || quote != 0
}
