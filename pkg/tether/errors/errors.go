// Package errors provides structured error types for tether expressions.
//
// This package defines TetherError, a single error type that every failure
// raised while evaluating, assigning or resolving a binding expression is
// reported through. Errors carry a class for filtering, a catalog code, a
// rendered message and optional hints.
package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// ErrorClass categorizes errors for filtering and templating.
type ErrorClass string

const (
	ClassUnsupported ErrorClass = "unsupported" // Operation not supported by the node kind
	ClassOperand     ErrorClass = "operand"     // Null/undefined operand
	ClassCall        ErrorClass = "call"        // Calling something that is not callable
	ClassType        ErrorClass = "type"        // Type mismatches
	ClassIndex       ErrorClass = "index"       // Out of bounds
	ClassOperator    ErrorClass = "operator"    // Invalid operations
	ClassUndefined   ErrorClass = "undefined"   // Unknown member or method
	ClassInternal    ErrorClass = "internal"    // Internal-consistency faults
	ClassConfig      ErrorClass = "config"      // Configuration problems
	ClassDecode      ErrorClass = "decode"      // Tree/manifest decoding
	ClassPipe        ErrorClass = "pipe"        // Formatter resolution and execution
)

// TetherError represents any error raised by the expression core or its
// collaborators.
type TetherError struct {
	Class   ErrorClass     `json:"class"`             // Error category
	Code    string         `json:"code"`              // Error code (e.g., "OPERAND-0001")
	Message string         `json:"message"`           // Human-readable message
	Hints   []string       `json:"hints,omitempty"`   // Suggestions for fixing
	Source  string         `json:"source,omitempty"`  // Expression source (if known)
	Binding string         `json:"binding,omitempty"` // Binding key (if known)
	Data    map[string]any `json:"data,omitempty"`    // Template variables
}

// Error implements the error interface.
func (e *TetherError) Error() string {
	return e.String()
}

// String returns a formatted string representation of the error.
func (e *TetherError) String() string {
	var sb strings.Builder

	if e.Binding != "" {
		sb.WriteString(e.Binding)
		sb.WriteString(": ")
	}
	if e.Source != "" {
		sb.WriteString(fmt.Sprintf("in `%s`: ", e.Source))
	}

	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// PrettyString returns a multi-line formatted string for display.
func (e *TetherError) PrettyString() string {
	var sb strings.Builder

	switch e.Class {
	case ClassConfig, ClassDecode:
		sb.WriteString("Load error")
	case ClassInternal:
		sb.WriteString("Internal error")
	default:
		sb.WriteString("Evaluation error")
	}

	if e.Binding != "" {
		sb.WriteString(":\n  binding: ")
		sb.WriteString(e.Binding)
		if e.Source != "" {
			sb.WriteString("\n  expression: ")
			sb.WriteString(e.Source)
		}
		sb.WriteString("\n  ")
	} else if e.Source != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Source)
		sb.WriteString("\n  ")
	} else {
		sb.WriteString(":\n  ")
	}

	sb.WriteString(e.Message)

	for i, hint := range e.Hints {
		sb.WriteString("\n  ")
		if i == 0 {
			sb.WriteString("Hint: ")
		} else {
			sb.WriteString("  or: ")
		}
		sb.WriteString(hint)
	}

	return sb.String()
}

// ToJSON returns the error as JSON bytes.
func (e *TetherError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// WithSource returns a copy of the error with the expression source set.
func (e *TetherError) WithSource(source string) *TetherError {
	copy := *e
	copy.Source = source
	return &copy
}

// WithBinding returns a copy of the error with the binding key set.
func (e *TetherError) WithBinding(key string) *TetherError {
	copy := *e
	copy.Binding = key
	return &copy
}

// Is reports whether target is a TetherError of the same class. A target
// with a Code set must also match the code.
func (e *TetherError) Is(target error) bool {
	t, ok := target.(*TetherError)
	if !ok {
		return false
	}
	if t.Class != e.Class {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// Sentinels for errors.Is. They match on class only.
var (
	ErrUnsupported      = &TetherError{Class: ClassUnsupported, Message: "not supported"}
	ErrOperandUndefined = &TetherError{Class: ClassOperand, Message: "one of the operands is not defined"}
	ErrNotCallable      = &TetherError{Class: ClassCall, Message: "not a function"}
	ErrInternal         = &TetherError{Class: ClassInternal, Message: "internal error"}
	ErrUndefined        = &TetherError{Class: ClassUndefined, Message: "undefined"}
	ErrIndex            = &TetherError{Class: ClassIndex, Message: "index out of range"}
	ErrType             = &TetherError{Class: ClassType, Message: "type mismatch"}
	ErrOperator         = &TetherError{Class: ClassOperator, Message: "invalid operation"}
	ErrPipe             = &TetherError{Class: ClassPipe, Message: "pipe failed"}
	ErrDecode           = &TetherError{Class: ClassDecode, Message: "decode failed"}
)

// ErrorDef defines an error in the catalog.
type ErrorDef struct {
	Class    ErrorClass // Error category
	Template string     // Message template with {{.placeholders}}
	Hints    []string   // Hint templates (may use {{.placeholders}})
}

// ErrorCatalog maps error codes to their definitions.
var ErrorCatalog = map[string]ErrorDef{
	// ========================================
	// Unsupported operations (UNSUP-0xxx)
	// ========================================
	"UNSUP-0001": {
		Class:    ClassUnsupported,
		Template: "{{.Node}} does not support eval",
	},
	"UNSUP-0002": {
		Class:    ClassUnsupported,
		Template: "{{.Node}} is not assignable",
	},
	"UNSUP-0003": {
		Class:    ClassUnsupported,
		Template: "formatter `{{.Name}}` must be resolved before evaluation",
		Hints:    []string{"resolve pipes with a pipe registry before evaluating the binding"},
	},
	"UNSUP-0004": {
		Class:    ClassUnsupported,
		Template: "assignment target {{.Node}} is not assignable",
	},

	// ========================================
	// Operand errors (OPERAND-0xxx)
	// ========================================
	"OPERAND-0001": {
		Class:    ClassOperand,
		Template: "one of the operands is not defined",
	},
	"OPERAND-0002": {
		Class:    ClassOperand,
		Template: "cannot set `{{.Name}}` on null",
	},
	"OPERAND-0003": {
		Class:    ClassOperand,
		Template: "cannot set index {{.Key}} on null",
	},

	// ========================================
	// Call errors (CALL-0xxx)
	// ========================================
	"CALL-0001": {
		Class:    ClassCall,
		Template: "{{.Value}} is not a function",
	},
	"CALL-0002": {
		Class:    ClassCall,
		Template: "`{{.Name}}` expects {{.Expected}} arguments, got {{.Got}}",
	},
	"CALL-0003": {
		Class:    ClassCall,
		Template: "cannot call method `{{.Name}}` on null",
	},

	// ========================================
	// Type errors (TYPE-0xxx)
	// ========================================
	"TYPE-0001": {
		Class:    ClassType,
		Template: "cannot index {{.Got}}",
	},
	"TYPE-0002": {
		Class:    ClassType,
		Template: "sequence index must be an integer, got {{.Got}}",
	},
	"TYPE-0003": {
		Class:    ClassType,
		Template: "argument {{.Index}} to `{{.Name}}`: cannot use {{.Got}} as {{.Expected}}",
	},
	"TYPE-0004": {
		Class:    ClassType,
		Template: "cannot read `{{.Name}}` from {{.Got}}",
	},
	"TYPE-0005": {
		Class:    ClassType,
		Template: "cannot assign {{.Got}} to `{{.Name}}` of type {{.Expected}}",
	},

	// ========================================
	// Index errors (INDEX-0xxx)
	// ========================================
	"INDEX-0001": {
		Class:    ClassIndex,
		Template: "index {{.Index}} out of range (length {{.Length}})",
	},

	// ========================================
	// Operator errors (OP-0xxx)
	// ========================================
	"OP-0001": {
		Class:    ClassOperator,
		Template: "unsupported operator `{{.Operator}}` for {{.LeftType}} and {{.RightType}}",
	},
	"OP-0002": {
		Class:    ClassOperator,
		Template: "division by zero",
	},
	"OP-0003": {
		Class:    ClassOperator,
		Template: "operator `{{.Operator}}` requires integers, got {{.LeftType}} and {{.RightType}}",
	},

	// ========================================
	// Undefined member errors (UNDEF-0xxx)
	// ========================================
	"UNDEF-0001": {
		Class:    ClassUndefined,
		Template: "{{.Type}} has no member `{{.Name}}`",
	},
	"UNDEF-0002": {
		Class:    ClassUndefined,
		Template: "{{.Type}} has no method `{{.Name}}`",
	},

	// ========================================
	// Internal faults (INTERNAL-0xxx)
	// ========================================
	"INTERNAL-0001": {
		Class:    ClassInternal,
		Template: "internal error: operator `{{.Operator}}` not handled",
	},

	// ========================================
	// Decode errors (DECODE-0xxx)
	// ========================================
	"DECODE-0001": {
		Class:    ClassDecode,
		Template: "unknown node kind `{{.Kind}}`",
	},
	"DECODE-0002": {
		Class:    ClassDecode,
		Template: "node `{{.Kind}}`: {{.Reason}}",
	},
	"DECODE-0003": {
		Class:    ClassDecode,
		Template: "binding `{{.Key}}` must have exactly one of name or expression",
	},

	// ========================================
	// Pipe errors (PIPE-0xxx)
	// ========================================
	"PIPE-0001": {
		Class:    ClassPipe,
		Template: "unknown pipe `{{.Name}}`",
	},
	"PIPE-0002": {
		Class:    ClassPipe,
		Template: "pipe `{{.Name}}`: {{.Reason}}",
	},
}

// New creates a TetherError from the catalog.
// If the code is not found, creates a generic error with the message.
func New(code string, data map[string]any) *TetherError {
	def, ok := ErrorCatalog[code]
	if !ok {
		msg := code
		if data != nil {
			if m, ok := data["message"].(string); ok {
				msg = m
			}
		}
		return &TetherError{
			Class:   ClassType,
			Code:    code,
			Message: msg,
			Data:    data,
		}
	}

	msg := renderTemplate(def.Template, data)

	var hints []string
	for _, hintTmpl := range def.Hints {
		rendered := renderTemplate(hintTmpl, data)
		if rendered != "" {
			hints = append(hints, rendered)
		}
	}

	return &TetherError{
		Class:   def.Class,
		Code:    code,
		Message: msg,
		Hints:   hints,
		Data:    data,
	}
}

// NewSimple creates a simple error without using the catalog.
func NewSimple(class ErrorClass, message string) *TetherError {
	return &TetherError{
		Class:   class,
		Message: message,
	}
}

// renderTemplate renders a Go template with the given data.
func renderTemplate(tmplStr string, data map[string]any) string {
	if data == nil {
		return tmplStr
	}

	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return tmplStr
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return tmplStr
	}

	return buf.String()
}

// ============================================================================
// Fuzzy Matching - "Did you mean?" suggestions
// ============================================================================

// levenshteinDistance computes the edit distance between two strings.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(a)][len(b)]
}

// matchThreshold is the maximum edit distance accepted for an input.
// Short words (1-3): 1 edit, medium (4-6): 2, longer: 3.
func matchThreshold(input string) int {
	switch {
	case len(input) >= 7:
		return 3
	case len(input) >= 4:
		return 2
	default:
		return 1
	}
}

// FindClosestMatch finds the closest match to the given string from candidates.
// Returns the best match if the distance is within the threshold, otherwise empty string.
// Comparison is case-insensitive, so `ctxprop` suggests `ctxProp`.
func FindClosestMatch(input string, candidates []string) string {
	if len(input) == 0 || len(candidates) == 0 {
		return ""
	}

	inputLower := strings.ToLower(input)

	var bestMatch string
	bestDistance := -1

	for _, candidate := range candidates {
		if candidate == input {
			continue
		}
		dist := levenshteinDistance(inputLower, strings.ToLower(candidate))
		if bestDistance == -1 || dist < bestDistance {
			bestDistance = dist
			bestMatch = candidate
		}
	}

	if bestDistance < 0 || bestDistance > matchThreshold(input) {
		return ""
	}

	return bestMatch
}

// FindTopMatches returns up to n candidates within the threshold, closest first.
func FindTopMatches(input string, candidates []string, n int) []string {
	if len(input) == 0 || len(candidates) == 0 || n <= 0 {
		return nil
	}

	type fuzzyMatch struct {
		value    string
		distance int
	}

	inputLower := strings.ToLower(input)
	var matches []fuzzyMatch
	for _, candidate := range candidates {
		if candidate == input {
			continue
		}
		dist := levenshteinDistance(inputLower, strings.ToLower(candidate))
		matches = append(matches, fuzzyMatch{value: candidate, distance: dist})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	threshold := matchThreshold(input)
	var result []string
	for i := 0; i < len(matches) && len(result) < n; i++ {
		if matches[i].distance <= threshold {
			result = append(result, matches[i].value)
		}
	}

	return result
}

// didYouMean suggests up to three of the available names, closest first.
func didYouMean(name string, available []string) string {
	matches := FindTopMatches(name, available, 3)
	if len(matches) == 0 {
		return ""
	}
	quoted := make([]string, len(matches))
	for i, m := range matches {
		quoted[i] = "`" + m + "`"
	}
	if len(quoted) == 1 {
		return "Did you mean " + quoted[0] + "?"
	}
	return "Did you mean " + strings.Join(quoted[:len(quoted)-1], ", ") + " or " + quoted[len(quoted)-1] + "?"
}

// NewUndefinedMember creates an unknown-member error with an optional
// "did you mean" hint drawn from the available names.
func NewUndefinedMember(name, typeName string, available []string) *TetherError {
	err := New("UNDEF-0001", map[string]any{"Name": name, "Type": typeName})
	if hint := didYouMean(name, available); hint != "" {
		err.Hints = append(err.Hints, hint)
	}
	return err
}

// NewUndefinedMethod creates an unknown-method error with an optional
// "did you mean" hint drawn from the available names.
func NewUndefinedMethod(name, typeName string, available []string) *TetherError {
	err := New("UNDEF-0002", map[string]any{"Name": name, "Type": typeName})
	if hint := didYouMean(name, available); hint != "" {
		err.Hints = append(err.Hints, hint)
	}
	return err
}

// NewUnknownPipe creates an unknown-pipe error with an optional hint.
func NewUnknownPipe(name string, available []string) *TetherError {
	err := New("PIPE-0001", map[string]any{"Name": name})
	if hint := didYouMean(name, available); hint != "" {
		err.Hints = append(err.Hints, hint)
	}
	return err
}
