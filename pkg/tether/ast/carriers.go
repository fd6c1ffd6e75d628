package ast

// ASTWithSource pairs a tree with the text it was built from. It is the unit
// handed to the compiler for diagnostics and to change detection for record
// identity.
type ASTWithSource struct {
	AST      AST
	Source   string
	Location string // Where the source came from, e.g. "manifest.yaml:12"
}

func NewASTWithSource(tree AST, source, location string) *ASTWithSource {
	return &ASTWithSource{AST: tree, Source: source, Location: location}
}

func (a *ASTWithSource) String() string { return a.Source }

// TemplateBinding is one `key` entry collected from a template attribute.
// Exactly one of Name and Expression is populated: variable bindings carry
// a name, expression bindings carry an expression. Build it with
// NewNameBinding or NewExpressionBinding.
type TemplateBinding struct {
	Key        string
	Name       string
	Expression *ASTWithSource
}

// NewNameBinding creates a binding that introduces name under key.
func NewNameBinding(key, name string) *TemplateBinding {
	return &TemplateBinding{Key: key, Name: name}
}

// NewExpressionBinding creates a binding that evaluates expression under key.
func NewExpressionBinding(key string, expression *ASTWithSource) *TemplateBinding {
	return &TemplateBinding{Key: key, Expression: expression}
}

// HasExpression reports whether the binding carries an expression.
func (b *TemplateBinding) HasExpression() bool { return b.Expression != nil }

// HasName reports whether the binding carries a name.
func (b *TemplateBinding) HasName() bool { return b.Expression == nil }
