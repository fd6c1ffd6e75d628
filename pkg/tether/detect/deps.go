package detect

import (
	"strings"

	"github.com/sambeau/tether/pkg/tether/ast"
)

// Dependencies lists the member paths an expression reads from its scope,
// in order of first appearance. A path is the dotted chain of member names
// rooted at the scope, such as "user.name"; keyed access and calls end a
// path, so `items[0].title` contributes "items".
func Dependencies(n ast.AST) []string {
	v := &depVisitor{seen: make(map[string]bool)}
	v.Self = v
	v.Visit(n, nil)
	return v.deps
}

type depVisitor struct {
	ast.RecursiveVisitor
	seen map[string]bool
	deps []string
}

func (v *depVisitor) add(path string) {
	if path != "" && !v.seen[path] {
		v.seen[path] = true
		v.deps = append(v.deps, path)
	}
}

func (v *depVisitor) VisitAccessMember(n *ast.AccessMember, args any) any {
	if path, ok := memberPath(n); ok {
		v.add(path)
		return nil
	}
	return v.RecursiveVisitor.VisitAccessMember(n, args)
}

func (v *depVisitor) VisitMethodCall(n *ast.MethodCall, args any) any {
	// The method name is not a scope read; its receiver may be.
	if path, ok := receiverPath(n.Receiver); ok {
		v.add(path)
		v.VisitAll(n.Args, args)
		return nil
	}
	return v.RecursiveVisitor.VisitMethodCall(n, args)
}

// memberPath renders a chain of member accesses that ends at the implicit
// receiver.
func memberPath(m *ast.AccessMember) (string, bool) {
	parts := []string{m.Name}
	receiver := m.Receiver
	for {
		switch r := receiver.(type) {
		case *ast.ImplicitReceiver:
			for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
				parts[i], parts[j] = parts[j], parts[i]
			}
			return strings.Join(parts, "."), true
		case *ast.AccessMember:
			parts = append(parts, r.Name)
			receiver = r.Receiver
		default:
			return "", false
		}
	}
}

// receiverPath is the member path of a call receiver; an implicit receiver
// has the empty path.
func receiverPath(receiver ast.AST) (string, bool) {
	switch r := receiver.(type) {
	case *ast.ImplicitReceiver:
		return "", true
	case *ast.AccessMember:
		return memberPath(r)
	}
	return "", false
}
