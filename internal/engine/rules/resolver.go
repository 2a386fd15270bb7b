package rules

import (
	"context"
	"strings"

	"csguard/internal/engine/syntax"
)

// Decision is the outcome of resolving one identifier use-site.
type Decision uint8

const (
	Ignore Decision = iota
	InstanceMemberReference
)

func (d Decision) String() string {
	if d == InstanceMemberReference {
		return "instance_member_reference"
	}
	return "ignore"
}

// UseSite is an identifier occurrence inside a member body.
type UseSite struct {
	Expression syntax.NodeID
	Token      syntax.TokenID
}

const selfKeyword = "this"

// Resolver decides whether a bare identifier refers to an instance member
// of the enclosing type.
type Resolver struct {
	tree *syntax.Tree
}

// NewResolver returns a resolver over tree.
func NewResolver(tree *syntax.Tree) *Resolver {
	return &Resolver{tree: tree}
}

// Resolve applies the exclusion checklist to site and then looks the name up
// in index. typeID is the enclosing type the index was built for.
func (r *Resolver) Resolve(site UseSite, typeID syntax.NodeID, index MemberIndex) Decision {
	tok := r.tree.Token(site.Token)
	if tok == nil {
		return Ignore
	}
	switch {
	case r.qualified(site.Token):
		return Ignore
	case tok.Text == selfKeyword:
		return Ignore
	case strings.HasPrefix(tok.Text, "."):
		return Ignore
	case tok.IsType():
		return Ignore
	case IsBoundBefore(r.tree, site.Expression, tok.Text, tok.Pos):
		return Ignore
	case r.initializerTarget(site.Expression):
		return Ignore
	}

	member := r.lookup(tok.Text, typeID, index)
	if member == syntax.NoNode {
		return Ignore
	}
	n := r.tree.Node(member)
	if n.Kind == syntax.ElementProperty && n.Decl.ReturnType == n.Decl.Name {
		// A property named after its own type reads as a type reference.
		return Ignore
	}
	return InstanceMemberReference
}

func (r *Resolver) qualified(id syntax.TokenID) bool {
	prev := r.tree.Token(r.tree.PreviousSignificant(id))
	return prev != nil && prev.Operator.IsQualifier()
}

// initializerTarget reports whether expr is the left-hand side of an
// assignment directly inside an object or collection initializer. Those
// names belong to the initialized type, not the enclosing one.
func (r *Resolver) initializerTarget(expr syntax.NodeID) bool {
	n := r.tree.Node(expr)
	if n == nil || n.Kind != syntax.ExpressionLiteral {
		return false
	}
	assign := r.tree.Node(n.Parent)
	if assign == nil || assign.Kind != syntax.ExpressionAssignment {
		return false
	}
	if left, _ := r.tree.AssignmentSides(n.Parent); left != expr {
		return false
	}
	container := r.tree.Node(assign.Parent)
	return container != nil && container.Kind.IsInitializer()
}

// lookup returns the member name resolves to, or NoNode. Any static or const
// candidate voids the match: overload sets are not resolved.
func (r *Resolver) lookup(name string, typeID syntax.NodeID, index MemberIndex) syntax.NodeID {
	matches := index.Lookup(name)
	if len(matches) == 0 {
		return syntax.NoNode
	}
	if t := r.tree.Node(typeID); t != nil && t.Name() == name {
		return syntax.NoNode
	}
	found := syntax.NoNode
	for _, id := range matches {
		n := r.tree.Node(id)
		if n.Decl.Contains(syntax.ModStatic) || (n.Kind == syntax.ElementField && n.Decl.Contains(syntax.ModConst)) {
			return syntax.NoNode
		}
		if !n.Kind.IsTypeDeclaration() && found == syntax.NoNode {
			found = id
		}
	}
	return found
}

// typeContext is the enclosing type of the member being checked.
type typeContext struct {
	id    syntax.NodeID
	index MemberIndex
}

// memberRules walks member bodies and reports unqualified instance member
// references.
type memberRules struct {
	ctx      context.Context
	tree     *syntax.Tree
	sink     Sink
	resolver *Resolver
	err      error
}

func checkMemberReferences(ctx context.Context, tree *syntax.Tree, sink Sink) error {
	m := &memberRules{
		ctx:      ctx,
		tree:     tree,
		sink:     sink,
		resolver: NewResolver(tree),
	}
	m.elements(tree.Root, nil)
	return m.err
}

func (m *memberRules) cancelled() bool {
	if m.err != nil {
		return true
	}
	if err := m.ctx.Err(); err != nil {
		m.err = err
		return true
	}
	return false
}

func (m *memberRules) elements(element syntax.NodeID, typ *typeContext) bool {
	if m.cancelled() {
		return false
	}
	for _, child := range m.tree.ChildElements(element) {
		n := m.tree.Node(child)
		if n.Generated() {
			continue
		}
		switch {
		// Constructor, destructor and operator bodies are not checked.
		case n.Kind == syntax.ElementMethod || n.Kind == syntax.ElementAccessor:
			// Code sitting outside any type has nothing to qualify.
			if typ != nil && !m.statements(m.tree.ChildStatements(child), child, typ) {
				return false
			}
		case n.Kind.IsTypeContainer():
			inner := &typeContext{id: child, index: BuildMemberIndex(m.tree, child)}
			if !m.elements(child, inner) {
				return false
			}
		default:
			if !m.elements(child, typ) {
				return false
			}
		}
	}
	return true
}

func (m *memberRules) statements(stmts []syntax.NodeID, element syntax.NodeID, typ *typeContext) bool {
	for _, stmt := range stmts {
		if m.cancelled() {
			return false
		}
		if nested := m.tree.ChildStatements(stmt); len(nested) > 0 {
			if !m.statements(nested, element, typ) {
				return false
			}
		}
		if !m.expressions(m.tree.ChildExpressions(stmt), element, typ) {
			return false
		}
	}
	return true
}

func (m *memberRules) expressions(exprs []syntax.NodeID, element syntax.NodeID, typ *typeContext) bool {
	for _, expr := range exprs {
		n := m.tree.Node(expr)
		if n.Kind == syntax.ExpressionVariableDeclarator {
			// The declared name is never a reference; only the initializer is.
			init := m.tree.Initializer(expr)
			if init == syntax.NoNode {
				continue
			}
			expr = init
		}
		if !m.expression(expr, element, typ) {
			return false
		}
	}
	return true
}

func (m *memberRules) expression(expr, element syntax.NodeID, typ *typeContext) bool {
	if m.cancelled() {
		return false
	}
	n := m.tree.Node(expr)
	if n == nil {
		return true
	}

	if n.Kind == syntax.ExpressionLiteral {
		m.literal(expr, element, typ)
		return true
	}

	if parent := m.tree.Node(n.Parent); n.Kind == syntax.ExpressionAssignment &&
		parent != nil && parent.Kind == syntax.ExpressionCollectionInitializer {
		if _, right := m.tree.AssignmentSides(expr); right != syntax.NoNode {
			if !m.expression(right, element, typ) {
				return false
			}
		}
	} else if children := m.tree.ChildExpressions(expr); len(children) > 0 {
		if !m.expressions(children, element, typ) {
			return false
		}
	}

	switch {
	case n.Kind.IsAnonymousFunction():
		return m.statements(m.tree.ChildStatements(expr), element, typ)
	case n.Kind == syntax.ExpressionMethodInvocation:
		for _, arg := range n.Arguments {
			if !m.expression(arg, element, typ) {
				return false
			}
		}
	}
	return true
}

func (m *memberRules) literal(expr, element syntax.NodeID, typ *typeContext) {
	n := m.tree.Node(expr)
	site := UseSite{Expression: expr, Token: n.Token}
	if m.resolver.Resolve(site, typ.id, typ.index) != InstanceMemberReference {
		return
	}
	tok := m.tree.Token(n.Token)
	m.sink.Report(newViolation(
		RuleUseThisPrefix,
		m.tree.Path,
		tok.Pos.Line,
		tok.Pos.Column,
		m.tree.Node(element).Name(),
		tok.Text,
	))
}
