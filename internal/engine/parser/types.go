package parser

import (
	"csguard/internal/engine/syntax"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

var typeNodeKinds = map[string]bool{
	"identifier":            true,
	"generic_name":          true,
	"qualified_name":        true,
	"alias_qualified_name":  true,
	"predefined_type":       true,
	"implicit_type":         true,
	"nullable_type":         true,
	"array_type":            true,
	"pointer_type":          true,
	"tuple_type":            true,
	"ref_type":              true,
	"scoped_type":           true,
	"function_pointer_type": true,
}

var typeFields = [...]string{"type", "returns"}

// isTypeSlot reports whether n sits where parent expects a type.
func isTypeSlot(parent, n *sitter.Node) bool {
	if parent == nil || !typeNodeKinds[n.Kind()] {
		return false
	}
	switch parent.Kind() {
	case "base_list", "type_argument_list", "typeof_expression", "default_expression",
		"sizeof_expression", "type_parameter_constraint", "type_constraint":
		return true
	case "as_expression", "is_expression":
		return sameNode(parent.ChildByFieldName("right"), n)
	case "using_directive":
		prev := n.PrevSibling()
		return prev != nil && (prev.Kind() == "=" || prev.Kind() == "name_equals")
	}
	for _, field := range typeFields {
		if sameNode(parent.ChildByFieldName(field), n) {
			return true
		}
	}
	return false
}

// typeRef emits n as one type token. Type arguments and tuple element types
// become nested type tokens. Trivia in front of the type stays outside it.
func (w *walker) typeRef(n *sitter.Node, owner syntax.NodeID) syntax.TokenID {
	w.gap(n.StartByte(), owner)
	id := w.b.OpenType(owner, typeClass(n), posOf(n))
	w.typeBody(n, owner)
	w.b.CloseType()
	return id
}

func (w *walker) typeBody(n *sitter.Node, owner syntax.NodeID) {
	if n.ChildCount() == 0 {
		w.leaf(n, owner)
		return
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if nestedType(n, c) {
			w.typeRef(c, owner)
			continue
		}
		w.typeBody(c, owner)
	}
}

func nestedType(parent, c *sitter.Node) bool {
	switch parent.Kind() {
	case "type_argument_list":
		return typeNodeKinds[c.Kind()]
	case "tuple_element":
		return sameNode(parent.ChildByFieldName("type"), c)
	}
	return false
}

func typeClass(n *sitter.Node) syntax.TokenClass {
	switch n.Kind() {
	case "generic_name":
		return syntax.ClassGenericType
	case "qualified_name", "alias_qualified_name":
		if name := n.ChildByFieldName("name"); name != nil {
			return typeClass(name)
		}
	}
	return syntax.ClassType
}

// typeInExpression handles a generic name or predefined type used as an
// expression, as in Parse<int>(s) or int.Parse(s). It becomes a literal bound
// to a type token so the member resolver skips it.
func typeInExpression(w *walker, n *sitter.Node, f frame) {
	if !f.refs {
		w.leaves(n, f.owner)
		return
	}
	id, _ := w.expr(n, syntax.ExpressionLiteral, f)
	w.b.SetLiteralToken(id, w.typeRef(n, id))
}

// arrayRankExpressions reports whether an array type carries sizes, as in
// new int[count].
func arrayRankExpressions(n *sitter.Node) bool {
	rank := n.ChildByFieldName("rank")
	if rank == nil {
		rank = childOfKind(n, "array_rank_specifier")
	}
	return rank != nil && rank.NamedChildCount() > 0
}
