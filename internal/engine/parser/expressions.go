package parser

import (
	"csguard/internal/engine/syntax"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

var expressionKinds = map[string]syntax.Kind{
	"member_access_expression":            syntax.ExpressionMemberAccess,
	"conditional_access_expression":       syntax.ExpressionMemberAccess,
	"member_binding_expression":           syntax.ExpressionMemberAccess,
	"element_access_expression":           syntax.ExpressionElementAccess,
	"element_binding_expression":          syntax.ExpressionElementAccess,
	"assignment_expression":               syntax.ExpressionAssignment,
	"binary_expression":                   syntax.ExpressionBinary,
	"as_expression":                       syntax.ExpressionBinary,
	"is_expression":                       syntax.ExpressionBinary,
	"is_pattern_expression":               syntax.ExpressionBinary,
	"range_expression":                    syntax.ExpressionBinary,
	"prefix_unary_expression":             syntax.ExpressionUnary,
	"postfix_unary_expression":            syntax.ExpressionUnary,
	"await_expression":                    syntax.ExpressionUnary,
	"conditional_expression":              syntax.ExpressionConditional,
	"cast_expression":                     syntax.ExpressionCast,
	"typeof_expression":                   syntax.ExpressionTypeof,
	"parenthesized_expression":            syntax.ExpressionParenthesized,
	"implicit_array_creation_expression":  syntax.ExpressionArrayCreation,
	"stackalloc_expression":               syntax.ExpressionArrayCreation,
	"implicit_stackalloc_expression":      syntax.ExpressionArrayCreation,
	"object_creation_expression":          syntax.ExpressionObjectCreation,
	"implicit_object_creation_expression": syntax.ExpressionObjectCreation,
}

var constantKinds = []string{
	"integer_literal",
	"real_literal",
	"boolean_literal",
	"null_literal",
	"character_literal",
	"string_literal",
	"verbatim_string_literal",
	"raw_string_literal",
}

func registerExpressions(h map[string]nodeHandler) {
	for kind, k := range expressionKinds {
		h[kind] = expression(k)
	}
	for _, kind := range constantKinds {
		h[kind] = constant
	}
	h["array_creation_expression"] = arrayCreation
	h["invocation_expression"] = invocation
	h["initializer_expression"] = initializer
	h["anonymous_object_creation_expression"] = anonymousObjectCreation
	h["lambda_expression"] = anonymousFunction(syntax.ExpressionLambda)
	h["anonymous_method_expression"] = anonymousFunction(syntax.ExpressionAnonymousMethod)
	h["query_expression"] = query
	h["variable_declaration"] = variableDeclaration
	h["variable_declarator"] = variableDeclarator
	h["generic_name"] = typeInExpression
	h["predefined_type"] = typeInExpression
	h["this"] = self
	h["this_expression"] = self
	h["base"] = self
	h["base_expression"] = self
}

func expression(kind syntax.Kind) nodeHandler {
	return func(w *walker, n *sitter.Node, f frame) {
		_, inner := w.expr(n, kind, f)
		w.walkChildren(n, inner)
	}
}

// constant emits a literal value as one token, so a string never splits
// into its quotes and content.
func constant(w *walker, n *sitter.Node, f frame) {
	id, _ := w.expr(n, syntax.ExpressionConstant, f)
	w.leaf(n, id)
}

// self handles this and base. Outside executable code they are keywords of
// the surrounding declaration, as in an indexer or an extension parameter.
func self(w *walker, n *sitter.Node, f frame) {
	if !f.refs {
		w.leaves(n, f.owner)
		return
	}
	id, _ := w.expr(n, syntax.ExpressionLiteral, f)
	w.b.SetLiteralToken(id, w.leaves(n, id))
}

// arrayCreation keeps sized ranks such as new int[count] out of the type
// token so the sizes are walked as expressions.
func arrayCreation(w *walker, n *sitter.Node, f frame) {
	_, inner := w.expr(n, syntax.ExpressionArrayCreation, f)
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c.Kind() != "array_type" || !arrayRankExpressions(c) {
			w.visit(n, c, inner)
			continue
		}
		elem := c.ChildByFieldName("type")
		for j := uint(0); j < c.ChildCount(); j++ {
			cc := c.Child(j)
			if sameNode(cc, elem) {
				w.typeRef(cc, inner.owner)
				continue
			}
			w.visit(c, cc, inner)
		}
	}
}

// invocation routes the argument list into the invocation's arguments.
func invocation(w *walker, n *sitter.Node, f frame) {
	id, inner := w.expr(n, syntax.ExpressionMethodInvocation, f)
	args := n.ChildByFieldName("arguments")
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if sameNode(c, args) || (args == nil && c.Kind() == "argument_list") {
			call := inner
			call.call = id
			w.walkChildren(c, call)
			continue
		}
		w.visit(n, c, inner)
	}
}

// initializer is an object initializer when it assigns members and a
// collection initializer otherwise.
func initializer(w *walker, n *sitter.Node, f frame) {
	kind := syntax.ExpressionCollectionInitializer
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if n.NamedChild(i).Kind() == "assignment_expression" {
			kind = syntax.ExpressionObjectInitializer
			break
		}
	}
	_, inner := w.expr(n, kind, f)
	w.walkChildren(n, inner)
}

// anonymousObjectCreation lowers new { Name = value } into an object creation
// holding an object initializer, so Name is treated as an initializer target.
// The grammar emits the member name as a bare identifier followed by "=";
// older grammars wrap it in name_equals. A projection such as new { Count }
// has no "=" and stays a plain reference.
func anonymousObjectCreation(w *walker, n *sitter.Node, f frame) {
	_, create := w.expr(n, syntax.ExpressionObjectCreation, f)
	init := create
	started := false
	pending := false
	var member frame
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c.Kind() == "{" && !started {
			w.leaf(c, create.owner)
			_, init = w.expr(c, syntax.ExpressionObjectInitializer, create)
			started = true
			continue
		}
		switch {
		case started && !pending && c.Kind() == "identifier" && followedByEquals(n, i):
			_, member = w.expr(c, syntax.ExpressionAssignment, init)
			w.reference(c, member)
			pending = true
		case c.Kind() == "name_equals":
			_, member = w.expr(c, syntax.ExpressionAssignment, init)
			for j := uint(0); j < c.ChildCount(); j++ {
				cc := c.Child(j)
				if cc.Kind() == "identifier" {
					w.reference(cc, member)
					continue
				}
				w.leaf(cc, member.owner)
			}
			pending = true
		case pending && c.Kind() == "=":
			w.leaf(c, member.owner)
		case pending && c.IsNamed() && c.Kind() != "comment":
			w.visit(n, c, member)
			pending = false
		default:
			w.visit(n, c, init)
		}
	}
}

// followedByEquals reports whether the next non-comment child of n after
// index i is an "=" token.
func followedByEquals(n *sitter.Node, i uint) bool {
	for j := i + 1; j < n.ChildCount(); j++ {
		c := n.Child(j)
		if c.Kind() == "comment" {
			continue
		}
		return c.Kind() == "="
	}
	return false
}

// anonymousFunction lowers lambdas and anonymous methods. Parameters are
// declared on the function and the body is flattened into it.
func anonymousFunction(kind syntax.Kind) nodeHandler {
	return func(w *walker, n *sitter.Node, f frame) {
		id, inner := w.expr(n, kind, f)
		inner.scope = id
		inner.refs = false
		params := n.ChildByFieldName("parameters")
		body := n.ChildByFieldName("body")
		arrow := false
		for i := uint(0); i < n.ChildCount(); i++ {
			c := n.Child(i)
			switch {
			case sameNode(c, body) || c.Kind() == "block" || (body == nil && arrow && c.IsNamed()):
				w.body(n, c, inner)
			case sameNode(c, params) && (c.Kind() == "identifier" || c.Kind() == "implicit_parameter"):
				w.leaf(c, id)
				w.b.Declare(id, w.text(c), posOf(c))
			case c.Kind() == "=>":
				arrow = true
				w.leaf(c, id)
			default:
				w.visit(n, c, inner)
			}
		}
	}
}

// query scopes range variables to the query expression.
func query(w *walker, n *sitter.Node, f frame) {
	id, inner := w.expr(n, syntax.ExpressionQuery, f)
	inner.scope = id
	w.walkChildren(n, inner)
}

func variableDeclaration(w *walker, n *sitter.Node, f frame) {
	_, inner := w.expr(n, syntax.ExpressionVariableDeclaration, f)
	w.walkChildren(n, inner)
}

// variableDeclarator declares its name in the current scope. The
// initializer, when present, is the declarator's first child.
func variableDeclarator(w *walker, n *sitter.Node, f frame) {
	id, inner := w.expr(n, syntax.ExpressionVariableDeclarator, f)
	name := declaratorName(n)
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		switch {
		case sameNode(c, name):
			w.leaf(c, id)
			w.b.Declare(f.scope, w.text(c), posOf(c))
		case c.Kind() == "equals_value_clause":
			w.walkChildren(c, inner)
		default:
			w.visit(n, c, inner)
		}
	}
}

func declaratorName(n *sitter.Node) *sitter.Node {
	if name := n.ChildByFieldName("name"); name != nil {
		return name
	}
	return childOfKind(n, "identifier")
}
