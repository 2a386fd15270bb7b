package parser

import (
	"csguard/internal/engine/syntax"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

var statementKinds = map[string]syntax.Kind{
	"block":                       syntax.StatementBlock,
	"expression_statement":        syntax.StatementExpression,
	"local_declaration_statement": syntax.StatementVariableDeclaration,
	"if_statement":                syntax.StatementIf,
	"while_statement":             syntax.StatementWhile,
	"do_statement":                syntax.StatementDo,
	"for_statement":               syntax.StatementFor,
	"for_each_statement":          syntax.StatementForeach,
	"foreach_statement":           syntax.StatementForeach,
	"return_statement":            syntax.StatementReturn,
	"throw_statement":             syntax.StatementThrow,
	"switch_statement":            syntax.StatementSwitch,
	"switch_section":              syntax.StatementSwitchSection,
	"try_statement":               syntax.StatementTry,
	"catch_clause":                syntax.StatementCatch,
	"finally_clause":              syntax.StatementFinally,
	"using_statement":             syntax.StatementUsing,
	"lock_statement":              syntax.StatementLock,
	"fixed_statement":             syntax.StatementFixed,
	"yield_statement":             syntax.StatementYield,
}

// Statements that introduce a scope for the locals declared inside them.
var scopedStatements = map[syntax.Kind]bool{
	syntax.StatementBlock:         true,
	syntax.StatementFor:           true,
	syntax.StatementForeach:       true,
	syntax.StatementUsing:         true,
	syntax.StatementCatch:         true,
	syntax.StatementFixed:         true,
	syntax.StatementSwitchSection: true,
}

func registerStatements(h map[string]nodeHandler) {
	for kind, k := range statementKinds {
		h[kind] = statement(k)
	}
	h["local_function_statement"] = localFunction
}

func statement(kind syntax.Kind) nodeHandler {
	return func(w *walker, n *sitter.Node, f frame) {
		id := w.b.Statement(f.owner, kind, posOf(n))
		inner := frame{owner: id, scope: f.scope, call: syntax.NoNode, refs: true}
		if scopedStatements[kind] {
			inner.scope = id
		}
		w.walkChildren(n, inner)
	}
}

// localFunction declares the function name for the whole enclosing scope,
// so calls before the declaration are not taken for member references.
// Parameters are scoped to the function itself.
func localFunction(w *walker, n *sitter.Node, f frame) {
	name := nameNode(n)
	if name != nil {
		w.b.Declare(f.scope, w.text(name), syntax.Position{})
	}
	id := w.b.Statement(f.owner, syntax.StatementLocalFunction, posOf(n))
	inner := frame{owner: id, scope: id, call: syntax.NoNode}
	body := n.ChildByFieldName("body")
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		switch {
		case sameNode(c, name):
			w.leaf(c, id)
		case sameNode(c, body) || c.Kind() == "block" || c.Kind() == "arrow_expression_clause":
			w.body(n, c, inner)
		default:
			w.visit(n, c, inner)
		}
	}
}
