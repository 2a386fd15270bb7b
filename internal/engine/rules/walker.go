package rules

import (
	"context"

	"csguard/internal/engine/syntax"
)

// Visitor holds the callbacks invoked by Walk. A nil callback is skipped.
// Returning false from any callback stops the whole walk.
type Visitor struct {
	Element    func(id, parentElement syntax.NodeID) bool
	Statement  func(id, parentStatement, parentElement syntax.NodeID) bool
	Expression func(id, parentExpression, parentStatement, parentElement syntax.NodeID) bool
}

// Walk visits every node of tree depth first in source order. Generated
// elements and everything under them are skipped. The context is polled at
// each node; on cancellation Walk returns ctx.Err().
func Walk(ctx context.Context, tree *syntax.Tree, v Visitor) error {
	if tree == nil || tree.Node(tree.Root) == nil {
		return nil
	}
	w := &walker{ctx: ctx, tree: tree, v: v}
	w.walk(tree.Root, syntax.NoNode, syntax.NoNode, syntax.NoNode)
	return w.err
}

type walker struct {
	ctx  context.Context
	tree *syntax.Tree
	v    Visitor
	err  error
}

func (w *walker) cancelled() bool {
	if w.err != nil {
		return true
	}
	if err := w.ctx.Err(); err != nil {
		w.err = err
		return true
	}
	return false
}

// walk returns false once the walk must stop.
func (w *walker) walk(id, parentExpr, parentStmt, parentElem syntax.NodeID) bool {
	if w.cancelled() {
		return false
	}
	n := w.tree.Node(id)
	if n == nil {
		return true
	}

	switch n.Category() {
	case syntax.CategoryElement:
		if n.Generated() {
			return true
		}
		if w.v.Element != nil && !w.v.Element(id, parentElem) {
			return false
		}
		return w.children(n, syntax.NoNode, syntax.NoNode, id)
	case syntax.CategoryStatement:
		if w.v.Statement != nil && !w.v.Statement(id, parentStmt, parentElem) {
			return false
		}
		return w.children(n, syntax.NoNode, id, parentElem)
	case syntax.CategoryExpression:
		if w.v.Expression != nil && !w.v.Expression(id, parentExpr, parentStmt, parentElem) {
			return false
		}
		if !w.children(n, id, parentStmt, parentElem) {
			return false
		}
		for _, arg := range n.Arguments {
			if !w.walk(arg, id, parentStmt, parentElem) {
				return false
			}
		}
	}
	return true
}

func (w *walker) children(n *syntax.Node, parentExpr, parentStmt, parentElem syntax.NodeID) bool {
	for _, child := range n.Children {
		if !w.walk(child, parentExpr, parentStmt, parentElem) {
			return false
		}
	}
	return true
}
