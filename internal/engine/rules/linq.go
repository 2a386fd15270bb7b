package rules

import (
	"context"

	"csguard/internal/engine/syntax"
)

// checkLinqKeywords reports each query keyword token once.
func checkLinqKeywords(ctx context.Context, tree *syntax.Tree, sink Sink) error {
	for _, id := range tree.Stream() {
		if err := ctx.Err(); err != nil {
			return err
		}
		tok := tree.Token(id)
		if !tok.Query || !syntax.IsQueryKeyword(tok.Text) {
			continue
		}
		owner := tree.Node(tok.Owner)
		if owner == nil || owner.Kind != syntax.ExpressionQuery || inGenerated(tree, tok.Owner) {
			continue
		}
		element := ""
		if el := tree.Node(tree.EnclosingElement(tok.Owner)); el != nil {
			element = el.Name()
		}
		sink.Report(newViolation(RuleLinqAliases, tree.Path, tok.Pos.Line, tok.Pos.Column, element, tok.Text))
	}
	return nil
}
