package rules

import (
	"context"
	"unicode"
	"unicode/utf8"

	"csguard/internal/engine/syntax"
)

// checkNaming runs the declaration naming rules over every element.
func checkNaming(ctx context.Context, tree *syntax.Tree, opts Options, sink Sink) error {
	underscore := opts.Enabled(RuleUnderscorePrefix)
	minimum := opts.Enabled(RuleMinimumLength)
	if !underscore && !minimum {
		return nil
	}
	return Walk(ctx, tree, Visitor{
		Element: func(id, _ syntax.NodeID) bool {
			n := tree.Node(id)
			if underscore && needsUnderscore(n) {
				sink.Report(newViolation(RuleUnderscorePrefix, tree.Path, n.Pos.Line, n.Pos.Column, n.Name(), n.Name()))
			}
			if minimum && tooShort(n, opts.minLength()) {
				sink.Report(newViolation(RuleMinimumLength, tree.Path, n.Pos.Line, n.Pos.Column, n.Name(), n.Name(), opts.minLengthArg()))
			}
			return true
		},
	})
}

// needsUnderscore reports whether a non-public field breaks the `_camel`
// convention.
func needsUnderscore(n *syntax.Node) bool {
	if n.Kind != syntax.ElementField || n.Generated() {
		return false
	}
	switch n.Decl.Access {
	case syntax.AccessDefault, syntax.AccessPrivate, syntax.AccessProtected, syntax.AccessProtectedInternal:
	default:
		return false
	}
	name := n.Name()
	if name == "" {
		return false
	}
	if name[0] != '_' {
		return true
	}
	second, _ := utf8.DecodeRuneInString(name[1:])
	return second != utf8.RuneError && unicode.IsUpper(second)
}

func tooShort(n *syntax.Node, min int) bool {
	switch n.Kind {
	case syntax.ElementClass,
		syntax.ElementDelegate,
		syntax.ElementEnum,
		syntax.ElementEvent,
		syntax.ElementField,
		syntax.ElementInterface,
		syntax.ElementMethod,
		syntax.ElementNamespace,
		syntax.ElementProperty,
		syntax.ElementStruct:
	default:
		return false
	}
	name := n.Name()
	return name != "" && utf8.RuneCountInString(name) < min
}
