package rules

import (
	"context"

	"csguard/internal/engine/syntax"
)

// BuiltinType ties a framework type to its C# keyword.
type BuiltinType struct {
	Canonical string
	Qualified string
	Keyword   string
}

// BuiltinTypes is the fixed table the alias scanner matches against.
var BuiltinTypes = []BuiltinType{
	{"Boolean", "System.Boolean", "bool"},
	{"Object", "System.Object", "object"},
	{"String", "System.String", "string"},
	{"Int16", "System.Int16", "short"},
	{"UInt16", "System.UInt16", "ushort"},
	{"Int32", "System.Int32", "int"},
	{"UInt32", "System.UInt32", "uint"},
	{"Int64", "System.Int64", "long"},
	{"UInt64", "System.UInt64", "ulong"},
	{"Double", "System.Double", "double"},
	{"Single", "System.Single", "float"},
	{"Byte", "System.Byte", "byte"},
	{"SByte", "System.SByte", "sbyte"},
	{"Char", "System.Char", "char"},
	{"Decimal", "System.Decimal", "decimal"},
}

const canonicalFormat = "Use the type name '%[1]s' (%[2]s) instead of the built-in alias '%[3]s'."

const globalPrefix = "global::"

// builtinMatcher maps each flagged spelling to its table entry.
type builtinMatcher map[string]BuiltinType

func newBuiltinMatcher(pref AliasPreference) builtinMatcher {
	m := make(builtinMatcher, len(BuiltinTypes)*3)
	for _, bt := range BuiltinTypes {
		if pref == PreferCanonical {
			m[bt.Keyword] = bt
			continue
		}
		m[bt.Canonical] = bt
		m[bt.Qualified] = bt
		m[globalPrefix+bt.Qualified] = bt
	}
	return m
}

// ScanBuiltinTypes reports every type reference spelled the non-preferred
// way. Alias declaration targets (`using X = System.Int32;`) and enum
// underlying types (`enum E : byte`) are exempt.
func ScanBuiltinTypes(ctx context.Context, tree *syntax.Tree, pref AliasPreference, sink Sink) error {
	if tree == nil {
		return nil
	}
	s := &aliasScanner{
		tree:  tree,
		sink:  sink,
		pref:  pref,
		match: newBuiltinMatcher(pref),
	}
	for _, id := range tree.Stream() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if tok := tree.Token(id); tok.IsType() {
			s.scan(id)
		}
	}
	return nil
}

type aliasScanner struct {
	tree  *syntax.Tree
	sink  Sink
	pref  AliasPreference
	match builtinMatcher
}

func (s *aliasScanner) scan(id syntax.TokenID) {
	tok := s.tree.Token(id)
	if inGenerated(s.tree, tok.Owner) {
		return
	}
	if tok.Class != syntax.ClassGenericType {
		if bt, ok := s.match[s.tree.TypeSpelling(id)]; ok && !s.exempt(id) {
			s.report(tok, bt)
		}
	}
	for _, child := range tok.Children {
		if s.tree.Token(child).IsType() {
			s.scan(child)
		}
	}
}

func (s *aliasScanner) exempt(id syntax.TokenID) bool {
	prev := s.tree.Token(s.tree.PreviousSignificant(id))
	if prev == nil {
		return false
	}
	switch prev.Operator {
	case syntax.OpAssignment, syntax.OpColon:
		return true
	}
	return false
}

func (s *aliasScanner) report(tok *syntax.Token, bt BuiltinType) {
	element := ""
	if el := s.tree.Node(s.tree.EnclosingElement(tok.Owner)); el != nil {
		element = el.Name()
	}
	v := newViolation(
		RuleBuiltInTypeAliases,
		s.tree.Path,
		tok.Pos.Line,
		tok.Pos.Column,
		element,
		bt.Canonical, bt.Qualified, bt.Keyword,
	)
	if s.pref == PreferCanonical {
		v.Message = formatArgs(canonicalFormat, v.Args)
	}
	s.sink.Report(v)
}

// inGenerated reports whether id sits inside an element marked generated.
func inGenerated(tree *syntax.Tree, id syntax.NodeID) bool {
	for cur := id; cur != syntax.NoNode; {
		n := tree.Node(cur)
		if n == nil {
			return false
		}
		if n.Generated() {
			return true
		}
		cur = n.Parent
	}
	return false
}
