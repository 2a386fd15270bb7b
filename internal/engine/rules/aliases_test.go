package rules

import (
	"context"
	"testing"

	"csguard/internal/engine/syntax"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanAliases(t *testing.T, tree *syntax.Tree, pref AliasPreference) []Violation {
	t.Helper()
	sink := &ListSink{}
	require.NoError(t, ScanBuiltinTypes(context.Background(), tree, pref, sink))
	return sink.Violations
}

// usingAlias emits `using name = target;`.
func (f *fixture) usingAlias(name, target string) {
	u := f.b.Element(f.root(), syntax.ElementUsing, syntax.Declaration{Name: name}, f.pos())
	f.word(u, syntax.TokenKeyword, "using")
	f.word(u, syntax.TokenIdentifier, name)
	f.word(u, syntax.TokenOperator, "=")
	f.typeRef(u, target)
	f.end(u)
}

// enumDecl emits `enum name : base { Red }`.
func (f *fixture) enumDecl(name, base string) {
	e := f.b.Element(f.root(), syntax.ElementEnum, syntax.Declaration{Name: name}, f.pos())
	f.word(e, syntax.TokenKeyword, "enum")
	f.word(e, syntax.TokenIdentifier, name)
	f.word(e, syntax.TokenPunctuation, ":")
	f.typeRef(e, base)
	f.space(e)
	f.word(e, syntax.TokenPunctuation, "{")
	item := f.b.Element(e, syntax.ElementEnumItem, syntax.Declaration{Name: "Red"}, f.pos())
	f.word(item, syntax.TokenIdentifier, "Red")
	f.emit(e, syntax.TokenPunctuation, "}")
	f.eol(e)
}

func TestScanBuiltinTypes_AliasDeclarationExempt(t *testing.T) {
	f := newFixture("Alias.cs")
	f.usingAlias("MyAlias", "System.Int32")
	f.usingAlias("Other", "global::System.String")
	assert.Empty(t, scanAliases(t, f.build(), PreferKeyword))
}

func TestScanBuiltinTypes_EnumBaseExempt(t *testing.T) {
	f := newFixture("Color.cs")
	f.enumDecl("Color", "byte")
	f.enumDecl("Shade", "Byte")
	tree := f.build()
	assert.Empty(t, scanAliases(t, tree, PreferCanonical))
	assert.Empty(t, scanAliases(t, tree, PreferKeyword))
}

func TestScanBuiltinTypes_KeywordPreference(t *testing.T) {
	tests := []struct {
		spelling string
		want     []string
	}{
		{"Int32", []string{"Int32", "System.Int32", "int"}},
		{"System.Int32", []string{"Int32", "System.Int32", "int"}},
		{"global::System.Int32", []string{"Int32", "System.Int32", "int"}},
		{"System.String", []string{"String", "System.String", "string"}},
		{"Decimal", []string{"Decimal", "System.Decimal", "decimal"}},
	}
	for _, tt := range tests {
		t.Run(tt.spelling, func(t *testing.T) {
			f := newFixture("Box.cs")
			box := f.class(f.root(), "Box")
			f.field(box, syntax.AccessPublic, 0, tt.spelling, "Value")
			vs := scanAliases(t, f.build(), PreferKeyword)
			require.Len(t, vs, 1)
			assert.Equal(t, RuleBuiltInTypeAliases, vs[0].Rule)
			assert.Equal(t, tt.want, vs[0].Args)
			assert.Equal(t, "Value", vs[0].Element)
			assert.Equal(t, "Use the built-in alias '"+tt.want[2]+"' instead of '"+tt.want[0]+"' ("+tt.want[1]+").", vs[0].Message)
		})
	}
}

func TestScanBuiltinTypes_KeywordsPassInKeywordMode(t *testing.T) {
	f := newFixture("Box.cs")
	box := f.class(f.root(), "Box")
	f.field(box, syntax.AccessPublic, 0, "int", "Count")
	f.field(box, syntax.AccessPublic, 0, "System.Text.StringBuilder", "Text")
	f.field(box, syntax.AccessPublic, 0, "MyInt32", "Other")
	assert.Empty(t, scanAliases(t, f.build(), PreferKeyword))
}

func TestScanBuiltinTypes_CanonicalPreference(t *testing.T) {
	f := newFixture("Box.cs")
	box := f.class(f.root(), "Box")
	f.field(box, syntax.AccessPublic, 0, "int", "Count")
	f.field(box, syntax.AccessPublic, 0, "Int32", "Total")

	vs := scanAliases(t, f.build(), PreferCanonical)
	require.Len(t, vs, 1)
	assert.Equal(t, []string{"Int32", "System.Int32", "int"}, vs[0].Args)
	assert.Equal(t, "Use the type name 'Int32' (System.Int32) instead of the built-in alias 'int'.", vs[0].Message)
}

func TestScanBuiltinTypes_GenericArguments(t *testing.T) {
	f := newFixture("Box.cs")
	box := f.class(f.root(), "Box")
	field := f.b.Element(box, syntax.ElementField, syntax.Declaration{Name: "Map", Access: syntax.AccessPublic}, f.pos())
	f.word(field, syntax.TokenKeyword, "public")
	f.genericRef(field, "Dictionary", "String", "int")
	f.space(field)
	f.emit(field, syntax.TokenIdentifier, "Map")
	f.end(field)

	vs := scanAliases(t, f.build(), PreferKeyword)
	require.Len(t, vs, 1)
	assert.Equal(t, "String", vs[0].Args[0])
}

func TestScanBuiltinTypes_GenericNamedLikeBuiltin(t *testing.T) {
	f := newFixture("Box.cs")
	box := f.class(f.root(), "Box")
	field := f.b.Element(box, syntax.ElementField, syntax.Declaration{Name: "Odd"}, f.pos())
	f.genericRef(field, "Int32", "T")
	f.space(field)
	f.emit(field, syntax.TokenIdentifier, "Odd")
	f.end(field)

	assert.Empty(t, scanAliases(t, f.build(), PreferKeyword))
}

func TestScanBuiltinTypes_ArraySuffix(t *testing.T) {
	f := newFixture("Box.cs")
	box := f.class(f.root(), "Box")
	field := f.b.Element(box, syntax.ElementField, syntax.Declaration{Name: "Items"}, f.pos())
	f.openTypeRef(field, syntax.ClassType, "Int32")
	f.emit(field, syntax.TokenPunctuation, "[")
	f.emit(field, syntax.TokenPunctuation, "]")
	f.b.CloseType()
	f.space(field)
	f.emit(field, syntax.TokenIdentifier, "Items")
	f.end(field)

	vs := scanAliases(t, f.build(), PreferKeyword)
	require.Len(t, vs, 1)
	assert.Equal(t, "Int32", vs[0].Args[0])
}

func TestScanBuiltinTypes_PredecessorSkipsTrivia(t *testing.T) {
	f := newFixture("Alias.cs")
	u := f.b.Element(f.root(), syntax.ElementUsing, syntax.Declaration{Name: "Num"}, f.pos())
	f.word(u, syntax.TokenKeyword, "using")
	f.word(u, syntax.TokenIdentifier, "Num")
	f.emit(u, syntax.TokenOperator, "=")
	f.eol(u)
	f.emit(u, syntax.TokenSingleLineComment, "// the wide one")
	f.eol(u)
	f.space(u)
	f.typeRef(u, "Int64")
	f.end(u)

	assert.Empty(t, scanAliases(t, f.build(), PreferKeyword))
}

func TestScanBuiltinTypes_Cancelled(t *testing.T) {
	f := newFixture("Box.cs")
	box := f.class(f.root(), "Box")
	f.field(box, syntax.AccessPublic, 0, "Int32", "Value")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &ListSink{}
	err := ScanBuiltinTypes(ctx, f.build(), PreferKeyword, sink)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.Violations)
}

func TestBuiltinTypes_Table(t *testing.T) {
	if len(BuiltinTypes) != 15 {
		t.Fatalf("expected 15 builtin types, got %d", len(BuiltinTypes))
	}
	seen := map[string]bool{}
	for _, bt := range BuiltinTypes {
		if bt.Qualified != "System."+bt.Canonical {
			t.Fatalf("qualified name %s does not match %s", bt.Qualified, bt.Canonical)
		}
		if seen[bt.Keyword] {
			t.Fatalf("duplicate keyword %s", bt.Keyword)
		}
		seen[bt.Keyword] = true
	}
}
