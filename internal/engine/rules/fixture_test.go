package rules

import (
	"strings"

	"csguard/internal/engine/syntax"
)

// fixture builds trees by hand while tracking line and column the way the
// parser would.
type fixture struct {
	b    *syntax.Builder
	line int
	col  int
}

func newFixture(path string) *fixture {
	return &fixture{b: syntax.NewBuilder(path), line: 1, col: 1}
}

func (f *fixture) root() syntax.NodeID { return f.b.Root() }

func (f *fixture) build() *syntax.Tree { return f.b.Build() }

func (f *fixture) pos() syntax.Position {
	return syntax.Position{Line: f.line, Column: f.col}
}

func (f *fixture) emit(owner syntax.NodeID, kind syntax.TokenKind, text string) syntax.TokenID {
	id := f.b.Emit(owner, kind, text, f.pos())
	f.col += len(text)
	return id
}

func (f *fixture) space(owner syntax.NodeID) {
	f.emit(owner, syntax.TokenWhiteSpace, " ")
}

// word emits text and a trailing space.
func (f *fixture) word(owner syntax.NodeID, kind syntax.TokenKind, text string) syntax.TokenID {
	id := f.emit(owner, kind, text)
	f.space(owner)
	return id
}

func (f *fixture) eol(owner syntax.NodeID) {
	f.emit(owner, syntax.TokenEndOfLine, "\n")
	f.line++
	f.col = 1
}

func (f *fixture) end(owner syntax.NodeID) {
	f.emit(owner, syntax.TokenPunctuation, ";")
	f.eol(owner)
}

func (f *fixture) comment(owner syntax.NodeID, text string) {
	f.emit(owner, syntax.TokenMultiLineComment, text)
}

var fixtureKeywords = map[string]bool{"global": true}

func init() {
	for _, bt := range BuiltinTypes {
		fixtureKeywords[bt.Keyword] = true
	}
}

func splitQualified(s string) []string {
	var out []string
	for s != "" {
		switch {
		case strings.HasPrefix(s, "::"):
			out = append(out, "::")
			s = s[2:]
		case s[0] == '.':
			out = append(out, ".")
			s = s[1:]
		default:
			i := strings.IndexAny(s, ".:")
			if i < 0 {
				i = len(s)
			}
			out = append(out, s[:i])
			s = s[i:]
		}
	}
	return out
}

// typeRef emits a plain type token such as int, Int32 or global::System.Int32.
func (f *fixture) typeRef(owner syntax.NodeID, spelling string) syntax.TokenID {
	id := f.openTypeRef(owner, syntax.ClassType, spelling)
	f.b.CloseType()
	return id
}

func (f *fixture) openTypeRef(owner syntax.NodeID, class syntax.TokenClass, spelling string) syntax.TokenID {
	id := f.b.OpenType(owner, class, f.pos())
	for _, part := range splitQualified(spelling) {
		switch {
		case part == "." || part == "::":
			f.emit(owner, syntax.TokenOperator, part)
		case fixtureKeywords[part]:
			f.emit(owner, syntax.TokenKeyword, part)
		default:
			f.emit(owner, syntax.TokenIdentifier, part)
		}
	}
	return id
}

// genericRef emits name<args...> with a nested type token per argument.
func (f *fixture) genericRef(owner syntax.NodeID, name string, args ...string) syntax.TokenID {
	id := f.openTypeRef(owner, syntax.ClassGenericType, name)
	f.emit(owner, syntax.TokenPunctuation, "<")
	for i, arg := range args {
		if i > 0 {
			f.emit(owner, syntax.TokenPunctuation, ",")
			f.space(owner)
		}
		f.typeRef(owner, arg)
	}
	f.emit(owner, syntax.TokenPunctuation, ">")
	f.b.CloseType()
	return id
}

func (f *fixture) typeDecl(parent syntax.NodeID, kind syntax.Kind, keyword, name string) syntax.NodeID {
	id := f.b.Element(parent, kind, syntax.Declaration{Name: name, Access: syntax.AccessPublic}, f.pos())
	f.word(id, syntax.TokenKeyword, "public")
	f.word(id, syntax.TokenKeyword, keyword)
	f.emit(id, syntax.TokenIdentifier, name)
	f.eol(id)
	return id
}

func (f *fixture) class(parent syntax.NodeID, name string) syntax.NodeID {
	return f.typeDecl(parent, syntax.ElementClass, "class", name)
}

func (f *fixture) field(typ syntax.NodeID, access syntax.Access, mods syntax.Modifiers, typeName, name string) syntax.NodeID {
	decl := syntax.Declaration{Name: name, Access: access, Modifiers: mods, ReturnType: typeName}
	id := f.b.Element(typ, syntax.ElementField, decl, f.pos())
	if access != syntax.AccessDefault {
		f.word(id, syntax.TokenKeyword, access.String())
	}
	if mods.Has(syntax.ModStatic) {
		f.word(id, syntax.TokenKeyword, "static")
	}
	if mods.Has(syntax.ModConst) {
		f.word(id, syntax.TokenKeyword, "const")
	}
	f.typeRef(id, typeName)
	f.space(id)
	f.emit(id, syntax.TokenIdentifier, name)
	f.end(id)
	return id
}

func (f *fixture) property(typ syntax.NodeID, typeName, name string) syntax.NodeID {
	decl := syntax.Declaration{Name: name, Access: syntax.AccessPublic, ReturnType: typeName}
	id := f.b.Element(typ, syntax.ElementProperty, decl, f.pos())
	f.word(id, syntax.TokenKeyword, "public")
	f.typeRef(id, typeName)
	f.space(id)
	f.emit(id, syntax.TokenIdentifier, name)
	f.eol(id)
	return id
}

func (f *fixture) method(typ syntax.NodeID, mods syntax.Modifiers, name string, params ...string) syntax.NodeID {
	decl := syntax.Declaration{Name: name, Access: syntax.AccessPublic, Modifiers: mods, ReturnType: "void"}
	id := f.b.Element(typ, syntax.ElementMethod, decl, f.pos())
	f.word(id, syntax.TokenKeyword, "public")
	if mods.Has(syntax.ModStatic) {
		f.word(id, syntax.TokenKeyword, "static")
	}
	f.typeRef(id, "void")
	f.space(id)
	f.emit(id, syntax.TokenIdentifier, name)
	f.emit(id, syntax.TokenPunctuation, "(")
	for _, p := range params {
		f.typeRef(id, "int")
		f.space(id)
		pos := f.pos()
		f.emit(id, syntax.TokenIdentifier, p)
		f.b.Declare(id, p, pos)
	}
	f.emit(id, syntax.TokenPunctuation, ")")
	f.eol(id)
	return id
}

// ident emits a bare identifier use-site.
func (f *fixture) ident(parent syntax.NodeID, name string) syntax.NodeID {
	tok := f.emit(parent, syntax.TokenIdentifier, name)
	return f.b.Literal(parent, tok)
}

// qualified emits qualifier, op and name, e.g. this.balance or p->x.
func (f *fixture) qualified(parent syntax.NodeID, qualifier, op, name string) syntax.NodeID {
	ma := f.b.Expression(parent, syntax.ExpressionMemberAccess, f.pos())
	kind := syntax.TokenIdentifier
	if qualifier == "this" {
		kind = syntax.TokenKeyword
	}
	f.b.Literal(ma, f.emit(ma, kind, qualifier))
	f.emit(ma, syntax.TokenOperator, op)
	f.b.Literal(ma, f.emit(ma, syntax.TokenIdentifier, name))
	return ma
}

// stmt emits an expression statement whose body is produced by fill.
func (f *fixture) stmt(scope syntax.NodeID, fill func(parent syntax.NodeID)) syntax.NodeID {
	id := f.b.Statement(scope, syntax.StatementExpression, f.pos())
	fill(id)
	f.end(id)
	return id
}

func (f *fixture) assign(parent syntax.NodeID, left, right func(parent syntax.NodeID)) syntax.NodeID {
	a := f.b.Expression(parent, syntax.ExpressionAssignment, f.pos())
	left(a)
	f.space(a)
	f.emit(a, syntax.TokenOperator, "=")
	f.space(a)
	right(a)
	return a
}

// local emits `typeName name = init;` and declares name in scope.
func (f *fixture) local(scope syntax.NodeID, typeName, name string, init func(parent syntax.NodeID)) syntax.NodeID {
	stmt := f.b.Statement(scope, syntax.StatementVariableDeclaration, f.pos())
	decl := f.b.Expression(stmt, syntax.ExpressionVariableDeclaration, f.pos())
	f.typeRef(decl, typeName)
	f.space(decl)
	declarator := f.b.Expression(decl, syntax.ExpressionVariableDeclarator, f.pos())
	pos := f.pos()
	f.emit(declarator, syntax.TokenIdentifier, name)
	f.b.Declare(scope, name, pos)
	if init != nil {
		f.space(declarator)
		f.emit(declarator, syntax.TokenOperator, "=")
		f.space(declarator)
		init(declarator)
	}
	f.end(stmt)
	return stmt
}

// call emits name(args...) where each argument is a bare identifier.
func (f *fixture) call(parent syntax.NodeID, name string, args ...string) syntax.NodeID {
	inv := f.b.Expression(parent, syntax.ExpressionMethodInvocation, f.pos())
	f.ident(inv, name)
	f.emit(inv, syntax.TokenPunctuation, "(")
	for i, arg := range args {
		if i > 0 {
			f.emit(inv, syntax.TokenPunctuation, ",")
			f.space(inv)
		}
		f.b.LiteralArgument(inv, f.emit(inv, syntax.TokenIdentifier, arg))
	}
	f.emit(inv, syntax.TokenPunctuation, ")")
	return inv
}

// newObject emits `new typeName { ... }` with an initializer of kind.
func (f *fixture) newObject(parent syntax.NodeID, kind syntax.Kind, typeName string, fill func(init syntax.NodeID)) syntax.NodeID {
	oc := f.b.Expression(parent, syntax.ExpressionObjectCreation, f.pos())
	f.word(oc, syntax.TokenKeyword, "new")
	f.typeRef(oc, typeName)
	f.space(oc)
	init := f.b.Expression(oc, kind, f.pos())
	f.word(init, syntax.TokenPunctuation, "{")
	fill(init)
	f.space(init)
	f.emit(init, syntax.TokenPunctuation, "}")
	return oc
}

func only(vs []Violation, rule RuleID) []Violation {
	var out []Violation
	for _, v := range vs {
		if v.Rule == rule {
			out = append(out, v)
		}
	}
	return out
}

func firstArgs(vs []Violation) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if len(v.Args) > 0 {
			out = append(out, v.Args[0])
		}
	}
	return out
}

func onlyRule(id RuleID) Options {
	opts := DefaultOptions()
	opts.Disabled = map[RuleID]bool{}
	for _, r := range Catalog() {
		if r.ID != id {
			opts.Disabled[r.ID] = true
		}
	}
	return opts
}
