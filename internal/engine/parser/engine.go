// # internal/engine/parser/engine.go
package parser

import (
	"strings"

	"csguard/internal/engine/syntax"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// nodeHandler lowers one concrete syntax node into the builder. Handlers own
// the traversal of their children.
type nodeHandler func(w *walker, n *sitter.Node, f frame)

// frame says where the walker attaches what it builds.
type frame struct {
	// owner is the parent of new nodes and the owner of emitted tokens.
	owner syntax.NodeID
	// scope receives declared locals and parameters. NoNode discards them.
	scope syntax.NodeID
	// call collects argument expressions of an invocation.
	call syntax.NodeID
	// refs is set inside executable code, where bare identifiers are uses.
	refs bool
}

// walker lowers a tree-sitter C# tree into a syntax.Tree. Every byte of the
// source ends up in exactly one token: leaves become tokens and the bytes
// between leaves become whitespace or end-of-line trivia.
type walker struct {
	b        *syntax.Builder
	src      []byte
	handlers map[string]nodeHandler

	pos  uint
	line int
	col  int
}

func newWalker(path string, src []byte) *walker {
	return &walker{
		b:        syntax.NewBuilder(path),
		src:      src,
		handlers: csharpHandlers,
		line:     1,
		col:      1,
	}
}

func (w *walker) rootFrame() frame {
	root := w.b.Root()
	return frame{owner: root, scope: syntax.NoNode, call: syntax.NoNode}
}

// run lowers root and returns the finished tree.
func (w *walker) run(root *sitter.Node) *syntax.Tree {
	f := w.rootFrame()
	w.dispatch(root, f)
	w.gap(uint(len(w.src)), f.owner)
	return w.b.Build()
}

func (w *walker) walkChildren(n *sitter.Node, f frame) {
	for i := uint(0); i < n.ChildCount(); i++ {
		w.visit(n, n.Child(i), f)
	}
}

// visit lowers n, a child of parent. Type positions and identifiers depend on
// the parent, everything else on n alone.
func (w *walker) visit(parent, n *sitter.Node, f frame) {
	if n == nil {
		return
	}
	if isTypeSlot(parent, n) {
		w.typeRef(n, f.owner)
		return
	}
	if n.Kind() == "identifier" {
		w.identifier(parent, n, f)
		return
	}
	w.dispatch(n, f)
}

func (w *walker) dispatch(n *sitter.Node, f frame) {
	if h, ok := w.handlers[n.Kind()]; ok {
		h(w, n, f)
		return
	}
	if n.ChildCount() == 0 {
		w.leaf(n, f.owner)
		return
	}
	switch kind := n.Kind(); {
	case strings.HasSuffix(kind, "_statement"):
		statement(syntax.StatementOther)(w, n, f)
	case strings.HasSuffix(kind, "_expression"):
		expression(syntax.ExpressionOther)(w, n, f)
	default:
		w.walkChildren(n, f)
	}
}

func (w *walker) identifier(parent, n *sitter.Node, f frame) {
	switch {
	case nonReference(parent):
		w.leaf(n, f.owner)
	case declaresName(parent, n):
		w.leaf(n, f.owner)
		w.b.Declare(f.scope, w.text(n), posOf(n))
	case f.refs:
		w.reference(n, f)
	default:
		w.leaf(n, f.owner)
	}
}

// reference emits n as a literal expression naming it.
func (w *walker) reference(n *sitter.Node, f frame) syntax.NodeID {
	id, _ := w.expr(n, syntax.ExpressionLiteral, f)
	w.b.SetLiteralToken(id, w.leaf(n, id))
	return id
}

// expr adds an expression for n. In argument position the expression becomes
// an argument of the pending invocation instead of a child.
func (w *walker) expr(n *sitter.Node, kind syntax.Kind, f frame) (syntax.NodeID, frame) {
	var id syntax.NodeID
	if f.call != syntax.NoNode {
		id = w.b.Argument(f.call, kind, posOf(n))
	} else {
		id = w.b.Expression(f.owner, kind, posOf(n))
	}
	inner := f
	inner.owner = id
	inner.call = syntax.NoNode
	inner.refs = true
	return id, inner
}

// leaf emits all of n as a single token, ignoring any inner structure.
// Zero-width nodes inserted by error recovery emit nothing.
func (w *walker) leaf(n *sitter.Node, owner syntax.NodeID) syntax.TokenID {
	start, end := n.StartByte(), n.EndByte()
	if end <= start || start < w.pos {
		return syntax.NoToken
	}
	w.gap(start, owner)
	text := string(w.src[start:end])
	id := w.b.Emit(owner, classify(n, text), text, posOf(n))
	if !n.IsNamed() && syntax.IsQueryKeyword(text) {
		if o := w.b.Node(owner); o != nil && o.Kind == syntax.ExpressionQuery {
			w.b.MarkQuery(id)
		}
	}
	w.advance(n)
	return id
}

// leaves emits every leaf below n without building nodes and returns the
// first significant token.
func (w *walker) leaves(n *sitter.Node, owner syntax.NodeID) syntax.TokenID {
	if n.ChildCount() == 0 {
		return w.leaf(n, owner)
	}
	first := syntax.NoToken
	for i := uint(0); i < n.ChildCount(); i++ {
		id := w.leaves(n.Child(i), owner)
		if first != syntax.NoToken || id == syntax.NoToken {
			continue
		}
		if !w.b.Token(id).Kind.IsTrivia() {
			first = id
		}
	}
	return first
}

func (w *walker) advance(n *sitter.Node) {
	w.pos = n.EndByte()
	end := n.EndPosition()
	w.line = int(end.Row) + 1
	w.col = int(end.Column) + 1
}

// gap emits the bytes up to limit that no leaf covers.
func (w *walker) gap(limit uint, owner syntax.NodeID) {
	if limit > uint(len(w.src)) {
		limit = uint(len(w.src))
	}
	for w.pos < limit {
		start := w.pos
		pos := syntax.Position{Line: w.line, Column: w.col}
		switch c := w.src[start]; {
		case c == '\r' || c == '\n':
			end := start + 1
			if c == '\r' && end < limit && w.src[end] == '\n' {
				end++
			}
			w.b.Emit(owner, syntax.TokenEndOfLine, string(w.src[start:end]), pos)
			w.pos = end
			w.line++
			w.col = 1
		case isBlank(c):
			end := start
			for end < limit && isBlank(w.src[end]) {
				end++
			}
			w.b.Emit(owner, syntax.TokenWhiteSpace, string(w.src[start:end]), pos)
			w.col += int(end - start)
			w.pos = end
		default:
			end := start
			for end < limit && !isBlank(w.src[end]) && w.src[end] != '\r' && w.src[end] != '\n' {
				end++
			}
			w.b.Emit(owner, syntax.TokenOther, string(w.src[start:end]), pos)
			w.col += int(end - start)
			w.pos = end
		}
	}
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\v' || c == '\f'
}

var punctuation = map[string]bool{
	"(": true, ")": true, "[": true, "]": true, "{": true, "}": true,
	";": true, ",": true, ":": true,
}

var keywordKinds = map[string]bool{
	"predefined_type": true,
	"implicit_type":   true,
	"boolean_literal": true,
	"null_literal":    true,
	"modifier":        true,
	"this":            true,
	"base":            true,
}

var stringKinds = map[string]bool{
	"string_literal":          true,
	"verbatim_string_literal": true,
	"raw_string_literal":      true,
	"character_literal":       true,
	"string_content":          true,
	"string_literal_content":  true,
	"escape_sequence":         true,
}

func classify(n *sitter.Node, text string) syntax.TokenKind {
	kind := n.Kind()
	switch {
	case kind == "identifier" || kind == "implicit_parameter":
		return syntax.TokenIdentifier
	case kind == "comment":
		if strings.HasPrefix(text, "/*") {
			return syntax.TokenMultiLineComment
		}
		return syntax.TokenSingleLineComment
	case kind == "integer_literal" || kind == "real_literal":
		return syntax.TokenNumber
	case stringKinds[kind]:
		return syntax.TokenString
	case keywordKinds[kind]:
		return syntax.TokenKeyword
	case strings.HasPrefix(text, "#") || strings.HasPrefix(kind, "preproc"):
		return syntax.TokenPreprocessor
	case strings.HasPrefix(text, "\"") || strings.HasPrefix(text, "$") || strings.HasPrefix(text, "@\""):
		return syntax.TokenString
	case punctuation[text]:
		return syntax.TokenPunctuation
	case !n.IsNamed() && isWord(text):
		return syntax.TokenKeyword
	case !n.IsNamed():
		return syntax.TokenOperator
	}
	return syntax.TokenOther
}

func isWord(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

func (w *walker) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(w.src[n.StartByte():n.EndByte()])
}

// fieldText returns the source of n's child in field, or "".
func (w *walker) fieldText(n *sitter.Node, field string) string {
	return w.text(n.ChildByFieldName(field))
}

func posOf(n *sitter.Node) syntax.Position {
	p := n.StartPosition()
	return syntax.Position{Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

// sameNode compares by range and kind; handles for the same node are not
// guaranteed to be pointer-equal.
func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil &&
		a.StartByte() == b.StartByte() &&
		a.EndByte() == b.EndByte() &&
		a.Kind() == b.Kind()
}

// nameNode returns the name field of n, falling back to its last identifier.
func nameNode(n *sitter.Node) *sitter.Node {
	if name := n.ChildByFieldName("name"); name != nil {
		return name
	}
	var last *sitter.Node
	for i := uint(0); i < n.ChildCount(); i++ {
		if c := n.Child(i); c.Kind() == "identifier" {
			last = c
		}
	}
	return last
}

func childOfKind(n *sitter.Node, kind string) *sitter.Node {
	for i := uint(0); i < n.ChildCount(); i++ {
		if c := n.Child(i); c.Kind() == kind {
			return c
		}
	}
	return nil
}

// compact drops whitespace from a type spelling.
func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

var nonReferenceParents = map[string]bool{
	"labeled_statement":                 true,
	"goto_statement":                    true,
	"name_colon":                        true,
	"name_equals":                       true,
	"type_parameter":                    true,
	"type_parameter_list":               true,
	"type_parameter_constraints_clause": true,
	"enum_member_declaration":           true,
	"attribute":                         true,
	"explicit_interface_specifier":      true,
	"accessor_declaration":              true,
	"tuple_element":                     true,
	"using_directive":                   true,
	"namespace_declaration":             true,
	"file_scoped_namespace_declaration": true,
	"extern_alias_directive":            true,
	"qualified_name":                    true,
	"alias_qualified_name":              true,
	"subpattern":                        true,
}

func nonReference(parent *sitter.Node) bool {
	if parent == nil {
		return false
	}
	kind := parent.Kind()
	return nonReferenceParents[kind] || strings.HasPrefix(kind, "preproc_")
}

var declaringParents = map[string]bool{
	"declaration_expression":             true,
	"declaration_pattern":                true,
	"var_pattern":                        true,
	"recursive_pattern":                  true,
	"parenthesized_variable_designation": true,
	"tuple_pattern":                      true,
	"catch_declaration":                  true,
}

// declaresName reports whether identifier n introduces a local in parent.
// Type positions are diverted before this is asked.
func declaresName(parent, n *sitter.Node) bool {
	if parent == nil {
		return false
	}
	kind := parent.Kind()
	if declaringParents[kind] {
		return true
	}
	switch kind {
	case "from_clause", "join_clause", "foreach_statement", "for_each_statement":
		next := n.NextSibling()
		return next != nil && next.Kind() == "in"
	case "let_clause":
		next := n.NextSibling()
		return next != nil && next.Kind() == "="
	case "query_continuation", "join_into_clause":
		prev := n.PrevSibling()
		return prev != nil && prev.Kind() == "into"
	}
	return false
}

var csharpHandlers map[string]nodeHandler

func init() {
	csharpHandlers = make(map[string]nodeHandler)
	registerDeclarations(csharpHandlers)
	registerStatements(csharpHandlers)
	registerExpressions(csharpHandlers)
}
