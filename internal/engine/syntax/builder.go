package syntax

import "strings"

// Builder assembles a Tree. Nodes are appended in creation order and tokens
// must be emitted in source order. The front end drives a Builder while
// walking the concrete syntax tree; tests drive it directly.
type Builder struct {
	tree     *Tree
	openType []TokenID
}

// NewBuilder starts a tree for path with a root element.
func NewBuilder(path string) *Builder {
	b := &Builder{tree: &Tree{Path: path}}
	b.tree.nodes = append(b.tree.nodes, Node{
		Kind:   ElementRoot,
		Parent: NoNode,
		Token:  NoToken,
		Pos:    Position{Line: 1, Column: 1},
		Decl:   &Declaration{},
	})
	b.tree.Root = 0
	return b
}

// Root returns the root element.
func (b *Builder) Root() NodeID {
	return b.tree.Root
}

// SetGenerated marks the whole source unit as generated.
func (b *Builder) SetGenerated(generated bool) {
	b.tree.Generated = generated
	b.tree.nodes[b.tree.Root].Decl.Generated = generated
}

// Node exposes a node under construction.
func (b *Builder) Node(id NodeID) *Node {
	return b.tree.Node(id)
}

// Token exposes a token under construction.
func (b *Builder) Token(id TokenID) *Token {
	return b.tree.Token(id)
}

func (b *Builder) add(parent NodeID, n Node) NodeID {
	id := NodeID(len(b.tree.nodes))
	n.Parent = parent
	b.tree.nodes = append(b.tree.nodes, n)
	return id
}

// Element adds an element under parent.
func (b *Builder) Element(parent NodeID, kind Kind, decl Declaration, pos Position) NodeID {
	d := decl
	id := b.add(parent, Node{Kind: kind, Pos: pos, Decl: &d, Token: NoToken})
	b.attach(parent, id)
	return id
}

// Statement adds a statement under parent.
func (b *Builder) Statement(parent NodeID, kind Kind, pos Position) NodeID {
	id := b.add(parent, Node{Kind: kind, Pos: pos, Token: NoToken})
	b.attach(parent, id)
	return id
}

// Expression adds an expression under parent.
func (b *Builder) Expression(parent NodeID, kind Kind, pos Position) NodeID {
	id := b.add(parent, Node{Kind: kind, Pos: pos, Token: NoToken})
	b.attach(parent, id)
	return id
}

// Literal adds a literal expression naming tok under parent.
func (b *Builder) Literal(parent NodeID, tok TokenID) NodeID {
	pos := Position{}
	if t := b.tree.Token(tok); t != nil {
		pos = t.Pos
	}
	id := b.add(parent, Node{Kind: ExpressionLiteral, Pos: pos, Token: tok})
	b.attach(parent, id)
	return id
}

// Argument adds an argument expression to a method invocation. Arguments are
// not children of the invocation.
func (b *Builder) Argument(call NodeID, kind Kind, pos Position) NodeID {
	id := b.add(call, Node{Kind: kind, Pos: pos, Token: NoToken})
	if n := b.tree.Node(call); n != nil {
		n.Arguments = append(n.Arguments, id)
	}
	return id
}

// LiteralArgument adds a literal argument expression naming tok.
func (b *Builder) LiteralArgument(call NodeID, tok TokenID) NodeID {
	id := b.Argument(call, ExpressionLiteral, b.tree.tokens[tok].Pos)
	b.tree.nodes[id].Token = tok
	return id
}

// SetLiteralToken binds a literal expression to its name token.
func (b *Builder) SetLiteralToken(id NodeID, tok TokenID) {
	if n := b.tree.Node(id); n != nil {
		n.Token = tok
	}
}

func (b *Builder) attach(parent, id NodeID) {
	if p := b.tree.Node(parent); p != nil {
		p.Children = append(p.Children, id)
	}
}

// Declare records a variable introduced by scope.
func (b *Builder) Declare(scope NodeID, name string, pos Position) {
	if n := b.tree.Node(scope); n != nil && name != "" {
		n.Variables = append(n.Variables, Variable{Name: name, Pos: pos})
	}
}

// Emit appends a token owned by owner. Inside an open type token the token
// becomes one of its children, otherwise it joins the top-level stream.
func (b *Builder) Emit(owner NodeID, kind TokenKind, text string, pos Position) TokenID {
	id := TokenID(len(b.tree.tokens))
	tok := Token{
		Kind:   kind,
		Text:   text,
		Pos:    pos,
		Owner:  owner,
		Parent: NoToken,
	}
	if kind == TokenOperator || kind == TokenPunctuation {
		tok.Operator = OperatorKindOf(text)
	}
	b.tree.tokens = append(b.tree.tokens, tok)
	b.place(id)
	return id
}

func (b *Builder) place(id TokenID) {
	tok := &b.tree.tokens[id]
	if n := len(b.openType); n > 0 {
		parent := b.openType[n-1]
		p := &b.tree.tokens[parent]
		tok.Parent = parent
		tok.index = len(p.Children)
		p.Children = append(p.Children, id)
		return
	}
	tok.index = len(b.tree.stream)
	b.tree.stream = append(b.tree.stream, id)
}

// OpenType starts a type token. Tokens emitted until the matching CloseType
// become its children.
func (b *Builder) OpenType(owner NodeID, class TokenClass, pos Position) TokenID {
	id := TokenID(len(b.tree.tokens))
	b.tree.tokens = append(b.tree.tokens, Token{
		Kind:   TokenOther,
		Class:  class,
		Pos:    pos,
		Owner:  owner,
		Parent: NoToken,
	})
	b.place(id)
	b.openType = append(b.openType, id)
	return id
}

// CloseType ends the innermost open type token and fixes its text.
func (b *Builder) CloseType() TokenID {
	n := len(b.openType)
	if n == 0 {
		return NoToken
	}
	id := b.openType[n-1]
	b.openType = b.openType[:n-1]
	tok := &b.tree.tokens[id]
	var text strings.Builder
	for _, child := range tok.Children {
		c := &b.tree.tokens[child]
		if c.Kind.IsTrivia() {
			continue
		}
		text.WriteString(c.Text)
	}
	tok.Text = text.String()
	if tok.Kind == TokenOther && len(tok.Children) == 1 {
		tok.Kind = b.tree.tokens[tok.Children[0]].Kind
	}
	return id
}

// InType reports whether a type token is open.
func (b *Builder) InType() bool {
	return len(b.openType) > 0
}

// MarkQuery flags tok as a LINQ query keyword.
func (b *Builder) MarkQuery(tok TokenID) {
	if t := b.tree.Token(tok); t != nil {
		t.Query = true
	}
}

// Build finishes the tree. Open type tokens are closed.
func (b *Builder) Build() *Tree {
	for b.InType() {
		b.CloseType()
	}
	return b.tree
}
