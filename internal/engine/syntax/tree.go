// Package syntax holds the arena syntax tree the rules engine runs over.
//
// Nodes and tokens live in flat slices and refer to each other through
// stable indices. Parent links are indices too, so parent lookups are O(1)
// and the tree has no cyclic ownership. A Tree is read-only once built.
package syntax

import "strings"

// Position is a 1-based line and column.
type Position struct {
	Line   int
	Column int
}

// Before reports whether p is strictly earlier than o, by line then column.
func (p Position) Before(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Column < o.Column
}

// NodeID addresses a node in the tree's node arena.
type NodeID int32

// NoNode marks an absent node reference.
const NoNode NodeID = -1

// Access is the declared accessibility of an element.
type Access uint8

const (
	AccessDefault Access = iota
	AccessPublic
	AccessInternal
	AccessProtected
	AccessProtectedInternal
	AccessPrivateProtected
	AccessPrivate
)

func (a Access) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessInternal:
		return "internal"
	case AccessProtected:
		return "protected"
	case AccessProtectedInternal:
		return "protected internal"
	case AccessPrivateProtected:
		return "private protected"
	case AccessPrivate:
		return "private"
	default:
		return "default"
	}
}

// Modifiers is a bit set of declaration modifiers.
type Modifiers uint32

const (
	ModStatic Modifiers = 1 << iota
	ModConst
	ModReadonly
	ModAbstract
	ModVirtual
	ModOverride
	ModSealed
	ModPartial
	ModExtern
	ModUnsafe
	ModAsync
	ModNew
	ModVolatile
)

var modifierWords = map[string]Modifiers{
	"static":   ModStatic,
	"const":    ModConst,
	"readonly": ModReadonly,
	"abstract": ModAbstract,
	"virtual":  ModVirtual,
	"override": ModOverride,
	"sealed":   ModSealed,
	"partial":  ModPartial,
	"extern":   ModExtern,
	"unsafe":   ModUnsafe,
	"async":    ModAsync,
	"new":      ModNew,
	"volatile": ModVolatile,
}

// ModifierOf maps a modifier keyword to its bit, or 0.
func ModifierOf(word string) Modifiers {
	return modifierWords[word]
}

// Has reports whether every bit in m is set.
func (s Modifiers) Has(m Modifiers) bool {
	return s&m == m
}

// Declaration describes a declared element.
type Declaration struct {
	Name       string
	Access     Access
	Modifiers  Modifiers
	ReturnType string
	Generated  bool
}

// Contains reports whether the declaration carries modifier m.
func (d *Declaration) Contains(m Modifiers) bool {
	return d != nil && d.Modifiers.Has(m)
}

// Variable is a local variable or parameter introduced by a scope node.
type Variable struct {
	Name string
	Pos  Position
}

// Node is one element, statement or expression.
type Node struct {
	Kind     Kind
	Parent   NodeID
	Children []NodeID
	// Arguments holds method invocation arguments. They are not children.
	Arguments []NodeID
	Pos       Position
	// Token is the name token of a literal expression.
	Token     TokenID
	Decl      *Declaration
	Variables []Variable
}

// Category returns the node's layer.
func (n *Node) Category() Category {
	return n.Kind.Category()
}

// Generated reports whether the element was marked as generated code.
func (n *Node) Generated() bool {
	return n.Decl != nil && n.Decl.Generated
}

// Name returns the declared name of an element, or "".
func (n *Node) Name() string {
	if n.Decl == nil {
		return ""
	}
	return n.Decl.Name
}

// Tree is a parsed source unit.
type Tree struct {
	Path      string
	Generated bool
	Root      NodeID

	nodes  []Node
	tokens []Token
	stream []TokenID
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Node returns the node for id, or nil when id is out of range.
func (t *Tree) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return &t.nodes[id]
}

// Token returns the token for id, or nil when id is out of range.
func (t *Tree) Token(id TokenID) *Token {
	if id < 0 || int(id) >= len(t.tokens) {
		return nil
	}
	return &t.tokens[id]
}

// Stream returns the top-level token stream in source order.
func (t *Tree) Stream() []TokenID {
	return t.stream
}

// TokenCount returns the size of the token arena.
func (t *Tree) TokenCount() int {
	return len(t.tokens)
}

func (t *Tree) childrenOf(id NodeID, c Category) []NodeID {
	n := t.Node(id)
	if n == nil {
		return nil
	}
	out := make([]NodeID, 0, len(n.Children))
	for _, child := range n.Children {
		if t.nodes[child].Kind.Category() == c {
			out = append(out, child)
		}
	}
	return out
}

// ChildElements returns the direct element children of id.
func (t *Tree) ChildElements(id NodeID) []NodeID {
	return t.childrenOf(id, CategoryElement)
}

// ChildStatements returns the direct statement children of id.
func (t *Tree) ChildStatements(id NodeID) []NodeID {
	return t.childrenOf(id, CategoryStatement)
}

// ChildExpressions returns the direct expression children of id.
func (t *Tree) ChildExpressions(id NodeID) []NodeID {
	return t.childrenOf(id, CategoryExpression)
}

// Parent returns the parent of id, or NoNode.
func (t *Tree) Parent(id NodeID) NodeID {
	n := t.Node(id)
	if n == nil {
		return NoNode
	}
	return n.Parent
}

// EnclosingElement returns the nearest element at or above id.
func (t *Tree) EnclosingElement(id NodeID) NodeID {
	for cur := id; cur != NoNode; cur = t.nodes[cur].Parent {
		if t.nodes[cur].Kind.Category() == CategoryElement {
			return cur
		}
	}
	return NoNode
}

// AssignmentSides returns the left- and right-hand side of an assignment.
func (t *Tree) AssignmentSides(id NodeID) (left, right NodeID) {
	left, right = NoNode, NoNode
	n := t.Node(id)
	if n == nil || n.Kind != ExpressionAssignment {
		return left, right
	}
	if len(n.Children) > 0 {
		left = n.Children[0]
	}
	if len(n.Children) > 1 {
		right = n.Children[1]
	}
	return left, right
}

// Initializer returns the initializer of a variable declarator, or NoNode.
func (t *Tree) Initializer(id NodeID) NodeID {
	n := t.Node(id)
	if n == nil || n.Kind != ExpressionVariableDeclarator || len(n.Children) == 0 {
		return NoNode
	}
	return n.Children[0]
}

// PreviousSignificant returns the nearest preceding non-trivia token in the
// same token list as id: the top-level stream for stream tokens, the parent
// type token's children otherwise.
func (t *Tree) PreviousSignificant(id TokenID) TokenID {
	tok := t.Token(id)
	if tok == nil {
		return NoToken
	}
	list := t.stream
	if tok.Parent != NoToken {
		list = t.tokens[tok.Parent].Children
	}
	for i := tok.index - 1; i >= 0; i-- {
		prev := list[i]
		if !t.tokens[prev].Kind.IsTrivia() {
			return prev
		}
	}
	return NoToken
}

// TypeSpelling returns the base spelling of a type token: its significant
// children up to an array, nullable, pointer or generic suffix.
func (t *Tree) TypeSpelling(id TokenID) string {
	tok := t.Token(id)
	if tok == nil || !tok.IsType() {
		return ""
	}
	var b strings.Builder
	for _, child := range tok.Children {
		c := &t.tokens[child]
		if c.Kind.IsTrivia() {
			continue
		}
		switch c.Text {
		case "[", "?", "*", "<":
			return b.String()
		}
		if c.IsType() {
			b.WriteString(t.TypeSpelling(child))
			continue
		}
		b.WriteString(c.Text)
	}
	return b.String()
}
