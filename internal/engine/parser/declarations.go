package parser

import (
	"strings"

	"csguard/internal/engine/syntax"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

func registerDeclarations(h map[string]nodeHandler) {
	h["compilation_unit"] = compilationUnit
	h["namespace_declaration"] = namespaceDeclaration
	h["file_scoped_namespace_declaration"] = namespaceDeclaration
	h["using_directive"] = usingDirective
	h["class_declaration"] = typeDeclaration(syntax.ElementClass)
	h["struct_declaration"] = typeDeclaration(syntax.ElementStruct)
	h["interface_declaration"] = typeDeclaration(syntax.ElementInterface)
	h["record_declaration"] = recordDeclaration
	h["record_struct_declaration"] = typeDeclaration(syntax.ElementStruct)
	h["enum_declaration"] = typeDeclaration(syntax.ElementEnum)
	h["enum_member_declaration"] = enumMember
	h["delegate_declaration"] = delegateDeclaration
	h["field_declaration"] = fieldDeclaration(syntax.ElementField)
	h["event_field_declaration"] = fieldDeclaration(syntax.ElementEvent)
	h["property_declaration"] = propertyDeclaration(syntax.ElementProperty)
	h["event_declaration"] = propertyDeclaration(syntax.ElementEvent)
	h["indexer_declaration"] = indexerDeclaration
	h["method_declaration"] = methodDeclaration(syntax.ElementMethod)
	h["constructor_declaration"] = methodDeclaration(syntax.ElementConstructor)
	h["destructor_declaration"] = methodDeclaration(syntax.ElementDestructor)
	h["operator_declaration"] = methodDeclaration(syntax.ElementOperator)
	h["conversion_operator_declaration"] = methodDeclaration(syntax.ElementOperator)
	h["accessor_declaration"] = accessorDeclaration
	h["parameter"] = parameter
	h["attribute_list"] = attributeList
}

// compilationUnit walks the top level. A file-scoped namespace owns every
// declaration after it.
func compilationUnit(w *walker, n *sitter.Node, f frame) {
	cur := f
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c.Kind() == "file_scoped_namespace_declaration" {
			cur = w.namespace(c, f)
			continue
		}
		w.visit(n, c, cur)
	}
}

func namespaceDeclaration(w *walker, n *sitter.Node, f frame) {
	w.namespace(n, f)
}

func (w *walker) namespace(n *sitter.Node, f frame) frame {
	decl := syntax.Declaration{Name: compact(w.fieldText(n, "name"))}
	inner := w.element(n, syntax.ElementNamespace, decl, f)
	w.walkChildren(n, inner)
	return inner
}

func usingDirective(w *walker, n *sitter.Node, f frame) {
	var decl syntax.Declaration
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		switch {
		case c.Kind() == "name_equals":
			decl.Name = w.text(nameNode(c))
		case typeNodeKinds[c.Kind()] && decl.Name == "":
			decl.Name = compact(w.text(c))
		}
	}
	if alias := n.ChildByFieldName("name"); alias != nil {
		decl.Name = w.text(alias)
	}
	inner := w.element(n, syntax.ElementUsing, decl, f)
	w.walkChildren(n, inner)
}

func typeDeclaration(kind syntax.Kind) nodeHandler {
	return func(w *walker, n *sitter.Node, f frame) {
		decl := w.declaration(n)
		decl.Name = w.fieldText(n, "name")
		inner := w.element(n, kind, decl, f)
		w.walkChildren(n, inner)
	}
}

// recordDeclaration lowers records. A record struct is a struct, any other
// record a class.
func recordDeclaration(w *walker, n *sitter.Node, f frame) {
	kind := syntax.ElementClass
	if childOfKind(n, "struct") != nil {
		kind = syntax.ElementStruct
	}
	typeDeclaration(kind)(w, n, f)
}

func enumMember(w *walker, n *sitter.Node, f frame) {
	decl := w.declaration(n)
	decl.Name = w.text(nameNode(n))
	inner := w.element(n, syntax.ElementEnumItem, decl, f)
	inner.refs = true
	w.walkChildren(n, inner)
}

func delegateDeclaration(w *walker, n *sitter.Node, f frame) {
	decl := w.declaration(n)
	decl.Name = w.fieldText(n, "name")
	decl.ReturnType = compact(w.returnType(n))
	inner := w.element(n, syntax.ElementDelegate, decl, f)
	w.walkChildren(n, inner)
}

// fieldDeclaration emits one element per declarator, so int a, b; yields
// two fields. Leading modifiers and the type belong to the first.
func fieldDeclaration(kind syntax.Kind) nodeHandler {
	return func(w *walker, n *sitter.Node, f frame) {
		decl := w.declaration(n)
		vd := childOfKind(n, "variable_declaration")
		if vd == nil {
			w.walkChildren(n, f)
			return
		}
		decl.ReturnType = compact(w.fieldText(vd, "type"))

		var cur frame
		next := func(declarator *sitter.Node) {
			d := decl
			name := declaratorName(declarator)
			d.Name = w.text(name)
			pos := posOf(declarator)
			if name != nil {
				pos = posOf(name)
			}
			id := w.b.Element(f.owner, kind, d, pos)
			cur = frame{owner: id, scope: syntax.NoNode, call: syntax.NoNode}
		}
		if first := childOfKind(vd, "variable_declarator"); first != nil {
			next(first)
		} else {
			cur = w.element(n, kind, decl, f)
		}

		for i := uint(0); i < n.ChildCount(); i++ {
			c := n.Child(i)
			if !sameNode(c, vd) {
				w.visit(n, c, cur)
				continue
			}
			firstSeen := false
			for j := uint(0); j < vd.ChildCount(); j++ {
				d := vd.Child(j)
				if d.Kind() != "variable_declarator" {
					w.visit(vd, d, cur)
					continue
				}
				if firstSeen {
					next(d)
				}
				firstSeen = true
				variableDeclarator(w, d, cur)
			}
		}
	}
}

func propertyDeclaration(kind syntax.Kind) nodeHandler {
	return func(w *walker, n *sitter.Node, f frame) {
		decl := w.declaration(n)
		decl.Name = w.fieldText(n, "name")
		decl.ReturnType = compact(w.fieldText(n, "type"))
		inner := w.element(n, kind, decl, f)
		w.accessorOwner(n, inner)
	}
}

// indexerDeclaration lowers this[...] members. The parameters are declared
// on the indexer and copied into each accessor.
func indexerDeclaration(w *walker, n *sitter.Node, f frame) {
	decl := w.declaration(n)
	decl.Name = "this"
	decl.ReturnType = compact(w.fieldText(n, "type"))
	pos := posOf(n)
	if kw := childOfKind(n, "this"); kw != nil {
		pos = posOf(kw)
	}
	id := w.b.Element(f.owner, syntax.ElementIndexer, decl, pos)
	w.accessorOwner(n, frame{owner: id, scope: id, call: syntax.NoNode})
}

// accessorOwner walks a property, indexer or event. An expression body is
// lowered into a synthetic get accessor.
func (w *walker) accessorOwner(n *sitter.Node, f frame) {
	afterEquals := false
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		switch {
		case c.Kind() == "accessor_list":
			w.walkChildren(c, f)
		case c.Kind() == "arrow_expression_clause":
			acc := w.b.Element(f.owner, syntax.ElementAccessor, syntax.Declaration{Name: "get"}, posOf(c))
			w.inheritParameters(acc, f.owner)
			w.body(n, c, frame{owner: acc, scope: acc, call: syntax.NoNode})
		case c.Kind() == "=":
			afterEquals = true
			w.leaf(c, f.owner)
		case afterEquals && c.IsNamed():
			init := f
			init.refs = true
			w.visit(n, c, init)
		default:
			w.visit(n, c, f)
		}
	}
}

var valueAccessors = map[string]bool{"set": true, "init": true, "add": true, "remove": true}

func accessorDeclaration(w *walker, n *sitter.Node, f frame) {
	decl := w.declaration(n)
	decl.Name = w.accessorName(n)
	inner := w.element(n, syntax.ElementAccessor, decl, f)
	acc := inner.owner
	inner.scope = acc
	w.inheritParameters(acc, f.owner)
	if valueAccessors[decl.Name] {
		w.b.Declare(acc, "value", syntax.Position{})
	}
	body := n.ChildByFieldName("body")
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if sameNode(c, body) || c.Kind() == "block" || c.Kind() == "arrow_expression_clause" {
			w.body(n, c, inner)
			continue
		}
		w.visit(n, c, inner)
	}
}

func (w *walker) accessorName(n *sitter.Node) string {
	if name := n.ChildByFieldName("name"); name != nil {
		return w.text(name)
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		switch kind := c.Kind(); kind {
		case "get", "set", "init", "add", "remove":
			return kind
		}
	}
	return ""
}

// inheritParameters makes the owner's parameters visible throughout an
// accessor body.
func (w *walker) inheritParameters(acc, owner syntax.NodeID) {
	o := w.b.Node(owner)
	if o == nil {
		return
	}
	for _, v := range o.Variables {
		w.b.Declare(acc, v.Name, syntax.Position{})
	}
}

// methodDeclaration lowers methods, constructors, destructors and operators.
// Parameters are declared on the element and a block body is flattened into
// it.
func methodDeclaration(kind syntax.Kind) nodeHandler {
	return func(w *walker, n *sitter.Node, f frame) {
		decl := w.declaration(n)
		decl.Name = w.memberName(n, kind)
		decl.ReturnType = compact(w.returnType(n))
		inner := w.element(n, kind, decl, f)
		inner.scope = inner.owner
		body := n.ChildByFieldName("body")
		for i := uint(0); i < n.ChildCount(); i++ {
			c := n.Child(i)
			switch {
			case sameNode(c, body) || c.Kind() == "block" || c.Kind() == "arrow_expression_clause":
				w.body(n, c, inner)
			case c.Kind() == "constructor_initializer":
				init := inner
				init.refs = true
				w.walkChildren(c, init)
			default:
				w.visit(n, c, inner)
			}
		}
	}
}

func (w *walker) memberName(n *sitter.Node, kind syntax.Kind) string {
	switch n.Kind() {
	case "operator_declaration":
		return "operator" + compact(w.fieldText(n, "operator"))
	case "conversion_operator_declaration":
		for i := uint(0); i < n.ChildCount(); i++ {
			if k := n.Child(i).Kind(); k == "implicit" || k == "explicit" {
				return k + " operator"
			}
		}
		return "operator"
	case "destructor_declaration":
		return "~" + w.text(nameNode(n))
	}
	return w.text(nameNode(n))
}

func (w *walker) returnType(n *sitter.Node) string {
	for _, field := range typeFields {
		if t := n.ChildByFieldName(field); t != nil {
			return w.text(t)
		}
	}
	return ""
}

// body lowers the body of a member, accessor, local function or anonymous
// function into f.owner. A block contributes its statements directly; an
// expression body is wrapped in a synthetic expression statement.
func (w *walker) body(parent, n *sitter.Node, f frame) {
	f.refs = true
	f.call = syntax.NoNode
	switch n.Kind() {
	case "block":
		w.walkChildren(n, f)
	case "arrow_expression_clause":
		id := w.b.Statement(f.owner, syntax.StatementExpression, posOf(n))
		inner := f
		inner.owner = id
		w.walkChildren(n, inner)
	default:
		id := w.b.Statement(f.owner, syntax.StatementExpression, posOf(n))
		inner := f
		inner.owner = id
		w.visit(parent, n, inner)
	}
}

func parameter(w *walker, n *sitter.Node, f frame) {
	name := nameNode(n)
	afterName := false
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		switch {
		case sameNode(c, name):
			w.leaf(c, f.owner)
			w.b.Declare(f.scope, w.text(c), posOf(c))
			afterName = true
		case afterName && c.IsNamed():
			def := f
			def.refs = true
			def.call = syntax.NoNode
			w.visit(n, c, def)
		default:
			w.visit(n, c, f)
		}
	}
}

// attributeList is emitted as plain tokens. Attributes never hold member
// references the rules care about.
func attributeList(w *walker, n *sitter.Node, f frame) {
	w.leaves(n, f.owner)
}

// element adds an element positioned at n's name.
func (w *walker) element(n *sitter.Node, kind syntax.Kind, decl syntax.Declaration, f frame) frame {
	pos := posOf(n)
	if name := n.ChildByFieldName("name"); name != nil {
		pos = posOf(name)
	}
	id := w.b.Element(f.owner, kind, decl, pos)
	return frame{owner: id, scope: syntax.NoNode, call: syntax.NoNode}
}

var accessWords = map[string]bool{"public": true, "private": true, "protected": true, "internal": true}

// declaration reads modifiers and generated-code attributes off a member.
func (w *walker) declaration(n *sitter.Node) syntax.Declaration {
	var d syntax.Declaration
	seen := make(map[string]bool)
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		var word string
		switch {
		case c.Kind() == "modifier":
			word = strings.TrimSpace(w.text(c))
		case c.Kind() == "attribute_list":
			if w.generatedAttributeList(c) {
				d.Generated = true
			}
			continue
		case !c.IsNamed():
			word = c.Kind()
		default:
			continue
		}
		if accessWords[word] {
			seen[word] = true
			continue
		}
		d.Modifiers |= syntax.ModifierOf(word)
	}
	d.Access = accessOf(seen)
	return d
}

func accessOf(seen map[string]bool) syntax.Access {
	switch {
	case seen["public"]:
		return syntax.AccessPublic
	case seen["protected"] && seen["internal"]:
		return syntax.AccessProtectedInternal
	case seen["private"] && seen["protected"]:
		return syntax.AccessPrivateProtected
	case seen["protected"]:
		return syntax.AccessProtected
	case seen["internal"]:
		return syntax.AccessInternal
	case seen["private"]:
		return syntax.AccessPrivate
	}
	return syntax.AccessDefault
}

func (w *walker) generatedAttributeList(list *sitter.Node) bool {
	for i := uint(0); i < list.ChildCount(); i++ {
		c := list.Child(i)
		if c.Kind() != "attribute" {
			continue
		}
		name := c.ChildByFieldName("name")
		if name == nil && c.NamedChildCount() > 0 {
			name = c.NamedChild(0)
		}
		if IsGeneratedAttribute(w.text(name)) {
			return true
		}
	}
	return false
}
