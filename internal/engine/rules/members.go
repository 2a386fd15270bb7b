package rules

import "csguard/internal/engine/syntax"

// MemberIndex maps simple names to the members of exactly one type that
// carry them. Several members may share a name (overloads, hiding).
type MemberIndex struct {
	Type    syntax.NodeID
	members map[string][]syntax.NodeID
}

// BuildMemberIndex indexes the direct member elements of typeID. Nested
// types are indexed by name but their own members are not visited.
func BuildMemberIndex(tree *syntax.Tree, typeID syntax.NodeID) MemberIndex {
	idx := MemberIndex{Type: typeID, members: make(map[string][]syntax.NodeID)}
	if tree == nil || tree.Node(typeID) == nil {
		return idx
	}
	for _, child := range tree.ChildElements(typeID) {
		n := tree.Node(child)
		if !isIndexedMember(n.Kind) {
			continue
		}
		name := n.Name()
		if name == "" {
			continue
		}
		idx.members[name] = append(idx.members[name], child)
	}
	return idx
}

func isIndexedMember(k syntax.Kind) bool {
	switch k {
	case syntax.ElementField,
		syntax.ElementProperty,
		syntax.ElementMethod,
		syntax.ElementEvent,
		syntax.ElementDelegate,
		syntax.ElementClass,
		syntax.ElementInterface,
		syntax.ElementStruct,
		syntax.ElementEnum:
		return true
	}
	return false
}

// Lookup returns the members named name in declaration order.
func (ix MemberIndex) Lookup(name string) []syntax.NodeID {
	return ix.members[name]
}

// Len returns the number of distinct names.
func (ix MemberIndex) Len() int {
	return len(ix.members)
}
