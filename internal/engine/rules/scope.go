package rules

import "csguard/internal/engine/syntax"

// IsBoundBefore reports whether name is a local variable or parameter
// visible at pos from scope. The search walks outward through parent nodes
// and stops after the first element, so locals of sibling members never
// leak into each other.
func IsBoundBefore(tree *syntax.Tree, scope syntax.NodeID, name string, pos syntax.Position) bool {
	for cur := scope; cur != syntax.NoNode; {
		n := tree.Node(cur)
		if n == nil {
			return false
		}
		for _, v := range n.Variables {
			if v.Name == name && v.Pos.Before(pos) {
				return true
			}
		}
		if n.Category() == syntax.CategoryElement {
			return false
		}
		cur = n.Parent
	}
	return false
}
