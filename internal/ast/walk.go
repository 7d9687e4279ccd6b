package ast

// Children returns the child lists of a node in source order. Branches of
// control flow are returned as separate lists.
func Children(n Node) [][]Node {
	switch n := n.(type) {
	case *Element:
		return [][]Node{n.Children}
	case *Fragment:
		return [][]Node{n.Children}
	case *ComponentCall:
		return [][]Node{n.Children}
	case *If:
		out := [][]Node{n.Then}
		for _, ei := range n.ElseIfs {
			out = append(out, ei.Body)
		}
		if n.HasElse {
			out = append(out, n.Else)
		}
		return out
	case *For:
		return [][]Node{n.Body}
	case *Match:
		out := make([][]Node, 0, len(n.Arms))
		for _, a := range n.Arms {
			out = append(out, a.Body)
		}
		return out
	}
	return nil
}

// Inspect walks the tree depth-first in source order. fn receives each
// node with its ancestors, nearest last; returning false skips the
// node's children.
func Inspect(nodes []Node, fn func(n Node, ancestors []Node) bool) {
	var stack []Node
	var walk func([]Node)
	walk = func(list []Node) {
		for _, n := range list {
			if !fn(n, stack) {
				continue
			}
			stack = append(stack, n)
			for _, kids := range Children(n) {
				walk(kids)
			}
			stack = stack[:len(stack)-1]
		}
	}
	walk(nodes)
}

// PostOrder walks the tree visiting children before their parent.
func PostOrder(nodes []Node, fn func(n Node, ancestors []Node)) {
	var stack []Node
	var walk func([]Node)
	walk = func(list []Node) {
		for _, n := range list {
			stack = append(stack, n)
			for _, kids := range Children(n) {
				walk(kids)
			}
			stack = stack[:len(stack)-1]
			fn(n, stack)
		}
	}
	walk(nodes)
}

// Elements returns every element in the tree, including those inside
// control flow and component children.
func Elements(nodes []Node) []*Element {
	var out []*Element
	Inspect(nodes, func(n Node, _ []Node) bool {
		if el, ok := n.(*Element); ok {
			out = append(out, el)
		}
		return true
	})
	return out
}

// NearestElement returns the closest element ancestor, looking through
// fragments and control flow.
func NearestElement(ancestors []Node) (*Element, bool) {
	for i := len(ancestors) - 1; i >= 0; i-- {
		switch a := ancestors[i].(type) {
		case *Element:
			return a, true
		case *ComponentCall:
			return nil, false
		}
	}
	return nil, false
}

// Flatten returns the nodes that render directly in a parent's child
// list: fragments and control-flow bodies are opened up, comments are
// dropped.
func Flatten(nodes []Node) []Node {
	var out []Node
	for _, n := range nodes {
		switch n := n.(type) {
		case *Fragment:
			out = append(out, Flatten(n.Children)...)
		case *If, *For, *Match:
			for _, kids := range Children(n) {
				out = append(out, Flatten(kids)...)
			}
		case *Comment, *Let:
		default:
			out = append(out, n)
		}
	}
	return out
}
