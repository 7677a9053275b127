package doctree

// Action tells Rewrite how to continue after visiting a node.
type Action int

const (
	// Continue keeps the node and descends into its children.
	Continue Action = iota
	// Skip keeps the node and its subtree untouched.
	Skip
	// Replace splices the returned nodes (possibly none) in place of the
	// visited node. Replacements are not visited again.
	Replace
)

// Visitor inspects one node. The returned nodes are used only with Replace.
type Visitor func(n *Node) ([]*Node, Action)

// Rewrite applies fn in pre-order to every descendant of root and returns the
// rewritten tree. root itself is never replaced. Subtrees that fn leaves
// untouched are shared with the input, and the input is never mutated.
func Rewrite(root *Node, fn Visitor) *Node {
	children, changed := rewriteChildren(root.Children, fn)
	if !changed {
		return root
	}
	c := *root
	c.Children = children
	return &c
}

func rewriteChildren(in []*Node, fn Visitor) ([]*Node, bool) {
	var out []*Node
	for i, child := range in {
		var next []*Node
		same := false

		repl, action := fn(child)
		switch action {
		case Replace:
			next = repl
		case Skip:
			same = true
		default:
			nc := Rewrite(child, fn)
			same = nc == child
			next = []*Node{nc}
		}

		if same {
			if out != nil {
				out = append(out, child)
			}
			continue
		}
		if out == nil {
			out = make([]*Node, 0, len(in))
			out = append(out, in[:i]...)
		}
		out = append(out, next...)
	}
	if out == nil {
		return in, false
	}
	return out, true
}

// Walk visits root and its descendants in pre-order. Returning false from fn
// skips the children of the visited node.
func Walk(root *Node, fn func(n *Node) bool) {
	if !fn(root) {
		return
	}
	for _, c := range root.Children {
		Walk(c, fn)
	}
}

// MergeText joins adjacent text nodes in a child list.
func MergeText(in []*Node) []*Node {
	out := make([]*Node, 0, len(in))
	for _, n := range in {
		if n.Kind == KindText && len(out) > 0 && out[len(out)-1].Kind == KindText {
			prev := out[len(out)-1]
			out[len(out)-1] = Text(prev.Value + n.Value)
			continue
		}
		if n.Kind == KindText && n.Value == "" {
			continue
		}
		out = append(out, n)
	}
	return out
}
