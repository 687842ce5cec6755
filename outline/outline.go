// Package outline turns heading-marked text into a three level tree and
// offers the in-place edits the outline review step needs.
//
// Edits only ever touch the in-memory tree. Serializing an edited tree and
// parsing it again is not guaranteed to give the same tree back, so callers
// must keep the edited nodes instead of re-parsing.
package outline

import (
	"regexp"
	"strings"
)

// MaxLevel is the deepest heading level the parser recognizes.
const MaxLevel = 3

var headingRe = regexp.MustCompile(`^(#{1,3})\s+(.+)$`)

// Node is one heading of the outline.
type Node struct {
	Level    int     `json:"level"`
	Title    string  `json:"title"`
	Children []*Node `json:"children"`
}

// Parse builds the outline tree from text. Lines that are not headings are
// ignored. A heading becomes a child of the most recent shallower heading,
// whatever the size of the gap between their levels.
func Parse(text string) []*Node {
	var roots []*Node
	var stack []*Node

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		m := headingRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		node := &Node{
			Level:    len(m[1]),
			Title:    strings.TrimSpace(m[2]),
			Children: []*Node{},
		}

		for len(stack) > 0 && stack[len(stack)-1].Level >= node.Level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, node)
		} else {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, node)
		}
		stack = append(stack, node)
	}
	return roots
}

// At walks the tree by child indexes and returns the node found there, or
// nil when the path leaves the tree.
func At(nodes []*Node, path ...int) *Node {
	if len(path) == 0 {
		return nil
	}
	var cur *Node
	level := nodes
	for _, idx := range path {
		if idx < 0 || idx >= len(level) {
			return nil
		}
		cur = level[idx]
		level = cur.Children
	}
	return cur
}

// Rename replaces the title of node in place.
func Rename(node *Node, title string) {
	if node == nil {
		return
	}
	node.Title = strings.TrimSpace(title)
}

// Delete removes target and its whole subtree. Nodes are matched by
// identity, not by title. The returned slice is the new top level.
func Delete(nodes []*Node, target *Node) ([]*Node, bool) {
	if target == nil {
		return nodes, false
	}
	out := make([]*Node, 0, len(nodes))
	removed := false
	for _, n := range nodes {
		if n == target {
			removed = true
			continue
		}
		if !removed {
			var ok bool
			n.Children, ok = Delete(n.Children, target)
			removed = ok
		}
		out = append(out, n)
	}
	return out, removed
}

// Titles flattens the tree in pre-order.
func Titles(nodes []*Node) []string {
	var out []string
	walk(nodes, 0, func(n *Node, _ int) {
		out = append(out, n.Title)
	})
	return out
}

// Count returns the number of nodes in the tree.
func Count(nodes []*Node) int {
	total := 0
	walk(nodes, 0, func(*Node, int) { total++ })
	return total
}

// Markdown writes the tree back as headings. The marker count follows the
// display depth of each node, not its parsed level.
func Markdown(nodes []*Node) string {
	var b strings.Builder
	walk(nodes, 0, func(n *Node, depth int) {
		marks := depth + 1
		if marks > MaxLevel {
			marks = MaxLevel
		}
		b.WriteString(strings.Repeat("#", marks))
		b.WriteString(" ")
		b.WriteString(n.Title)
		b.WriteString("\n")
	})
	return b.String()
}

func walk(nodes []*Node, depth int, fn func(*Node, int)) {
	for _, n := range nodes {
		fn(n, depth)
		walk(n.Children, depth+1, fn)
	}
}
