package outline

import (
	"fmt"
	"strings"
)

// Prefix returns the display numbering for a node at the given depth and
// sibling index: "1. " at the top, "a. " below it, "1) " further down.
func Prefix(depth, index int) string {
	switch depth {
	case 0:
		return fmt.Sprintf("%d. ", index+1)
	case 1:
		return letters(index) + ". "
	default:
		return fmt.Sprintf("%d) ", index+1)
	}
}

// letters maps 0 -> a, 25 -> z, 26 -> aa.
func letters(index int) string {
	var out []byte
	for n := index; ; n = n/26 - 1 {
		out = append([]byte{byte('a' + n%26)}, out...)
		if n < 26 {
			break
		}
	}
	return string(out)
}

// Lines renders the tree as indented, numbered text lines.
func Lines(nodes []*Node) []string {
	var out []string
	var rec func(level []*Node, depth int)
	rec = func(level []*Node, depth int) {
		for i, n := range level {
			out = append(out, strings.Repeat("  ", depth)+Prefix(depth, i)+n.Title)
			rec(n.Children, depth+1)
		}
	}
	rec(nodes, 0)
	return out
}

// FirstTitle returns the title of the first top-level heading, or "".
func FirstTitle(nodes []*Node) string {
	for _, n := range nodes {
		if n.Level == 1 {
			return n.Title
		}
	}
	return ""
}
