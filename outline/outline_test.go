package outline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Example(t *testing.T) {
	nodes := Parse("# Title\n## A\ntext\n## B\n### B1")

	require.Len(t, nodes, 1)
	root := nodes[0]
	assert.Equal(t, "Title", root.Title)
	assert.Equal(t, 1, root.Level)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "A", root.Children[0].Title)
	assert.Equal(t, "B", root.Children[1].Title)
	assert.Empty(t, root.Children[0].Children)
	require.Len(t, root.Children[1].Children, 1)
	assert.Equal(t, "B1", root.Children[1].Children[0].Title)
}

func TestParse_NoHeadings(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"plain text", "no headings here"},
		{"too deep", "#### four\n##### five"},
		{"marker without space", "#title"},
		{"marker only", "# "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, Parse(tt.input))
		})
	}
}

func TestParse_LevelJump(t *testing.T) {
	nodes := Parse("# Root\n### Deep\n## Mid")

	require.Len(t, nodes, 1)
	require.Len(t, nodes[0].Children, 2)
	assert.Equal(t, "Deep", nodes[0].Children[0].Title)
	assert.Equal(t, 3, nodes[0].Children[0].Level)
	assert.Equal(t, "Mid", nodes[0].Children[1].Title)
}

func TestParse_MultipleRootsAndCRLF(t *testing.T) {
	nodes := Parse("## First\r\n### Child\r\n# Second\r\n")

	require.Len(t, nodes, 2)
	assert.Equal(t, "First", nodes[0].Title)
	assert.Equal(t, 2, nodes[0].Level)
	require.Len(t, nodes[0].Children, 1)
	assert.Equal(t, "Child", nodes[0].Children[0].Title)
	assert.Equal(t, "Second", nodes[1].Title)
}

func TestParse_TrimsTitle(t *testing.T) {
	nodes := Parse("#    spaced title   ")
	require.Len(t, nodes, 1)
	assert.Equal(t, "spaced title", nodes[0].Title)
}

func TestAt(t *testing.T) {
	nodes := Parse("# A\n## A1\n### A1x\n# B")

	assert.Equal(t, "A", At(nodes, 0).Title)
	assert.Equal(t, "A1x", At(nodes, 0, 0, 0).Title)
	assert.Equal(t, "B", At(nodes, 1).Title)
	assert.Nil(t, At(nodes, 2))
	assert.Nil(t, At(nodes, 0, 1))
	assert.Nil(t, At(nodes))
}

func TestRenameAndDelete(t *testing.T) {
	nodes := Parse("# A\n## A1\n### A1x\n## A2\n# B")

	Rename(At(nodes, 0, 1), "  Renamed ")
	assert.Equal(t, "Renamed", At(nodes, 0, 1).Title)

	nodes, ok := Delete(nodes, At(nodes, 0, 0))
	require.True(t, ok)
	assert.Equal(t, []string{"A", "Renamed", "B"}, Titles(nodes))

	nodes, ok = Delete(nodes, At(nodes, 1))
	require.True(t, ok)
	assert.Equal(t, []string{"A", "Renamed"}, Titles(nodes))

	_, ok = Delete(nodes, &Node{Title: "A"})
	assert.False(t, ok, "delete matches by identity")
}

func TestCountAndMarkdown(t *testing.T) {
	nodes := Parse("# A\n## A1\n# B")
	assert.Equal(t, 3, Count(nodes))
	assert.Equal(t, "# A\n## A1\n# B\n", Markdown(nodes))
}

// Editing happens on the tree. Re-parsing what the edited tree serializes to
// does not reproduce it.
func TestEditThenReparse_DoesNotRoundTrip(t *testing.T) {
	nodes := Parse("# Report\n### Background\n### Scope")
	Rename(At(nodes, 0, 1), "Scope and limits")

	reparsed := Parse(Markdown(nodes))
	require.Len(t, reparsed, 1)
	assert.Equal(t, Titles(nodes), Titles(reparsed))
	assert.NotEqual(t, nodes[0].Children[0].Level, reparsed[0].Children[0].Level)
	assert.NotEqual(t, nodes, reparsed)

	flat := ""
	for _, title := range Titles(nodes) {
		flat += title + "\n"
	}
	assert.Empty(t, Parse(flat), "flattened titles carry no heading markers")
}

func TestPrefixAndLines(t *testing.T) {
	assert.Equal(t, "1. ", Prefix(0, 0))
	assert.Equal(t, "b. ", Prefix(1, 1))
	assert.Equal(t, "aa. ", Prefix(1, 26))
	assert.Equal(t, "3) ", Prefix(2, 2))

	nodes := Parse("# A\n## A1\n### A1x\n# B")
	assert.Equal(t, []string{"1. A", "  a. A1", "    1) A1x", "2. B"}, Lines(nodes))
}

func TestFirstTitle(t *testing.T) {
	assert.Equal(t, "Doc", FirstTitle(Parse("## intro\n# Doc")))
	assert.Equal(t, "", FirstTitle(Parse("## only second")))
}

func TestParse_FullDepthChain(t *testing.T) {
	nodes := Parse("# a\n## b\n### c")
	require.Len(t, nodes, 1)
	require.Len(t, nodes[0].Children, 1)
	leaf := nodes[0].Children[0].Children
	require.Len(t, leaf, 1)
	assert.Equal(t, "c", leaf[0].Title)
	assert.Equal(t, MaxLevel, leaf[0].Level)
	assert.Empty(t, leaf[0].Children)
}
