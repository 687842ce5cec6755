package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"writing_workspace/outline"
	"writing_workspace/taskstore"
	"writing_workspace/writing"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5f9fb0"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6c757d"))
	stateStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#d16d7a"))
	doneStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2e8b57"))
	messageStyle = lipgloss.NewStyle().PaddingLeft(2)
)

func renderState(s writing.State) string {
	if s == writing.StateFinished {
		return doneStyle.Render(s.String())
	}
	return stateStyle.Render(s.String())
}

func renderTaskList(tasks []taskstore.Task) string {
	if len(tasks) == 0 {
		return mutedStyle.Render("no tasks") + "\n"
	}
	var b strings.Builder
	for _, t := range tasks {
		fmt.Fprintf(&b, "%s  %s  %s  %s\n",
			mutedStyle.Render(t.ID),
			renderState(t.WritingState),
			titleStyle.Render(t.Name),
			mutedStyle.Render(t.Updated().Format(time.DateTime)),
		)
	}
	return b.String()
}

func renderTask(t taskstore.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", titleStyle.Render(t.Name), mutedStyle.Render("("+t.ID+")"))
	fmt.Fprintf(&b, "mode: %s  state: %s  document: %s\n", t.Mode, renderState(t.WritingState), t.DocumentName)
	for _, m := range t.Messages {
		fmt.Fprintf(&b, "%s\n", messageStyle.Render(fmt.Sprintf("[%s] %s", m.Role, m.Content)))
	}
	if tree := outline.Parse(t.Outline); len(tree) > 0 {
		b.WriteString("\n" + renderOutline(tree))
	}
	if t.Content != "" {
		b.WriteString("\n" + t.Content + "\n")
	}
	return b.String()
}

func renderOutline(nodes []*outline.Node) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Outline") + "\n")
	for _, line := range outline.Lines(nodes) {
		b.WriteString(line + "\n")
	}
	return b.String()
}
