package generator

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// RewriteType selects the kind of edit applied to a selection.
type RewriteType string

const (
	RewriteContinue RewriteType = "continue"
	RewritePolish   RewriteType = "polish"
	RewriteExpand   RewriteType = "expand"
	RewriteCustom   RewriteType = "custom"
)

var (
	ErrEmptySelection = errors.New("selected text is empty")
	ErrEmptyOutput    = errors.New("model returned no usable rewrite")
)

// ParseRewriteType maps a request value to a type; empty means polish.
// Unknown values are kept and get the generic instruction.
func ParseRewriteType(s string) RewriteType {
	t := RewriteType(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return RewritePolish
	}
	return t
}

// Instruction is the per-type editing request sent to the model.
func (t RewriteType) Instruction(customPrompt string) string {
	switch t {
	case RewriteContinue:
		return "在保留原文开头和风格的前提下自然续写，并输出完整续写结果（包含原文）。"
	case RewritePolish:
		return "在不改变核心信息的前提下润色表达，提升流畅度和可读性。"
	case RewriteExpand:
		return "在保留原意的前提下扩写，补充细节、论据或描写，让内容更饱满。"
	case RewriteCustom:
		if p := strings.TrimSpace(customPrompt); p != "" {
			return p
		}
		return "请按用户要求改写。"
	}
	return "请改写文本。"
}

// Rewriter rewrites a selected fragment of a document.
type Rewriter struct {
	llm LLMClient
}

func NewRewriter(llm LLMClient) (*Rewriter, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	return &Rewriter{llm: llm}, nil
}

// Rewrite sends the selection to the model and returns the sanitized
// result. Provider failures are returned as is.
func (r *Rewriter) Rewrite(ctx context.Context, selected string, typ RewriteType, customPrompt string) (string, error) {
	selected = strings.TrimSpace(selected)
	if selected == "" {
		return "", ErrEmptySelection
	}
	raw, err := r.llm.Complete(ctx, BuildRewritePrompt(selected, typ, customPrompt))
	if err != nil {
		return "", err
	}
	out := SanitizeRewrite(selected, stripFences(raw))
	if out == "" {
		return "", ErrEmptyOutput
	}
	return out, nil
}

var (
	markdownHeadingRe = regexp.MustCompile(`^#{1,6}\s+`)
	numberedHeadingRe = regexp.MustCompile(`^\d+(\.\d+)+[\s\x{3000}]+`)
)

// IsHeadingLine reports whether line looks like a section heading: a
// Markdown heading or a dotted section number such as "2.3 ".
func IsHeadingLine(line string) bool {
	line = strings.TrimSpace(line)
	return markdownHeadingRe.MatchString(line) || numberedHeadingRe.MatchString(line)
}

// SanitizeRewrite removes headings the model invented. When the selection
// itself starts with a heading the output is only trimmed.
func SanitizeRewrite(selected, output string) string {
	cleaned := strings.TrimSpace(output)
	if cleaned == "" || IsHeadingLine(selected) {
		return cleaned
	}

	lines := strings.Split(cleaned, "\n")
	kept := []string{lines[0]}
	for _, line := range lines[1:] {
		if !IsHeadingLine(line) {
			kept = append(kept, line)
		}
	}
	cleaned = strings.TrimSpace(strings.Join(kept, "\n"))

	first, rest, _ := strings.Cut(cleaned, "\n")
	if IsHeadingLine(first) {
		cleaned = strings.TrimSpace(rest)
	}
	return cleaned
}
