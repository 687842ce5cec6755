package generator

import (
	"context"
	"errors"
	"fmt"

	"writing_workspace/outline"
	"writing_workspace/writing"
)

// Agent 负责调用大模型生成大纲与正文，是 writing.ContentSource 的实现。
type Agent struct {
	llm LLMClient
}

var _ writing.ContentSource = (*Agent)(nil)

func NewAgent(llm LLMClient) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	return &Agent{llm: llm}, nil
}

// Outline asks for a heading-only outline of the request in c.Input.
func (a *Agent) Outline(ctx context.Context, c writing.Context) (string, error) {
	raw, err := a.llm.Complete(ctx, BuildOutlinePrompt(c))
	if err != nil {
		return "", fmt.Errorf("outline: %w", err)
	}
	md, err := PostProcess(raw)
	if err != nil {
		return "", fmt.Errorf("outline: %w", err)
	}
	if len(outline.Parse(md)) == 0 {
		return "", fmt.Errorf("outline: model output has no headings")
	}
	return md, nil
}

// FullText asks for the complete document.
func (a *Agent) FullText(ctx context.Context, c writing.Context) (string, error) {
	raw, err := a.llm.Complete(ctx, BuildFullTextPrompt(c))
	if err != nil {
		return "", fmt.Errorf("full text: %w", err)
	}
	md, err := PostProcess(raw)
	if err != nil {
		return "", fmt.Errorf("full text: %w", err)
	}
	return md, nil
}
