package generator

import (
	"context"
	"strings"
)

// MockLLM 一个简单的占位实现，便于本地调试，不调用外部模型。
// It answers each prompt kind with deterministic Markdown derived from the
// user message.
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	topic := firstLine(prompt.Topic)
	if topic == "" {
		topic = "自动生成示例标题"
	}
	var sb strings.Builder
	switch prompt.Kind {
	case KindOutline:
		sb.WriteString("# " + topic + "\n")
		sb.WriteString("## 背景\n")
		sb.WriteString("### 现状\n")
		sb.WriteString("## 要点\n")
		sb.WriteString("## 总结\n")
	case KindRewrite:
		sb.WriteString(strings.TrimSpace(prompt.Topic))
	default:
		sb.WriteString("# " + topic + "\n\n")
		sb.WriteString("这里是一段自动生成的摘要，概述全文要点。\n\n")
		sb.WriteString("## 正文\n\n")
		sb.WriteString("根据提示生成的内容：\n\n")
		sb.WriteString("```\n")
		sb.WriteString(prompt.User)
		sb.WriteString("\n```\n")
	}
	return sb.String(), nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
