package generator

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"writing_workspace/outline"
	"writing_workspace/writing"
)

// Kind tells what a prompt asks the model for.
type Kind string

const (
	KindOutline  Kind = "outline"
	KindFullText Kind = "full_text"
	KindRewrite  Kind = "rewrite"
)

// Prompt 表示发送给 LLM 的消息集合。
type Prompt struct {
	Kind    Kind
	Topic   string // the user's request or the selected text
	System  string
	User    string
	History []Message
}

// Message 用于少量历史（可选）。
type Message struct {
	Role    string
	Content string
}

// BuildOutlinePrompt 生成大纲提示词：只允许输出一到三级 Markdown 标题。
func BuildOutlinePrompt(c writing.Context) Prompt {
	var sb strings.Builder
	sb.WriteString("你是一名专业中文内容策划，请为用户的写作需求拟定文章大纲。\n")
	sb.WriteString("要求：\n")
	sb.WriteString("- 只输出 Markdown 标题行，不要正文，不要额外解释。\n")
	sb.WriteString("- 第一行是一级标题（# ），作为文章标题。\n")
	sb.WriteString("- 章节使用二级标题（## ），要点使用三级标题（### ），不得超过三级。\n")

	user := fmt.Sprintf("写作需求：%s\n请输出大纲。", strings.TrimSpace(c.Input))
	return Prompt{
		Kind:   KindOutline,
		Topic:  c.Input,
		System: sb.String(),
		User:   user,
	}
}

// BuildFullTextPrompt 生成正文提示词。通用模式按确认后的大纲写作，
// 智能体模式按记忆与参数配置写作。
func BuildFullTextPrompt(c writing.Context) Prompt {
	var sb strings.Builder
	sb.WriteString("你是一名专业中文内容创作者，请直接输出 Markdown，不要额外解释。\n")
	sb.WriteString("要求：\n")
	sb.WriteString("- 必须包含一级标题作为文章标题。\n")
	sb.WriteString("- 开头给出 80~140 字的摘要，用段落呈现。\n")
	writeConfig(&sb, "背景信息", c.MemoryConfig)
	writeConfig(&sb, "写作参数", c.ParamsConfig)
	if tree := outline.Parse(c.Outline); len(tree) > 0 {
		sb.WriteString("- 按以下大纲组织内容：\n")
		for _, line := range outline.Lines(tree) {
			sb.WriteString("  " + line + "\n")
		}
	}

	var history []Message
	if c.Outline != "" {
		history = append(history,
			Message{Role: "user", Content: c.Input},
			Message{Role: "assistant", Content: c.Outline},
		)
	}
	return Prompt{
		Kind:    KindFullText,
		Topic:   firstTitle(c),
		System:  "严守 Markdown 结构，禁止输出额外说明。",
		User:    fmt.Sprintf("%s\n主题：%s\n请输出符合上述要求的完整 Markdown。", sb.String(), strings.TrimSpace(c.Input)),
		History: history,
	}
}

const rewriteSystem = "你是专业中文写作编辑。你只能改写用户给出的选中文本，不得新增小节标题、编号、章节名或未选中的事实信息。" +
	"只输出最终改写文本，不要解释，不要加前后缀，不要使用 markdown 代码块。"

// BuildRewritePrompt 生成局部改写提示词。
func BuildRewritePrompt(selected string, typ RewriteType, customPrompt string) Prompt {
	user := fmt.Sprintf("改写要求：%s\n\n硬性约束：\n1) 只改写待改写文本本身\n2) 不得补写标题/编号（如“2.3 ...”）\n"+
		"3) 不得引入待改写文本之外的新段落主题\n\n待改写文本：\n%s\n\n请直接输出最终文本。",
		typ.Instruction(customPrompt), selected)
	return Prompt{
		Kind:   KindRewrite,
		Topic:  selected,
		System: rewriteSystem,
		User:   user,
	}
}

func writeConfig(sb *strings.Builder, label string, values map[string]any) {
	var lines []string
	for _, k := range slices.Sorted(maps.Keys(values)) {
		v := strings.TrimSpace(fmt.Sprint(values[k]))
		if values[k] == nil || v == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("  - %s：%s\n", k, v))
	}
	if len(lines) == 0 {
		return
	}
	sb.WriteString("- " + label + "：\n")
	for _, l := range lines {
		sb.WriteString(l)
	}
}

func firstTitle(c writing.Context) string {
	if t := outline.FirstTitle(outline.Parse(c.Outline)); t != "" {
		return t
	}
	return c.Input
}
