package app

import (
	"fmt"
	"slices"

	"writing_workspace/taskstore"
	"writing_workspace/writing"
)

// Conversation lines added when a task reaches a state.
const (
	outlineReadyMessage = "根据你的需求，我拟定了如下大纲。你可以直接修改大纲，确认无误后点击「基于大纲生成文档」。"
	thinkingDoneMessage = "深度思考完成"
	generatedFormat     = "根据你的需求，我为你生成了《%s》"
)

// storeRecorder adapts taskstore.Store to the writing.Recorder interface.
type storeRecorder struct {
	store     *taskstore.Store
	scenarios *writing.Catalog
}

func (r *storeRecorder) Record(taskID string, c writing.Context) {
	if taskID == "" {
		return
	}
	patch := taskstore.PatchFromContext(c)
	if task, ok := r.store.Get(taskID); ok {
		if msgs, changed := stateMessages(task.Messages, c, r.documentKind(task.ScenarioID)); changed {
			patch.Messages = msgs
		}
	}
	r.store.Update(taskID, patch)
}

func (r *storeRecorder) documentKind(scenarioID string) string {
	if r.scenarios != nil {
		if s, ok := r.scenarios.Get(scenarioID); ok && s.Name != "" {
			return s.Name
		}
	}
	return "文档"
}

// stateMessages appends the assistant lines for c.State once per task.
func stateMessages(msgs []taskstore.Message, c writing.Context, kind string) ([]taskstore.Message, bool) {
	has := func(content string) bool {
		return slices.ContainsFunc(msgs, func(m taskstore.Message) bool {
			return m.Role == taskstore.RoleAI && m.Content == content
		})
	}
	out := slices.Clone(msgs)
	switch c.State {
	case writing.StateOutlineConfirm:
		if c.Outline == "" || has(outlineReadyMessage) {
			return msgs, false
		}
		out = append(out, taskstore.Message{Role: taskstore.RoleAI, Content: outlineReadyMessage})
	case writing.StateGenerating:
		if has(thinkingDoneMessage) {
			return msgs, false
		}
		out = append(out,
			taskstore.Message{Role: taskstore.RoleAI, Content: thinkingDoneMessage},
			taskstore.Message{Role: taskstore.RoleAI, Content: fmt.Sprintf(generatedFormat, kind)},
		)
	default:
		return msgs, false
	}
	return out, true
}
