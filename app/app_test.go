package app

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"writing_workspace/config"
	"writing_workspace/generator"
	"writing_workspace/taskstore"
	"writing_workspace/writing"
)

func testConfig(provider string) config.Config {
	return config.Config{
		DataDir: "/data",
		Storage: config.StorageConfig{Driver: "file", Key: taskstore.DefaultKey, Capacity: 50},
		LLM:     config.LLMConfig{Provider: provider},
		Stream:  config.StreamConfig{ChunkSize: 64, IntervalMS: 1},
	}
}

func newTestApp(t *testing.T, fs afero.Fs, provider string) *App {
	t.Helper()
	a, err := New(testConfig(provider), fs, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestApp_GeneralTaskLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)
	fs := afero.NewMemMapFs()
	a := newTestApp(t, fs, "mock")
	ctx := context.Background()

	w, task, err := a.NewTask(ctx, "季度总结", writing.ModeGeneral, "")
	require.NoError(t, err)
	assert.Equal(t, "general", task.ScenarioID)
	assert.Equal(t, writing.StateOutlineConfirm, task.WritingState)
	assert.Contains(t, task.Outline, "# 季度总结")

	ok, err := w.ConfirmOutline(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	w.Wait()

	stored, ok := a.Tasks.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, writing.StateFinished, stored.WritingState)
	assert.Equal(t, "季度总结", stored.DocumentName)
	require.Len(t, stored.Messages, 4)
	assert.Equal(t, taskstore.RoleUser, stored.Messages[0].Role)
	assert.Equal(t, outlineReadyMessage, stored.Messages[1].Content)
	assert.Equal(t, thinkingDoneMessage, stored.Messages[2].Content)
	assert.Equal(t, "根据你的需求，我为你生成了《General writing agent》", stored.Messages[3].Content)

	res, err := a.Export(w, false)
	require.NoError(t, err)
	exists, err := afero.Exists(fs, res.HTMLPath)
	require.NoError(t, err)
	assert.True(t, exists)

	// a second process over the same storage restores the finished task
	b := newTestApp(t, fs, "mock")
	restored, ok := b.Workspace(task.ID)
	require.True(t, ok)
	snap := restored.Snapshot()
	assert.Equal(t, writing.StateFinished, snap.State)
	assert.Equal(t, stored.Content, snap.Content)

	b.DeleteTask(task.ID)
	_, ok = b.Workspace(task.ID)
	assert.False(t, ok)
}

func TestApp_AgentTaskUsesSavedValues(t *testing.T) {
	defer goleak.VerifyNone(t)
	a := newTestApp(t, afero.NewMemMapFs(), "mock")
	ctx := context.Background()

	a.Memory.Set("general", map[string]any{"audience": "board"})
	w, task, err := a.NewTask(ctx, "@agent 写一份周报", writing.ModeAgent, "general")
	require.NoError(t, err)
	assert.Equal(t, writing.StateInput, task.WritingState)

	snap := w.Snapshot()
	assert.Equal(t, "agent-general", snap.AgentID)
	assert.Equal(t, "board", snap.MemoryConfig["audience"])
	assert.Equal(t, "neutral", snap.MemoryConfig["tone"])
	assert.Equal(t, "medium", snap.ParamsConfig["length"])

	a.SaveParams(w, map[string]any{"length": "short", "reference": "notes.pdf"})
	assert.Equal(t, "short", a.Params.Get("general")["length"])

	ok, err := w.StartGenerate(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	w.Wait()

	stored, _ := a.Tasks.Get(task.ID)
	assert.Equal(t, writing.StateFinished, stored.WritingState)
	assert.Equal(t, "short", stored.ParamsConfig["length"])
}

func TestApp_WithoutCredentials(t *testing.T) {
	defer goleak.VerifyNone(t)
	a := newTestApp(t, afero.NewMemMapFs(), "qwen")
	assert.ErrorIs(t, a.LLMErr, generator.ErrMissingCredentials)
	assert.Nil(t, a.Rewriter)
	assert.Nil(t, a.Source)

	// scenario text stands in for the model
	_, task, err := a.NewTask(context.Background(), "report", writing.ModeGeneral, "")
	require.NoError(t, err)
	assert.Equal(t, writing.DefaultScenario().Outline, task.Outline)
}

func TestApp_Errors(t *testing.T) {
	a := newTestApp(t, afero.NewMemMapFs(), "mock")

	_, _, err := a.NewTask(context.Background(), "x", writing.ModeGeneral, "missing")
	assert.ErrorIs(t, err, ErrUnknownScenario)

	_, _, err = a.NewTask(context.Background(), "x", writing.Mode("OTHER"), "")
	assert.Error(t, err)

	_, ok := a.Workspace("task_unknown")
	assert.False(t, ok)

	cfg := testConfig("mock")
	cfg.ScenariosPath = "/nope.yaml"
	_, err = New(cfg, afero.NewMemMapFs(), log.New(io.Discard, "", 0))
	assert.Error(t, err)
}

func TestApp_SQLiteStorage(t *testing.T) {
	cfg := testConfig("mock")
	cfg.Storage.Driver = "sqlite"
	cfg.DataDir = t.TempDir()
	a, err := New(cfg, afero.NewOsFs(), log.New(io.Discard, "", 0))
	require.NoError(t, err)
	defer a.Close()

	_, task, err := a.NewTask(context.Background(), "x", writing.ModeAgent, "")
	require.NoError(t, err)
	_, ok := a.Tasks.Get(task.ID)
	assert.True(t, ok)
}

func TestTaskName(t *testing.T) {
	assert.Equal(t, writing.DefaultDocumentName, TaskName("  \n"))
	assert.Equal(t, "first line", TaskName(" first line \nsecond"))
	assert.Equal(t, "一二三四五六七八九十一二三四五六七八九十…", TaskName("一二三四五六七八九十一二三四五六七八九十多余"))
}

func TestStateMessages(t *testing.T) {
	seed := []taskstore.Message{{Role: taskstore.RoleUser, Content: "hi"}}

	_, changed := stateMessages(seed, writing.Context{State: writing.StateOutlineConfirm}, "文档")
	assert.False(t, changed, "no outline, nothing to confirm")

	msgs, changed := stateMessages(seed, writing.Context{State: writing.StateOutlineConfirm, Outline: "# A"}, "文档")
	require.True(t, changed)
	assert.Len(t, msgs, 2)
	assert.Len(t, seed, 1)

	_, changed = stateMessages(msgs, writing.Context{State: writing.StateOutlineConfirm, Outline: "# A"}, "文档")
	assert.False(t, changed, "added once")

	_, changed = stateMessages(seed, writing.Context{State: writing.StateFinished}, "文档")
	assert.False(t, changed)
}

func TestApp_DefaultConfigCreatesTasks(t *testing.T) {
	defer goleak.VerifyNone(t)
	t.Setenv("QWEN_API_KEY", "")
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Empty(t, cfg.ScenariosPath)

	a, err := New(cfg, afero.NewMemMapFs(), log.New(io.Discard, "", 0))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	assert.Equal(t, []string{"general"}, a.Scenarios.IDs())

	_, task, err := a.NewTask(context.Background(), "weekly report", writing.ModeGeneral, "")
	require.NoError(t, err)
	assert.Equal(t, "general", task.ScenarioID)
	assert.Equal(t, writing.StateOutlineConfirm, task.WritingState)

	w, task, err := a.NewTask(context.Background(), "@agent weekly report", writing.ModeAgent, "")
	require.NoError(t, err)
	assert.Equal(t, "agent-general", w.Snapshot().AgentID)
	assert.Equal(t, "neutral", task.MemoryConfig["tone"])

	a.ResetParams(w)
	assert.Equal(t, "medium", w.Snapshot().ParamsConfig["length"])
}
