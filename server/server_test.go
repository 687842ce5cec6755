package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"writing_workspace/app"
	"writing_workspace/config"
	"writing_workspace/generator"
	"writing_workspace/taskstore"
	"writing_workspace/writing"
)

func newTestServer(t *testing.T, provider string) (*app.App, http.Handler) {
	t.Helper()
	cfg := config.Config{
		DataDir: "/data",
		Storage: config.StorageConfig{Driver: "file", Key: taskstore.DefaultKey, Capacity: 50},
		LLM:     config.LLMConfig{Provider: provider},
		Stream:  config.StreamConfig{ChunkSize: 64, IntervalMS: 1},
	}
	a, err := app.New(cfg, afero.NewMemMapFs(), log.New(io.Discard, "", 0))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	srv, err := New(a)
	require.NoError(t, err)
	return a, srv.Routes()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestTaskWorkflowOverHTTP(t *testing.T) {
	a, h := newTestServer(t, "mock")

	rec := do(t, h, http.MethodPost, "/api/tasks", map[string]string{"input": "年度计划"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[taskResp](t, rec)
	id := created.Task.ID
	assert.Equal(t, writing.StateOutlineConfirm, created.Context.State)

	rec = do(t, h, http.MethodGet, "/api/tasks/"+id+"/outline", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tree := decodeBody[outlineResp](t, rec)
	require.Len(t, tree.Nodes, 1)
	assert.Equal(t, "年度计划", tree.Nodes[0].Title)

	rec = do(t, h, http.MethodPatch, "/api/tasks/"+id+"/outline", outlineEditReq{Op: "rename", Path: []int{0, 0}, Title: "Context"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Context", decodeBody[outlineResp](t, rec).Nodes[0].Children[0].Title)

	rec = do(t, h, http.MethodPatch, "/api/tasks/"+id+"/outline", outlineEditReq{Op: "delete", Path: []int{7}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/tasks/"+id+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[actionResp](t, rec).Applied)

	ws, ok := a.Workspace(id)
	require.True(t, ok)
	ws.Wait()

	rec = do(t, h, http.MethodGet, "/api/tasks/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[taskResp](t, rec)
	assert.Equal(t, writing.StateFinished, got.Task.WritingState)
	assert.Contains(t, got.Task.Outline, "## Context")

	rec = do(t, h, http.MethodPost, "/api/tasks/"+id+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[actionResp](t, rec).Applied, "illegal transitions are ignored")

	rec = do(t, h, http.MethodGet, "/api/tasks/"+id+"/export?inline=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "htmlPath")

	rec = do(t, h, http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]taskstore.Task](t, rec), 1)

	rec = do(t, h, http.MethodDelete, "/api/tasks/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/tasks/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAgentActionsOverHTTP(t *testing.T) {
	a, h := newTestServer(t, "mock")

	rec := do(t, h, http.MethodPost, "/api/tasks", taskCreateReq{Input: "周报", Mode: writing.ModeAgent})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[taskResp](t, rec).Task.ID

	rec = do(t, h, http.MethodPost, "/api/tasks/"+id+"/params", valuesReq{Values: map[string]any{"length": " "}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Length")

	rec = do(t, h, http.MethodPost, "/api/tasks/"+id+"/memory", valuesReq{Values: map[string]any{"audience": "team", "tone": "warm"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "warm", decodeBody[actionResp](t, rec).Context.MemoryConfig["tone"])
	assert.Equal(t, "warm", a.Memory.Get("general")["tone"])

	rec = do(t, h, http.MethodPost, "/api/tasks/"+id+"/mode", modeReq{Mode: writing.ModeGeneral})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, writing.ModeGeneral, decodeBody[actionResp](t, rec).Context.Mode)

	rec = do(t, h, http.MethodPost, "/api/tasks/"+id+"/input", inputReq{Input: "ask @writer"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, writing.ModeAgent, decodeBody[actionResp](t, rec).Context.Mode)

	rec = do(t, h, http.MethodPost, "/api/tasks/"+id+"/generate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[actionResp](t, rec).Applied)
	rec = do(t, h, http.MethodPost, "/api/tasks/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ws, _ := a.Workspace(id)
	ws.Wait()

	rec = do(t, h, http.MethodPost, "/api/tasks/"+id+"/dance", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/tasks/task_nope/send", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPatch, "/api/tasks/"+id, taskPatchReq{Name: ptr("renamed")})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "renamed", decodeBody[taskstore.Task](t, rec).Name)
}

func TestCreateTaskErrors(t *testing.T) {
	_, h := newTestServer(t, "mock")

	rec := do(t, h, http.MethodPost, "/api/tasks", map[string]string{"input": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/tasks", taskCreateReq{Input: "x", ScenarioID: "missing"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"general"`)
}

type stubLLM struct {
	reply string
	err   error
}

func (s stubLLM) Complete(context.Context, generator.Prompt) (string, error) {
	return s.reply, s.err
}

func TestRewriteStatusCodes(t *testing.T) {
	a, h := newTestServer(t, "mock")

	rec := do(t, h, http.MethodGet, "/api/rewrite", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/rewrite", rewriteReq{SelectedText: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/rewrite", rewriteReq{SelectedText: "x", Type: "translate"})
	require.Equal(t, http.StatusOK, rec.Code, "unknown types fall back to the generic instruction")
	assert.Equal(t, "x", decodeBody[rewriteResp](t, rec).Result)

	rec = do(t, h, http.MethodPost, "/api/rewrite", rewriteReq{SelectedText: "some text", Type: "polish"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "some text", decodeBody[rewriteResp](t, rec).Result)

	a.Rewriter, _ = generator.NewRewriter(stubLLM{reply: "## Only A Heading"})
	rec = do(t, h, http.MethodPost, "/api/rewrite", rewriteReq{SelectedText: "body"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	a.Rewriter, _ = generator.NewRewriter(stubLLM{err: errors.New("connection reset")})
	rec = do(t, h, http.MethodPost, "/api/rewrite", rewriteReq{SelectedText: "body"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection reset")
}

func TestRewriteWithoutCredentials(t *testing.T) {
	_, h := newTestServer(t, "qwen")
	rec := do(t, h, http.MethodPost, "/api/rewrite", rewriteReq{SelectedText: "text"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "api key")
}

func TestDocumentRenameSurvivesTransitions(t *testing.T) {
	a, h := newTestServer(t, "mock")

	rec := do(t, h, http.MethodPost, "/api/tasks", map[string]string{"input": "年度计划"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[taskResp](t, rec).Task.ID

	rec = do(t, h, http.MethodPatch, "/api/tasks/"+id, taskPatchReq{DocumentName: ptr("My Doc")})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "My Doc", decodeBody[taskstore.Task](t, rec).DocumentName)

	rec = do(t, h, http.MethodGet, "/api/tasks/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "My Doc", decodeBody[taskResp](t, rec).Context.DocumentName)

	rec = do(t, h, http.MethodPost, "/api/tasks/"+id+"/mode", modeReq{Mode: writing.ModeAgent})
	require.Equal(t, http.StatusOK, rec.Code)
	task, ok := a.Tasks.Get(id)
	require.True(t, ok)
	assert.Equal(t, "My Doc", task.DocumentName)

	rec = do(t, h, http.MethodPatch, "/api/tasks/"+id, taskPatchReq{DocumentName: ptr(" ")})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodPatch, "/api/tasks/task_missing", taskPatchReq{Name: ptr("x")})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResetAgentValues(t *testing.T) {
	a, h := newTestServer(t, "mock")

	rec := do(t, h, http.MethodPost, "/api/tasks", taskCreateReq{Input: "周报", Mode: writing.ModeAgent})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[taskResp](t, rec).Task.ID

	rec = do(t, h, http.MethodPost, "/api/tasks/"+id+"/params", valuesReq{Values: map[string]any{"length": "long", "reference": "notes.md"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "long", a.Params.Get("general")["length"])

	rec = do(t, h, http.MethodPost, "/api/tasks/"+id+"/reset-params", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[actionResp](t, rec)
	assert.True(t, got.Applied)
	assert.Equal(t, map[string]any{"length": "medium", "reference": ""}, got.Context.ParamsConfig)
	assert.Empty(t, a.Params.Get("general"))

	rec = do(t, h, http.MethodPost, "/api/tasks/"+id+"/reset-memory", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "neutral", decodeBody[actionResp](t, rec).Context.MemoryConfig["tone"])
}

func ptr[T any](v T) *T { return &v }
