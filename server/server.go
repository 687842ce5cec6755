// Package server exposes the writing workspace over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"writing_workspace/app"
	"writing_workspace/generator"
	"writing_workspace/outline"
	"writing_workspace/taskstore"
	"writing_workspace/writing"
)

const upstreamTimeout = 60 * time.Second

type Server struct {
	app    *app.App
	logger *log.Logger
}

func New(a *app.App) (*Server, error) {
	if a == nil {
		return nil, errors.New("app required")
	}
	return &Server{app: a, logger: a.Logger}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tasks", s.handleTaskList)
	mux.HandleFunc("POST /api/tasks", s.handleTaskCreate)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleTaskGet)
	mux.HandleFunc("PATCH /api/tasks/{id}", s.handleTaskPatch)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.handleTaskDelete)
	mux.HandleFunc("POST /api/tasks/{id}/{action}", s.handleTaskAction)
	mux.HandleFunc("GET /api/tasks/{id}/outline", s.handleOutline)
	mux.HandleFunc("PATCH /api/tasks/{id}/outline", s.handleOutlineEdit)
	mux.HandleFunc("GET /api/tasks/{id}/export", s.handleExport)
	mux.HandleFunc("GET /api/scenarios", s.handleScenarios)
	mux.HandleFunc("/api/rewrite", s.handleRewrite)
	return logMiddleware(s.logger, mux)
}

// --- Handlers ---

type taskCreateReq struct {
	Input      string       `json:"input"`
	Mode       writing.Mode `json:"mode"`
	ScenarioID string       `json:"scenarioId"`
}

type taskResp struct {
	Task       taskstore.Task  `json:"task"`
	Context    writing.Context `json:"context"`
	Generating bool            `json:"generating"`
}

type taskPatchReq struct {
	Name         *string `json:"name"`
	DocumentName *string `json:"documentName"`
}

type inputReq struct {
	Input string `json:"input"`
}

type modeReq struct {
	Mode writing.Mode `json:"mode"`
}

type valuesReq struct {
	Values map[string]any `json:"values"`
}

type actionResp struct {
	Applied bool            `json:"applied"`
	Context writing.Context `json:"context"`
}

type outlineEditReq struct {
	Op    string `json:"op"` // rename or delete
	Path  []int  `json:"path"`
	Title string `json:"title"`
}

type outlineResp struct {
	Nodes []*outline.Node `json:"nodes"`
	Lines []string        `json:"lines"`
}

type rewriteReq struct {
	SelectedText string `json:"selectedText"`
	Type         string `json:"type"`
	CustomPrompt string `json:"customPrompt"`
}

type rewriteResp struct {
	Result string `json:"result"`
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Tasks.List())
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	var req taskCreateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		writeError(w, http.StatusBadRequest, "input is required")
		return
	}
	if req.Mode == "" {
		req.Mode = writing.ModeGeneral
	}
	ctx, cancel := context.WithTimeout(r.Context(), upstreamTimeout)
	defer cancel()
	ws, task, err := s.app.NewTask(ctx, req.Input, req.Mode, req.ScenarioID)
	if err != nil {
		if ws == nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, taskResp{Task: task, Context: ws.Snapshot(), Generating: ws.Generating()})
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	task, _ := s.app.Tasks.Get(r.PathValue("id"))
	writeJSON(w, http.StatusOK, taskResp{Task: task, Context: ws.Snapshot(), Generating: ws.Generating()})
}

// handleTaskPatch renames a task. The document name belongs to the live
// session, so it goes through the workspace and is recorded from there.
func (s *Server) handleTaskPatch(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req taskPatchReq
	if !decode(w, r, &req) {
		return
	}
	if req.DocumentName != nil && !ws.SetDocumentName(*req.DocumentName) {
		writeError(w, http.StatusBadRequest, "documentName must not be empty")
		return
	}
	id := r.PathValue("id")
	if req.Name != nil {
		s.app.Tasks.Update(id, taskstore.Patch{Name: req.Name})
	}
	task, ok := s.app.Tasks.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	s.app.DeleteTask(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTaskAction(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), upstreamTimeout)
	defer cancel()

	var (
		applied bool
		err     error
	)
	switch r.PathValue("action") {
	case "send":
		applied, err = ws.Send(ctx)
	case "confirm":
		applied, err = ws.ConfirmOutline(ctx)
	case "generate":
		applied, err = ws.StartGenerate(ctx)
	case "cancel":
		applied = ws.Cancel()
	case "input":
		var req inputReq
		if !decode(w, r, &req) {
			return
		}
		ws.SetInput(req.Input)
		applied = true
	case "mode":
		var req modeReq
		if !decode(w, r, &req) {
			return
		}
		applied = ws.SwitchMode(req.Mode)
	case "memory":
		var req valuesReq
		if !decode(w, r, &req) || !s.checkRequired(w, ws, req.Values, memoryFields) {
			return
		}
		s.app.SaveMemory(ws, req.Values)
		applied = true
	case "params":
		var req valuesReq
		if !decode(w, r, &req) || !s.checkRequired(w, ws, req.Values, paramFields) {
			return
		}
		s.app.SaveParams(ws, req.Values)
		applied = true
	case "reset-memory":
		s.app.ResetMemory(ws)
		applied = true
	case "reset-params":
		s.app.ResetParams(ws)
		applied = true
	default:
		writeError(w, http.StatusNotFound, "unknown action")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, actionResp{Applied: applied, Context: ws.Snapshot()})
}

func memoryFields(a writing.AgentConfig) []writing.Field { return a.MemoryFields }
func paramFields(a writing.AgentConfig) []writing.Field  { return a.ParamFields }

// checkRequired rejects values that leave a field of the active agent empty.
func (s *Server) checkRequired(w http.ResponseWriter, ws *writing.Workspace, values map[string]any, fields func(writing.AgentConfig) []writing.Field) bool {
	sc := ws.Scenario()
	if sc == nil {
		return true
	}
	if missing := writing.MissingRequired(fields(sc.Agent), values); len(missing) > 0 {
		writeError(w, http.StatusBadRequest, "missing values: "+writing.Labels(missing))
		return false
	}
	return true
}

func (s *Server) handleOutline(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	nodes := ws.OutlineTree()
	if nodes == nil {
		nodes = []*outline.Node{}
	}
	writeJSON(w, http.StatusOK, outlineResp{Nodes: nodes, Lines: outline.Lines(nodes)})
}

func (s *Server) handleOutlineEdit(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req outlineEditReq
	if !decode(w, r, &req) {
		return
	}
	var applied bool
	switch req.Op {
	case "rename":
		applied = ws.RenameOutline(req.Path, req.Title)
	case "delete":
		applied = ws.DeleteOutline(req.Path)
	default:
		writeError(w, http.StatusBadRequest, "op must be rename or delete")
		return
	}
	if !applied {
		writeError(w, http.StatusConflict, "outline is not under review or path does not exist")
		return
	}
	nodes := ws.OutlineTree()
	writeJSON(w, http.StatusOK, outlineResp{Nodes: nodes, Lines: outline.Lines(nodes)})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	inline, _ := strconv.ParseBool(r.URL.Query().Get("inline"))
	res, err := s.app.Export(ws, inline)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Scenarios.List())
}

func (s *Server) handleRewrite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.app.Rewriter == nil {
		msg := "rewrite service is not configured"
		if s.app.LLMErr != nil {
			msg = s.app.LLMErr.Error()
		}
		writeError(w, http.StatusInternalServerError, msg)
		return
	}
	var req rewriteReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// an unreadable body counts as an empty selection
		req = rewriteReq{}
	}
	typ := generator.ParseRewriteType(req.Type)

	ctx, cancel := context.WithTimeout(r.Context(), upstreamTimeout)
	defer cancel()
	out, err := s.app.Rewriter.Rewrite(ctx, req.SelectedText, typ, req.CustomPrompt)
	switch {
	case errors.Is(err, generator.ErrEmptySelection):
		writeError(w, http.StatusBadRequest, "selectedText must not be empty")
	case errors.Is(err, generator.ErrEmptyOutput):
		writeError(w, http.StatusBadGateway, err.Error())
	case err != nil:
		s.logger.Printf("[ERROR] rewrite: %v", err)
		writeError(w, generator.UpstreamStatus(err), err.Error())
	default:
		writeJSON(w, http.StatusOK, rewriteResp{Result: out})
	}
}

// --- Helpers ---

func (s *Server) workspace(w http.ResponseWriter, r *http.Request) (*writing.Workspace, bool) {
	ws, ok := s.app.Workspace(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
	}
	return ws, ok
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logMiddleware(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		path := r.URL.Path
		if path == "" {
			path = "/"
		}
		logger.Printf("[http] %s %s %d %s", r.Method, path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}
