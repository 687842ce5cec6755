// Package app wires the writing workspace together: configuration, the task
// store, scenarios, the content source, the rewriter and the exporter.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/spf13/afero"

	"writing_workspace/config"
	"writing_workspace/generator"
	"writing_workspace/publisher"
	"writing_workspace/taskstore"
	"writing_workspace/writing"
)

// ErrUnknownScenario is returned when a task names a scenario that is not
// in the catalog.
var ErrUnknownScenario = errors.New("unknown scenario")

// App holds all service dependencies of the workspace.
type App struct {
	Config config.Config
	Logger *log.Logger

	// Storage layer
	FS      afero.Fs
	Backend taskstore.Backend
	Tasks   *taskstore.Store
	Memory  *taskstore.ValueStore
	Params  *taskstore.ValueStore

	// Content
	Scenarios *writing.Catalog
	Source    writing.ContentSource // nil means the scenario's own text
	Rewriter  *generator.Rewriter   // nil when no LLM is configured
	LLMErr    error
	Publisher *publisher.Publisher
	Streamer  writing.Streamer

	mu         sync.Mutex
	workspaces map[string]*writing.Workspace
	closer     io.Closer
}

// New creates and wires all components. fs backs the file store, the
// scenario catalog and exports; a nil logger uses log.Default.
func New(cfg config.Config, fs afero.Fs, logger *log.Logger) (*App, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = log.Default()
	}
	a := &App{
		Config:     cfg,
		Logger:     logger,
		FS:         fs,
		Streamer:   writing.Streamer{ChunkSize: cfg.Stream.ChunkSize, Interval: cfg.Stream.Interval()},
		workspaces: make(map[string]*writing.Workspace),
	}

	// --- Storage layer ---
	switch cfg.Storage.Driver {
	case "sqlite":
		if err := fs.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		db, err := taskstore.OpenSQLite(filepath.Join(cfg.DataDir, "writing.db"))
		if err != nil {
			return nil, err
		}
		a.Backend, a.closer = db, db
	default:
		a.Backend = taskstore.NewFileBackend(fs, cfg.DataDir)
	}
	a.Tasks = taskstore.New(a.Backend,
		taskstore.WithKey(cfg.Storage.Key),
		taskstore.WithCapacity(cfg.Storage.Capacity),
		taskstore.WithLogger(logger, cfg.Verbose),
	)
	a.Memory = taskstore.NewValueStore(a.Backend, taskstore.MemoryKey, logger)
	a.Params = taskstore.NewValueStore(a.Backend, taskstore.ParamsKey, logger)

	// --- Scenarios ---
	if cfg.ScenariosPath != "" {
		catalog, err := writing.LoadCatalog(fs, cfg.ScenariosPath)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Scenarios = catalog
	} else {
		a.Scenarios = writing.NewCatalog(writing.DefaultScenario())
	}

	// --- LLM ---
	// Without credentials the workspace still runs on scenario text; the
	// rewriter reports the missing key per request.
	llm, err := generator.NewLLM(generator.LLMSettings{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		a.LLMErr = err
		if cfg.Verbose {
			logger.Printf("[INFO] llm disabled: %v", err)
		}
	} else {
		agent, _ := generator.NewAgent(llm)
		a.Source = agent
		a.Rewriter, _ = generator.NewRewriter(llm)
	}

	a.Publisher = publisher.New(fs, filepath.Join(cfg.DataDir, "exports"), cfg.Verbose, logger)
	return a, nil
}

// Close stops running generations and releases the storage backend.
func (a *App) Close() error {
	a.mu.Lock()
	for _, w := range a.workspaces {
		w.Cancel()
	}
	a.mu.Unlock()
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// Scenario resolves id, falling back to the default scenario for "".
func (a *App) Scenario(id string) (writing.Scenario, error) {
	if id == "" {
		id = writing.DefaultScenario().ID
	}
	s, ok := a.Scenarios.Get(id)
	if !ok {
		return writing.Scenario{}, fmt.Errorf("%w %q", ErrUnknownScenario, id)
	}
	return s, nil
}

// NewTask creates a task record and starts its workspace with input.
func (a *App) NewTask(ctx context.Context, input string, mode writing.Mode, scenarioID string) (*writing.Workspace, taskstore.Task, error) {
	if !mode.IsValid() {
		return nil, taskstore.Task{}, fmt.Errorf("invalid mode %q", mode)
	}
	s, err := a.Scenario(scenarioID)
	if err != nil {
		return nil, taskstore.Task{}, err
	}

	task := a.Tasks.Create(TaskName(input), input, mode, s.ID)
	w := a.newWorkspace(task.ID, mode, &s)
	a.mu.Lock()
	a.workspaces[task.ID] = w
	a.mu.Unlock()

	if mode == writing.ModeAgent {
		w.SetMemoryConfig(writing.InitialValues(s.Agent.MemoryFields, a.Memory.Get(s.ID)))
		w.SetParamsConfig(writing.InitialValues(s.Agent.ParamFields, a.Params.Get(s.ID)))
	}
	if _, err := w.Start(ctx, input); err != nil {
		return w, task, err
	}
	task, _ = a.Tasks.Get(task.ID)
	return w, task, nil
}

// Workspace returns the live workspace of a task, restoring it from the
// store on first use.
func (a *App) Workspace(id string) (*writing.Workspace, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if w, ok := a.workspaces[id]; ok {
		return w, true
	}
	task, ok := a.Tasks.Get(id)
	if !ok {
		return nil, false
	}
	s, err := a.Scenario(task.ScenarioID)
	if err != nil {
		a.Logger.Printf("[ERROR] task %s: %v, using default scenario", id, err)
		s = writing.DefaultScenario()
	}
	w := a.newWorkspace(task.ID, task.Mode, &s)
	w.Restore(task.Context())
	a.workspaces[id] = w
	return w, true
}

// DeleteTask cancels any live workspace of id and removes its record.
func (a *App) DeleteTask(id string) {
	a.mu.Lock()
	w, ok := a.workspaces[id]
	delete(a.workspaces, id)
	a.mu.Unlock()
	if ok {
		w.Cancel()
	}
	a.Tasks.Delete(id)
}

// SaveMemory applies memory values to a workspace and remembers them for
// the scenario.
func (a *App) SaveMemory(w *writing.Workspace, values map[string]any) {
	w.SetMemoryConfig(values)
	if s := w.Scenario(); s != nil {
		a.Memory.Set(s.ID, values)
	}
}

// SaveParams applies parameter values to a workspace and remembers them for
// the scenario.
func (a *App) SaveParams(w *writing.Workspace, values map[string]any) {
	w.SetParamsConfig(values)
	if s := w.Scenario(); s != nil {
		a.Params.Set(s.ID, values)
	}
}

// ResetMemory forgets the saved memory values of the workspace's scenario
// and puts the form back to its defaults.
func (a *App) ResetMemory(w *writing.Workspace) {
	s := w.Scenario()
	if s == nil {
		w.SetMemoryConfig(map[string]any{})
		return
	}
	a.Memory.Reset(s.ID)
	w.SetMemoryConfig(writing.DefaultValues(s.Agent.MemoryFields))
}

// ResetParams is ResetMemory for parameter values.
func (a *App) ResetParams(w *writing.Workspace) {
	s := w.Scenario()
	if s == nil {
		w.SetParamsConfig(map[string]any{})
		return
	}
	a.Params.Reset(s.ID)
	w.SetParamsConfig(writing.DefaultValues(s.Agent.ParamFields))
}

// Export writes the current document of w through the publisher.
func (a *App) Export(w *writing.Workspace, inline bool) (publisher.Result, error) {
	snap := w.Snapshot()
	return a.Publisher.Export(publisher.ExportParams{
		Name:     snap.DocumentName,
		Title:    writing.ExtractTitle(snap.Content),
		Markdown: snap.Content,
		Inline:   inline,
	})
}

func (a *App) newWorkspace(taskID string, mode writing.Mode, s *writing.Scenario) *writing.Workspace {
	return writing.NewWorkspace(taskID, mode, writing.Options{
		Scenario: s,
		Source:   a.Source,
		Recorder: &storeRecorder{store: a.Tasks, scenarios: a.Scenarios},
		Streamer: a.Streamer,
		Logger:   a.Logger,
		Verbose:  a.Config.Verbose,
	})
}

const maxNameRunes = 20

// TaskName derives a display name from the first line of input.
func TaskName(input string) string {
	name, _, _ := strings.Cut(strings.TrimSpace(input), "\n")
	name = strings.TrimSpace(name)
	if name == "" {
		return writing.DefaultDocumentName
	}
	if utf8.RuneCountInString(name) > maxNameRunes {
		name = string([]rune(name)[:maxNameRunes]) + "…"
	}
	return name
}
