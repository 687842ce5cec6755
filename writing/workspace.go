package writing

import (
	"context"
	"log"
	"maps"
	"strings"
	"sync"

	"writing_workspace/outline"
)

// DefaultDocumentName is the display name of a document before a title is
// known.
const DefaultDocumentName = "新文档_1"

// Context is the state of one writing session.
type Context struct {
	Mode         Mode           `json:"mode"`
	State        State          `json:"state"`
	Input        string         `json:"input"`
	AgentID      string         `json:"agentId,omitempty"`
	MemoryConfig map[string]any `json:"memoryConfig,omitempty"`
	ParamsConfig map[string]any `json:"paramsConfig,omitempty"`
	Outline      string         `json:"outline,omitempty"`
	Content      string         `json:"content,omitempty"`
	DocumentName string         `json:"documentName"`
	TaskID       string         `json:"taskId,omitempty"`
}

func (c Context) clone() Context {
	c.MemoryConfig = maps.Clone(c.MemoryConfig)
	c.ParamsConfig = maps.Clone(c.ParamsConfig)
	return c
}

// ContentSource supplies the outline and the full text of a session.
type ContentSource interface {
	Outline(ctx context.Context, c Context) (string, error)
	FullText(ctx context.Context, c Context) (string, error)
}

// Recorder persists a snapshot of a session. It is called after every
// significant change, never for intermediate stream events.
type Recorder interface {
	Record(taskID string, c Context)
}

// Options are the collaborators of a Workspace.
type Options struct {
	// Scenario is the externally selected scenario, if any.
	Scenario *Scenario
	// Source defaults to a ScenarioSource over Scenario.
	Source   ContentSource
	Recorder Recorder
	Streamer Streamer
	Logger   *log.Logger
	Verbose  bool
	// OnChange receives a snapshot after each change, outside the lock.
	OnChange func(Context)
}

// Workspace owns the Context of one session and applies the workflow rules
// to it. Requests that the flow does not allow are ignored and report false.
type Workspace struct {
	mu   sync.Mutex
	c    Context
	tree []*outline.Node
	// treeEdited marks a tree that no longer matches c.Outline.
	treeEdited bool
	// nameSet marks a document name chosen by the user.
	nameSet bool

	scenario *Scenario
	source   ContentSource
	recorder Recorder
	streamer Streamer
	logger   *log.Logger
	verbose  bool
	onChange func(Context)

	gen     *Generation
	genDone chan struct{}
}

// NewWorkspace creates an idle workspace in INPUT state.
func NewWorkspace(taskID string, mode Mode, opts Options) *Workspace {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Source == nil {
		opts.Source = ScenarioSource{Scenario: opts.Scenario}
	}
	if !mode.IsValid() {
		mode = ModeGeneral
	}
	return &Workspace{
		c: Context{
			Mode:         mode,
			State:        StateInput,
			DocumentName: DefaultDocumentName,
			TaskID:       taskID,
		},
		scenario: opts.Scenario,
		source:   opts.Source,
		recorder: opts.Recorder,
		streamer: opts.Streamer,
		logger:   opts.Logger,
		verbose:  opts.Verbose,
		onChange: opts.OnChange,
	}
}

func (w *Workspace) infof(format string, args ...interface{}) {
	if !w.verbose {
		return
	}
	w.logger.Printf("[INFO] "+format, args...)
}

// Start seeds the session with the first user input. A general session goes
// straight on to fetching its outline; an agent session picks up the agent
// of the active scenario and waits for its configuration.
func (w *Workspace) Start(ctx context.Context, input string) (bool, error) {
	w.mu.Lock()
	w.c.Input = input
	if w.c.Mode == ModeAgent && w.c.AgentID == "" && w.scenario != nil {
		w.c.AgentID = w.scenario.Agent.ID
	}
	mode := w.c.Mode
	snap := w.c.clone()
	w.mu.Unlock()

	if mode == ModeGeneral {
		return w.Send(ctx)
	}
	w.publish(snap, true)
	return true, nil
}

// Snapshot returns a copy of the current context.
func (w *Workspace) Snapshot() Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.c.clone()
}

// Scenario returns the active scenario, or nil.
func (w *Workspace) Scenario() *Scenario {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.scenario
}

// SetScenario changes the active scenario. An agent session without an
// agent picks up the agent of the new scenario.
func (w *Workspace) SetScenario(s *Scenario) {
	w.mu.Lock()
	w.scenario = s
	if _, ok := w.source.(ScenarioSource); ok {
		w.source = ScenarioSource{Scenario: s}
	}
	changed := false
	if w.c.Mode == ModeAgent && w.c.AgentID == "" && s != nil {
		w.c.AgentID = s.Agent.ID
		changed = true
	}
	snap := w.c.clone()
	w.mu.Unlock()
	if changed {
		w.publish(snap, true)
	}
}

// SetInput stores the draft input. Mentioning an agent while in general
// mode switches the session to agent mode; the return value reports that.
func (w *Workspace) SetInput(input string) bool {
	w.mu.Lock()
	w.c.Input = input
	switchMode := HasMention(input) && w.c.Mode == ModeGeneral
	snap := w.c.clone()
	w.mu.Unlock()

	if switchMode {
		return w.SwitchMode(ModeAgent)
	}
	w.publish(snap, false)
	return false
}

// SwitchMode stops any generation and restarts the flow of mode from INPUT.
// Leaving agent mode drops the agent and its configuration.
func (w *Workspace) SwitchMode(mode Mode) bool {
	if !mode.IsValid() {
		return false
	}
	w.stopGeneration()

	w.mu.Lock()
	w.c.Mode = mode
	w.c.State = StateInput
	if mode == ModeAgent {
		if w.scenario != nil {
			w.c.AgentID = w.scenario.Agent.ID
		}
	} else {
		w.c.AgentID = ""
		w.c.MemoryConfig = nil
		w.c.ParamsConfig = nil
	}
	snap := w.c.clone()
	w.mu.Unlock()

	w.infof("task %s switched to %s mode", snap.TaskID, mode)
	w.publish(snap, true)
	return true
}

// SetDocumentName renames the document. A blank name is ignored. The title
// tracker of a running generation no longer overrides the new name.
func (w *Workspace) SetDocumentName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	w.mu.Lock()
	w.c.DocumentName = name
	w.nameSet = true
	snap := w.c.clone()
	w.mu.Unlock()
	w.publish(snap, true)
	return true
}

// SetMemoryConfig replaces the agent memory values.
func (w *Workspace) SetMemoryConfig(values map[string]any) {
	w.mu.Lock()
	w.c.MemoryConfig = maps.Clone(values)
	snap := w.c.clone()
	w.mu.Unlock()
	w.publish(snap, true)
}

// SetParamsConfig replaces the agent parameter values.
func (w *Workspace) SetParamsConfig(values map[string]any) {
	w.mu.Lock()
	w.c.ParamsConfig = maps.Clone(values)
	snap := w.c.clone()
	w.mu.Unlock()
	w.publish(snap, true)
}

// Send submits the input. In general mode it moves INPUT -> THINKING, asks
// the source for an outline and moves on to OUTLINE_CONFIRM. Agent sessions
// start generating through StartGenerate instead, so Send is a no-op there.
func (w *Workspace) Send(ctx context.Context) (bool, error) {
	w.mu.Lock()
	if strings.TrimSpace(w.c.Input) == "" || w.c.Mode != ModeGeneral ||
		!IsValidTransition(w.c.Mode, w.c.State, StateThinking) {
		w.mu.Unlock()
		return false, nil
	}
	w.c.State = StateThinking
	snap := w.c.clone()
	w.mu.Unlock()
	w.publish(snap, true)

	text, err := w.source.Outline(ctx, snap)
	if err != nil {
		w.logger.Printf("[ERROR] task %s: fetching outline: %v", snap.TaskID, err)
		return false, err
	}

	w.mu.Lock()
	if w.c.State != StateThinking || !IsValidTransition(w.c.Mode, w.c.State, StateOutlineConfirm) {
		// reset while thinking
		w.mu.Unlock()
		return false, nil
	}
	w.c.Outline = text
	w.c.State = StateOutlineConfirm
	w.tree = outline.Parse(text)
	w.treeEdited = false
	snap = w.c.clone()
	nodes := len(w.tree)
	w.mu.Unlock()

	if nodes == 0 {
		w.infof("task %s: outline has no headings", snap.TaskID)
	}
	w.publish(snap, true)
	return true, nil
}

// OutlineTree returns a copy of the outline under review.
func (w *Workspace) OutlineTree() []*outline.Node {
	w.mu.Lock()
	defer w.mu.Unlock()
	return cloneNodes(w.tree)
}

// RenameOutline changes the title of the node at path. Only allowed while
// the outline is under review.
func (w *Workspace) RenameOutline(path []int, title string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.c.State != StateOutlineConfirm {
		return false
	}
	node := outline.At(w.tree, path...)
	if node == nil {
		return false
	}
	outline.Rename(node, title)
	w.treeEdited = true
	return true
}

// DeleteOutline removes the node at path with its subtree.
func (w *Workspace) DeleteOutline(path []int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.c.State != StateOutlineConfirm {
		return false
	}
	var ok bool
	w.tree, ok = outline.Delete(w.tree, outline.At(w.tree, path...))
	if ok {
		w.treeEdited = true
	}
	return ok
}

// ConfirmOutline accepts the reviewed outline and starts generating.
func (w *Workspace) ConfirmOutline(ctx context.Context) (bool, error) {
	return w.beginGeneration(ctx)
}

// StartGenerate starts generating an agent session.
func (w *Workspace) StartGenerate(ctx context.Context) (bool, error) {
	return w.beginGeneration(ctx)
}

func (w *Workspace) beginGeneration(ctx context.Context) (bool, error) {
	w.mu.Lock()
	if w.gen != nil || !IsValidTransition(w.c.Mode, w.c.State, StateGenerating) {
		w.mu.Unlock()
		return false, nil
	}
	if w.treeEdited {
		w.c.Outline = outline.Markdown(w.tree)
		w.treeEdited = false
	}
	snap := w.c.clone()
	w.mu.Unlock()

	full, err := w.source.FullText(ctx, snap)
	if err != nil {
		w.logger.Printf("[ERROR] task %s: fetching content: %v", snap.TaskID, err)
		return false, err
	}

	w.mu.Lock()
	if w.gen != nil || w.c.State != snap.State || w.c.Mode != snap.Mode {
		w.mu.Unlock()
		return false, nil
	}
	w.c.State = StateGenerating
	w.c.Content = ""
	gen := w.streamer.Start(context.WithoutCancel(ctx), full)
	done := make(chan struct{})
	w.gen, w.genDone = gen, done
	snap = w.c.clone()
	w.mu.Unlock()

	w.infof("task %s: generating %d bytes", snap.TaskID, len(full))
	w.publish(snap, true)
	go w.consume(gen, done)
	return true, nil
}

func (w *Workspace) consume(gen *Generation, done chan struct{}) {
	defer close(done)
	var titles TitleTracker
	for ev := range gen.Events() {
		w.mu.Lock()
		if w.gen != gen {
			w.mu.Unlock()
			return
		}
		w.c.Content = ev.Content
		if title, ok := titles.Observe(ev.Content); ok && !w.nameSet {
			w.c.DocumentName = title
		}
		if ev.Done {
			if title, ok := titles.Finish(ev.Content); ok && !w.nameSet {
				w.c.DocumentName = title
			}
			if IsValidTransition(w.c.Mode, w.c.State, StateFinished) {
				w.c.State = StateFinished
			}
			w.gen = nil
		}
		snap := w.c.clone()
		w.mu.Unlock()

		w.publish(snap, ev.Done)
		if ev.Done {
			w.infof("task %s: generation finished, title %q", snap.TaskID, snap.DocumentName)
		}
	}
}

// Cancel stops a running generation and resets the flow to INPUT. Content
// revealed so far stays in memory but is not recorded. It reports whether a
// generation was running.
func (w *Workspace) Cancel() bool {
	if !w.stopGeneration() {
		return false
	}
	w.mu.Lock()
	w.c.State = StateInput
	snap := w.c.clone()
	w.mu.Unlock()

	w.infof("task %s: generation cancelled", snap.TaskID)
	w.publish(snap, false)
	return true
}

func (w *Workspace) stopGeneration() bool {
	w.mu.Lock()
	gen, done := w.gen, w.genDone
	w.gen = nil
	w.mu.Unlock()
	if gen == nil {
		return false
	}
	gen.Cancel()
	<-done
	return true
}

// Wait blocks until the current or last generation has ended.
func (w *Workspace) Wait() {
	w.mu.Lock()
	done := w.genDone
	w.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Generating reports whether a stream is running.
func (w *Workspace) Generating() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.gen != nil
}

// Restore loads a recorded context. A session interrupted while thinking or
// generating resumes from the last stage that needs user input.
func (w *Workspace) Restore(c Context) {
	w.stopGeneration()

	c = c.clone()
	if !c.Mode.IsValid() {
		c.Mode = ModeGeneral
	}
	switch c.State {
	case StateThinking:
		c.State = StateInput
	case StateGenerating:
		if c.Mode == ModeGeneral && outline.Count(outline.Parse(c.Outline)) > 0 {
			c.State = StateOutlineConfirm
		} else {
			c.State = StateInput
		}
	}
	if !c.State.IsValid() || indexOf(c.Mode, c.State) == -1 {
		c.State = StateInput
	}
	if c.DocumentName == "" {
		c.DocumentName = DefaultDocumentName
	}

	w.mu.Lock()
	if c.TaskID == "" {
		c.TaskID = w.c.TaskID
	}
	w.c = c
	w.tree = nil
	if c.State == StateOutlineConfirm {
		w.tree = outline.Parse(c.Outline)
	}
	w.treeEdited = false
	w.nameSet = false
	if c.Mode == ModeAgent && c.AgentID == "" && w.scenario != nil {
		w.c.AgentID = w.scenario.Agent.ID
	}
	w.mu.Unlock()
}

func (w *Workspace) publish(snap Context, record bool) {
	if record && w.recorder != nil && snap.TaskID != "" {
		w.recorder.Record(snap.TaskID, snap)
	}
	if w.onChange != nil {
		w.onChange(snap)
	}
}

func cloneNodes(nodes []*outline.Node) []*outline.Node {
	if nodes == nil {
		return nil
	}
	out := make([]*outline.Node, len(nodes))
	for i, n := range nodes {
		out[i] = &outline.Node{Level: n.Level, Title: n.Title, Children: cloneNodes(n.Children)}
		if out[i].Children == nil {
			out[i].Children = []*outline.Node{}
		}
	}
	return out
}
