// Package taskstore keeps the bounded history of writing sessions.
//
// All tasks live in one JSON array under a single key of a key-value
// Backend. Every mutation rewrites the whole array, which stays small
// because the collection is capped.
package taskstore

import (
	"maps"
	"time"

	"writing_workspace/writing"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Message is one entry of a session conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Task is the persisted record of one writing session.
type Task struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	CreatedAt    int64          `json:"createdAt"` // unix milliseconds
	UpdatedAt    int64          `json:"updatedAt"` // unix milliseconds
	Mode         writing.Mode   `json:"mode"`
	WritingState writing.State  `json:"writingState"`
	Input        string         `json:"input"`
	ScenarioID   string         `json:"scenarioId,omitempty"`
	Content      string         `json:"content"`
	DocumentName string         `json:"documentName"`
	Outline      string         `json:"outline"`
	MemoryConfig map[string]any `json:"memoryConfig"`
	ParamsConfig map[string]any `json:"paramsConfig"`
	Messages     []Message      `json:"messages"`
}

// Created returns CreatedAt as a time.
func (t Task) Created() time.Time {
	return time.UnixMilli(t.CreatedAt)
}

// Updated returns UpdatedAt as a time.
func (t Task) Updated() time.Time {
	return time.UnixMilli(t.UpdatedAt)
}

// Context converts the record into a workflow context for restoring.
func (t Task) Context() writing.Context {
	return writing.Context{
		Mode:         t.Mode,
		State:        t.WritingState,
		Input:        t.Input,
		MemoryConfig: maps.Clone(t.MemoryConfig),
		ParamsConfig: maps.Clone(t.ParamsConfig),
		Outline:      t.Outline,
		Content:      t.Content,
		DocumentName: t.DocumentName,
		TaskID:       t.ID,
	}
}

func (t Task) clone() Task {
	t.MemoryConfig = maps.Clone(t.MemoryConfig)
	t.ParamsConfig = maps.Clone(t.ParamsConfig)
	t.Messages = append([]Message(nil), t.Messages...)
	return t
}

// Patch lists the fields an Update replaces. Nil fields are left alone.
type Patch struct {
	Name         *string
	Mode         *writing.Mode
	WritingState *writing.State
	Input        *string
	ScenarioID   *string
	Content      *string
	DocumentName *string
	Outline      *string
	MemoryConfig map[string]any
	ParamsConfig map[string]any
	Messages     []Message
}

// PatchFromContext builds a patch carrying every workflow field of c.
func PatchFromContext(c writing.Context) Patch {
	memory := c.MemoryConfig
	if memory == nil {
		memory = map[string]any{}
	}
	params := c.ParamsConfig
	if params == nil {
		params = map[string]any{}
	}
	return Patch{
		Mode:         &c.Mode,
		WritingState: &c.State,
		Input:        &c.Input,
		Content:      &c.Content,
		DocumentName: &c.DocumentName,
		Outline:      &c.Outline,
		MemoryConfig: memory,
		ParamsConfig: params,
	}
}

func (p Patch) apply(t Task) Task {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Mode != nil {
		t.Mode = *p.Mode
	}
	if p.WritingState != nil {
		t.WritingState = *p.WritingState
	}
	if p.Input != nil {
		t.Input = *p.Input
	}
	if p.ScenarioID != nil {
		t.ScenarioID = *p.ScenarioID
	}
	if p.Content != nil {
		t.Content = *p.Content
	}
	if p.DocumentName != nil {
		t.DocumentName = *p.DocumentName
	}
	if p.Outline != nil {
		t.Outline = *p.Outline
	}
	if p.MemoryConfig != nil {
		t.MemoryConfig = maps.Clone(p.MemoryConfig)
	}
	if p.ParamsConfig != nil {
		t.ParamsConfig = maps.Clone(p.ParamsConfig)
	}
	if p.Messages != nil {
		t.Messages = append([]Message(nil), p.Messages...)
	}
	return t
}
