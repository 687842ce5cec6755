package writing

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Field describes one input of an agent's memory or parameter form.
type Field struct {
	Key         string   `yaml:"key" json:"key"`
	Label       string   `yaml:"label" json:"label"`
	Type        string   `yaml:"type" json:"type"` // text, select, file, number
	Options     []string `yaml:"options,omitempty" json:"options,omitempty"`
	Placeholder string   `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Default     any      `yaml:"default,omitempty" json:"default,omitempty"`
}

// AgentConfig is the agent bundled with a scenario.
type AgentConfig struct {
	ID           string  `yaml:"id" json:"id"`
	Name         string  `yaml:"name" json:"name"`
	MemoryFields []Field `yaml:"memory_fields,omitempty" json:"memoryFields,omitempty"`
	ParamFields  []Field `yaml:"param_fields,omitempty" json:"paramFields,omitempty"`
}

// Scenario bundles agent configuration with reference content.
type Scenario struct {
	ID          string      `yaml:"id" json:"id"`
	Name        string      `yaml:"name" json:"name"`
	Category    string      `yaml:"category,omitempty" json:"category,omitempty"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Agent       AgentConfig `yaml:"agent" json:"agent"`
	Outline     string      `yaml:"outline" json:"outline"`
	FullText    string      `yaml:"full_text" json:"fullText"`
}

// Catalog is a read-only set of scenarios keyed by id.
type Catalog struct {
	byID  map[string]Scenario
	order []string
}

type catalogFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// NewCatalog indexes scenarios. Later duplicates replace earlier ones.
func NewCatalog(scenarios ...Scenario) *Catalog {
	c := &Catalog{byID: make(map[string]Scenario)}
	for _, s := range scenarios {
		if _, ok := c.byID[s.ID]; !ok {
			c.order = append(c.order, s.ID)
		}
		c.byID[s.ID] = s
	}
	return c
}

// LoadCatalog reads a YAML scenario file. The built-in scenario is always
// present unless the file redefines its id.
func LoadCatalog(fs afero.Fs, path string) (*Catalog, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading scenarios %s: %w", path, err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing scenarios %s: %w", path, err)
	}
	for i, s := range f.Scenarios {
		if s.ID == "" {
			return nil, fmt.Errorf("parsing scenarios %s: entry %d has no id", path, i)
		}
	}
	return NewCatalog(append([]Scenario{DefaultScenario()}, f.Scenarios...)...), nil
}

// Get returns the scenario with id.
func (c *Catalog) Get(id string) (Scenario, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// List returns scenarios in insertion order.
func (c *Catalog) List() []Scenario {
	out := make([]Scenario, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// IDs returns the sorted scenario ids.
func (c *Catalog) IDs() []string {
	ids := append([]string(nil), c.order...)
	sort.Strings(ids)
	return ids
}

// ErrNoScenario is returned by a ScenarioSource without an active scenario.
var ErrNoScenario = errors.New("no active scenario")

// ScenarioSource serves the outline and full text of a fixed scenario.
type ScenarioSource struct {
	Scenario *Scenario
}

func (s ScenarioSource) Outline(_ context.Context, _ Context) (string, error) {
	if s.Scenario == nil {
		return "", ErrNoScenario
	}
	return s.Scenario.Outline, nil
}

func (s ScenarioSource) FullText(_ context.Context, _ Context) (string, error) {
	if s.Scenario == nil {
		return "", ErrNoScenario
	}
	return s.Scenario.FullText, nil
}

// DefaultScenario is the built-in general writing scenario.
func DefaultScenario() Scenario {
	return Scenario{
		ID:          "general",
		Name:        "General writing agent",
		Category:    "WRITING",
		Description: "Drafts a structured report from a short request.",
		Agent: AgentConfig{
			ID:   "agent-general",
			Name: "General writing agent",
			MemoryFields: []Field{
				{Key: "audience", Label: "Audience", Type: "text", Placeholder: "Who will read this"},
				{Key: "tone", Label: "Tone", Type: "text", Default: "neutral"},
			},
			ParamFields: []Field{
				{Key: "length", Label: "Length", Type: "select", Options: []string{"short", "medium", "long"}, Default: "medium"},
				{Key: "reference", Label: "Reference material", Type: "file"},
			},
		},
		Outline: `# Quarterly Progress Report
## Summary
### Highlights
### Risks
## Delivery
### Completed work
### Work in progress
## Next Steps
`,
		FullText: `# Quarterly Progress Report

## Summary

### Highlights

The team shipped the new onboarding flow and cut setup time in half.

### Risks

Two vendor contracts renew next quarter and pricing is not settled.

## Delivery

### Completed work

Billing migration finished on schedule with no customer impact.

### Work in progress

The reporting service rewrite is about sixty percent complete.

## Next Steps

Close the vendor negotiations and finish the reporting rewrite.
`,
	}
}
