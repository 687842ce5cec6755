package taskstore

import (
	"encoding/json"
	"log"
	"maps"
	"sync"
)

const (
	// MemoryKey holds cached agent memory values per scenario.
	MemoryKey = "nexus_writing_memory"
	// ParamsKey holds cached agent parameter values per scenario.
	ParamsKey = "nexus_writing_params"
)

// ValueStore caches agent form values per scenario under one key.
type ValueStore struct {
	mu      sync.Mutex
	backend Backend
	key     string
	logger  *log.Logger
}

// NewValueStore returns a cache stored under key. A nil logger uses
// log.Default.
func NewValueStore(backend Backend, key string, logger *log.Logger) *ValueStore {
	if logger == nil {
		logger = log.Default()
	}
	return &ValueStore{backend: backend, key: key, logger: logger}
}

// Get returns the saved values of scenarioID, never nil.
func (v *ValueStore) Get(scenarioID string) map[string]any {
	v.mu.Lock()
	defer v.mu.Unlock()
	all := v.load()
	if vals := all[scenarioID]; vals != nil {
		return vals
	}
	return map[string]any{}
}

// Set merges values into those saved for scenarioID.
func (v *ValueStore) Set(scenarioID string, values map[string]any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	all := v.load()
	cur := all[scenarioID]
	if cur == nil {
		cur = map[string]any{}
	}
	maps.Copy(cur, values)
	all[scenarioID] = cur
	v.save(all)
}

// SetValue saves a single value for scenarioID.
func (v *ValueStore) SetValue(scenarioID, key string, value any) {
	v.Set(scenarioID, map[string]any{key: value})
}

// Reset forgets everything saved for scenarioID.
func (v *ValueStore) Reset(scenarioID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	all := v.load()
	if _, ok := all[scenarioID]; !ok {
		return
	}
	delete(all, scenarioID)
	v.save(all)
}

func (v *ValueStore) load() map[string]map[string]any {
	all := map[string]map[string]any{}
	data, ok, err := v.backend.Get(v.key)
	if err != nil {
		v.logger.Printf("[ERROR] loading %s: %v", v.key, err)
		return all
	}
	if !ok || len(data) == 0 {
		return all
	}
	if err := json.Unmarshal(data, &all); err != nil {
		v.logger.Printf("[ERROR] decoding %s: %v", v.key, err)
		return map[string]map[string]any{}
	}
	if all == nil {
		all = map[string]map[string]any{}
	}
	return all
}

func (v *ValueStore) save(all map[string]map[string]any) {
	data, err := json.Marshal(all)
	if err != nil {
		v.logger.Printf("[ERROR] encoding %s: %v", v.key, err)
		return
	}
	if err := v.backend.Set(v.key, data); err != nil {
		v.logger.Printf("[ERROR] saving %s: %v", v.key, err)
	}
}
