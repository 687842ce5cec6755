package taskstore

import (
	"cmp"
	"crypto/rand"
	"encoding/json"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"writing_workspace/writing"
)

const (
	// DefaultKey is the storage key holding the task array.
	DefaultKey = "nexus_writing_tasks"
	// DefaultCapacity bounds the number of stored tasks.
	DefaultCapacity = 50
	idPrefix        = "task_"
)

// Store is the bounded task collection. Storage failures are logged and
// never surfaced: reads degrade to an empty list, writes are dropped.
type Store struct {
	mu       sync.Mutex
	backend  Backend
	key      string
	capacity int
	now      func() time.Time
	logger   *log.Logger
	verbose  bool
	entropy  *ulid.MonotonicEntropy
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the storage key.
func WithKey(key string) Option { return func(s *Store) { s.key = key } }

// WithCapacity overrides the maximum number of tasks.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithLogger sets the logger and whether [INFO] lines are printed.
func WithLogger(l *log.Logger, verbose bool) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
		s.verbose = verbose
	}
}

// New returns a store over backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		key:      DefaultKey,
		capacity: DefaultCapacity,
		now:      time.Now,
		logger:   log.Default(),
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capacity reports the maximum number of stored tasks.
func (s *Store) Capacity() int { return s.capacity }

// List returns all tasks, most recently updated first.
func (s *Store) List() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := s.load()
	slices.SortStableFunc(tasks, func(a, b Task) int {
		return cmp.Compare(b.UpdatedAt, a.UpdatedAt)
	})
	return tasks
}

// Get finds a task by id.
func (s *Store) Get(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.load() {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// Create appends a new task seeded with the user's input, then evicts the
// least recently updated tasks while over capacity.
func (s *Store) Create(name, input string, mode writing.Mode, scenarioID string) Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UnixMilli()
	t := Task{
		ID:           s.newID(),
		Name:         name,
		CreatedAt:    now,
		UpdatedAt:    now,
		Mode:         mode,
		WritingState: writing.StateThinking,
		Input:        input,
		ScenarioID:   scenarioID,
		DocumentName: writing.DefaultDocumentName,
		MemoryConfig: map[string]any{},
		ParamsConfig: map[string]any{},
		Messages:     []Message{{Role: RoleUser, Content: input}},
	}

	tasks := append(s.load(), t)
	for len(tasks) > s.capacity {
		oldest := 0
		for i, c := range tasks {
			if c.UpdatedAt < tasks[oldest].UpdatedAt {
				oldest = i
			}
		}
		s.infof("evicting task %s", tasks[oldest].ID)
		tasks = slices.Delete(tasks, oldest, oldest+1)
	}
	s.save(tasks)
	s.infof("created task %s", t.ID)
	return t.clone()
}

// Update applies patch to the task with id and refreshes UpdatedAt so it
// strictly increases. Unknown ids are reported with ok=false.
func (s *Store) Update(id string, patch Patch) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := s.load()
	i := slices.IndexFunc(tasks, func(t Task) bool { return t.ID == id })
	if i < 0 {
		return Task{}, false
	}
	old := tasks[i]
	t := patch.apply(old)
	t.ID, t.CreatedAt = old.ID, old.CreatedAt
	t.UpdatedAt = s.now().UnixMilli()
	if t.UpdatedAt <= old.UpdatedAt {
		t.UpdatedAt = old.UpdatedAt + 1
	}
	tasks[i] = t
	s.save(tasks)
	return t.clone(), true
}

// Delete removes the task with id. Unknown ids are ignored.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := s.load()
	n := len(tasks)
	tasks = slices.DeleteFunc(tasks, func(t Task) bool { return t.ID == id })
	if len(tasks) == n {
		return
	}
	s.save(tasks)
	s.infof("deleted task %s", id)
}

func (s *Store) newID() string {
	id, err := ulid.New(ulid.Timestamp(s.now()), s.entropy)
	if err != nil {
		// monotonic entropy overflows only within one millisecond
		id = ulid.Make()
	}
	return idPrefix + id.String()
}

func (s *Store) load() []Task {
	data, ok, err := s.backend.Get(s.key)
	if err != nil {
		s.logger.Printf("[ERROR] loading tasks: %v", err)
		return []Task{}
	}
	if !ok || len(data) == 0 {
		return []Task{}
	}
	var tasks []Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		s.logger.Printf("[ERROR] decoding tasks: %v", err)
		return []Task{}
	}
	if tasks == nil {
		tasks = []Task{}
	}
	return tasks
}

func (s *Store) save(tasks []Task) {
	data, err := json.Marshal(tasks)
	if err != nil {
		s.logger.Printf("[ERROR] encoding tasks: %v", err)
		return
	}
	if err := s.backend.Set(s.key, data); err != nil {
		s.logger.Printf("[ERROR] saving tasks: %v", err)
	}
}

func (s *Store) infof(format string, args ...any) {
	if s.verbose {
		s.logger.Printf("[INFO] "+format, args...)
	}
}
