package writing

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	// DefaultChunkSize is the number of runes revealed per tick.
	DefaultChunkSize = 10
	// DefaultInterval is the delay between ticks.
	DefaultInterval = 50 * time.Millisecond
)

// Event is one step of a generation. Content is always the whole revealed
// prefix, never a delta.
type Event struct {
	Content string
	Done    bool
}

// Streamer reveals a known target text in fixed-size chunks on a fixed
// interval.
type Streamer struct {
	ChunkSize int
	Interval  time.Duration
}

// Generation is a running stream. It ends either by emitting a Done event or
// by being cancelled, in which case the channel closes without Done.
type Generation struct {
	events chan Event
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	completed bool
}

// Start begins revealing target. The stream stops when ctx is cancelled or
// Cancel is called.
func (s Streamer) Start(ctx context.Context, target string) *Generation {
	chunk := s.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	ctx, cancel := context.WithCancel(ctx)
	g := &Generation{
		events: make(chan Event),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go g.run(ctx, target, chunk, interval)
	return g
}

func (g *Generation) run(ctx context.Context, target string, chunk int, interval time.Duration) {
	defer close(g.done)
	defer close(g.events)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	total := utf8.RuneCountInString(target)
	revealed := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var ev Event
		if revealed < total {
			revealed += chunk
			ev = Event{Content: runePrefix(target, revealed)}
		} else {
			ev = Event{Content: target, Done: true}
		}

		select {
		case <-ctx.Done():
			return
		case g.events <- ev:
		}
		if ev.Done {
			g.mu.Lock()
			g.completed = true
			g.mu.Unlock()
			return
		}
	}
}

// Events returns the event channel. It is closed when the stream ends.
func (g *Generation) Events() <-chan Event {
	return g.events
}

// Cancel stops the stream. No event is emitted after Cancel returns.
func (g *Generation) Cancel() {
	g.cancel()
	// drain so the producer is never left blocked on a send
	go func() {
		for range g.events {
		}
	}()
	<-g.done
}

// Wait blocks until the stream ended and reports whether it completed.
func (g *Generation) Wait() bool {
	<-g.done
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.completed
}

func runePrefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

var h1Re = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// ExtractTitle returns the first level one heading of text, or "".
func ExtractTitle(text string) string {
	m := h1Re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// TitleTracker picks the document title from a growing prefix. The first
// heading found wins and is never replaced.
type TitleTracker struct {
	title string
}

// Observe inspects the completed lines of prefix. It returns the title and
// true only on the call that first finds one.
func (t *TitleTracker) Observe(prefix string) (string, bool) {
	if t.title != "" {
		return t.title, false
	}
	cut := strings.LastIndex(prefix, "\n")
	if cut < 0 {
		return "", false
	}
	return t.settle(prefix[:cut])
}

// Finish inspects the whole text once the stream completed.
func (t *TitleTracker) Finish(full string) (string, bool) {
	if t.title != "" {
		return t.title, false
	}
	return t.settle(full)
}

// Title returns the title found so far.
func (t *TitleTracker) Title() string {
	return t.title
}

func (t *TitleTracker) settle(text string) (string, bool) {
	title := ExtractTitle(text)
	if title == "" {
		return "", false
	}
	t.title = title
	return title, true
}
