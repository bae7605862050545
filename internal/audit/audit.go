// Package audit records which admin changed what through the console.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultLimit bounds Recent when the caller passes no limit
const DefaultLimit = 50

// Entry is one successful mutation
type Entry struct {
	ID     string    `json:"id"`
	Actor  string    `json:"actor"`
	Screen string    `json:"screen"`
	Action string    `json:"action"`
	Target string    `json:"target,omitempty"`
	At     time.Time `json:"at"`
}

// NewEntry stamps an entry with a fresh id and the current time.
// The actor is taken from ctx.
func NewEntry(ctx context.Context, screen, action, target string) Entry {
	return Entry{
		ID:     uuid.New().String(),
		Actor:  ActorFrom(ctx),
		Screen: screen,
		Action: action,
		Target: target,
		At:     time.Now().UTC(),
	}
}

// Recorder stores and lists audit entries
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// NopRecorder discards entries
type NopRecorder struct{}

// Record implements Recorder
func (NopRecorder) Record(context.Context, Entry) error { return nil }

// Recent implements Recorder
func (NopRecorder) Recent(context.Context, int) ([]Entry, error) { return []Entry{}, nil }

// MemoryRecorder keeps the most recent entries in memory
type MemoryRecorder struct {
	mu      sync.Mutex
	max     int
	entries []Entry
}

// NewMemoryRecorder keeps up to max entries
func NewMemoryRecorder(max int) *MemoryRecorder {
	if max <= 0 {
		max = DefaultLimit
	}
	return &MemoryRecorder{max: max}
}

// Record implements Recorder
func (m *MemoryRecorder) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	if len(m.entries) > m.max {
		m.entries = m.entries[len(m.entries)-m.max:]
	}
	return nil
}

// Recent implements Recorder, newest first
func (m *MemoryRecorder) Recent(_ context.Context, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limit = NormalizeLimit(limit)
	out := make([]Entry, 0, limit)
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

// NormalizeLimit replaces a missing or oversized limit with DefaultLimit
func NormalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return DefaultLimit
	}
	return limit
}

type actorKey struct{}

// WithActor attaches the signed-in admin's email to ctx
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the admin attached by WithActor, or "unknown"
func ActorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return "unknown"
}
