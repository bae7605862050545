package screens

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mechanicbano/admin/internal/cache"
	"github.com/mechanicbano/admin/internal/logging"
)

// ErrProcessing is returned when a screen already has a mutation in flight
var ErrProcessing = errors.New("screen is processing")

// Guard serializes the mutating calls of each screen
type Guard interface {
	// Acquire marks screen as processing. It fails with ErrProcessing when
	// the screen already is. The returned func must be called exactly once.
	Acquire(ctx context.Context, screen string) (release func(), err error)
	// Busy reports whether screen is processing
	Busy(ctx context.Context, screen string) bool
}

// MemoryGuard is a Guard local to one console instance
type MemoryGuard struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewMemoryGuard creates an in-process guard
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{held: make(map[string]bool)}
}

// Acquire implements Guard
func (g *MemoryGuard) Acquire(_ context.Context, screen string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.held[screen] {
		return nil, ErrProcessing
	}
	g.held[screen] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, screen)
			g.mu.Unlock()
		})
	}, nil
}

// Busy implements Guard
func (g *MemoryGuard) Busy(_ context.Context, screen string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held[screen]
}

// RedisGuard shares processing state between console instances.
// Locks expire after ttl so a crashed instance cannot wedge a screen.
type RedisGuard struct {
	cache  *cache.Cache
	ttl    time.Duration
	logger *logging.Logger
}

// NewRedisGuard creates a guard backed by Redis locks
func NewRedisGuard(c *cache.Cache, ttl time.Duration, logger *logging.Logger) *RedisGuard {
	return &RedisGuard{cache: c, ttl: ttl, logger: logger}
}

// Acquire implements Guard
func (g *RedisGuard) Acquire(ctx context.Context, screen string) (func(), error) {
	resource := "screen:" + screen
	token, ok, err := g.cache.AcquireLock(ctx, resource, g.ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrProcessing
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// the request context may already be done
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := g.cache.ReleaseLock(releaseCtx, resource, token); err != nil {
				g.logger.WithScreen(screen).WithError(err).Warn("Failed to release processing lock")
			}
		})
	}, nil
}

// Busy implements Guard
func (g *RedisGuard) Busy(ctx context.Context, screen string) bool {
	locked, err := g.cache.IsLocked(ctx, "screen:"+screen)
	if err != nil {
		g.logger.WithScreen(screen).WithError(err).Warn("Failed to read processing lock")
		return false
	}
	return locked
}
