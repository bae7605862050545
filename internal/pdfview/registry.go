package pdfview

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mechanicbano/admin/internal/logging"
	"github.com/mechanicbano/admin/internal/metrics"
)

// ErrViewerNotFound is returned for unknown or expired viewer ids
var ErrViewerNotFound = errors.New("viewer not found")

// Registry tracks open viewer sessions and expires idle ones
type Registry struct {
	loader      Loader
	sources     *SourcePolicy
	idleTimeout time.Duration
	logger      *logging.Logger

	mu      sync.RWMutex
	viewers map[string]*Viewer
}

// NewRegistry creates a registry. Only links allowed by sources can be
// opened. idleTimeout <= 0 disables expiry.
func NewRegistry(loader Loader, sources *SourcePolicy, idleTimeout time.Duration, logger *logging.Logger) *Registry {
	return &Registry{
		loader:      loader,
		sources:     sources,
		idleTimeout: idleTimeout,
		logger:      logger,
		viewers:     make(map[string]*Viewer),
	}
}

// Open creates a viewer and loads url into it. The viewer is registered
// even when loading fails so its error state can be inspected. A link
// outside the allowed sources is refused before any viewer exists.
func (r *Registry) Open(ctx context.Context, url string) (*Viewer, error) {
	if err := r.sources.Allow(url); err != nil {
		r.logger.WithField("url", url).Warn("Refused PDF source")
		return nil, err
	}
	v := NewViewer(uuid.New().String(), r.loader, NewMemorySurface(), NopFullscreener{}, r.logger)

	r.mu.Lock()
	r.viewers[v.ID()] = v
	n := len(r.viewers)
	r.mu.Unlock()
	metrics.SetViewerSessions(n)

	return v, v.Load(ctx, url)
}

// Get returns the viewer with id and marks it used
func (r *Registry) Get(id string) (*Viewer, error) {
	r.mu.RLock()
	v, ok := r.viewers[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrViewerNotFound
	}
	v.Touch()
	return v, nil
}

// Close removes and closes the viewer with id
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	v, ok := r.viewers[id]
	delete(r.viewers, id)
	n := len(r.viewers)
	r.mu.Unlock()
	if !ok {
		return ErrViewerNotFound
	}
	metrics.SetViewerSessions(n)
	return v.Close()
}

// Len returns the number of open viewers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.viewers)
}

// Sweep closes viewers idle since before now minus the idle timeout
func (r *Registry) Sweep(now time.Time) int {
	if r.idleTimeout <= 0 {
		return 0
	}
	cutoff := now.Add(-r.idleTimeout)

	r.mu.Lock()
	var expired []*Viewer
	for id, v := range r.viewers {
		if v.LastUsed().Before(cutoff) {
			expired = append(expired, v)
			delete(r.viewers, id)
		}
	}
	n := len(r.viewers)
	r.mu.Unlock()

	for _, v := range expired {
		v.Close()
	}
	if len(expired) > 0 {
		metrics.SetViewerSessions(n)
		r.logger.Infof("Expired %d idle viewer sessions", len(expired))
	}
	return len(expired)
}

// Run sweeps idle viewers until ctx is done, then closes the rest
func (r *Registry) Run(ctx context.Context) {
	if r.idleTimeout <= 0 {
		<-ctx.Done()
		r.closeAll()
		return
	}

	ticker := time.NewTicker(r.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	viewers := r.viewers
	r.viewers = make(map[string]*Viewer)
	r.mu.Unlock()

	for _, v := range viewers {
		v.Close()
	}
	metrics.SetViewerSessions(0)
}
