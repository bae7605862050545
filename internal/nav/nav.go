// Package nav builds the console navigation from the page-visibility map.
package nav

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/mechanicbano/admin/internal/cache"
	"github.com/mechanicbano/admin/internal/logging"
	"github.com/mechanicbano/admin/pkg/models"
)

// Link is one entry of the navigation
type Link struct {
	Page  string `json:"page"`
	Label string `json:"label"`
	Path  string `json:"path"`
}

// DefaultLinks is the console navigation in display order
var DefaultLinks = []Link{
	{Page: "videos", Label: "Videos", Path: "/videos"},
	{Page: "pdfs", Label: "PDFs", Path: "/pdfs"},
	{Page: "plans", Label: "Subscription Plans", Path: "/plans"},
	{Page: "users", Label: "Users", Path: "/users"},
	{Page: "pending", Label: "Pending Subscriptions", Path: "/pending"},
	{Page: "upi", Label: "UPI", Path: "/upi"},
	{Page: "sitename", Label: "Site Name", Path: "/sitename"},
	{Page: "welcome", Label: "Welcome Note", Path: "/welcome"},
	{Page: models.PageControlPage, Label: "Page Control", Path: "/pagecontrol"},
}

// Lister fetches a list resource from the backend
type Lister interface {
	List(ctx context.Context, path string, query url.Values, out interface{}) error
}

// Shell holds the page-visibility map the navigation is built from
type Shell struct {
	backend Lister
	links   []Link
	cache   *cache.Cache
	ttl     time.Duration
	logger  *logging.Logger

	mu      sync.RWMutex
	visible map[string]bool
}

// NewShell creates a shell. c may be nil to disable the shared cache.
func NewShell(backend Lister, links []Link, c *cache.Cache, ttl time.Duration, logger *logging.Logger) *Shell {
	if links == nil {
		links = DefaultLinks
	}
	return &Shell{
		backend: backend,
		links:   links,
		cache:   c,
		ttl:     ttl,
		logger:  logger,
		visible: map[string]bool{},
	}
}

// Load fills the map once at startup, preferring the shared cache
func (s *Shell) Load(ctx context.Context) error {
	if s.cache != nil {
		pages, found, err := s.cache.GetPageVisibility(ctx)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to read page visibility from cache")
		} else if found {
			s.set(pages)
			return nil
		}
	}
	return s.fetch(ctx)
}

// Refresh refetches the map, dropping the shared copy first
func (s *Shell) Refresh(ctx context.Context) error {
	if s.cache != nil {
		if err := s.cache.InvalidatePageVisibility(ctx); err != nil {
			s.logger.WithError(err).Warn("Failed to invalidate page visibility cache")
		}
	}
	return s.fetch(ctx)
}

func (s *Shell) fetch(ctx context.Context) error {
	var pages []models.PageVisibility
	query := url.Values{"type": {models.PageControlPage}}
	if err := s.backend.List(ctx, "general", query, &pages); err != nil {
		return fmt.Errorf("failed to fetch page visibility: %w", err)
	}
	s.set(pages)

	if s.cache != nil {
		if err := s.cache.SetPageVisibility(ctx, pages, s.ttl); err != nil {
			s.logger.WithError(err).Warn("Failed to cache page visibility")
		}
	}
	return nil
}

func (s *Shell) set(pages []models.PageVisibility) {
	visible := make(map[string]bool, len(pages))
	for _, p := range pages {
		visible[p.Page] = p.Enabled
	}

	s.mu.Lock()
	s.visible = visible
	s.mu.Unlock()
}

// Visibility returns a copy of the map
func (s *Shell) Visibility() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.visible))
	for k, v := range s.visible {
		out[k] = v
	}
	return out
}

// Links returns the navigation without disabled pages. Pages missing from
// the map are shown and the page control link is always shown.
func (s *Shell) Links() []Link {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Link, 0, len(s.links))
	for _, link := range s.links {
		enabled, known := s.visible[link.Page]
		if link.Page == models.PageControlPage || !known || enabled {
			out = append(out, link)
		}
	}
	return out
}

// Enabled reports whether page is reachable
func (s *Shell) Enabled(page string) bool {
	if page == models.PageControlPage {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	enabled, known := s.visible[page]
	return !known || enabled
}
