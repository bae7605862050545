package screens

import (
	"context"
	"strings"

	"github.com/mechanicbano/admin/internal/apiclient"
	"github.com/mechanicbano/admin/internal/notify"
	"github.com/mechanicbano/admin/internal/overlay"
	"github.com/mechanicbano/admin/pkg/models"
)

// MessagePageControlLocked is shown when staff try to hide the page control page itself
const MessagePageControlLocked = "The page control page cannot be disabled or deleted"

// PageControlScreen toggles which pages of the site are visible
type PageControlScreen struct {
	*Screen[models.PageVisibility]
}

// NewPageControlScreen creates the page control screen. refresh is called
// after every successful change so navigation follows the new map.
func NewPageControlScreen(deps Deps, refresh func(ctx context.Context) error) *PageControlScreen {
	s := &PageControlScreen{Screen: NewScreen(Resource[models.PageVisibility]{
		Name:     "pagecontrol",
		Path:     "general",
		Type:     "pagecontrol",
		Noun:     "Page",
		Plural:   "pages",
		ID:       func(p models.PageVisibility) models.ID { return p.ID },
		Validate: validatePage,
		Fields:   func(p models.PageVisibility) []string { return []string{p.Page} },
		Actions:  pageActions,
	}, deps)}
	s.OnChange(refresh)
	return s
}

func validatePage(p *models.PageVisibility) error {
	p.Page = strings.TrimSpace(p.Page)
	if p.Page == "" {
		return apiclient.Invalid("page", "Page name is required")
	}
	return nil
}

func pageActions(p models.PageVisibility) []overlay.Item {
	if p.Locked() {
		return nil
	}
	label := "Disable"
	if !p.Enabled {
		label = "Enable"
	}
	return []overlay.Item{
		{ID: "toggle", Label: label},
		{ID: "delete", Label: "Delete", Danger: true},
	}
}

// Create adds a page entry, enabled
func (s *PageControlScreen) Create(ctx context.Context, n *notify.Notifier, payload models.PageVisibility) bool {
	payload.Page = strings.TrimSpace(payload.Page)
	for _, existing := range s.Items() {
		if strings.EqualFold(existing.Page, payload.Page) {
			n.Warning("This page already exists")
			return false
		}
	}
	payload.ID = ""
	payload.Enabled = true
	return s.Screen.Create(ctx, n, payload)
}

// Update rejects, without contacting the backend, any change that would
// disable the page control page or rename it. Another entry cannot be
// renamed to the page control page either.
func (s *PageControlScreen) Update(ctx context.Context, n *notify.Notifier, id models.ID, payload models.PageVisibility) bool {
	current, ok := s.lookup(ctx, n, id)
	if !ok {
		return false
	}
	payload.Page = strings.TrimSpace(payload.Page)
	switch {
	case current.Locked() && (!payload.Enabled || !payload.Locked()):
		n.Warning(MessagePageControlLocked)
		return false
	case !current.Locked() && payload.Locked():
		n.Warning(MessagePageControlLocked)
		return false
	}
	return s.Screen.Update(ctx, n, id, payload)
}

// Toggle flips the visibility of the page with id
func (s *PageControlScreen) Toggle(ctx context.Context, n *notify.Notifier, id models.ID) bool {
	current, ok := s.lookup(ctx, n, id)
	if !ok {
		return false
	}
	if current.Locked() && current.Enabled {
		n.Warning(MessagePageControlLocked)
		return false
	}

	next := current
	next.Enabled = !current.Enabled
	success := "Page disabled"
	if next.Enabled {
		success = "Page enabled"
	}

	return s.Mutate(ctx, n, Mutation{
		Action: "toggle",
		Target: current.Page,
		Run: func(ctx context.Context) error {
			_, err := s.deps.Backend.Put(ctx, s.res.Path, s.res.Query(id), next)
			return err
		},
		Success: success,
		Failure: "Failed to update page",
	})
}

// Delete removes a page entry; the locked entry cannot be removed
func (s *PageControlScreen) Delete(ctx context.Context, n *notify.Notifier, id models.ID, confirmed bool) bool {
	current, ok := s.lookup(ctx, n, id)
	if !ok {
		return false
	}
	if current.Locked() {
		n.Warning(MessagePageControlLocked)
		return false
	}
	return s.Screen.Delete(ctx, n, id, confirmed)
}

// Act implements the page control row menu. The locked entry offers no
// actions, so choosing one reports the lock instead of a generic refusal.
func (s *PageControlScreen) Act(ctx context.Context, n *notify.Notifier, id models.ID, action string, confirmed bool) bool {
	current, ok := s.lookup(ctx, n, id)
	if !ok {
		return false
	}
	if current.Locked() {
		n.Warning(MessagePageControlLocked)
		return false
	}
	return s.choose(ctx, n, current, action, map[string]func() bool{
		"toggle": func() bool { return s.Toggle(ctx, n, id) },
		"delete": func() bool { return s.Delete(ctx, n, id, confirmed) },
	})
}
