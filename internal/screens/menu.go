package screens

import (
	"context"

	"github.com/mechanicbano/admin/internal/notify"
	"github.com/mechanicbano/admin/internal/overlay"
	"github.com/mechanicbano/admin/pkg/models"
)

// MenuRequest locates a row menu trigger on the page
type MenuRequest struct {
	Trigger overlay.Rect  `json:"trigger"`
	Scroll  overlay.Point `json:"scroll"`
	Width   float64       `json:"width"`
	Height  float64       `json:"height"`
	// Pointer is a pointer-down in document coordinates while the menu is open
	Pointer *overlay.Point `json:"pointer,omitempty"`
}

// MenuView is the row menu to render
type MenuView struct {
	Open       bool             `json:"open"`
	Position   overlay.Position `json:"position"`
	Items      []overlay.Item   `json:"items"`
	Processing bool             `json:"processing"`
}

// Menu opens the row menu of the item with id below its trigger. A pointer
// outside both the trigger and the menu closes it again.
func (s *Screen[T]) Menu(ctx context.Context, n *notify.Notifier, id models.ID, req MenuRequest) (MenuView, bool) {
	item, ok := s.lookup(ctx, n, id)
	if !ok {
		return MenuView{}, false
	}

	entries := []overlay.Item{}
	if s.res.Actions != nil {
		entries = append(entries, s.res.Actions(item)...)
	}
	processing := s.busy(ctx)

	menu := overlay.NewMenu(entries)
	menu.SetProcessing(processing)
	menu.Open(req.Trigger, req.Scroll, req.Width, req.Height)
	if req.Pointer != nil {
		menu.PointerDown(*req.Pointer)
	}

	return MenuView{
		Open:       menu.IsOpen(),
		Position:   menu.Position(),
		Items:      menu.Items(),
		Processing: processing,
	}, true
}
