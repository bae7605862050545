// Package overlay positions dropdown menus anchored to a trigger element.
//
// Coordinates are CSS pixels. Trigger rectangles are viewport-relative
// (as reported by getBoundingClientRect); the computed menu position is in
// document coordinates so it can be rendered in a top-level fixed layer.
package overlay

import (
	"errors"
	"sync"
)

// DefaultGap is the vertical distance between trigger and menu
const DefaultGap = 4

// ErrProcessing is returned when an item is chosen while the menu is disabled
var ErrProcessing = errors.New("menu is processing")

// Point is a position on the page
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned box
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bottom returns the y coordinate of the lower edge
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// Right returns the x coordinate of the right edge
func (r Rect) Right() float64 { return r.Left + r.Width }

// Contains reports whether p lies inside r, edges included
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Left && p.X <= r.Right() && p.Y >= r.Top && p.Y <= r.Bottom()
}

// Offset shifts r by d
func (r Rect) Offset(d Point) Rect {
	r.Left += d.X
	r.Top += d.Y
	return r
}

// Position is where the menu's top-left corner goes
type Position struct {
	Top  float64 `json:"top"`
	Left float64 `json:"left"`
}

// place puts the menu at the trigger's bottom-left corner in document
// coordinates plus gap.
func place(trigger Rect, scroll Point, gap float64) Position {
	return Position{
		Top:  trigger.Bottom() + scroll.Y + gap,
		Left: trigger.Left + scroll.X,
	}
}

// Item is a menu entry
type Item struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Danger bool   `json:"danger,omitempty"`
	Action func() `json:"-"`
}

// Menu is the open/closed state of one dropdown.
// The position is computed once on Open and kept until the menu closes.
type Menu struct {
	mu         sync.Mutex
	items      []Item
	open       bool
	processing bool
	trigger    Rect // document coordinates
	position   Position
	size       Rect
}

// NewMenu creates a closed menu with the given items
func NewMenu(items []Item) *Menu {
	return &Menu{items: items}
}

// Open shows the menu below trigger. width and height are the rendered menu size.
func (m *Menu) Open(trigger Rect, scroll Point, width, height float64) Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.open = true
	m.trigger = trigger.Offset(scroll)
	m.position = place(trigger, scroll, DefaultGap)
	m.size = Rect{Top: m.position.Top, Left: m.position.Left, Width: width, Height: height}
	return m.position
}

// Close hides the menu
func (m *Menu) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
}

// IsOpen reports whether the menu is shown
func (m *Menu) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Position returns the position computed on the last Open
func (m *Menu) Position() Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

// SetProcessing disables or re-enables item actions
func (m *Menu) SetProcessing(processing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processing = processing
}

// Items returns the menu entries
func (m *Menu) Items() []Item {
	return m.items
}

// Choose runs the item's action and closes the menu. While processing
// nothing runs and the menu stays open.
func (m *Menu) Choose(id string) error {
	m.mu.Lock()
	if m.processing {
		m.mu.Unlock()
		return ErrProcessing
	}

	var action func()
	found := false
	for _, item := range m.items {
		if item.ID == id {
			action = item.Action
			found = true
			break
		}
	}
	if !found {
		m.mu.Unlock()
		return errors.New("unknown menu item: " + id)
	}
	m.open = false
	m.mu.Unlock()

	if action != nil {
		action()
	}
	return nil
}

// PointerDown closes the menu when p (document coordinates) is outside both
// the trigger and the menu. It reports whether the menu closed.
func (m *Menu) PointerDown(p Point) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		return false
	}
	if m.trigger.Contains(p) || m.size.Contains(p) {
		return false
	}
	m.open = false
	return true
}
