package screens

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mechanicbano/admin/internal/overlay"
)

func TestRowMenu(t *testing.T) {
	s, _, n := loadedPendingScreen(t)
	ctx := context.Background()

	req := MenuRequest{
		Trigger: overlay.Rect{Top: 100, Left: 50, Width: 30, Height: 20},
		Scroll:  overlay.Point{Y: 200},
		Width:   150,
		Height:  90,
	}
	view, ok := s.Menu(ctx, n, "42", req)
	require.True(t, ok)
	assert.True(t, view.Open)
	assert.Equal(t, overlay.Position{Top: 324, Left: 50}, view.Position)
	require.Len(t, view.Items, 3)
	assert.Equal(t, "approve", view.Items[0].ID)
	assert.False(t, view.Processing)

	req.Pointer = &overlay.Point{X: 120, Y: 380}
	view, _ = s.Menu(ctx, n, "42", req)
	assert.True(t, view.Open, "a click inside the menu keeps it open")

	req.Pointer = &overlay.Point{X: 600, Y: 20}
	view, _ = s.Menu(ctx, n, "42", req)
	assert.False(t, view.Open, "a click elsewhere closes it")
}

func TestRowMenuLockedPage(t *testing.T) {
	s, _, n, _ := loadedPageControl(t)

	view, ok := s.Menu(context.Background(), n, "1", MenuRequest{})
	require.True(t, ok)
	assert.NotNil(t, view.Items)
	assert.Empty(t, view.Items)
}

func TestRowMenuUnknownItem(t *testing.T) {
	s, _, n := loadedPendingScreen(t)

	_, ok := s.Menu(context.Background(), n, "999", MenuRequest{})
	assert.False(t, ok)
	assert.Equal(t, "Subscription not found", lastToast(t, n).Message)
}
