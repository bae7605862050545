// Package pdfview loads PDF documents and renders one page at a time.
//
// A Viewer moves through Idle, Loading, Ready, Rendering and Error. At most
// one render is in flight: starting a render cancels the previous one, and
// only the result of the most recent render reaches the Surface.
package pdfview

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/mechanicbano/admin/internal/logging"
	"github.com/mechanicbano/admin/internal/metrics"
)

// State is the viewer lifecycle state
type State string

const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StateReady     State = "ready"
	StateRendering State = "rendering"
	StateError     State = "error"
)

// Zoom bounds
const (
	MinScale     = 0.5
	MaxScale     = 3.0
	ScaleStep    = 0.25
	DefaultScale = 1.0
)

// User-facing error messages
const (
	MessageLoadFailed   = "Failed to load PDF"
	MessageRenderFailed = "Failed to render page"
)

// Key names understood by HandleKey
const (
	KeyArrowLeft  = "ArrowLeft"
	KeyArrowRight = "ArrowRight"
	KeyEscape     = "Escape"
)

var (
	// ErrNotReady is returned when rendering is requested without a loaded document
	ErrNotReady = errors.New("viewer has no document")
	// ErrClosed is returned by operations on a closed viewer
	ErrClosed = errors.New("viewer is closed")
)

// Fullscreener asks the platform to enter or leave fullscreen
type Fullscreener interface {
	Enter() error
	Exit() error
}

// NopFullscreener accepts every request. The browser shell performs the
// actual fullscreen call and reports external exits via FullscreenChanged.
type NopFullscreener struct{}

// Enter implements Fullscreener
func (NopFullscreener) Enter() error { return nil }

// Exit implements Fullscreener
func (NopFullscreener) Exit() error { return nil }

// ClampScale bounds scale to [MinScale, MaxScale] and snaps it to ScaleStep
func ClampScale(scale float64) float64 {
	if math.IsNaN(scale) {
		return DefaultScale
	}
	scale = math.Round(scale/ScaleStep) * ScaleStep
	return math.Max(MinScale, math.Min(MaxScale, scale))
}

func clampPage(page, total int) int {
	if page < 1 {
		return 1
	}
	if page > total {
		return total
	}
	return page
}

// Snapshot is the externally visible viewer state
type Snapshot struct {
	ID         string  `json:"id"`
	URL        string  `json:"url,omitempty"`
	State      State   `json:"state"`
	Page       int     `json:"page"`
	TotalPages int     `json:"totalPages"`
	Scale      float64 `json:"scale"`
	Focused    bool    `json:"focused"`
	Fullscreen bool    `json:"fullscreen"`
	Error      string  `json:"error,omitempty"`
	CanPrev    bool    `json:"canPrev"`
	CanNext    bool    `json:"canNext"`
	CanZoomIn  bool    `json:"canZoomIn"`
	CanZoomOut bool    `json:"canZoomOut"`
}

// Viewer is one PDF viewing session
type Viewer struct {
	id      string
	loader  Loader
	surface Surface
	screen  Fullscreener
	logger  *logging.Logger

	mu         sync.Mutex
	state      State
	url        string
	doc        Document
	page       int
	total      int
	scale      float64
	focused    bool
	fullscreen bool
	errMsg     string
	seq        uint64
	cancel     context.CancelFunc
	closed     bool
	lastUsed   time.Time
}

// NewViewer creates an idle viewer
func NewViewer(id string, loader Loader, surface Surface, screen Fullscreener, logger *logging.Logger) *Viewer {
	if screen == nil {
		screen = NopFullscreener{}
	}
	return &Viewer{
		id:       id,
		loader:   loader,
		surface:  surface,
		screen:   screen,
		logger:   logger.WithViewerID(id),
		state:    StateIdle,
		scale:    DefaultScale,
		lastUsed: time.Now(),
	}
}

// ID returns the viewer id
func (v *Viewer) ID() string { return v.id }

// Load fetches and parses url, then renders its first page. A load
// supersedes any render or load still in flight.
func (v *Viewer) Load(ctx context.Context, url string) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	v.cancelLocked()
	v.seq++
	seq := v.seq
	if v.doc != nil {
		v.doc.Close()
		v.doc = nil
	}
	v.state = StateLoading
	v.url = url
	v.page, v.total = 0, 0
	v.errMsg = ""
	v.lastUsed = time.Now()
	v.surface.Clear()
	v.mu.Unlock()

	doc, err := v.loader.Load(ctx, url)

	v.mu.Lock()
	if seq != v.seq || v.closed {
		v.mu.Unlock()
		if doc != nil {
			doc.Close()
		}
		return nil
	}
	if err != nil {
		v.state = StateError
		v.errMsg = MessageLoadFailed
		v.mu.Unlock()
		v.logger.WithError(err).Warn("PDF load failed")
		metrics.RecordError("pdfview", "load")
		return err
	}
	v.doc = doc
	v.total = doc.NumPages()
	v.page = 1
	v.state = StateReady
	scale := v.scale
	v.mu.Unlock()

	v.logger.WithFields(map[string]interface{}{
		"url":   url,
		"pages": v.total,
	}).Info("PDF loaded")

	return v.RenderPage(ctx, 1, scale)
}

// RenderPage rasterizes page at scale. Both are clamped. A render that is
// superseded before it finishes is discarded without error.
func (v *Viewer) RenderPage(ctx context.Context, page int, scale float64) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	if v.doc == nil || (v.state != StateReady && v.state != StateRendering) {
		v.mu.Unlock()
		return ErrNotReady
	}

	v.cancelLocked()
	renderCtx, cancel := context.WithCancel(ctx)
	v.seq++
	seq := v.seq
	v.cancel = cancel
	v.page = clampPage(page, v.total)
	v.scale = ClampScale(scale)
	v.state = StateRendering
	v.lastUsed = time.Now()
	doc, page, scale := v.doc, v.page, v.scale
	v.mu.Unlock()

	start := time.Now()
	img, err := doc.Render(renderCtx, page, scale)
	cancel()
	elapsed := time.Since(start)

	v.mu.Lock()
	defer v.mu.Unlock()

	if seq != v.seq {
		v.logger.LogRender(v.id, page, scale, seq, false, elapsed)
		metrics.RecordPageRender("discarded", elapsed.Seconds())
		return nil
	}
	v.cancel = nil

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			v.state = StateReady
			metrics.RecordPageRender("discarded", elapsed.Seconds())
			return nil
		}
		v.state = StateError
		v.errMsg = MessageRenderFailed
		v.logger.WithError(err).Warn("PDF render failed")
		metrics.RecordPageRender("failed", elapsed.Seconds())
		return err
	}

	v.state = StateReady
	v.surface.Draw(img, page, scale)
	v.logger.LogRender(v.id, page, scale, seq, true, elapsed)
	metrics.RecordPageRender("applied", elapsed.Seconds())
	return nil
}

// cancelLocked cancels the in-flight render, if any
func (v *Viewer) cancelLocked() {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
}

// GoTo renders page n. Out-of-range input is ignored.
func (v *Viewer) GoTo(ctx context.Context, n int) error {
	page, total, scale, ok := v.position()
	if !ok || n < 1 || n > total || n == page {
		return nil
	}
	return v.RenderPage(ctx, n, scale)
}

// First renders page 1
func (v *Viewer) First(ctx context.Context) error {
	return v.GoTo(ctx, 1)
}

// Prev renders the previous page; no-op on page 1
func (v *Viewer) Prev(ctx context.Context) error {
	page, _, _, ok := v.position()
	if !ok {
		return nil
	}
	return v.GoTo(ctx, page-1)
}

// Next renders the next page; no-op on the last page
func (v *Viewer) Next(ctx context.Context) error {
	page, _, _, ok := v.position()
	if !ok {
		return nil
	}
	return v.GoTo(ctx, page+1)
}

// Last renders the last page
func (v *Viewer) Last(ctx context.Context) error {
	_, total, _, ok := v.position()
	if !ok {
		return nil
	}
	return v.GoTo(ctx, total)
}

// ZoomIn increases scale by one step; no-op at MaxScale
func (v *Viewer) ZoomIn(ctx context.Context) error {
	return v.zoomTo(ctx, func(s float64) float64 { return s + ScaleStep })
}

// ZoomOut decreases scale by one step; no-op at MinScale
func (v *Viewer) ZoomOut(ctx context.Context) error {
	return v.zoomTo(ctx, func(s float64) float64 { return s - ScaleStep })
}

// ResetZoom returns to DefaultScale
func (v *Viewer) ResetZoom(ctx context.Context) error {
	return v.zoomTo(ctx, func(float64) float64 { return DefaultScale })
}

func (v *Viewer) zoomTo(ctx context.Context, next func(float64) float64) error {
	page, _, scale, ok := v.position()
	if !ok {
		return nil
	}
	target := ClampScale(next(scale))
	if target == scale {
		return nil
	}
	return v.RenderPage(ctx, page, target)
}

// position returns the current page, page count and scale when a document is open
func (v *Viewer) position() (page, total int, scale float64, ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.doc == nil || (v.state != StateReady && v.state != StateRendering) {
		return 0, 0, 0, false
	}
	return v.page, v.total, v.scale, true
}

// SetFocus records whether the viewer container has keyboard focus
func (v *Viewer) SetFocus(focused bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.focused = focused
}

// HandleKey maps arrow keys to page navigation while focused and Escape
// to leaving fullscreen. Other keys are ignored.
func (v *Viewer) HandleKey(ctx context.Context, key string) error {
	v.mu.Lock()
	focused, fullscreen := v.focused, v.fullscreen
	v.mu.Unlock()

	switch key {
	case KeyArrowLeft:
		if focused {
			return v.Prev(ctx)
		}
	case KeyArrowRight:
		if focused {
			return v.Next(ctx)
		}
	case KeyEscape:
		if fullscreen {
			return v.ToggleFullscreen()
		}
	}
	return nil
}

// ToggleFullscreen asks the platform to enter or leave fullscreen
func (v *Viewer) ToggleFullscreen() error {
	v.mu.Lock()
	active := v.fullscreen
	v.mu.Unlock()

	var err error
	if active {
		err = v.screen.Exit()
	} else {
		err = v.screen.Enter()
	}
	if err != nil {
		v.logger.WithError(err).Warn("Fullscreen request failed")
		return err
	}

	v.FullscreenChanged(!active)
	return nil
}

// FullscreenChanged syncs state with a fullscreen change made outside the viewer
func (v *Viewer) FullscreenChanged(active bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fullscreen = active
}

// Snapshot returns the current state
func (v *Viewer) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	open := v.doc != nil && (v.state == StateReady || v.state == StateRendering)
	return Snapshot{
		ID:         v.id,
		URL:        v.url,
		State:      v.state,
		Page:       v.page,
		TotalPages: v.total,
		Scale:      v.scale,
		Focused:    v.focused,
		Fullscreen: v.fullscreen,
		Error:      v.errMsg,
		CanPrev:    open && v.page > 1,
		CanNext:    open && v.page < v.total,
		CanZoomIn:  open && v.scale < MaxScale,
		CanZoomOut: open && v.scale > MinScale,
	}
}

// Surface returns the drawing surface
func (v *Viewer) Surface() Surface { return v.surface }

// Touch marks the viewer as used
func (v *Viewer) Touch() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lastUsed = time.Now()
}

// LastUsed returns when the viewer was last used
func (v *Viewer) LastUsed() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastUsed
}

// Close cancels any render and releases the document
func (v *Viewer) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true
	v.cancelLocked()
	v.seq++
	if v.doc != nil {
		err := v.doc.Close()
		v.doc = nil
		return err
	}
	return nil
}
