package pdfview

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"sync"
)

// ErrNothingDrawn is returned when the surface has no raster yet
var ErrNothingDrawn = errors.New("nothing drawn")

// Surface receives rasters of the latest render. Clear drops the raster
// when the document it belonged to is replaced.
type Surface interface {
	Draw(img image.Image, page int, scale float64)
	Clear()
}

// MemorySurface keeps the last drawn raster so it can be served as PNG
type MemorySurface struct {
	mu    sync.RWMutex
	img   image.Image
	page  int
	scale float64
	draws int
}

// NewMemorySurface creates an empty surface
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{}
}

// Draw implements Surface
func (s *MemorySurface) Draw(img image.Image, page int, scale float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.img = img
	s.page = page
	s.scale = scale
	s.draws++
}

// Clear implements Surface
func (s *MemorySurface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.img = nil
	s.page = 0
	s.scale = 0
}

// Current returns the last raster and the page and scale it was drawn for
func (s *MemorySurface) Current() (image.Image, int, float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.img, s.page, s.scale
}

// Draws returns how many rasters have been drawn
func (s *MemorySurface) Draws() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draws
}

// PNG encodes the last raster
func (s *MemorySurface) PNG() ([]byte, error) {
	img, _, _ := s.Current()
	if img == nil {
		return nil, ErrNothingDrawn
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
