// Package pagination computes the page window shown under resource tables.
package pagination

import (
	"strings"
)

const (
	// MaxButtons is the number of page buttons shown at once
	MaxButtons = 5
	// DefaultPageSize is used when a caller passes a non-positive size
	DefaultPageSize = 10
)

// PageSizes are the sizes offered in the page-size selector
var PageSizes = []int{5, 10, 20, 50}

// Window describes the visible page buttons for one table
type Window struct {
	Current     int   `json:"current"`
	PageSize    int   `json:"pageSize"`
	TotalItems  int   `json:"totalItems"`
	TotalPages  int   `json:"totalPages"`
	WindowStart int   `json:"windowStart"`
	WindowEnd   int   `json:"windowEnd"`
	Pages       []int `json:"pages"`
	HasFirst    bool  `json:"hasFirst"`
	HasPrev     bool  `json:"hasPrev"`
	HasNext     bool  `json:"hasNext"`
	HasLast     bool  `json:"hasLast"`
}

// TotalPages returns ceil(totalItems / pageSize)
func TotalPages(pageSize, totalItems int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if totalItems <= 0 {
		return 0
	}
	return (totalItems + pageSize - 1) / pageSize
}

// Compute returns the window of at most MaxButtons page numbers centered on
// currentPage and clamped to [1, totalPages].
func Compute(currentPage, pageSize, totalItems int) Window {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if totalItems < 0 {
		totalItems = 0
	}

	total := TotalPages(pageSize, totalItems)
	current := clamp(currentPage, 1, max(total, 1))

	w := Window{
		Current:    current,
		PageSize:   pageSize,
		TotalItems: totalItems,
		TotalPages: total,
		Pages:      []int{},
	}
	if total == 0 {
		return w
	}

	half := MaxButtons / 2
	start := current - half
	end := current + half

	if start < 1 {
		end += 1 - start
		start = 1
	}
	if end > total {
		start -= end - total
		end = total
	}
	if start < 1 {
		start = 1
	}

	for p := start; p <= end; p++ {
		w.Pages = append(w.Pages, p)
	}

	w.WindowStart = start
	w.WindowEnd = end
	w.HasFirst = current > 1
	w.HasPrev = current > 1
	w.HasNext = current < total
	w.HasLast = current < total
	return w
}

// Bounds returns the [from, to) item indexes of the current page
func (w Window) Bounds() (from, to int) {
	if w.TotalPages == 0 {
		return 0, 0
	}
	from = (w.Current - 1) * w.PageSize
	to = min(from+w.PageSize, w.TotalItems)
	return from, to
}

// Slice returns the items on the window's current page
func Slice[T any](items []T, w Window) []T {
	from, to := w.Bounds()
	if from >= len(items) {
		return []T{}
	}
	if to > len(items) {
		to = len(items)
	}
	return items[from:to]
}

// Filter keeps items where any field contains query, case-insensitively.
// An empty query keeps everything.
func Filter[T any](items []T, query string, fields func(T) []string) []T {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return items
	}

	out := make([]T, 0, len(items))
	for _, item := range items {
		for _, field := range fields(item) {
			if strings.Contains(strings.ToLower(field), query) {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

// Paginator holds the page state of one table
type Paginator struct {
	Page     int
	PageSize int
}

// NewPaginator starts on page 1
func NewPaginator(pageSize int) *Paginator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Paginator{Page: 1, PageSize: pageSize}
}

// SetPageSize changes the size and returns to page 1
func (p *Paginator) SetPageSize(size int) {
	if size <= 0 {
		size = DefaultPageSize
	}
	p.PageSize = size
	p.Page = 1
}

// GoTo moves to page n; out-of-range input is ignored and reported false
func (p *Paginator) GoTo(n, totalItems int) bool {
	total := TotalPages(p.PageSize, totalItems)
	if n < 1 || n > total {
		return false
	}
	p.Page = n
	return true
}

// First moves to page 1
func (p *Paginator) First() { p.Page = 1 }

// Prev moves back one page, stopping at 1
func (p *Paginator) Prev() {
	if p.Page > 1 {
		p.Page--
	}
}

// Next moves forward one page, stopping at the last page
func (p *Paginator) Next(totalItems int) {
	if p.Page < TotalPages(p.PageSize, totalItems) {
		p.Page++
	}
}

// Last moves to the last page
func (p *Paginator) Last(totalItems int) {
	p.Page = max(TotalPages(p.PageSize, totalItems), 1)
}

// Window computes the window for the current state
func (p *Paginator) Window(totalItems int) Window {
	return Compute(p.Page, p.PageSize, totalItems)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
