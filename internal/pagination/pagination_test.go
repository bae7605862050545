package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name      string
		current   int
		pageSize  int
		total     int
		wantPages []int
		wantTotal int
	}{
		{"empty", 1, 10, 0, []int{}, 0},
		{"single page", 1, 10, 7, []int{1}, 1},
		{"three pages", 2, 10, 25, []int{1, 2, 3}, 3},
		{"start boundary", 1, 10, 100, []int{1, 2, 3, 4, 5}, 10},
		{"second page", 2, 10, 100, []int{1, 2, 3, 4, 5}, 10},
		{"centered", 6, 10, 100, []int{4, 5, 6, 7, 8}, 10},
		{"end boundary", 10, 10, 100, []int{6, 7, 8, 9, 10}, 10},
		{"near end", 9, 10, 100, []int{6, 7, 8, 9, 10}, 10},
		{"current past end clamps", 42, 10, 100, []int{6, 7, 8, 9, 10}, 10},
		{"current below one clamps", -3, 10, 100, []int{1, 2, 3, 4, 5}, 10},
		{"zero page size uses default", 1, 0, 30, []int{1, 2, 3}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Compute(tt.current, tt.pageSize, tt.total)
			assert.Equal(t, tt.wantPages, w.Pages)
			assert.Equal(t, tt.wantTotal, w.TotalPages)
		})
	}
}

func TestComputeWindowProperties(t *testing.T) {
	for total := 0; total <= 120; total += 7 {
		for size := 1; size <= 25; size += 4 {
			pages := TotalPages(size, total)
			for current := 1; current <= pages; current++ {
				w := Compute(current, size, total)

				assert.LessOrEqual(t, len(w.Pages), MaxButtons)
				for _, p := range w.Pages {
					assert.GreaterOrEqual(t, p, 1)
					assert.LessOrEqual(t, p, pages)
				}
				assert.Contains(t, w.Pages, current)

				// centered unless the window touches a boundary
				if w.WindowStart > 1 && w.WindowEnd < pages {
					assert.Equal(t, current, w.Pages[len(w.Pages)/2])
				}
			}
		}
	}
}

func TestComputeButtonStates(t *testing.T) {
	first := Compute(1, 10, 50)
	assert.False(t, first.HasFirst)
	assert.False(t, first.HasPrev)
	assert.True(t, first.HasNext)
	assert.True(t, first.HasLast)

	last := Compute(5, 10, 50)
	assert.True(t, last.HasPrev)
	assert.False(t, last.HasNext)
	assert.False(t, last.HasLast)
}

func TestSliceAndBounds(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	assert.Equal(t, []int{1, 2, 3}, Slice(items, Compute(1, 3, len(items))))
	assert.Equal(t, []int{7}, Slice(items, Compute(3, 3, len(items))))
	assert.Equal(t, []int{}, Slice([]int{}, Compute(1, 3, 0)))
}

func TestFilter(t *testing.T) {
	type video struct{ Title, Description string }
	videos := []video{
		{"Engine Basics", "oil and spark"},
		{"Brakes", "pads and discs"},
		{"Wiring", "basics of harnesses"},
	}
	fields := func(v video) []string { return []string{v.Title, v.Description} }

	assert.Len(t, Filter(videos, "", fields), 3)
	assert.Len(t, Filter(videos, "BASICS", fields), 2)
	assert.Len(t, Filter(videos, "nothing", fields), 0)
}

func TestPaginator(t *testing.T) {
	p := NewPaginator(10)

	p.Next(35)
	p.Next(35)
	assert.Equal(t, 3, p.Page)

	p.Next(35)
	p.Next(35)
	assert.Equal(t, 4, p.Page, "next stops at last page")

	assert.False(t, p.GoTo(9, 35), "out of range input is ignored")
	assert.Equal(t, 4, p.Page)
	assert.False(t, p.GoTo(0, 35))
	assert.True(t, p.GoTo(2, 35))
	assert.Equal(t, 2, p.Page)

	p.SetPageSize(20)
	assert.Equal(t, 1, p.Page, "changing page size resets to page 1")

	p.Prev()
	assert.Equal(t, 1, p.Page)

	p.Last(35)
	assert.Equal(t, 2, p.Page)
	p.First()
	assert.Equal(t, 1, p.Page)
}
