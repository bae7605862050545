package screens

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mechanicbano/admin/internal/apiclient"
	"github.com/mechanicbano/admin/internal/audit"
	"github.com/mechanicbano/admin/internal/cache"
	"github.com/mechanicbano/admin/internal/config"
	"github.com/mechanicbano/admin/internal/logging"
	"github.com/mechanicbano/admin/internal/notify"
	"github.com/mechanicbano/admin/pkg/models"
)

// backendCall is one request the fake backend received
type backendCall struct {
	Method string
	Path   string
	ID     string
	Type   string
	Body   map[string]interface{}
}

func (c backendCall) String() string {
	s := c.Method + " " + c.Path
	if c.Type != "" {
		s += "?type=" + c.Type
	}
	if c.ID != "" {
		s += "&id=" + c.ID
	}
	return s
}

type reply struct {
	status int
	body   string
}

// fakeBackend answers "METHOD path" keys; several replies for one key are
// served in order, the last one repeating.
type fakeBackend struct {
	t *testing.T

	mu      sync.Mutex
	calls   []backendCall
	replies map[string][]reply
}

func newFakeBackend(t *testing.T) (*fakeBackend, *apiclient.Client) {
	t.Helper()
	fb := &fakeBackend{t: t, replies: make(map[string][]reply)}
	server := httptest.NewServer(http.HandlerFunc(fb.serve))
	t.Cleanup(server.Close)

	client := apiclient.New(config.BackendConfig{BaseURL: server.URL + "/api", Timeout: 5 * time.Second}, logging.NewNop())
	return fb, client
}

func (fb *fakeBackend) on(method, path string, status int, body string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	key := method + " " + path
	fb.replies[key] = append(fb.replies[key], reply{status, body})
}

func (fb *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	call := backendCall{
		Method: r.Method,
		Path:   strings.TrimPrefix(r.URL.Path, "/api/"),
		ID:     r.URL.Query().Get("id"),
		Type:   r.URL.Query().Get("type"),
	}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		json.Unmarshal(data, &call.Body)
	}

	fb.mu.Lock()
	fb.calls = append(fb.calls, call)
	key := call.Method + " " + call.Path
	queue := fb.replies[key]
	var rep reply
	switch len(queue) {
	case 0:
		rep = reply{http.StatusOK, `{"success":true}`}
	case 1:
		rep = queue[0]
	default:
		rep = queue[0]
		fb.replies[key] = queue[1:]
	}
	fb.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rep.status)
	w.Write([]byte(rep.body))
}

func (fb *fakeBackend) Calls() []backendCall {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	out := make([]backendCall, len(fb.calls))
	copy(out, fb.calls)
	return out
}

func (fb *fakeBackend) Reset() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.calls = nil
}

func newNotifier() *notify.Notifier {
	return notify.New(notify.DefaultOptions(), logging.NewNop())
}

func lastToast(t *testing.T, n *notify.Notifier) notify.Notification {
	t.Helper()
	toast, ok := n.Last()
	require.True(t, ok, "expected a toast")
	return toast
}

func testDeps(client Backend) Deps {
	return Deps{Backend: client, Guard: NewMemoryGuard(), Recorder: audit.NewMemoryRecorder(10), Logger: logging.NewNop()}
}

func TestVideoCreateScenario(t *testing.T) {
	fb, client := newFakeBackend(t)
	fb.on("GET", "youtube", 200, `{"success":true,"data":[]}`)
	fb.on("GET", "youtube", 200, `{"success":true,"data":[{"id":"v1","title":"Intro","description":"Basics","link":"https://youtu.be/x"}]}`)
	fb.on("POST", "youtube", 201, `{"success":true}`)

	deps := testDeps(client)
	s := NewVideoScreen(deps)
	ctx := audit.WithActor(context.Background(), "admin@mechanicbano.in")
	n := newNotifier()

	require.True(t, s.Refresh(ctx, n))
	assert.Empty(t, s.Items())
	fb.Reset()

	ok := s.Create(ctx, n, models.Video{Title: "Intro", Description: "Basics", Link: "https://youtu.be/x"})
	require.True(t, ok)

	calls := fb.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "POST youtube", calls[0].String())
	assert.Equal(t, "Intro", calls[0].Body["title"])
	assert.Equal(t, "Basics", calls[0].Body["description"])
	assert.Equal(t, "https://youtu.be/x", calls[0].Body["link"])
	assert.NotContains(t, calls[0].Body, "id")
	assert.Equal(t, "GET youtube", calls[1].String(), "list is refetched after create")

	toast := lastToast(t, n)
	assert.Equal(t, notify.KindSuccess, toast.Kind)
	assert.Equal(t, "Video created successfully", toast.Message)

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, models.ID("v1"), items[0].ID)

	entries, err := deps.Recorder.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "admin@mechanicbano.in", entries[0].Actor)
	assert.Equal(t, "create", entries[0].Action)
}

func TestVideoValidationSendsNothing(t *testing.T) {
	fb, client := newFakeBackend(t)
	s := NewVideoScreen(testDeps(client))
	n := newNotifier()

	tests := []struct {
		video models.Video
		want  string
	}{
		{models.Video{Description: "d", Link: "https://youtu.be/x"}, "Title is required"},
		{models.Video{Title: "t", Link: "https://youtu.be/x"}, "Description is required"},
		{models.Video{Title: "t", Description: "d"}, "Link is required"},
		{models.Video{Title: "t", Description: "d", Link: "not a link"}, "Please enter a valid link"},
	}
	for _, tt := range tests {
		assert.False(t, s.Create(context.Background(), n, tt.video))
		toast := lastToast(t, n)
		assert.Equal(t, notify.KindError, toast.Kind)
		assert.Equal(t, tt.want, toast.Message)
	}
	assert.Empty(t, fb.Calls())
}

func TestPDFListUnexpectedFormat(t *testing.T) {
	for _, body := range []string{`{"success":false}`, `{"foo":1}`, `"nope"`} {
		t.Run(body, func(t *testing.T) {
			fb, client := newFakeBackend(t)
			fb.on("GET", "general", 200, `{"success":true,"data":[{"id":1,"title":"Manual","originalLink":"https://x/a.pdf","category":"free","price":0}]}`)
			fb.on("GET", "general", 200, body)

			s := NewPDFScreen(testDeps(client), nil, nil)
			n := newNotifier()

			require.True(t, s.Refresh(context.Background(), n))
			require.Len(t, s.Items(), 1)

			assert.False(t, s.Refresh(context.Background(), n))
			assert.Empty(t, s.Items(), "unrecognized shape empties the list")

			toast := lastToast(t, n)
			assert.Equal(t, notify.KindError, toast.Kind)
			assert.Equal(t, apiclient.MessageUnexpectedFormat, toast.Message)

			calls := fb.Calls()
			assert.Equal(t, "pdf", calls[len(calls)-1].Type)
		})
	}
}

func TestPDFLegacyBareList(t *testing.T) {
	fb, client := newFakeBackend(t)
	fb.on("GET", "general", 200, `[{"id":"p1","title":"Manual","category":"premium","price":"49.50"}]`)

	s := NewPDFScreen(testDeps(client), nil, nil)
	require.True(t, s.Refresh(context.Background(), newNotifier()))

	items := s.Items()
	require.Len(t, items, 1)
	assert.True(t, items[0].IsPremium())
	assert.Equal(t, "49.5", items[0].Price.String())
}

func TestPDFValidation(t *testing.T) {
	fb, client := newFakeBackend(t)
	s := NewPDFScreen(testDeps(client), nil, nil)
	n := newNotifier()

	premium := models.PDF{Title: "Wiring", OriginalLink: "https://x/w.pdf", Category: models.PDFCategoryPremium}
	assert.False(t, s.Create(context.Background(), n, premium))
	assert.Equal(t, "Premium PDFs need a price greater than 0", lastToast(t, n).Message)
	assert.Empty(t, fb.Calls())

	free := models.PDF{Title: "Basics", OriginalLink: "https://x/b.pdf", Category: models.PDFCategoryFree}
	free.Price = free.Price.Add(dec(t, "99"))
	require.True(t, s.Create(context.Background(), n, free))

	calls := fb.Calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, "POST general?type=pdf", calls[0].String())
	assert.Equal(t, "0", calls[0].Body["price"], "free documents are sent with a zero price")
}

func TestMutationFailureKeepsList(t *testing.T) {
	fb, client := newFakeBackend(t)
	fb.on("GET", "subscription-plans", 200, `{"success":true,"data":[{"id":"1","title":"Monthly","price":"199","days":30}]}`)
	fb.on("PUT", "subscription-plans", 400, `{"message":"Plan title already exists"}`)

	s := NewPlanScreen(testDeps(client))
	n := newNotifier()
	require.True(t, s.Refresh(context.Background(), n))
	fb.Reset()

	plan := s.Items()[0]
	plan.Title = "Yearly"
	assert.False(t, s.Update(context.Background(), n, plan.ID, plan))

	toast := lastToast(t, n)
	assert.Equal(t, notify.KindError, toast.Kind)
	assert.Equal(t, "Plan title already exists", toast.Message)

	calls := fb.Calls()
	require.Len(t, calls, 1, "no refetch after a failure")
	assert.Equal(t, "1", calls[0].ID)
	assert.Equal(t, "Monthly", s.Items()[0].Title)
	assert.False(t, s.Processing(context.Background()), "processing is cleared after failure")
}

func TestMutationNetworkFailure(t *testing.T) {
	client := apiclient.New(config.BackendConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, logging.NewNop())
	s := NewVideoScreen(testDeps(client))
	n := newNotifier()

	assert.False(t, s.Delete(context.Background(), n, "v1", true))
	assert.Equal(t, apiclient.MessageNetwork, lastToast(t, n).Message)
}

func TestPlanValidation(t *testing.T) {
	_, client := newFakeBackend(t)
	s := NewPlanScreen(testDeps(client))
	n := newNotifier()

	plan := models.Plan{Title: "Monthly", Price: dec(t, "199"), Days: 30, Discount: dec(t, "150")}
	assert.False(t, s.Create(context.Background(), n, plan))
	assert.Equal(t, "Discount must be between 0 and 100", lastToast(t, n).Message)

	plan.Days = 0
	plan.Discount = dec(t, "10")
	assert.False(t, s.Create(context.Background(), n, plan))
	assert.Equal(t, "Duration must be at least one day", lastToast(t, n).Message)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	fb, client := newFakeBackend(t)
	s := NewVideoScreen(testDeps(client))
	n := newNotifier()

	assert.False(t, s.Delete(context.Background(), n, "v1", false))
	toast := lastToast(t, n)
	assert.Equal(t, notify.KindWarning, toast.Kind)
	assert.Equal(t, MessageConfirmDelete, toast.Message)
	assert.Empty(t, fb.Calls())

	require.True(t, s.Delete(context.Background(), n, "v1", true))
	calls := fb.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "DELETE youtube&id=v1", calls[0].String())
	assert.Equal(t, "Video deleted successfully", lastToast(t, n).Message)
}

func TestConcurrentMutationRejected(t *testing.T) {
	fb, client := newFakeBackend(t)
	deps := testDeps(client)
	s := NewVideoScreen(deps)
	n := newNotifier()

	release, err := deps.Guard.Acquire(context.Background(), "videos")
	require.NoError(t, err)

	assert.True(t, s.View(context.Background(), PageRequest{Page: 1}).Processing)
	assert.False(t, s.Create(context.Background(), n, models.Video{Title: "t", Description: "d", Link: "https://youtu.be/x"}))
	toast := lastToast(t, n)
	assert.Equal(t, notify.KindWarning, toast.Kind)
	assert.Equal(t, MessageBusy, toast.Message)
	assert.Empty(t, fb.Calls())

	release()
	assert.False(t, s.View(context.Background(), PageRequest{Page: 1}).Processing)
}

func TestViewPaginatesAndFilters(t *testing.T) {
	fb, client := newFakeBackend(t)
	var videos []string
	for i := 1; i <= 12; i++ {
		title := "Lesson"
		if i%4 == 0 {
			title = "Brake repair"
		}
		videos = append(videos, `{"id":"`+string(rune('a'+i))+`","title":"`+title+`","description":"d","link":"https://youtu.be/x"}`)
	}
	fb.on("GET", "youtube", 200, `{"success":true,"data":[`+strings.Join(videos, ",")+`]}`)

	s := NewVideoScreen(testDeps(client))
	require.True(t, s.Refresh(context.Background(), newNotifier()))

	view := s.View(context.Background(), PageRequest{Page: 3, PageSize: 5})
	assert.Len(t, view.Items, 2)
	assert.Equal(t, 3, view.Pagination.TotalPages)
	assert.Equal(t, []int{1, 2, 3}, view.Pagination.Pages)
	assert.False(t, view.Pagination.HasNext)
	assert.Len(t, view.Actions, 2)

	view = s.View(context.Background(), PageRequest{Page: 1, PageSize: 5, Query: "BRAKE"})
	assert.Len(t, view.Items, 3)
	assert.Equal(t, 1, view.Pagination.TotalPages)
}

func TestViewNavigation(t *testing.T) {
	fb, client := newFakeBackend(t)
	var videos []string
	for i := 1; i <= 23; i++ {
		videos = append(videos, fmt.Sprintf(`{"id":"v%d","title":"Lesson","description":"d","link":"https://youtu.be/x"}`, i))
	}
	fb.on("GET", "youtube", 200, `{"success":true,"data":[`+strings.Join(videos, ",")+`]}`)

	s := NewVideoScreen(testDeps(client))
	require.True(t, s.Refresh(context.Background(), newNotifier()))
	ctx := context.Background()

	tests := []struct {
		name string
		req  PageRequest
		want int
	}{
		{"goto", PageRequest{Page: 2, PageSize: 10}, 2},
		{"past the end", PageRequest{Page: 9, PageSize: 10}, 3},
		{"next", PageRequest{Page: 2, PageSize: 10, Nav: NavNext}, 3},
		{"next on last page", PageRequest{Page: 3, PageSize: 10, Nav: NavNext}, 3},
		{"prev", PageRequest{Page: 2, PageSize: 10, Nav: NavPrev}, 1},
		{"first", PageRequest{Page: 3, PageSize: 10, Nav: NavFirst}, 1},
		{"last", PageRequest{Page: 1, PageSize: 5, Nav: NavLast}, 5},
		{"page size changed", PageRequest{Page: 3, PageSize: 10, PrevPageSize: 5}, 1},
		{"page size unchanged", PageRequest{Page: 3, PageSize: 10, PrevPageSize: 10}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.View(ctx, tt.req).Pagination.Current)
		})
	}
}

func TestActDispatchesThroughMenu(t *testing.T) {
	fb, client := newFakeBackend(t)
	fb.on("GET", "youtube", 200, `{"success":true,"data":[{"id":"v1","title":"Intro","description":"d","link":"https://youtu.be/x"}]}`)
	deps := testDeps(client)
	s := NewVideoScreen(deps)
	n := newNotifier()
	ctx := context.Background()
	require.True(t, s.Refresh(ctx, n))

	assert.False(t, s.Act(ctx, n, "v1", "edit", false))
	assert.Equal(t, MessageActionForbidden, lastToast(t, n).Message)

	release, err := deps.Guard.Acquire(ctx, "videos")
	require.NoError(t, err)
	assert.False(t, s.Act(ctx, n, "v1", "delete", true))
	assert.Equal(t, MessageBusy, lastToast(t, n).Message)
	release()

	fb.Reset()
	assert.True(t, s.Act(ctx, n, "v1", "delete", true))
	assert.Equal(t, "DELETE youtube&id=v1", fb.Calls()[0].String())
}

func TestRedisGuard(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	c, err := cache.NewCache(mr.Host(), mr.Server().Addr().Port, "", 0)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	g := NewRedisGuard(c, time.Minute, logging.NewNop())

	release, err := g.Acquire(ctx, "pending")
	require.NoError(t, err)
	assert.True(t, g.Busy(ctx, "pending"))

	_, err = g.Acquire(ctx, "pending")
	assert.ErrorIs(t, err, ErrProcessing)

	// other screens are independent
	releaseVideos, err := g.Acquire(ctx, "videos")
	require.NoError(t, err)
	releaseVideos()

	release()
	release()
	assert.False(t, g.Busy(ctx, "pending"))
}

func TestMemoryGuardReleaseOnce(t *testing.T) {
	g := NewMemoryGuard()
	ctx := context.Background()

	first, err := g.Acquire(ctx, "plans")
	require.NoError(t, err)
	first()

	second, err := g.Acquire(ctx, "plans")
	require.NoError(t, err)

	first() // a stale release must not free the new holder
	assert.True(t, g.Busy(ctx, "plans"))
	second()
	assert.False(t, g.Busy(ctx, "plans"))
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// heldList serves canned video lists; the first List call waits for release
type heldList struct {
	Backend

	mu      sync.Mutex
	calls   int
	entered chan struct{}
	release chan struct{}
	lists   [][]models.Video
}

func (h *heldList) List(ctx context.Context, path string, query url.Values, out interface{}) error {
	h.mu.Lock()
	i := h.calls
	h.calls++
	h.mu.Unlock()

	if i == 0 {
		close(h.entered)
		<-h.release
	}
	*out.(*[]models.Video) = h.lists[i]
	return nil
}

func TestRefreshLatestWins(t *testing.T) {
	held := &heldList{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		lists: [][]models.Video{
			{{ID: "old", Title: "Old"}},
			{{ID: "new", Title: "New"}},
		},
	}
	s := NewVideoScreen(testDeps(held))
	n := newNotifier()
	ctx := context.Background()

	done := make(chan bool)
	go func() { done <- s.Refresh(ctx, n) }()
	<-held.entered

	require.True(t, s.Refresh(ctx, n))
	close(held.release)
	assert.True(t, <-done)

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, models.ID("new"), items[0].ID, "the older fetch must not overwrite the newer list")
}
