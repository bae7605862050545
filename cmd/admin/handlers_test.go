package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mechanicbano/admin/internal/apiclient"
	"github.com/mechanicbano/admin/internal/audit"
	"github.com/mechanicbano/admin/internal/auth"
	"github.com/mechanicbano/admin/internal/config"
	"github.com/mechanicbano/admin/internal/logging"
	"github.com/mechanicbano/admin/internal/middleware"
	"github.com/mechanicbano/admin/internal/notify"
	"github.com/mechanicbano/admin/internal/pdfview"
	"github.com/mechanicbano/admin/internal/screens"
	"github.com/mechanicbano/admin/internal/storage"
)

const testAdmin = "owner@mechanicbano.in"

// backend is a fake REST API keyed by "METHOD path?query"
type backend struct {
	mu      sync.Mutex
	calls   []string
	bodies  []string
	replies map[string]string
}

func (b *backend) on(key, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replies[key] = body
}

func (b *backend) serve(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + strings.TrimPrefix(r.URL.Path, "/")
	if r.URL.RawQuery != "" {
		key += "?" + r.URL.RawQuery
	}
	data, _ := io.ReadAll(r.Body)

	b.mu.Lock()
	b.calls = append(b.calls, key)
	b.bodies = append(b.bodies, string(data))
	body, ok := b.replies[key]
	b.mu.Unlock()

	if !ok {
		body = `{"success":true}`
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}

func (b *backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
	b.bodies = nil
}

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, kind, filename, contentType string, r io.Reader, size int64) (string, error) {
	args := m.Called(ctx, kind, filename, contentType, r, size)
	return args.String(0), args.Error(1)
}

type fakeDocument struct{}

func (fakeDocument) NumPages() int { return 3 }

func (fakeDocument) Render(ctx context.Context, page int, scale float64) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, int(10*scale), int(10*scale)))
	img.Set(0, 0, color.Black)
	return img, nil
}

func (fakeDocument) Close() error { return nil }

type fakeLoader struct{}

func (fakeLoader) Load(ctx context.Context, url string) (pdfview.Document, error) {
	if strings.HasSuffix(url, "missing.pdf") {
		return nil, &apiclient.StatusError{StatusCode: http.StatusNotFound}
	}
	return fakeDocument{}, nil
}

type testEnv struct {
	router   *gin.Engine
	backend  *backend
	api      *API
	uploader *MockUploader
	recorder *audit.MemoryRecorder
	token    string
}

func setupTest(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fb := &backend{replies: map[string]string{}}
	server := httptest.NewServer(http.HandlerFunc(fb.serve))
	t.Cleanup(server.Close)

	logger := logging.NewNop()
	client := apiclient.New(config.BackendConfig{BaseURL: server.URL, Timeout: 5 * time.Second}, logger)
	uploader := new(MockUploader)
	recorder := audit.NewMemoryRecorder(100)

	api := newAPI(apiDeps{
		Backend:    client,
		Uploader:   uploader,
		Validator:  storage.NewValidator(config.UploadConfig{MaxPDFBytes: 1 << 20, MaxImageBytes: 1 << 20}),
		Guard:      screens.NewMemoryGuard(),
		Recorder:   recorder,
		CacheTTL:   time.Minute,
		Loader:     fakeLoader{},
		Sources:    pdfview.NewSourcePolicy("cdn.example.com"),
		ViewerIdle: time.Minute,
		Notify:     notify.DefaultOptions(),
		Logger:     logger,
	})

	authCfg := config.AuthConfig{
		ProviderSecret: "provider-secret",
		JWTSecret:      "test-secret",
		TokenTTL:       time.Hour,
		SessionSecret:  "session-secret",
	}
	middleware.SetJWTSecret(authCfg.JWTSecret)
	token, err := middleware.GenerateToken(testAdmin, time.Hour)
	require.NoError(t, err)

	verifier, err := auth.NewVerifier(authCfg)
	require.NoError(t, err)
	authHandler := auth.NewHandler(verifier, authCfg.TokenTTL, recorder, logger)
	router := setupRouter(api, authHandler, authCfg, middleware.NewRateLimiter(1000, 1000), logger)

	return &testEnv{
		router:   router,
		backend:  fb,
		api:      api,
		uploader: uploader,
		recorder: recorder,
		token:    token,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type screenResponse struct {
	Items      []map[string]interface{} `json:"items"`
	Pagination struct {
		Current    int   `json:"current"`
		PageSize   int   `json:"pageSize"`
		TotalPages int   `json:"totalPages"`
		Pages      []int `json:"pages"`
	} `json:"pagination"`
	Processing bool                   `json:"processing"`
	OK         bool                   `json:"ok"`
	Toasts     []notify.Notification  `json:"toasts"`
	Item       map[string]interface{} `json:"item"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) screenResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp screenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRequiresSignIn(t *testing.T) {
	env := setupTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, env.backend.Calls())
}

func TestHealthCheck(t *testing.T) {
	env := setupTest(t)
	env.api.health = []healthCheck{{name: "ok", check: func(context.Context) error { return nil }}}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestCreateVideo(t *testing.T) {
	env := setupTest(t)
	env.backend.on("GET youtube", `{"success":true,"data":[{"id":"v1","title":"Brake pads","description":"How to","link":"https://youtu.be/x"}]}`)

	w := env.do(t, http.MethodPost, "/api/v1/videos", map[string]string{
		"title":       "Brake pads",
		"description": "How to",
		"link":        "https://youtu.be/x",
	})
	resp := decode(t, w)

	assert.True(t, resp.OK)
	assert.Equal(t, []string{"POST youtube", "GET youtube"}, env.backend.Calls())
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "v1", resp.Items[0]["id"])
	require.Len(t, resp.Toasts, 1)
	assert.Equal(t, notify.KindSuccess, resp.Toasts[0].Kind)
	assert.Equal(t, "Video created successfully", resp.Toasts[0].Message)
	assert.False(t, resp.Processing)

	entries, err := env.recorder.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, testAdmin, entries[0].Actor)
	assert.Equal(t, "videos", entries[0].Screen)
}

func TestCreateVideoInvalid(t *testing.T) {
	env := setupTest(t)

	resp := decode(t, env.do(t, http.MethodPost, "/api/v1/videos", map[string]string{"title": "Only title"}))

	assert.False(t, resp.OK)
	assert.Empty(t, env.backend.Calls())
	require.Len(t, resp.Toasts, 1)
	assert.Equal(t, notify.KindError, resp.Toasts[0].Kind)
}

func TestMalformedBody(t *testing.T) {
	env := setupTest(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+env.token)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListPaginates(t *testing.T) {
	env := setupTest(t)

	var sb strings.Builder
	sb.WriteString(`{"success":true,"data":[`)
	for i := 0; i < 12; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(fmt.Sprintf(`{"id":%d,"title":"Plan","price":100,"days":30}`, i+1))
	}
	sb.WriteString(`]}`)
	env.backend.on("GET subscription-plans", sb.String())

	resp := decode(t, env.do(t, http.MethodGet, "/api/v1/plans?page=2&pageSize=5", nil))

	assert.True(t, resp.OK)
	assert.Len(t, resp.Items, 5)
	assert.Equal(t, 2, resp.Pagination.Current)
	assert.Equal(t, 3, resp.Pagination.TotalPages)
	assert.Equal(t, []int{1, 2, 3}, resp.Pagination.Pages)

	resp = decode(t, env.do(t, http.MethodGet, "/api/v1/plans?page=3&pageSize=10&prevPageSize=5", nil))
	assert.Equal(t, 1, resp.Pagination.Current, "changing the page size returns to page 1")
	assert.Equal(t, 10, resp.Pagination.PageSize)

	resp = decode(t, env.do(t, http.MethodGet, "/api/v1/plans?page=2&pageSize=5&nav=next", nil))
	assert.Equal(t, 3, resp.Pagination.Current)
	assert.Len(t, resp.Items, 2)
}

func TestRowMenu(t *testing.T) {
	env := setupTest(t)
	env.backend.on("GET subscription-plans", `{"success":true,"data":[{"id":7,"title":"Gold","price":499,"days":30}]}`)

	w := env.do(t, http.MethodPost, "/api/v1/plans/7/menu", map[string]interface{}{
		"trigger": map[string]float64{"top": 40, "left": 300, "width": 24, "height": 24},
		"scroll":  map[string]float64{"x": 0, "y": 120},
		"width":   160,
		"height":  80,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Menu screens.MenuView `json:"menu"`
		OK   bool             `json:"ok"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.True(t, resp.Menu.Open)
	assert.Equal(t, 188.0, resp.Menu.Position.Top)
	assert.Equal(t, 300.0, resp.Menu.Position.Left)
	require.Len(t, resp.Menu.Items, 2)
	assert.Equal(t, "edit", resp.Menu.Items[0].ID)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	env := setupTest(t)

	resp := decode(t, env.do(t, http.MethodDelete, "/api/v1/plans/7", nil))
	assert.False(t, resp.OK)
	assert.Empty(t, env.backend.Calls())
	require.Len(t, resp.Toasts, 1)
	assert.Equal(t, screens.MessageConfirmDelete, resp.Toasts[0].Message)

	resp = decode(t, env.do(t, http.MethodDelete, "/api/v1/plans/7?confirm=true", nil))
	assert.True(t, resp.OK)
	assert.Equal(t, []string{"DELETE subscription-plans?id=7", "GET subscription-plans"}, env.backend.Calls())
}

func TestApprovePending(t *testing.T) {
	env := setupTest(t)
	env.backend.on("GET pending-subscriptions", `{"success":true,"data":[{"id":42,"email":"rider@example.com","planId":"p1","planTitle":"Gold","planPrice":499,"status":"pending"}]}`)

	resp := decode(t, env.do(t, http.MethodPost, "/api/v1/pending/42/approve", nil))

	assert.True(t, resp.OK)
	assert.Equal(t, []string{
		"GET pending-subscriptions",
		"PUT pending-subscriptions?id=42",
		"POST approve",
		"GET pending-subscriptions",
	}, env.backend.Calls())
	assert.JSONEq(t, `{"status":"approved"}`, env.backend.bodies[1])
	assert.JSONEq(t, `{"email":"rider@example.com","planId":"p1"}`, env.backend.bodies[2])
}

func TestPageControlLocked(t *testing.T) {
	env := setupTest(t)
	env.backend.on("GET general?type=pagecontrol", `{"success":true,"data":[{"id":1,"page":"pagecontrol","enabled":true},{"id":2,"page":"videos","enabled":true}]}`)

	resp := decode(t, env.do(t, http.MethodPost, "/api/v1/pagecontrol/1/toggle", nil))

	assert.False(t, resp.OK)
	for _, call := range env.backend.Calls() {
		assert.True(t, strings.HasPrefix(call, "GET "), call)
	}
	require.Len(t, resp.Toasts, 1)
	assert.Equal(t, notify.KindWarning, resp.Toasts[0].Kind)
}

func TestDisabledPageIsHidden(t *testing.T) {
	env := setupTest(t)
	env.backend.on("GET general?type=pagecontrol", `{"success":true,"data":[{"id":1,"page":"pagecontrol","enabled":true},{"id":2,"page":"videos","enabled":false}]}`)
	require.NoError(t, env.api.shell.Load(context.Background()))

	w := env.do(t, http.MethodGet, "/api/v1/videos", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/nav", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `"page":"videos"`)
	assert.Contains(t, w.Body.String(), `"page":"pagecontrol"`)
}

func TestTogglePageRefreshesNavigation(t *testing.T) {
	env := setupTest(t)
	env.backend.on("GET general?type=pagecontrol", `{"success":true,"data":[{"id":2,"page":"videos","enabled":true}]}`)

	resp := decode(t, env.do(t, http.MethodPost, "/api/v1/pagecontrol/2/toggle", nil))

	assert.True(t, resp.OK)
	assert.Contains(t, env.backend.Calls(), "PUT general?id=2&type=pagecontrol")
	assert.Equal(t, "Page disabled", resp.Toasts[0].Message)
}

func TestUploadPDF(t *testing.T) {
	env := setupTest(t)
	env.uploader.On("Upload", mock.Anything, storage.KindPDF, "manual.pdf", storage.ContentTypePDF, mock.Anything, mock.Anything).
		Return("https://cdn.example.com/pdfs/manual.pdf", nil)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", "manual.pdf")
	require.NoError(t, err)
	part.Write([]byte("%PDF-1.4\n%fake\n"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pdfs/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+env.token)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"link":"https://cdn.example.com/pdfs/manual.pdf"`)
	env.uploader.AssertExpectations(t)
}

func TestUploadWithoutFile(t *testing.T) {
	env := setupTest(t)

	resp := decode(t, env.do(t, http.MethodPost, "/api/v1/upi/qr", nil))

	assert.False(t, resp.OK)
	require.NotEmpty(t, resp.Toasts)
	assert.Equal(t, "Please choose a file to upload", resp.Toasts[0].Message)
	env.uploader.AssertNotCalled(t, "Upload")
}

func TestSettingsSave(t *testing.T) {
	env := setupTest(t)
	env.backend.on("GET welcome", `{"success":true,"data":{"title":"Hi","message":"**Welcome**"}}`)

	resp := decode(t, env.do(t, http.MethodPut, "/api/v1/welcome", map[string]string{"title": "Hi", "message": "**Welcome**"}))

	assert.True(t, resp.OK)
	assert.Equal(t, []string{"PUT welcome", "GET welcome"}, env.backend.Calls())
	assert.Equal(t, "Hi", resp.Item["title"])
}

func TestWelcomePreview(t *testing.T) {
	env := setupTest(t)

	w := env.do(t, http.MethodPost, "/api/v1/welcome/preview", map[string]string{"message": "**bold**"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		OK   bool   `json:"ok"`
		HTML string `json:"html"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Contains(t, resp.HTML, "<strong>bold</strong>")
}

func TestViewerLifecycle(t *testing.T) {
	env := setupTest(t)

	w := env.do(t, http.MethodPost, "/api/v1/viewers", map[string]string{"url": "https://cdn.example.com/manual.pdf"})
	require.Equal(t, http.StatusOK, w.Code)

	var opened struct {
		Viewer pdfview.Snapshot `json:"viewer"`
		OK     bool             `json:"ok"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &opened))
	require.True(t, opened.OK)
	assert.Equal(t, pdfview.StateReady, opened.Viewer.State)
	assert.Equal(t, 3, opened.Viewer.TotalPages)
	id := opened.Viewer.ID

	w = env.do(t, http.MethodPost, "/api/v1/viewers/"+id+"/page", map[string]interface{}{"action": "goto", "page": 3})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"page":3`)

	w = env.do(t, http.MethodPost, "/api/v1/viewers/"+id+"/zoom", map[string]string{"action": "in"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"scale":1.25`)

	w = env.do(t, http.MethodGet, "/api/v1/viewers/"+id+"/page.png", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = env.do(t, http.MethodPost, "/api/v1/viewers/"+id+"/zoom", map[string]string{"action": "sideways"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/viewers/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/viewers/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestViewerLoadFailure(t *testing.T) {
	env := setupTest(t)

	w := env.do(t, http.MethodPost, "/api/v1/viewers", map[string]string{"url": "https://cdn.example.com/missing.pdf"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"error"`)
	assert.Contains(t, w.Body.String(), pdfview.MessageLoadFailed)
}

func TestViewerRefusesForeignHost(t *testing.T) {
	env := setupTest(t)

	for _, link := range []string{
		"http://169.254.169.254/latest/meta-data/",
		"http://localhost:6379/",
		"file:///etc/passwd",
	} {
		w := env.do(t, http.MethodPost, "/api/v1/viewers", map[string]string{"url": link})
		assert.Equal(t, http.StatusBadRequest, w.Code, link)
	}
	assert.Equal(t, 0, env.api.viewers.Len())
}

func TestAuditTrail(t *testing.T) {
	env := setupTest(t)
	ctx := audit.WithActor(context.Background(), testAdmin)
	require.NoError(t, env.recorder.Record(ctx, audit.NewEntry(ctx, "plans", "create", "Gold")))

	w := env.do(t, http.MethodGet, "/api/v1/audit?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"action":"create"`)

	w = env.do(t, http.MethodGet, "/api/v1/audit?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
