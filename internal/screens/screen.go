// Package screens implements the resource management screens of the
// console. Each screen fetches one backend resource, submits mutations,
// refetches after every success and reports the outcome as toasts.
package screens

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/mechanicbano/admin/internal/apiclient"
	"github.com/mechanicbano/admin/internal/audit"
	"github.com/mechanicbano/admin/internal/logging"
	"github.com/mechanicbano/admin/internal/metrics"
	"github.com/mechanicbano/admin/internal/notify"
	"github.com/mechanicbano/admin/internal/overlay"
	"github.com/mechanicbano/admin/internal/pagination"
	"github.com/mechanicbano/admin/internal/tracing"
	"github.com/mechanicbano/admin/pkg/models"
)

// Messages shared by all screens
const (
	MessageBusy            = "Please wait for the current action to finish"
	MessageConfirmDelete   = "Please confirm the deletion"
	MessageActionForbidden = "This action is not available"
)

// Backend is the part of the REST client the screens use
type Backend interface {
	List(ctx context.Context, path string, query url.Values, out interface{}) error
	Object(ctx context.Context, path string, query url.Values, out interface{}) error
	Post(ctx context.Context, path string, query url.Values, body interface{}) ([]byte, error)
	Put(ctx context.Context, path string, query url.Values, body interface{}) ([]byte, error)
	Delete(ctx context.Context, path string, query url.Values) ([]byte, error)
}

// Deps are the collaborators every screen needs
type Deps struct {
	Backend  Backend
	Guard    Guard
	Recorder audit.Recorder
	Logger   *logging.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Guard == nil {
		d.Guard = NewMemoryGuard()
	}
	if d.Recorder == nil {
		d.Recorder = audit.NopRecorder{}
	}
	if d.Logger == nil {
		d.Logger = logging.NewNop()
	}
	return d
}

// Mutation is one mutating backend call made on behalf of staff
type Mutation struct {
	Action  string
	Target  string
	Run     func(ctx context.Context) error
	Success string
	Failure string
}

// runner holds the processing flag of one screen and reports mutation outcomes
type runner struct {
	name string
	deps Deps
}

// mutate runs m under the screen's guard. On success it records the audit
// entry, shows the success toast and calls after (the refetch).
func (r *runner) mutate(ctx context.Context, n *notify.Notifier, m Mutation, after func(ctx context.Context)) bool {
	release, err := r.deps.Guard.Acquire(ctx, r.name)
	if err != nil {
		if errors.Is(err, ErrProcessing) {
			n.Warning(MessageBusy)
		} else {
			n.FromError(err, m.Failure)
		}
		return false
	}
	defer release()

	span, ctx := tracing.StartSpan(ctx, r.name+" "+m.Action)
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "screen.target", m.Target)

	logger := r.deps.Logger.WithScreen(r.name).WithField("action", m.Action)
	if err := m.Run(ctx); err != nil {
		tracing.LogError(span, err)
		logger.WithError(err).Warn("Screen action failed")
		metrics.RecordMutation(r.name, m.Action, false)
		n.FromError(err, m.Failure)
		return false
	}

	metrics.RecordMutation(r.name, m.Action, true)
	if err := r.deps.Recorder.Record(ctx, audit.NewEntry(ctx, r.name, m.Action, m.Target)); err != nil {
		logger.WithError(err).Warn("Failed to record audit entry")
	}
	logger.WithField("target", m.Target).Info("Screen action succeeded")

	n.Success(m.Success)
	if after != nil {
		after(ctx)
	}
	return true
}

func (r *runner) busy(ctx context.Context) bool {
	return r.deps.Guard.Busy(ctx, r.name)
}

// Resource describes one list resource of the backend
type Resource[T any] struct {
	Name   string // screen name used for locks, metrics and audit
	Path   string // backend path
	Type   string // value of the type query parameter, if the path needs one
	Noun   string // singular, capitalized: "Video"
	Plural string // lower case: "videos"

	ID       func(T) models.ID
	Validate func(*T) error
	Fields   func(T) []string       // searchable text
	Actions  func(T) []overlay.Item // row menu entries
}

// Query returns the query string for the collection or, with id, one item
func (r Resource[T]) Query(id models.ID) url.Values {
	q := url.Values{}
	if r.Type != "" {
		q.Set("type", r.Type)
	}
	if !id.IsZero() {
		q.Set("id", id.String())
	}
	return q
}

// Page navigation requested with a list view
const (
	NavFirst = "first"
	NavPrev  = "prev"
	NavNext  = "next"
	NavLast  = "last"
)

// PageRequest selects the visible part of a list. PrevPageSize is the size
// the client showed before; a different PageSize starts over at page 1.
type PageRequest struct {
	Page         int
	PageSize     int
	PrevPageSize int
	Nav          string
	Query        string
}

// paginator replays req over total items
func (req PageRequest) paginator(total int) *pagination.Paginator {
	p := pagination.NewPaginator(req.PageSize)
	if req.PrevPageSize > 0 && req.PrevPageSize != p.PageSize {
		p.SetPageSize(p.PageSize)
		return p
	}
	if !p.GoTo(req.Page, total) && req.Page > 1 {
		p.Last(total)
	}
	switch req.Nav {
	case NavFirst:
		p.First()
	case NavPrev:
		p.Prev()
	case NavNext:
		p.Next(total)
	case NavLast:
		p.Last(total)
	}
	return p
}

// View is what a list screen renders
type View[T any] struct {
	Items      []T                       `json:"items"`
	Pagination pagination.Window         `json:"pagination"`
	Processing bool                      `json:"processing"`
	Actions    map[string][]overlay.Item `json:"actions,omitempty"`
}

// Screen manages one list resource
type Screen[T any] struct {
	runner
	res         Resource[T]
	afterChange func(ctx context.Context) error

	mu    sync.RWMutex
	items []T
	// started numbers each fetch; applied is the newest one whose result landed
	started uint64
	applied uint64
}

// NewScreen creates a list screen
func NewScreen[T any](res Resource[T], deps Deps) *Screen[T] {
	return &Screen[T]{
		runner: runner{name: res.Name, deps: deps.withDefaults()},
		res:    res,
		items:  []T{},
	}
}

// Name returns the screen name
func (s *Screen[T]) Name() string { return s.res.Name }

// OnChange registers fn to run after every successful mutation
func (s *Screen[T]) OnChange(fn func(ctx context.Context) error) {
	s.afterChange = fn
}

// Refresh refetches the list. An unrecognized response shape empties the
// list; other failures keep the previous one. When fetches overlap, the one
// started last wins and older results are dropped without a toast.
func (s *Screen[T]) Refresh(ctx context.Context, n *notify.Notifier) bool {
	s.mu.Lock()
	s.started++
	seq := s.started
	s.mu.Unlock()

	var items []T
	err := s.deps.Backend.List(ctx, s.res.Path, s.res.Query(""), &items)
	if err != nil {
		if errors.Is(err, apiclient.ErrUnexpectedFormat) {
			if !s.setItems(seq, nil) {
				return false
			}
		} else if s.stale(seq) {
			return false
		}
		n.FromError(err, fmt.Sprintf("Failed to load %s", s.res.Plural))
		return false
	}

	if !s.setItems(seq, items) {
		s.deps.Logger.WithScreen(s.res.Name).WithField("seq", seq).Debug("Dropped stale list")
	}
	return true
}

// setItems stores the result of fetch seq unless a newer fetch already
// landed. It reports whether the items were stored.
func (s *Screen[T]) setItems(seq uint64, items []T) bool {
	if items == nil {
		items = []T{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.applied {
		return false
	}
	s.applied = seq
	s.items = items
	return true
}

func (s *Screen[T]) stale(seq uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return seq < s.applied
}

// Items returns the last fetched list
func (s *Screen[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// Find looks id up in the last fetched list
func (s *Screen[T]) Find(id models.ID) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if s.res.ID(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// lookup finds id, refetching once when it is not in the current list
func (s *Screen[T]) lookup(ctx context.Context, n *notify.Notifier, id models.ID) (T, bool) {
	if item, ok := s.Find(id); ok {
		return item, true
	}
	if s.Refresh(ctx, n) {
		if item, ok := s.Find(id); ok {
			return item, true
		}
	}
	n.Error(fmt.Sprintf("%s not found", s.res.Noun))
	var zero T
	return zero, false
}

// View filters, paginates and annotates the current list
func (s *Screen[T]) View(ctx context.Context, req PageRequest) View[T] {
	items := s.Items()
	if s.res.Fields != nil {
		items = pagination.Filter(items, req.Query, s.res.Fields)
	}

	window := req.paginator(len(items)).Window(len(items))
	visible := pagination.Slice(items, window)

	view := View[T]{
		Items:      visible,
		Pagination: window,
		Processing: s.busy(ctx),
	}
	if s.res.Actions != nil && s.res.ID != nil {
		view.Actions = make(map[string][]overlay.Item, len(visible))
		for _, item := range visible {
			view.Actions[s.res.ID(item).String()] = s.res.Actions(item)
		}
	}
	return view
}

// Processing reports whether a mutation is in flight
func (s *Screen[T]) Processing(ctx context.Context) bool {
	return s.busy(ctx)
}

// Mutate runs m and refetches the list on success
func (s *Screen[T]) Mutate(ctx context.Context, n *notify.Notifier, m Mutation) bool {
	return s.mutate(ctx, n, m, func(ctx context.Context) {
		s.Refresh(ctx, n)
		if s.afterChange != nil {
			if err := s.afterChange(ctx); err != nil {
				s.deps.Logger.WithScreen(s.res.Name).WithError(err).Warn("Post-change hook failed")
			}
		}
	})
}

func (s *Screen[T]) validate(n *notify.Notifier, payload *T) bool {
	if s.res.Validate == nil {
		return true
	}
	if err := s.res.Validate(payload); err != nil {
		n.FromError(err, fmt.Sprintf("Invalid %s", s.res.Noun))
		return false
	}
	return true
}

// Create posts a new item
func (s *Screen[T]) Create(ctx context.Context, n *notify.Notifier, payload T) bool {
	if !s.validate(n, &payload) {
		return false
	}
	return s.Mutate(ctx, n, Mutation{
		Action: "create",
		Run: func(ctx context.Context) error {
			_, err := s.deps.Backend.Post(ctx, s.res.Path, s.res.Query(""), payload)
			return err
		},
		Success: fmt.Sprintf("%s created successfully", s.res.Noun),
		Failure: fmt.Sprintf("Failed to create %s", strings.ToLower(s.res.Noun)),
	})
}

// Update replaces the item with id
func (s *Screen[T]) Update(ctx context.Context, n *notify.Notifier, id models.ID, payload T) bool {
	if !s.validate(n, &payload) {
		return false
	}
	return s.Mutate(ctx, n, Mutation{
		Action: "update",
		Target: id.String(),
		Run: func(ctx context.Context) error {
			_, err := s.deps.Backend.Put(ctx, s.res.Path, s.res.Query(id), payload)
			return err
		},
		Success: fmt.Sprintf("%s updated successfully", s.res.Noun),
		Failure: fmt.Sprintf("Failed to update %s", strings.ToLower(s.res.Noun)),
	})
}

// Delete removes the item with id. Nothing is sent unless confirmed.
func (s *Screen[T]) Delete(ctx context.Context, n *notify.Notifier, id models.ID, confirmed bool) bool {
	if !confirmed {
		n.Warning(MessageConfirmDelete)
		return false
	}
	return s.Mutate(ctx, n, Mutation{
		Action: "delete",
		Target: id.String(),
		Run: func(ctx context.Context) error {
			_, err := s.deps.Backend.Delete(ctx, s.res.Path, s.res.Query(id))
			return err
		},
		Success: fmt.Sprintf("%s deleted successfully", s.res.Noun),
		Failure: fmt.Sprintf("Failed to delete %s", strings.ToLower(s.res.Noun)),
	})
}

// Act runs a row menu action. List screens only dispatch delete; editing
// happens through Update.
func (s *Screen[T]) Act(ctx context.Context, n *notify.Notifier, id models.ID, action string, confirmed bool) bool {
	item, ok := s.lookup(ctx, n, id)
	if !ok {
		return false
	}
	return s.choose(ctx, n, item, action, map[string]func() bool{
		"delete": func() bool { return s.Delete(ctx, n, id, confirmed) },
	})
}

// choose builds the row menu for item and picks action from it
func (s *Screen[T]) choose(ctx context.Context, n *notify.Notifier, item T, action string, handlers map[string]func() bool) bool {
	var entries []overlay.Item
	if s.res.Actions != nil {
		entries = s.res.Actions(item)
	}
	return chooseAction(n, entries, handlers, action, s.busy(ctx))
}

// chooseAction runs the handler of action through a row menu. Entries
// without a handler, and handlers without an entry, are not selectable.
func chooseAction(n *notify.Notifier, entries []overlay.Item, handlers map[string]func() bool, action string, processing bool) bool {
	result := false
	items := make([]overlay.Item, 0, len(entries))
	for _, entry := range entries {
		handler, ok := handlers[entry.ID]
		if !ok {
			continue
		}
		entry.Action = func() { result = handler() }
		items = append(items, entry)
	}

	menu := overlay.NewMenu(items)
	menu.SetProcessing(processing)
	if err := menu.Choose(action); err != nil {
		if errors.Is(err, overlay.ErrProcessing) {
			n.Warning(MessageBusy)
		} else {
			n.Warning(MessageActionForbidden)
		}
		return false
	}
	return result
}

// editDelete is the row menu of plain CRUD screens
func editDelete[T any](T) []overlay.Item {
	return []overlay.Item{
		{ID: "edit", Label: "Edit"},
		{ID: "delete", Label: "Delete", Danger: true},
	}
}
