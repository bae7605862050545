// Package notify collects the toast notifications a screen shows after an action.
package notify

import (
	"sync"
	"time"

	"github.com/mechanicbano/admin/internal/apiclient"
	"github.com/mechanicbano/admin/internal/logging"
	"github.com/mechanicbano/admin/internal/metrics"
)

// Kind is the visual style of a notification
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindInfo    Kind = "info"
)

// GenericError is shown when an error carries no usable message
const GenericError = "Something went wrong. Please try again."

// Notification is a single toast
type Notification struct {
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	AutoClose int64     `json:"autoCloseMs"`
	Position  string    `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
}

// Options are the styling defaults applied to every toast
type Options struct {
	AutoClose time.Duration
	Position  string
}

// DefaultOptions mirrors the console's standard toast styling
func DefaultOptions() Options {
	return Options{
		AutoClose: 3 * time.Second,
		Position:  "top-right",
	}
}

// Notifier accumulates toasts for one request
type Notifier struct {
	opts   Options
	logger *logging.Logger

	mu     sync.Mutex
	toasts []Notification
}

// New creates a notifier; zero option fields fall back to the defaults
func New(opts Options, logger *logging.Logger) *Notifier {
	def := DefaultOptions()
	if opts.AutoClose <= 0 {
		opts.AutoClose = def.AutoClose
	}
	if opts.Position == "" {
		opts.Position = def.Position
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Notifier{opts: opts, logger: logger}
}

// Success shows a success toast
func (n *Notifier) Success(msg string) { n.add(KindSuccess, msg) }

// Error shows an error toast
func (n *Notifier) Error(msg string) { n.add(KindError, msg) }

// Warning shows a warning toast
func (n *Notifier) Warning(msg string) { n.add(KindWarning, msg) }

// Info shows an informational toast
func (n *Notifier) Info(msg string) { n.add(KindInfo, msg) }

// FromError shows an error toast with the best message err carries
func (n *Notifier) FromError(err error, fallback string) {
	if fallback == "" {
		fallback = GenericError
	}
	n.Error(apiclient.ErrorMessage(err, fallback))
}

// Toasts returns a copy of the notifications collected so far
func (n *Notifier) Toasts() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]Notification, len(n.toasts))
	copy(out, n.toasts)
	return out
}

// Last returns the most recent notification
func (n *Notifier) Last() (Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.toasts) == 0 {
		return Notification{}, false
	}
	return n.toasts[len(n.toasts)-1], true
}

func (n *Notifier) add(kind Kind, msg string) {
	toast := Notification{
		Kind:      kind,
		Message:   msg,
		AutoClose: n.opts.AutoClose.Milliseconds(),
		Position:  n.opts.Position,
		CreatedAt: time.Now(),
	}

	n.mu.Lock()
	n.toasts = append(n.toasts, toast)
	n.mu.Unlock()

	n.logger.LogNotification(string(kind), msg)
	metrics.RecordNotification(string(kind))
}
