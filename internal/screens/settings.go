package screens

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/mechanicbano/admin/internal/apiclient"
	"github.com/mechanicbano/admin/internal/notify"
	"github.com/mechanicbano/admin/internal/storage"
	"github.com/mechanicbano/admin/pkg/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// logoPath receives the uploaded site logo URL
const logoPath = "logo"

// Setting describes a singleton backend resource
type Setting[T any] struct {
	Name     string
	Path     string
	Type     string
	Noun     string
	Validate func(*T) error
}

// Single manages one singleton setting
type Single[T any] struct {
	runner
	res Setting[T]

	mu    sync.RWMutex
	value T
}

// NewSingle creates a singleton screen
func NewSingle[T any](res Setting[T], deps Deps) *Single[T] {
	return &Single[T]{
		runner: runner{name: res.Name, deps: deps.withDefaults()},
		res:    res,
	}
}

// Name returns the screen name
func (s *Single[T]) Name() string { return s.res.Name }

func (s *Single[T]) query() url.Values {
	if s.res.Type == "" {
		return nil
	}
	return url.Values{"type": {s.res.Type}}
}

// Refresh refetches the setting, keeping the previous value on failure
func (s *Single[T]) Refresh(ctx context.Context, n *notify.Notifier) bool {
	var value T
	if err := s.deps.Backend.Object(ctx, s.res.Path, s.query(), &value); err != nil {
		n.FromError(err, fmt.Sprintf("Failed to load %s", strings.ToLower(s.res.Noun)))
		return false
	}
	s.mu.Lock()
	s.value = value
	s.mu.Unlock()
	return true
}

// Value returns the last fetched setting
func (s *Single[T]) Value() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Processing reports whether a mutation is in flight
func (s *Single[T]) Processing(ctx context.Context) bool {
	return s.busy(ctx)
}

// Save replaces the setting
func (s *Single[T]) Save(ctx context.Context, n *notify.Notifier, value T) bool {
	if s.res.Validate != nil {
		if err := s.res.Validate(&value); err != nil {
			n.FromError(err, fmt.Sprintf("Invalid %s", strings.ToLower(s.res.Noun)))
			return false
		}
	}
	return s.Mutate(ctx, n, Mutation{
		Action: "update",
		Run: func(ctx context.Context) error {
			_, err := s.deps.Backend.Put(ctx, s.res.Path, s.query(), value)
			return err
		},
		Success: fmt.Sprintf("%s updated successfully", s.res.Noun),
		Failure: fmt.Sprintf("Failed to update %s", strings.ToLower(s.res.Noun)),
	})
}

// Mutate runs m and refetches the setting on success
func (s *Single[T]) Mutate(ctx context.Context, n *notify.Notifier, m Mutation) bool {
	return s.mutate(ctx, n, m, func(ctx context.Context) { s.Refresh(ctx, n) })
}

// UPIScreen manages the payment details shown to paying users
type UPIScreen struct {
	*Single[models.UPIConfig]
	uploads uploads
}

// NewUPIScreen creates the UPI screen
func NewUPIScreen(deps Deps, uploader storage.Uploader, validator *storage.Validator) *UPIScreen {
	return &UPIScreen{
		Single: NewSingle(Setting[models.UPIConfig]{
			Name:     "upi",
			Path:     "general",
			Type:     "upi",
			Noun:     "UPI details",
			Validate: validateUPI,
		}, deps),
		uploads: uploads{uploader: uploader, validator: validator},
	}
}

func validateUPI(u *models.UPIConfig) error {
	u.UPIID = strings.TrimSpace(u.UPIID)
	if u.UPIID == "" {
		return apiclient.Invalid("upiId", "UPI ID is required")
	}
	if !strings.Contains(u.UPIID, "@") {
		return apiclient.Invalid("upiId", "Please enter a valid UPI ID")
	}
	return nil
}

// UploadQR stores a new QR code image and saves it with the current UPI ID
func (s *UPIScreen) UploadQR(ctx context.Context, n *notify.Notifier, filename string, r io.Reader, size int64) bool {
	return s.Mutate(ctx, n, Mutation{
		Action: "upload-qr",
		Target: filename,
		Run: func(ctx context.Context) error {
			link, err := s.uploads.store(ctx, storage.KindQR, filename, r, size)
			if err != nil {
				return err
			}
			cfg := s.Value()
			cfg.QRCode = link
			_, err = s.deps.Backend.Put(ctx, s.res.Path, s.query(), cfg)
			return err
		},
		Success: "QR code uploaded successfully",
		Failure: "Failed to upload QR code",
	})
}

// SiteScreen manages the site name and logo
type SiteScreen struct {
	*Single[models.SiteConfig]
	uploads uploads
}

// NewSiteScreen creates the site name screen
func NewSiteScreen(deps Deps, uploader storage.Uploader, validator *storage.Validator) *SiteScreen {
	return &SiteScreen{
		Single: NewSingle(Setting[models.SiteConfig]{
			Name:     "sitename",
			Path:     "general",
			Type:     "sitename",
			Noun:     "Site name",
			Validate: validateSite,
		}, deps),
		uploads: uploads{uploader: uploader, validator: validator},
	}
}

func validateSite(c *models.SiteConfig) error {
	c.SiteName = strings.TrimSpace(c.SiteName)
	if c.SiteName == "" {
		return apiclient.Invalid("siteName", "Site name is required")
	}
	return nil
}

// UploadLogo stores a new logo image and hands its URL to the backend
func (s *SiteScreen) UploadLogo(ctx context.Context, n *notify.Notifier, filename string, r io.Reader, size int64) bool {
	return s.Mutate(ctx, n, Mutation{
		Action: "upload-logo",
		Target: filename,
		Run: func(ctx context.Context) error {
			link, err := s.uploads.store(ctx, storage.KindLogo, filename, r, size)
			if err != nil {
				return err
			}
			_, err = s.deps.Backend.Put(ctx, logoPath, nil, models.SiteConfig{
				SiteName: s.Value().SiteName,
				LogoURL:  link,
			})
			return err
		},
		Success: "Logo uploaded successfully",
		Failure: "Failed to upload logo",
	})
}

// WelcomeScreen manages the welcome note
type WelcomeScreen struct {
	*Single[models.WelcomeNote]
	md goldmark.Markdown
}

// NewWelcomeScreen creates the welcome note screen
func NewWelcomeScreen(deps Deps) *WelcomeScreen {
	return &WelcomeScreen{
		Single: NewSingle(Setting[models.WelcomeNote]{
			Name:     "welcome",
			Path:     "welcome",
			Noun:     "Welcome note",
			Validate: validateWelcome,
		}, deps),
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

func validateWelcome(w *models.WelcomeNote) error {
	w.Title = strings.TrimSpace(w.Title)
	w.Message = strings.TrimSpace(w.Message)
	if w.Title == "" {
		return apiclient.Invalid("title", "Title is required")
	}
	if w.Message == "" {
		return apiclient.Invalid("message", "Message is required")
	}
	return nil
}

// Preview renders message as HTML. Raw HTML in the input is not passed through.
func (s *WelcomeScreen) Preview(message string) (string, error) {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(message), &buf); err != nil {
		return "", fmt.Errorf("failed to render preview: %w", err)
	}
	return buf.String(), nil
}
