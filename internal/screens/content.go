package screens

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/mechanicbano/admin/internal/apiclient"
	"github.com/mechanicbano/admin/internal/metrics"
	"github.com/mechanicbano/admin/internal/notify"
	"github.com/mechanicbano/admin/internal/storage"
	"github.com/mechanicbano/admin/pkg/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// NewVideoScreen manages the YouTube listings
func NewVideoScreen(deps Deps) *Screen[models.Video] {
	return NewScreen(Resource[models.Video]{
		Name:     "videos",
		Path:     "youtube",
		Noun:     "Video",
		Plural:   "videos",
		ID:       func(v models.Video) models.ID { return v.ID },
		Validate: validateVideo,
		Fields:   func(v models.Video) []string { return []string{v.Title, v.Description, v.Link} },
		Actions:  editDelete[models.Video],
	}, deps)
}

func validateVideo(v *models.Video) error {
	v.Title = strings.TrimSpace(v.Title)
	v.Description = strings.TrimSpace(v.Description)
	v.Link = strings.TrimSpace(v.Link)

	switch {
	case v.Title == "":
		return apiclient.Invalid("title", "Title is required")
	case v.Description == "":
		return apiclient.Invalid("description", "Description is required")
	case v.Link == "":
		return apiclient.Invalid("link", "Link is required")
	case !isHTTPURL(v.Link):
		return apiclient.Invalid("link", "Please enter a valid link")
	}
	return nil
}

func isHTTPURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// PDFScreen manages free and premium PDF resources
type PDFScreen struct {
	*Screen[models.PDF]
	uploads uploads
}

// NewPDFScreen creates the PDF screen. Files go through uploader after validation.
func NewPDFScreen(deps Deps, uploader storage.Uploader, validator *storage.Validator) *PDFScreen {
	return &PDFScreen{
		Screen: NewScreen(Resource[models.PDF]{
			Name:     "pdfs",
			Path:     "general",
			Type:     "pdf",
			Noun:     "PDF",
			Plural:   "PDFs",
			ID:       func(p models.PDF) models.ID { return p.ID },
			Validate: validatePDF,
			Fields:   func(p models.PDF) []string { return []string{p.Title, p.Category} },
			Actions:  editDelete[models.PDF],
		}, deps),
		uploads: uploads{uploader: uploader, validator: validator},
	}
}

func validatePDF(p *models.PDF) error {
	p.Title = strings.TrimSpace(p.Title)
	p.OriginalLink = strings.TrimSpace(p.OriginalLink)
	p.Normalize()

	switch {
	case p.Title == "":
		return apiclient.Invalid("title", "Title is required")
	case p.OriginalLink == "":
		return apiclient.Invalid("originalLink", "Please upload a PDF or enter its link")
	case p.Category != models.PDFCategoryFree && p.Category != models.PDFCategoryPremium:
		return apiclient.Invalid("category", "Category must be free or premium")
	case p.IsPremium() && !p.Price.IsPositive():
		return apiclient.Invalid("price", "Premium PDFs need a price greater than 0")
	}
	return nil
}

// Upload stores a PDF file and returns the link to put in the form
func (s *PDFScreen) Upload(ctx context.Context, n *notify.Notifier, filename string, r io.Reader, size int64) (string, bool) {
	var link string
	ok := s.mutate(ctx, n, Mutation{
		Action: "upload",
		Target: filename,
		Run: func(ctx context.Context) error {
			var err error
			link, err = s.uploads.store(ctx, storage.KindPDF, filename, r, size)
			return err
		},
		Success: "PDF uploaded successfully",
		Failure: "Failed to upload PDF",
	}, nil)
	return link, ok
}

// MessageFileNotRemoved is shown when a PDF entry is gone but its stored file is not
const MessageFileNotRemoved = "PDF deleted, but its file could not be removed from storage"

// Delete removes the PDF entry, then its file when the file lives in our
// own object storage.
func (s *PDFScreen) Delete(ctx context.Context, n *notify.Notifier, id models.ID, confirmed bool) bool {
	pdf, found := s.Find(id)
	if !s.Screen.Delete(ctx, n, id, confirmed) {
		return false
	}
	if found {
		s.removeFile(ctx, n, pdf.OriginalLink)
	}
	return true
}

// Act implements the PDF row menu
func (s *PDFScreen) Act(ctx context.Context, n *notify.Notifier, id models.ID, action string, confirmed bool) bool {
	pdf, ok := s.lookup(ctx, n, id)
	if !ok {
		return false
	}
	return s.choose(ctx, n, pdf, action, map[string]func() bool{
		"delete": func() bool { return s.Delete(ctx, n, id, confirmed) },
	})
}

func (s *PDFScreen) removeFile(ctx context.Context, n *notify.Notifier, link string) {
	remover, ok := s.uploads.uploader.(storage.Remover)
	if !ok {
		return
	}
	logger := s.deps.Logger.WithScreen(s.res.Name).WithField("link", link)
	removed, err := remover.Remove(ctx, link)
	if err != nil {
		logger.WithError(err).Warn("Failed to remove PDF file")
		metrics.RecordError("screens", "remove_file")
		n.Warning(MessageFileNotRemoved)
		return
	}
	if removed {
		logger.Info("Removed PDF file")
	}
}

// NewPlanScreen manages subscription plans
func NewPlanScreen(deps Deps) *Screen[models.Plan] {
	return NewScreen(Resource[models.Plan]{
		Name:     "plans",
		Path:     "subscription-plans",
		Noun:     "Plan",
		Plural:   "plans",
		ID:       func(p models.Plan) models.ID { return p.ID },
		Validate: validatePlan,
		Fields:   func(p models.Plan) []string { return []string{p.Title} },
		Actions:  editDelete[models.Plan],
	}, deps)
}

func validatePlan(p *models.Plan) error {
	p.Title = strings.TrimSpace(p.Title)

	switch {
	case p.Title == "":
		return apiclient.Invalid("title", "Title is required")
	case !p.Price.IsPositive():
		return apiclient.Invalid("price", "Price must be greater than 0")
	case p.Days <= 0:
		return apiclient.Invalid("days", "Duration must be at least one day")
	case p.Discount.IsNegative() || p.Discount.GreaterThan(hundred):
		return apiclient.Invalid("discount", "Discount must be between 0 and 100")
	}
	return nil
}
