package pdfview

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gen2brain/go-fitz"
	"github.com/mechanicbano/admin/internal/tracing"
)

// baseDPI renders one PDF point as one pixel, so scale 1.0 is the page's base size
const baseDPI = 72.0

// ErrTooLarge is returned when a document exceeds the configured size limit
var ErrTooLarge = errors.New("document exceeds size limit")

// Document is a parsed PDF
type Document interface {
	// NumPages returns the page count
	NumPages() int
	// Render rasterizes page (1-based) at scale. The result is baseSize × scale.
	Render(ctx context.Context, page int, scale float64) (image.Image, error)
	Close() error
}

// Loader fetches and parses a document
type Loader interface {
	Load(ctx context.Context, url string) (Document, error)
}

// maxRedirects bounds the redirects followed while fetching a document
const maxRedirects = 5

// FitzLoader downloads a PDF over HTTP and parses it with MuPDF. Links and
// redirects outside sources are refused.
type FitzLoader struct {
	client   *http.Client
	sources  *SourcePolicy
	maxBytes int64
}

// NewFitzLoader creates a loader. maxBytes <= 0 means no limit.
func NewFitzLoader(timeout time.Duration, maxBytes int64, sources *SourcePolicy) *FitzLoader {
	l := &FitzLoader{
		sources:  sources,
		maxBytes: maxBytes,
	}
	l.client = &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.New("too many redirects")
			}
			return l.sources.allowURL(req.URL)
		},
	}
	return l
}

// Load implements Loader
func (l *FitzLoader) Load(ctx context.Context, url string) (Document, error) {
	data, err := l.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func (l *FitzLoader) fetch(ctx context.Context, url string) ([]byte, error) {
	if err := l.sources.Allow(url); err != nil {
		return nil, err
	}

	span, ctx := tracing.StartClientSpan(ctx, http.MethodGet, url)
	defer tracing.FinishSpan(span)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		tracing.LogError(span, err)
		return nil, fmt.Errorf("failed to fetch document: %w", err)
	}
	defer resp.Body.Close()

	tracing.SetTag(span, "http.status_code", resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to fetch document: status %d", resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if l.maxBytes > 0 {
		body = io.LimitReader(resp.Body, l.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if l.maxBytes > 0 && int64(len(data)) > l.maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

// Parse opens an in-memory PDF
func Parse(data []byte) (Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	if doc.NumPage() < 1 {
		doc.Close()
		return nil, errors.New("document has no pages")
	}
	return &fitzDocument{doc: doc}, nil
}

var errDocumentClosed = errors.New("document is closed")

type fitzDocument struct {
	mu     sync.Mutex
	doc    *fitz.Document
	closed bool
}

func (d *fitzDocument) NumPages() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0
	}
	return d.doc.NumPage()
}

// Render cannot interrupt MuPDF mid-page, so the context is checked around the call
func (d *fitzDocument) Render(ctx context.Context, page int, scale float64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, errDocumentClosed
	}
	img, err := d.doc.ImageDPI(page-1, baseDPI*scale)
	d.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", page, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return img, nil
}

func (d *fitzDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.doc.Close()
}
