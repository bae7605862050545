package storage

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/mechanicbano/admin/internal/apiclient"
	"github.com/mechanicbano/admin/internal/config"
)

// Accepted content types
const (
	ContentTypePDF  = "application/pdf"
	ContentTypePNG  = "image/png"
	ContentTypeJPEG = "image/jpeg"
	ContentTypeWebP = "image/webp"
)

// Upload kinds; each names the key prefix its objects are stored under
const (
	KindPDF  = "pdfs"
	KindQR   = "upi"
	KindLogo = "logos"
)

// sniffLen is how much of a file content detection looks at
const sniffLen = 512

// Validator checks uploads against type and size limits
type Validator struct {
	maxPDFBytes   int64
	maxImageBytes int64
}

// NewValidator creates a validator from upload limits
func NewValidator(cfg config.UploadConfig) *Validator {
	return &Validator{
		maxPDFBytes:   cfg.MaxPDFBytes,
		maxImageBytes: cfg.MaxImageBytes,
	}
}

// File is an upload that passed validation
type File struct {
	Kind        string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Check sniffs the content type of r and enforces the limits for kind.
// The returned File reads the full content, including the sniffed prefix.
func (v *Validator) Check(kind, filename string, r io.Reader, size int64) (*File, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, apiclient.Invalid("file", "Please choose a file to upload")
	}

	contentType := http.DetectContentType(head)
	if err := v.allow(kind, contentType, size); err != nil {
		return nil, err
	}

	return &File{
		Kind:        kind,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		Body:        io.MultiReader(bytes.NewReader(head), r),
	}, nil
}

func (v *Validator) allow(kind, contentType string, size int64) error {
	switch kind {
	case KindPDF:
		if contentType != ContentTypePDF {
			return apiclient.Invalid("file", "Only PDF files are allowed")
		}
		if size > v.maxPDFBytes {
			return apiclient.Invalid("file", fmt.Sprintf("PDF must be at most %s", formatBytes(v.maxPDFBytes)))
		}
	case KindQR, KindLogo:
		switch contentType {
		case ContentTypePNG, ContentTypeJPEG, ContentTypeWebP:
		default:
			return apiclient.Invalid("file", "Only PNG, JPEG or WebP images are allowed")
		}
		if size > v.maxImageBytes {
			return apiclient.Invalid("file", fmt.Sprintf("Image must be at most %s", formatBytes(v.maxImageBytes)))
		}
	default:
		return fmt.Errorf("unknown upload kind %q", kind)
	}
	return nil
}

func formatBytes(n int64) string {
	const mib = 1 << 20
	if n >= mib && n%mib == 0 {
		return fmt.Sprintf("%d MB", n/mib)
	}
	return fmt.Sprintf("%d bytes", n)
}
