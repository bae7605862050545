package screens

import (
	"context"
	"io"

	"github.com/mechanicbano/admin/internal/metrics"
	"github.com/mechanicbano/admin/internal/storage"
)

// Uploads are checked by a storage.Validator and handed to a storage.Uploader,
// which is either object storage or the backend upload endpoint.
type uploads struct {
	uploader  storage.Uploader
	validator *storage.Validator
}

func (u uploads) store(ctx context.Context, kind, filename string, r io.Reader, size int64) (string, error) {
	file, err := u.validator.Check(kind, filename, r, size)
	if err != nil {
		metrics.RecordUpload(kind, "rejected", size)
		return "", err
	}

	url, err := u.uploader.Upload(ctx, kind, file.Filename, file.ContentType, file.Body, file.Size)
	if err != nil {
		metrics.RecordUpload(kind, "failure", size)
		return "", err
	}

	metrics.RecordUpload(kind, "success", size)
	return url, nil
}
