package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// UploadPath is the backend endpoint that accepts multipart files
const UploadPath = "upload"

// BackendUploader stores files through the backend upload endpoint.
// It is used when direct object storage is not configured.
type BackendUploader struct {
	client *Client
}

// NewBackendUploader creates an uploader backed by the REST API
func NewBackendUploader(client *Client) *BackendUploader {
	return &BackendUploader{client: client}
}

// Upload sends the file and returns the public URL the backend reports
func (u *BackendUploader) Upload(ctx context.Context, kind, filename, contentType string, r io.Reader, size int64) (string, error) {
	body, err := u.client.PostMultipart(ctx, UploadPath, "file", filename, contentType, r)
	if err != nil {
		return "", err
	}

	var resp struct {
		URL  string `json:"url"`
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnexpectedFormat, err)
	}

	if resp.URL != "" {
		return resp.URL, nil
	}
	if resp.Data.URL != "" {
		return resp.Data.URL, nil
	}
	return "", ErrUnexpectedFormat
}
