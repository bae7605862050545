package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mechanicbano/admin/internal/config"
	"github.com/mechanicbano/admin/internal/logging"
	"github.com/mechanicbano/admin/internal/metrics"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Uploader stores a file and returns the URL it is reachable at
type Uploader interface {
	Upload(ctx context.Context, kind, filename, contentType string, r io.Reader, size int64) (string, error)
}

// Remover deletes a previously uploaded file by its URL. Links it does not
// own are left alone and reported false.
type Remover interface {
	Remove(ctx context.Context, link string) (bool, error)
}

// Storage provides object storage operations
type Storage struct {
	client        *minio.Client
	bucketName    string
	publicBaseURL string
	logger        *logging.Logger
}

// New creates a new storage client
func New(cfg config.StorageConfig, logger *logging.Logger) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	// Ensure bucket exists
	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	publicBase := strings.TrimRight(cfg.PublicBaseURL, "/")
	if publicBase == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicBase = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.BucketName)
	}

	return &Storage{
		client:        client,
		bucketName:    cfg.BucketName,
		publicBaseURL: publicBase,
		logger:        logger,
	}, nil
}

// Upload stores the file under a fresh key for kind and returns its public URL
func (s *Storage) Upload(ctx context.Context, kind, filename, contentType string, r io.Reader, size int64) (string, error) {
	key := ObjectKey(kind, filename, contentType)
	if err := s.Put(ctx, key, r, size, contentType); err != nil {
		return "", err
	}
	return s.PublicURL(key), nil
}

// Put writes an object
func (s *Storage) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	start := time.Now()
	_, err := s.client.PutObject(ctx, s.bucketName, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	s.observe("put", key, size, start, err)
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}

	return nil
}

// PublicURL returns the unsigned URL of key under the public base
func (s *Storage) PublicURL(key string) string {
	return publicURL(s.publicBaseURL, key)
}

// Delete deletes an object from storage
func (s *Storage) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{})
	s.observe("delete", key, 0, start, err)
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

// Remove implements Remover for links under the public base URL
func (s *Storage) Remove(ctx context.Context, link string) (bool, error) {
	key, ok := keyFor(s.publicBaseURL, link)
	if !ok {
		return false, nil
	}
	if err := s.Delete(ctx, key); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Storage) observe(op, key string, size int64, start time.Time, err error) {
	elapsed := time.Since(start)
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.RecordStorageOperation(op, status, elapsed.Seconds())
	s.logger.LogStorageOperation(op, s.bucketName, key, size, elapsed, err)
}

// ObjectKey builds <kind>/<uuid><ext>. The extension comes from the
// content type when known, otherwise from filename.
func ObjectKey(kind, filename, contentType string) string {
	ext := extensionFor(contentType)
	if ext == "" {
		ext = strings.ToLower(path.Ext(filename))
	}
	return fmt.Sprintf("%s/%s%s", kind, uuid.New().String(), ext)
}

// keyFor reverses publicURL
func keyFor(base, link string) (string, bool) {
	rest, ok := strings.CutPrefix(link, base+"/")
	if !ok || rest == "" {
		return "", false
	}
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	segments := strings.Split(rest, "/")
	for i, seg := range segments {
		unescaped, err := url.PathUnescape(seg)
		if err != nil || unescaped == "" || unescaped == "." || unescaped == ".." {
			return "", false
		}
		segments[i] = unescaped
	}
	return strings.Join(segments, "/"), true
}

func publicURL(base, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return base + "/" + strings.Join(segments, "/")
}

// extensionFor returns the file extension for an accepted content type
func extensionFor(contentType string) string {
	switch contentType {
	case ContentTypePDF:
		return ".pdf"
	case ContentTypePNG:
		return ".png"
	case ContentTypeJPEG:
		return ".jpg"
	case ContentTypeWebP:
		return ".webp"
	default:
		return ""
	}
}
