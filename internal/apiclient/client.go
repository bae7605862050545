package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mechanicbano/admin/internal/config"
	"github.com/mechanicbano/admin/internal/logging"
	"github.com/mechanicbano/admin/internal/metrics"
	"github.com/mechanicbano/admin/internal/tracing"
)

// Client talks to the Mechanic Bano REST backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// New creates a backend client. A zero timeout leaves requests bounded only by their context.
func New(cfg config.BackendConfig, logger *logging.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// URL joins a resource path and query onto the configured base
func (c *Client) URL(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Get issues a GET and returns the raw body
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, path, query, nil)
}

// Post issues a POST with a JSON body
func (c *Client) Post(ctx context.Context, path string, query url.Values, body interface{}) ([]byte, error) {
	return c.Do(ctx, http.MethodPost, path, query, body)
}

// Put issues a PUT with a JSON body
func (c *Client) Put(ctx context.Context, path string, query url.Values, body interface{}) ([]byte, error) {
	return c.Do(ctx, http.MethodPut, path, query, body)
}

// Delete issues a DELETE
func (c *Client) Delete(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.Do(ctx, http.MethodDelete, path, query, nil)
}

// List fetches a collection and decodes it into out (a pointer to a slice)
func (c *Client) List(ctx context.Context, path string, query url.Values, out interface{}) error {
	body, err := c.Get(ctx, path, query)
	if err != nil {
		return err
	}

	legacy, err := DecodeList(body, out)
	if err != nil {
		c.logger.Warnf("Unexpected list format from %s: %v", resourceLabel(path, query), err)
		return err
	}
	if legacy {
		c.noteLegacy(path, query)
	}
	return nil
}

// Object fetches a singleton and decodes it into out
func (c *Client) Object(ctx context.Context, path string, query url.Values, out interface{}) error {
	body, err := c.Get(ctx, path, query)
	if err != nil {
		return err
	}

	legacy, err := DecodeObject(body, out)
	if err != nil {
		c.logger.Warnf("Unexpected object format from %s: %v", resourceLabel(path, query), err)
		return err
	}
	if legacy {
		c.noteLegacy(path, query)
	}
	return nil
}

func (c *Client) noteLegacy(path string, query url.Values) {
	resource := resourceLabel(path, query)
	metrics.RecordLegacyListShape(resource)
	c.logger.Warnf("Backend returned deprecated bare response shape for %s", resource)
}

// Do sends a JSON request. Non-2xx responses become *StatusError and
// transport failures *TransportError. Nothing is retried.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	return c.send(ctx, method, path, query, bodyReader, "application/json")
}

// PostMultipart uploads a single file part
func (c *Client) PostMultipart(ctx context.Context, path, field, filename, contentType string, r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to write multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	return c.send(ctx, http.MethodPost, path, nil, &buf, writer.FormDataContentType())
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) ([]byte, error) {
	target := c.URL(path, query)
	resource := resourceLabel(path, query)

	span, ctx := tracing.StartClientSpan(ctx, method, target)
	defer tracing.FinishSpan(span)

	start := time.Now()
	respBody, statusCode, err := c.roundTrip(ctx, method, path, target, body, contentType)
	duration := time.Since(start)

	status := strconv.Itoa(statusCode)
	if statusCode == 0 {
		status = "error"
	}
	metrics.RecordBackendRequest(method, resource, status, duration.Seconds())
	c.logger.LogBackendCall(method, resource, statusCode, duration, err)

	if err != nil {
		tracing.LogError(span, err)
		tracing.SetTag(span, "http.status_code", statusCode)
		return nil, err
	}

	tracing.SetTag(span, "http.status_code", statusCode)
	return respBody, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path, target string, body io.Reader, contentType string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &TransportError{Method: method, Path: path, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    extractMessage(respBody, resp.StatusCode),
		}
	}

	return respBody, resp.StatusCode, nil
}

// resourceLabel keeps metric cardinality bounded: ids are dropped, the
// general endpoint is split by its type parameter.
func resourceLabel(path string, query url.Values) string {
	path = strings.Trim(path, "/")
	if t := query.Get("type"); t != "" {
		return path + ":" + t
	}
	return path
}
