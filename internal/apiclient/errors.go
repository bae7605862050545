package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnexpectedFormat is returned when a response is neither the
// {success, data} envelope nor a bare JSON value of the expected kind.
var ErrUnexpectedFormat = errors.New("unexpected response format")

// Fallback messages shown when nothing better is available
const (
	MessageUnexpectedFormat = "Unexpected response format from server"
	MessageNetwork          = "Network error: could not reach the server"
)

// StatusError is a non-2xx response from the backend
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// TransportError is a failure to reach the backend or read its response
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ValidationError is a client-side rejection of user input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Invalid builds a ValidationError
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ErrorMessage returns the most useful human-readable message for err
func ErrorMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Message != "" {
		return statusErr.Message
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Message
	}

	if errors.Is(err, ErrUnexpectedFormat) {
		return MessageUnexpectedFormat
	}

	if errors.Is(err, context.Canceled) {
		return fallback
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return MessageNetwork
	}

	return fallback
}

// extractMessage pulls the server's explanation out of an error body.
// It prefers "message", then "error" (string or {message}), then the raw text.
func extractMessage(body []byte, statusCode int) string {
	var payload struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}

	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}

		if len(payload.Error) > 0 {
			var s string
			if json.Unmarshal(payload.Error, &s) == nil && s != "" {
				return s
			}
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(payload.Error, &nested) == nil && nested.Message != "" {
				return nested.Message
			}
		}
	}

	text := strings.TrimSpace(string(body))
	if text != "" && len(text) <= 200 && !strings.HasPrefix(text, "<") && !strings.HasPrefix(text, "{") {
		return text
	}

	return http.StatusText(statusCode)
}
