package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is the canonical backend response wrapper
type Envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
}

// DecodeList decodes a list response into out, which must point to a slice.
//
// The {success, data} envelope is canonical. A bare JSON array is still
// accepted and reported through legacy=true so callers can log and count it;
// that shape is deprecated and will be removed once the backend is consistent.
func DecodeList(body []byte, out interface{}) (legacy bool, err error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return false, ErrUnexpectedFormat
	}

	switch body[0] {
	case '[':
		if err := json.Unmarshal(body, out); err != nil {
			return true, fmt.Errorf("%w: %v", ErrUnexpectedFormat, err)
		}
		return true, nil
	case '{':
		var env Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnexpectedFormat, err)
		}
		if env.Success == nil || !*env.Success {
			return false, ErrUnexpectedFormat
		}

		data := bytes.TrimSpace(env.Data)
		if len(data) == 0 || bytes.Equal(data, []byte("null")) {
			return false, json.Unmarshal([]byte("[]"), out)
		}
		if data[0] != '[' {
			return false, ErrUnexpectedFormat
		}
		if err := json.Unmarshal(data, out); err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnexpectedFormat, err)
		}
		return false, nil
	default:
		return false, ErrUnexpectedFormat
	}
}

// DecodeObject decodes a singleton response into out.
//
// Accepted shapes: the envelope with an object in data, a bare object, or
// (legacy) an array whose first element is the object.
func DecodeObject(body []byte, out interface{}) (legacy bool, err error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return false, ErrUnexpectedFormat
	}

	switch body[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return true, fmt.Errorf("%w: %v", ErrUnexpectedFormat, err)
		}
		if len(items) == 0 {
			return true, nil
		}
		return true, decodeInto(items[0], out)
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnexpectedFormat, err)
		}
		if _, enveloped := fields["success"]; !enveloped {
			return true, decodeInto(body, out)
		}

		var env Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnexpectedFormat, err)
		}
		if env.Success == nil || !*env.Success {
			return false, ErrUnexpectedFormat
		}

		data := bytes.TrimSpace(env.Data)
		if len(data) == 0 || bytes.Equal(data, []byte("null")) {
			return false, nil
		}
		if data[0] == '[' {
			var items []json.RawMessage
			if err := json.Unmarshal(data, &items); err != nil || len(items) == 0 {
				return false, nil
			}
			data = items[0]
		}
		return false, decodeInto(data, out)
	default:
		return false, ErrUnexpectedFormat
	}
}

func decodeInto(data []byte, out interface{}) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return ErrUnexpectedFormat
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedFormat, err)
	}
	return nil
}
