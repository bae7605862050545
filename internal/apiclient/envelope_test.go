package apiclient

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func TestDecodeList(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantLen    int
		wantLegacy bool
		wantErr    bool
	}{
		{"envelope", `{"success":true,"data":[{"id":"1","title":"a"},{"id":"2","title":"b"}]}`, 2, false, false},
		{"envelope with null data", `{"success":true,"data":null}`, 0, false, false},
		{"bare array", `[{"id":"1","title":"a"}]`, 1, true, false},
		{"success false", `{"success":false}`, 0, false, true},
		{"missing success", `{"data":[]}`, 0, false, true},
		{"data is object", `{"success":true,"data":{"id":"1"}}`, 0, false, true},
		{"string body", `"hello"`, 0, false, true},
		{"empty body", ``, 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var items []item
			legacy, err := DecodeList([]byte(tt.body), &items)

			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrUnexpectedFormat), "expected ErrUnexpectedFormat, got %v", err)
				assert.Empty(t, items)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantLegacy, legacy)
			assert.Len(t, items, tt.wantLen)
		})
	}
}

func TestDecodeObject(t *testing.T) {
	type upi struct {
		UPIID string `json:"upiId"`
	}

	tests := []struct {
		name       string
		body       string
		want       string
		wantLegacy bool
		wantErr    bool
	}{
		{"envelope", `{"success":true,"data":{"upiId":"shop@upi"}}`, "shop@upi", false, false},
		{"envelope with list", `{"success":true,"data":[{"upiId":"shop@upi"}]}`, "shop@upi", false, false},
		{"bare object", `{"upiId":"shop@upi"}`, "shop@upi", true, false},
		{"bare array", `[{"upiId":"shop@upi"}]`, "shop@upi", true, false},
		{"empty array", `[]`, "", true, false},
		{"success false", `{"success":false,"message":"nope"}`, "", false, true},
		{"number", `42`, "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got upi
			legacy, err := DecodeObject([]byte(tt.body), &got)

			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrUnexpectedFormat))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantLegacy, legacy)
			assert.Equal(t, tt.want, got.UPIID)
		})
	}
}
