package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAbsoluteURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{name: "https url", raw: "https://example.com", want: true},
		{name: "url with path and query", raw: "http://example.com/a/b?c=d#e", want: true},
		{name: "url with port", raw: "http://localhost:5000/x", want: true},
		{name: "ftp url", raw: "ftp://files.example.com/pub", want: true},
		{name: "plain text", raw: "not a url", want: false},
		{name: "empty string", raw: "", want: false},
		{name: "missing scheme", raw: "example.com/path", want: false},
		{name: "missing host", raw: "mailto:someone@example.com", want: false},
		{name: "relative path", raw: "/just/a/path", want: false},
		{name: "broken escape", raw: "http://example.com/%zz", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAbsoluteURL(tt.raw))
		})
	}
}

func TestValidateOriginalURL(t *testing.T) {
	assert.NoError(t, ValidateOriginalURL("https://example.com"))
	assert.ErrorIs(t, ValidateOriginalURL("not a url"), ErrInvalidURL)
}
