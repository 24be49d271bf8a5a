// Package entity defines the entities and errors used in the application.
// It includes the URL struct, which represents a shortened URL, along with its
// associated metadata, and any relevant error definitions.
package entity

import (
	"errors"
	"net/url"
	"time"
)

var (
	// ErrInvalidURL is returned when the original URL is not an absolute URL with a scheme and a host.
	ErrInvalidURL = errors.New("invalid url")
	// ErrShortCodeExists is returned when attempting to create a URL with a short code that already exists.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrURLNotFound is returned when a URL with the specified short code cannot be found.
	ErrURLNotFound = errors.New("url not found")
	// ErrAllocationFailed is returned when no free short code could be found within the retry budget.
	ErrAllocationFailed = errors.New("short code allocation failed")
	// ErrAccessNotCounted is returned alongside a resolved URL when its access count could not be updated.
	ErrAccessNotCounted = errors.New("access not counted")
)

// URL represents a shortened URL.
type URL struct {
	ID          string    // ID is the opaque unique identifier of the record.
	ShortCode   string    // ShortCode is the generated code used to shorten the original URL.
	OriginalURL string    // OriginalURL is the full URL that the short code resolves to.
	URLStats              // URLStats contains statistics about the URL.
	CreatedAt   time.Time // CreatedAt is the timestamp when the URL was created.
}

// URLStats contains statistics related to a shortened URL.
type URLStats struct {
	AccessCount int64 // AccessCount is the number of times the shortened URL has been accessed.
}

// IsAbsoluteURL reports whether raw parses as a URL carrying both a scheme and a host.
func IsAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	return u.Scheme != "" && u.Host != ""
}

// ValidateOriginalURL returns ErrInvalidURL unless raw is an absolute URL.
func ValidateOriginalURL(raw string) error {
	if !IsAbsoluteURL(raw) {
		return ErrInvalidURL
	}

	return nil
}
