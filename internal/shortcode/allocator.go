// Package shortcode allocates fixed-length alphanumeric short codes.
package shortcode

import (
	"context"
	"fmt"
	"strings"

	"github.com/vadimbarashkov/shortlink/internal/entity"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet is the set of symbols short codes are drawn from.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const (
	DefaultLength      = 6
	DefaultMaxAttempts = 5
)

// GenerateFunc returns a random code of the given length.
type GenerateFunc func(length int) (string, error)

// TakenFunc reports whether code is already in use.
type TakenFunc func(ctx context.Context, code string) (bool, error)

type Option func(*Allocator)

func WithLength(n int) Option {
	return func(a *Allocator) {
		a.length = n
	}
}

func WithMaxAttempts(n int) Option {
	return func(a *Allocator) {
		a.maxAttempts = n
	}
}

func WithGenerator(fn GenerateFunc) Option {
	return func(a *Allocator) {
		a.generate = fn
	}
}

// Allocator produces short codes that are free at the time of the check.
type Allocator struct {
	length      int
	maxAttempts int
	generate    GenerateFunc
}

// NewAllocator returns an Allocator producing DefaultLength codes with
// DefaultMaxAttempts tries, unless overridden by opts.
func NewAllocator(opts ...Option) *Allocator {
	a := &Allocator{
		length:      DefaultLength,
		maxAttempts: DefaultMaxAttempts,
		generate:    generate,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

func generate(length int) (string, error) {
	return gonanoid.Generate(Alphabet, length)
}

// Length returns the length of the codes produced by the allocator.
func (a *Allocator) Length() int {
	return a.length
}

// Allocate draws candidate codes until taken reports one as free.
// It fails with entity.ErrAllocationFailed once every attempt has collided.
func (a *Allocator) Allocate(ctx context.Context, taken TakenFunc) (string, error) {
	const op = "shortcode.Allocator.Allocate"

	for i := 0; i < a.maxAttempts; i++ {
		code, err := a.generate(a.length)
		if err != nil {
			return "", fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}

		exists, err := taken(ctx, code)
		if err != nil {
			return "", fmt.Errorf("%s: failed to check short code: %w", op, err)
		}

		if !exists {
			return code, nil
		}
	}

	return "", fmt.Errorf("%s: %d attempts collided: %w", op, a.maxAttempts, entity.ErrAllocationFailed)
}

// Pattern returns a chi route pattern fragment matching codes of the given length.
func Pattern(length int) string {
	return fmt.Sprintf("[0-9A-Za-z]{%d}", length)
}

// IsValid reports whether code has the given length and uses only Alphabet symbols.
func IsValid(code string, length int) bool {
	if len(code) != length {
		return false
	}

	for _, c := range code {
		if !strings.ContainsRune(Alphabet, c) {
			return false
		}
	}

	return true
}
