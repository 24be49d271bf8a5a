package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/shortcode"
)

// saveRounds bounds how many times a lost insert race sends the use case back to the allocator.
const saveRounds = 3

type urlRepository interface {
	Save(ctx context.Context, shortCode, originalURL string) (*entity.URL, error)
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
	RetrieveAll(ctx context.Context) ([]*entity.URL, error)
	IncrementAccessCount(ctx context.Context, shortCode string) error
	Remove(ctx context.Context, shortCode string) error
}

type URLUseCase struct {
	allocator *shortcode.Allocator
	urlRepo   urlRepository
}

func NewURLUseCase(urlRepo urlRepository, allocator *shortcode.Allocator) *URLUseCase {
	return &URLUseCase{
		allocator: allocator,
		urlRepo:   urlRepo,
	}
}

func (uc *URLUseCase) ShortenURL(ctx context.Context, originalURL string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ShortenURL"

	if err := entity.ValidateOriginalURL(originalURL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for i := 0; i < saveRounds; i++ {
		shortCode, err := uc.allocator.Allocate(ctx, uc.isTaken)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to allocate short code: %w", op, err)
		}

		url, err := uc.urlRepo.Save(ctx, shortCode, originalURL)
		if err != nil {
			// Another request claimed the code between the check and the insert.
			if errors.Is(err, entity.ErrShortCodeExists) {
				continue
			}

			return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}

		return url, nil
	}

	return nil, fmt.Errorf("%s: %w", op, entity.ErrAllocationFailed)
}

func (uc *URLUseCase) isTaken(ctx context.Context, shortCode string) (bool, error) {
	_, err := uc.urlRepo.RetrieveByShortCode(ctx, shortCode)
	if err != nil {
		if errors.Is(err, entity.ErrURLNotFound) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// ResolveShortCode looks up the URL behind shortCode and counts the visit.
// A record removed between the lookup and the increment still resolves.
// When the increment fails otherwise, the URL is returned together with an
// error wrapping entity.ErrAccessNotCounted.
func (uc *URLUseCase) ResolveShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ResolveShortCode"

	url, err := uc.urlRepo.RetrieveByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	if err := uc.urlRepo.IncrementAccessCount(ctx, shortCode); err != nil {
		if errors.Is(err, entity.ErrURLNotFound) {
			return url, nil
		}

		return url, fmt.Errorf("%s: %w: %w", op, entity.ErrAccessNotCounted, err)
	}

	url.AccessCount++

	return url, nil
}

func (uc *URLUseCase) ListURLs(ctx context.Context) ([]*entity.URL, error) {
	const op = "usecase.URLUseCase.ListURLs"

	urls, err := uc.urlRepo.RetrieveAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list urls: %w", op, err)
	}

	return urls, nil
}

func (uc *URLUseCase) GetURLStats(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.GetURLStats"

	url, err := uc.urlRepo.RetrieveByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url stats: %w", op, err)
	}

	return url, nil
}

func (uc *URLUseCase) DeleteURL(ctx context.Context, shortCode string) error {
	const op = "usecase.URLUseCase.DeleteURL"

	if err := uc.urlRepo.Remove(ctx, shortCode); err != nil {
		return fmt.Errorf("%s: failed to delete url: %w", op, err)
	}

	return nil
}
