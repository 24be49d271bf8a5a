// Package memory provides an ephemeral URL repository used when no durable
// backend is configured or reachable. Its contents are lost on restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

type record struct {
	url entity.URL
	seq uint64
}

type URLRepository struct {
	mu      sync.RWMutex
	records map[string]*record
	seq     uint64
	now     func() time.Time
}

func NewURLRepository() *URLRepository {
	return &URLRepository{
		records: make(map[string]*record),
		now:     time.Now,
	}
}

func (r *URLRepository) Save(ctx context.Context, shortCode, originalURL string) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.Save"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[shortCode]; ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
	}

	r.seq++
	rec := &record{
		url: entity.URL{
			ID:          uuid.NewString(),
			ShortCode:   shortCode,
			OriginalURL: originalURL,
			CreatedAt:   r.now().UTC(),
		},
		seq: r.seq,
	}
	r.records[shortCode] = rec

	url := rec.url
	return &url, nil
}

func (r *URLRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.RetrieveByShortCode"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[shortCode]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	url := rec.url
	return &url, nil
}

func (r *URLRepository) RetrieveAll(ctx context.Context) ([]*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.RetrieveAll"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.RLock()
	recs := make([]record, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, *rec)
	}
	r.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].url.CreatedAt.Equal(recs[j].url.CreatedAt) {
			return recs[i].url.CreatedAt.After(recs[j].url.CreatedAt)
		}
		return recs[i].seq > recs[j].seq
	})

	urls := make([]*entity.URL, 0, len(recs))
	for i := range recs {
		urls = append(urls, &recs[i].url)
	}

	return urls, nil
}

func (r *URLRepository) IncrementAccessCount(ctx context.Context, shortCode string) error {
	const op = "adapter.repository.memory.URLRepository.IncrementAccessCount"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[shortCode]
	if !ok {
		return fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	rec.url.AccessCount++

	return nil
}

func (r *URLRepository) Remove(ctx context.Context, shortCode string) error {
	const op = "adapter.repository.memory.URLRepository.Remove"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[shortCode]; !ok {
		return fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	delete(r.records, shortCode)

	return nil
}
