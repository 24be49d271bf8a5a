// Package file provides a URL repository persisted as a JSON snapshot on disk.
// Every mutation rewrites the snapshot before returning.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

type urlFile struct {
	ID          string    `json:"id"`
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	AccessCount int64     `json:"access_count"`
	CreatedAt   time.Time `json:"created_at"`
	Seq         uint64    `json:"seq"`
}

func (u *urlFile) toEntity() *entity.URL {
	return &entity.URL{
		ID:          u.ID,
		ShortCode:   u.ShortCode,
		OriginalURL: u.OriginalURL,
		URLStats: entity.URLStats{
			AccessCount: u.AccessCount,
		},
		CreatedAt: u.CreatedAt,
	}
}

type URLRepository struct {
	mu   sync.RWMutex
	path string
	urls map[string]*urlFile
	seq  uint64
}

// NewURLRepository opens the snapshot at path, creating its directory when needed.
// A missing file is treated as an empty repository.
func NewURLRepository(path string) (*URLRepository, error) {
	const op = "adapter.repository.file.NewURLRepository"

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%s: failed to create data directory: %w", op, err)
	}

	r := &URLRepository{
		path: path,
		urls: make(map[string]*urlFile),
	}

	if err := r.load(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return r, nil
}

func (r *URLRepository) load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	var urls []*urlFile
	if err := json.Unmarshal(data, &urls); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}

	for _, u := range urls {
		r.urls[u.ShortCode] = u
		if u.Seq > r.seq {
			r.seq = u.Seq
		}
	}

	return nil
}

// persist writes the snapshot to a temp file and renames it over the old one.
// Callers must hold the write lock.
func (r *URLRepository) persist() error {
	urls := make([]*urlFile, 0, len(r.urls))
	for _, u := range r.urls {
		urls = append(urls, u)
	}
	sort.Slice(urls, func(i, j int) bool {
		return urls[i].Seq < urls[j].Seq
	})

	data, err := json.MarshalIndent(urls, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}

	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	return nil
}

func (r *URLRepository) Save(ctx context.Context, shortCode, originalURL string) (*entity.URL, error) {
	const op = "adapter.repository.file.URLRepository.Save"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.urls[shortCode]; ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
	}

	u := &urlFile{
		ID:          uuid.NewString(),
		ShortCode:   shortCode,
		OriginalURL: originalURL,
		CreatedAt:   time.Now().UTC(),
		Seq:         r.seq + 1,
	}
	r.urls[shortCode] = u

	if err := r.persist(); err != nil {
		delete(r.urls, shortCode)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	r.seq++

	return u.toEntity(), nil
}

func (r *URLRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.repository.file.URLRepository.RetrieveByShortCode"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.urls[shortCode]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return u.toEntity(), nil
}

func (r *URLRepository) RetrieveAll(ctx context.Context) ([]*entity.URL, error) {
	const op = "adapter.repository.file.URLRepository.RetrieveAll"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.RLock()
	files := make([]urlFile, 0, len(r.urls))
	for _, u := range r.urls {
		files = append(files, *u)
	}
	r.mu.RUnlock()

	sort.Slice(files, func(i, j int) bool {
		if !files[i].CreatedAt.Equal(files[j].CreatedAt) {
			return files[i].CreatedAt.After(files[j].CreatedAt)
		}
		return files[i].Seq > files[j].Seq
	})

	urls := make([]*entity.URL, 0, len(files))
	for i := range files {
		urls = append(urls, files[i].toEntity())
	}

	return urls, nil
}

func (r *URLRepository) IncrementAccessCount(ctx context.Context, shortCode string) error {
	const op = "adapter.repository.file.URLRepository.IncrementAccessCount"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.urls[shortCode]
	if !ok {
		return fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	u.AccessCount++

	if err := r.persist(); err != nil {
		u.AccessCount--
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *URLRepository) Remove(ctx context.Context, shortCode string) error {
	const op = "adapter.repository.file.URLRepository.Remove"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.urls[shortCode]
	if !ok {
		return fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	delete(r.urls, shortCode)

	if err := r.persist(); err != nil {
		r.urls[shortCode] = u
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
