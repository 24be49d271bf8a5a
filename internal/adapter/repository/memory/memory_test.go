package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/repotest"
)

func TestURLRepository(t *testing.T) {
	suite.Run(t, &repotest.URLRepositorySuite{
		New: func() repotest.URLRepository {
			return NewURLRepository()
		},
	})
}

func TestURLRepository_RetrieveAll_SameTimestamp(t *testing.T) {
	repo := NewURLRepository()
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	for _, code := range []string{"aaaaaa", "bbbbbb", "cccccc"} {
		_, err := repo.Save(context.Background(), code, "https://example.com")
		assert.NoError(t, err)
	}

	urls, err := repo.RetrieveAll(context.Background())

	assert.NoError(t, err)
	assert.Len(t, urls, 3)
	assert.Equal(t, "cccccc", urls[0].ShortCode)
	assert.Equal(t, "bbbbbb", urls[1].ShortCode)
	assert.Equal(t, "aaaaaa", urls[2].ShortCode)
}

func TestURLRepository_ReturnsCopies(t *testing.T) {
	repo := NewURLRepository()

	saved, err := repo.Save(context.Background(), "abc123", "https://example.com")
	assert.NoError(t, err)

	saved.OriginalURL = "https://mutated.example.com"
	saved.AccessCount = 42

	url, err := repo.RetrieveByShortCode(context.Background(), "abc123")
	assert.NoError(t, err)
	assert.Equal(t, "https://example.com", url.OriginalURL)
	assert.Zero(t, url.AccessCount)
}

func TestURLRepository_CanceledContext(t *testing.T) {
	repo := NewURLRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Save(ctx, "abc123", "https://example.com")

	assert.ErrorIs(t, err, context.Canceled)
}
