// Package repotest provides a behavioural test suite shared by every URL repository backend.
package repotest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

// URLRepository is the contract every backend must satisfy.
type URLRepository interface {
	Save(ctx context.Context, shortCode, originalURL string) (*entity.URL, error)
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
	RetrieveAll(ctx context.Context) ([]*entity.URL, error)
	IncrementAccessCount(ctx context.Context, shortCode string) error
	Remove(ctx context.Context, shortCode string) error
}

// URLRepositorySuite checks a backend against the repository contract.
// New is called before every subtest and must return an empty repository.
type URLRepositorySuite struct {
	suite.Suite
	New  func() URLRepository
	repo URLRepository
}

func (suite *URLRepositorySuite) SetupSubTest() {
	suite.repo = suite.New()
}

func (suite *URLRepositorySuite) SetupTest() {
	suite.repo = suite.New()
}

func (suite *URLRepositorySuite) TestSave() {
	suite.Run("success", func() {
		before := time.Now().Add(-time.Second)
		originalURL := gofakeit.URL()

		url, err := suite.repo.Save(context.Background(), "abc123", originalURL)

		suite.NoError(err)
		suite.NotNil(url)
		suite.NotEmpty(url.ID)
		suite.Equal("abc123", url.ShortCode)
		suite.Equal(originalURL, url.OriginalURL)
		suite.Zero(url.AccessCount)
		suite.True(url.CreatedAt.After(before), "created at %v", url.CreatedAt)
	})

	suite.Run("short code exists", func() {
		_, err := suite.repo.Save(context.Background(), "abc123", "https://example.com")
		suite.Require().NoError(err)

		url, err := suite.repo.Save(context.Background(), "abc123", "https://other.example.com")

		suite.Error(err)
		suite.ErrorIs(err, entity.ErrShortCodeExists)
		suite.Nil(url)

		stored, err := suite.repo.RetrieveByShortCode(context.Background(), "abc123")
		suite.NoError(err)
		suite.Equal("https://example.com", stored.OriginalURL)
	})

	suite.Run("unique ids", func() {
		first, err := suite.repo.Save(context.Background(), "aaaaaa", gofakeit.URL())
		suite.Require().NoError(err)
		second, err := suite.repo.Save(context.Background(), "bbbbbb", gofakeit.URL())
		suite.Require().NoError(err)

		suite.NotEqual(first.ID, second.ID)
	})
}

func (suite *URLRepositorySuite) TestRetrieveByShortCode() {
	suite.Run("url not found", func() {
		url, err := suite.repo.RetrieveByShortCode(context.Background(), "zzzzzz")

		suite.Error(err)
		suite.ErrorIs(err, entity.ErrURLNotFound)
		suite.Nil(url)
	})

	suite.Run("success", func() {
		saved, err := suite.repo.Save(context.Background(), "abc123", "https://example.com/a?b=c")
		suite.Require().NoError(err)

		url, err := suite.repo.RetrieveByShortCode(context.Background(), "abc123")

		suite.NoError(err)
		suite.NotNil(url)
		suite.Equal(saved.ID, url.ID)
		suite.Equal("abc123", url.ShortCode)
		suite.Equal("https://example.com/a?b=c", url.OriginalURL)
		suite.Zero(url.AccessCount)
		suite.WithinDuration(saved.CreatedAt, url.CreatedAt, time.Millisecond)
	})

	suite.Run("short codes are case sensitive", func() {
		_, err := suite.repo.Save(context.Background(), "AbCdEf", "https://example.com")
		suite.Require().NoError(err)

		url, err := suite.repo.RetrieveByShortCode(context.Background(), "abcdef")

		suite.ErrorIs(err, entity.ErrURLNotFound)
		suite.Nil(url)
	})
}

func (suite *URLRepositorySuite) TestRetrieveAll() {
	suite.Run("empty", func() {
		urls, err := suite.repo.RetrieveAll(context.Background())

		suite.NoError(err)
		suite.Empty(urls)
	})

	suite.Run("newest first", func() {
		codes := []string{"aaaaaa", "bbbbbb", "cccccc", "dddddd"}
		for _, code := range codes {
			_, err := suite.repo.Save(context.Background(), code, gofakeit.URL())
			suite.Require().NoError(err)
			time.Sleep(2 * time.Millisecond)
		}

		urls, err := suite.repo.RetrieveAll(context.Background())

		suite.NoError(err)
		suite.Require().Len(urls, len(codes))
		for i, url := range urls {
			suite.Equal(codes[len(codes)-1-i], url.ShortCode)
		}
		for i := 1; i < len(urls); i++ {
			suite.False(urls[i].CreatedAt.After(urls[i-1].CreatedAt))
		}
	})
	suite.Run("concurrent saves stay ordered by creation time", func() {
		const workers = 20

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := suite.repo.Save(context.Background(), fmt.Sprintf("code%02d", i), gofakeit.URL())
				suite.NoError(err)
			}(i)
		}
		wg.Wait()

		urls, err := suite.repo.RetrieveAll(context.Background())

		suite.NoError(err)
		suite.Require().Len(urls, workers)
		for i := 1; i < len(urls); i++ {
			suite.False(urls[i].CreatedAt.After(urls[i-1].CreatedAt),
				"%s listed after %s but created later", urls[i].ShortCode, urls[i-1].ShortCode)
		}
	})

	suite.Run("concurrent with increments", func() {
		const rounds = 200

		_, err := suite.repo.Save(context.Background(), "abc123", "https://example.com")
		suite.Require().NoError(err)

		var wg sync.WaitGroup
		wg.Add(2)

		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				suite.NoError(suite.repo.IncrementAccessCount(context.Background(), "abc123"))
			}
		}()

		go func() {
			defer wg.Done()
			var last int64
			for i := 0; i < rounds; i++ {
				urls, err := suite.repo.RetrieveAll(context.Background())
				suite.NoError(err)
				if suite.Len(urls, 1) {
					suite.GreaterOrEqual(urls[0].AccessCount, last)
					last = urls[0].AccessCount
				}
			}
		}()

		wg.Wait()

		urls, err := suite.repo.RetrieveAll(context.Background())
		suite.NoError(err)
		suite.Require().Len(urls, 1)
		suite.Equal(int64(rounds), urls[0].AccessCount)
	})
}

func (suite *URLRepositorySuite) TestIncrementAccessCount() {
	suite.Run("url not found", func() {
		err := suite.repo.IncrementAccessCount(context.Background(), "zzzzzz")

		suite.Error(err)
		suite.ErrorIs(err, entity.ErrURLNotFound)

		_, err = suite.repo.RetrieveByShortCode(context.Background(), "zzzzzz")
		suite.ErrorIs(err, entity.ErrURLNotFound)
	})

	suite.Run("counts every call", func() {
		_, err := suite.repo.Save(context.Background(), "abc123", "https://example.com")
		suite.Require().NoError(err)

		for i := 0; i < 3; i++ {
			suite.NoError(suite.repo.IncrementAccessCount(context.Background(), "abc123"))
		}

		url, err := suite.repo.RetrieveByShortCode(context.Background(), "abc123")
		suite.NoError(err)
		suite.Equal(int64(3), url.AccessCount)
		suite.Equal("https://example.com", url.OriginalURL)
	})

	suite.Run("concurrent increments are not lost", func() {
		const workers = 20

		_, err := suite.repo.Save(context.Background(), "abc123", "https://example.com")
		suite.Require().NoError(err)

		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- suite.repo.IncrementAccessCount(context.Background(), "abc123")
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			suite.NoError(err)
		}

		url, err := suite.repo.RetrieveByShortCode(context.Background(), "abc123")
		suite.NoError(err)
		suite.Equal(int64(workers), url.AccessCount)
	})
}

func (suite *URLRepositorySuite) TestRemove() {
	suite.Run("url not found", func() {
		err := suite.repo.Remove(context.Background(), "zzzzzz")

		suite.Error(err)
		suite.ErrorIs(err, entity.ErrURLNotFound)
	})

	suite.Run("success", func() {
		_, err := suite.repo.Save(context.Background(), "abc123", "https://example.com")
		suite.Require().NoError(err)

		suite.NoError(suite.repo.Remove(context.Background(), "abc123"))

		_, err = suite.repo.RetrieveByShortCode(context.Background(), "abc123")
		suite.ErrorIs(err, entity.ErrURLNotFound)

		err = suite.repo.Remove(context.Background(), "abc123")
		suite.ErrorIs(err, entity.ErrURLNotFound)

		urls, err := suite.repo.RetrieveAll(context.Background())
		suite.NoError(err)
		suite.Empty(urls)
	})

	suite.Run("code can be reused", func() {
		_, err := suite.repo.Save(context.Background(), "abc123", "https://example.com")
		suite.Require().NoError(err)
		suite.Require().NoError(suite.repo.Remove(context.Background(), "abc123"))

		url, err := suite.repo.Save(context.Background(), "abc123", "https://new.example.com")

		suite.NoError(err)
		suite.Equal("https://new.example.com", url.OriginalURL)
	})
}
