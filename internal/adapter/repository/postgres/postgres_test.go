package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

type URLRepositoryTestSuite struct {
	suite.Suite
	errUnknown      error
	errAffectedRows error
	columns         []string
	createdAt       time.Time
	mock            sqlmock.Sqlmock
	repo            *URLRepository
}

func (suite *URLRepositoryTestSuite) SetupSuite() {
	suite.errUnknown = errors.New("unknown error")
	suite.errAffectedRows = errors.New("affected rows error")
	suite.columns = []string{"id", "short_code", "original_url", "access_count", "created_at"}
	suite.createdAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

func (suite *URLRepositoryTestSuite) SetupSubTest() {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		suite.T().Fatalf("Failed to create mock database: %v", err)
	}
	suite.T().Cleanup(func() {
		mockDB.Close()
	})

	db := sqlx.NewDb(mockDB, "sqlmock")
	suite.T().Cleanup(func() {
		db.Close()
	})

	suite.mock = mock
	suite.repo = NewURLRepository(db)
}

func (suite *URLRepositoryTestSuite) TearDownSubTest() {
	suite.NoError(suite.mock.ExpectationsWereMet())
}

func (suite *URLRepositoryTestSuite) TestSave() {
	suite.Run("short code exists", func() {
		suite.mock.ExpectQuery(`INSERT INTO urls`).
			WithArgs(sqlmock.AnyArg(), "abc123", "https://example.com").
			WillReturnError(&pgconn.PgError{Code: "23505"})

		url, err := suite.repo.Save(context.Background(), "abc123", "https://example.com")

		suite.Error(err)
		suite.ErrorIs(err, entity.ErrShortCodeExists)
		suite.Nil(url)
	})

	suite.Run("unknown error", func() {
		suite.mock.ExpectQuery(`INSERT INTO urls`).
			WithArgs(sqlmock.AnyArg(), "abc123", "https://example.com").
			WillReturnError(suite.errUnknown)

		url, err := suite.repo.Save(context.Background(), "abc123", "https://example.com")

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(url)
	})

	suite.Run("success", func() {
		rows := sqlmock.NewRows(suite.columns).
			AddRow("6f1c1f4e-6a2b-4d7e-9a43-2f0f2b1f5c11", "abc123", "https://example.com", 0, suite.createdAt)

		suite.mock.ExpectQuery(`INSERT INTO urls`).
			WithArgs(sqlmock.AnyArg(), "abc123", "https://example.com").
			WillReturnRows(rows)

		url, err := suite.repo.Save(context.Background(), "abc123", "https://example.com")

		suite.NoError(err)
		suite.NotNil(url)
		suite.Equal("6f1c1f4e-6a2b-4d7e-9a43-2f0f2b1f5c11", url.ID)
		suite.Equal("abc123", url.ShortCode)
		suite.Equal("https://example.com", url.OriginalURL)
		suite.Zero(url.AccessCount)
		suite.Equal(suite.createdAt, url.CreatedAt)
	})
}

func (suite *URLRepositoryTestSuite) TestRetrieveByShortCode() {
	suite.Run("url not found", func() {
		suite.mock.ExpectQuery(`SELECT (.+) FROM urls WHERE short_code`).
			WithArgs("abc123").
			WillReturnError(sql.ErrNoRows)

		url, err := suite.repo.RetrieveByShortCode(context.Background(), "abc123")

		suite.Error(err)
		suite.ErrorIs(err, entity.ErrURLNotFound)
		suite.Nil(url)
	})

	suite.Run("unknown error", func() {
		suite.mock.ExpectQuery(`SELECT (.+) FROM urls WHERE short_code`).
			WithArgs("abc123").
			WillReturnError(suite.errUnknown)

		url, err := suite.repo.RetrieveByShortCode(context.Background(), "abc123")

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(url)
	})

	suite.Run("success", func() {
		rows := sqlmock.NewRows(suite.columns).
			AddRow("id-1", "abc123", "https://example.com", 7, suite.createdAt)

		suite.mock.ExpectQuery(`SELECT (.+) FROM urls WHERE short_code`).
			WithArgs("abc123").
			WillReturnRows(rows)

		url, err := suite.repo.RetrieveByShortCode(context.Background(), "abc123")

		suite.NoError(err)
		suite.NotNil(url)
		suite.Equal("abc123", url.ShortCode)
		suite.Equal("https://example.com", url.OriginalURL)
		suite.Equal(int64(7), url.AccessCount)
	})
}

func (suite *URLRepositoryTestSuite) TestRetrieveAll() {
	suite.Run("unknown error", func() {
		suite.mock.ExpectQuery(`SELECT (.+) FROM urls ORDER BY created_at DESC, seq DESC`).
			WillReturnError(suite.errUnknown)

		urls, err := suite.repo.RetrieveAll(context.Background())

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(urls)
	})

	suite.Run("empty", func() {
		suite.mock.ExpectQuery(`SELECT (.+) FROM urls ORDER BY created_at DESC, seq DESC`).
			WillReturnRows(sqlmock.NewRows(suite.columns))

		urls, err := suite.repo.RetrieveAll(context.Background())

		suite.NoError(err)
		suite.NotNil(urls)
		suite.Empty(urls)
	})

	suite.Run("success", func() {
		rows := sqlmock.NewRows(suite.columns).
			AddRow("id-2", "def456", "https://example.org", 0, suite.createdAt.Add(time.Minute)).
			AddRow("id-1", "abc123", "https://example.com", 3, suite.createdAt)

		suite.mock.ExpectQuery(`SELECT (.+) FROM urls ORDER BY created_at DESC, seq DESC`).
			WillReturnRows(rows)

		urls, err := suite.repo.RetrieveAll(context.Background())

		suite.NoError(err)
		suite.Len(urls, 2)
		suite.Equal("def456", urls[0].ShortCode)
		suite.Equal("abc123", urls[1].ShortCode)
		suite.Equal(int64(3), urls[1].AccessCount)
	})
}

func (suite *URLRepositoryTestSuite) TestIncrementAccessCount() {
	suite.Run("unknown error", func() {
		suite.mock.ExpectExec(`UPDATE urls SET access_count = access_count \+ 1`).
			WithArgs("abc123").
			WillReturnError(suite.errUnknown)

		err := suite.repo.IncrementAccessCount(context.Background(), "abc123")

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
	})

	suite.Run("rows affected error", func() {
		suite.mock.ExpectExec(`UPDATE urls SET access_count = access_count \+ 1`).
			WithArgs("abc123").
			WillReturnResult(sqlmock.NewErrorResult(suite.errAffectedRows))

		err := suite.repo.IncrementAccessCount(context.Background(), "abc123")

		suite.Error(err)
		suite.ErrorIs(err, suite.errAffectedRows)
	})

	suite.Run("url not found", func() {
		suite.mock.ExpectExec(`UPDATE urls SET access_count = access_count \+ 1`).
			WithArgs("abc123").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := suite.repo.IncrementAccessCount(context.Background(), "abc123")

		suite.Error(err)
		suite.ErrorIs(err, entity.ErrURLNotFound)
	})

	suite.Run("success", func() {
		suite.mock.ExpectExec(`UPDATE urls SET access_count = access_count \+ 1`).
			WithArgs("abc123").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := suite.repo.IncrementAccessCount(context.Background(), "abc123")

		suite.NoError(err)
	})
}

func (suite *URLRepositoryTestSuite) TestRemove() {
	suite.Run("unknown error", func() {
		suite.mock.ExpectExec(`DELETE FROM urls`).
			WithArgs("abc123").
			WillReturnError(suite.errUnknown)

		err := suite.repo.Remove(context.Background(), "abc123")

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
	})

	suite.Run("rows affected error", func() {
		suite.mock.ExpectExec(`DELETE FROM urls`).
			WithArgs("abc123").
			WillReturnResult(sqlmock.NewErrorResult(suite.errAffectedRows))

		err := suite.repo.Remove(context.Background(), "abc123")

		suite.Error(err)
		suite.ErrorIs(err, suite.errAffectedRows)
	})

	suite.Run("url not found", func() {
		suite.mock.ExpectExec(`DELETE FROM urls`).
			WithArgs("abc123").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := suite.repo.Remove(context.Background(), "abc123")

		suite.Error(err)
		suite.ErrorIs(err, entity.ErrURLNotFound)
	})

	suite.Run("success", func() {
		suite.mock.ExpectExec(`DELETE FROM urls`).
			WithArgs("abc123").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := suite.repo.Remove(context.Background(), "abc123")

		suite.NoError(err)
	})
}

func TestURLRepository(t *testing.T) {
	suite.Run(t, new(URLRepositoryTestSuite))
}
