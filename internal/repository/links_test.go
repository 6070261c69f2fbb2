package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebhrenchir/granted.gg-sub001/internal/domain"
	"github.com/calebhrenchir/granted.gg-sub001/internal/logger"
	"github.com/calebhrenchir/granted.gg-sub001/internal/repository"
)

func newLinkRepo(t *testing.T) (*repository.LinkRepository, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err, "failed to create sqlmock")

	repo := repository.NewLinkRepository(db, logger.NewNop())
	return repo, mock, func() { _ = db.Close() }
}

func linkColumns() []string {
	return []string{
		"id", "owner_id", "slug", "name", "price", "total_earnings",
		"total_clicks", "total_sales", "deleted", "disabled", "archived",
		"created_at", "updated_at",
	}
}

func TestLinkRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts a valid link", func(t *testing.T) {
		repo, mock, cleanup := newLinkRepo(t)
		defer cleanup()

		mock.ExpectExec("INSERT INTO links").
			WithArgs(sqlmock.AnyArg(), "user-1", "my-guide", "My Guide",
				decimal.NewFromInt(10), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		link := &domain.Link{
			OwnerID: "user-1",
			Slug:    "my-guide",
			Name:    "My Guide",
			Price:   decimal.NewFromInt(10),
		}
		require.NoError(t, repo.Create(ctx, link))
		assert.NotEmpty(t, link.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects a price below the platform minimum", func(t *testing.T) {
		repo, _, cleanup := newLinkRepo(t)
		defer cleanup()

		link := &domain.Link{OwnerID: "user-1", Slug: "cheap", Price: decimal.NewFromFloat(4.99)}
		err := repo.Create(ctx, link)

		var verr *domain.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "price", verr.Field)
	})

	t.Run("rejects an empty slug", func(t *testing.T) {
		repo, _, cleanup := newLinkRepo(t)
		defer cleanup()

		link := &domain.Link{OwnerID: "user-1", Price: decimal.NewFromInt(10)}
		err := repo.Create(ctx, link)

		var verr *domain.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "slug", verr.Field)
	})

	t.Run("taken slug surfaces as a validation error", func(t *testing.T) {
		repo, mock, cleanup := newLinkRepo(t)
		defer cleanup()

		mock.ExpectExec("INSERT INTO links").
			WillReturnError(&pq.Error{Code: "23505"})

		link := &domain.Link{OwnerID: "user-1", Slug: "taken", Price: decimal.NewFromInt(10)}
		err := repo.Create(ctx, link)

		var verr *domain.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "slug", verr.Field)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLinkRepository_GetBySlug(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the link", func(t *testing.T) {
		repo, mock, cleanup := newLinkRepo(t)
		defer cleanup()

		now := time.Now()
		mock.ExpectQuery("SELECT (.+) FROM links WHERE slug").
			WithArgs("my-guide").
			WillReturnRows(sqlmock.NewRows(linkColumns()).AddRow(
				"link-1", "user-1", "my-guide", "My Guide", decimal.NewFromInt(10),
				decimal.New(900, -2), 5, 1, false, false, false, now, now,
			))

		link, err := repo.GetBySlug(ctx, "my-guide")
		require.NoError(t, err)
		assert.Equal(t, "link-1", link.ID)
		assert.Equal(t, int64(5), link.TotalClicks)
		assert.True(t, link.TotalEarnings.Equal(decimal.New(900, -2)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown slug returns ErrNotFound", func(t *testing.T) {
		repo, mock, cleanup := newLinkRepo(t)
		defer cleanup()

		mock.ExpectQuery("SELECT (.+) FROM links WHERE slug").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows(linkColumns()))

		_, err := repo.GetBySlug(ctx, "ghost")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLinkRepository_SoftDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("marks the link deleted", func(t *testing.T) {
		repo, mock, cleanup := newLinkRepo(t)
		defer cleanup()

		mock.ExpectExec("UPDATE links").
			WithArgs("link-1", "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.SoftDelete(ctx, "link-1", "user-1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("someone else's link returns ErrNotFound", func(t *testing.T) {
		repo, mock, cleanup := newLinkRepo(t)
		defer cleanup()

		mock.ExpectExec("UPDATE links").
			WithArgs("link-1", "intruder").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.SoftDelete(ctx, "link-1", "intruder")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLinkRepository_AvailableBalance(t *testing.T) {
	ctx := context.Background()

	repo, mock, cleanup := newLinkRepo(t)
	defer cleanup()

	// Soft-deleted links are included in the sum; the query carries no
	// deleted filter.
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(decimal.New(5000, -2)))

	balance, err := repo.AvailableBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.New(5000, -2)), "balance = %s", balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}
