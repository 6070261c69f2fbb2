package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/calebhrenchir/granted.gg-sub001/internal/domain"
	"github.com/calebhrenchir/granted.gg-sub001/internal/logger"
)

// linkSelectList is the column list for SELECT on links (single source for
// schema changes).
const linkSelectList = `id, owner_id, slug, name, price, total_earnings,
		total_clicks, total_sales, deleted, disabled, archived, created_at, updated_at`

// LinkRepository manages links and their cached aggregate counters. The
// counters themselves are only written by ActivityRepository and
// SettlementRepository transactions.
type LinkRepository struct {
	db  *sql.DB
	log logger.Logger
}

// NewLinkRepository creates a new repository.
func NewLinkRepository(db *sql.DB, log logger.Logger) *LinkRepository {
	return &LinkRepository{db: db, log: log}
}

// Create inserts a new link. The slug must be unique; the price must meet
// the platform minimum.
func (r *LinkRepository) Create(ctx context.Context, link *domain.Link) error {
	if link.Price.LessThan(domain.MinPriceDollars) {
		return &domain.ValidationError{
			Field:   "price",
			Message: fmt.Sprintf("must be at least $%s", domain.MinPriceDollars.StringFixed(2)),
		}
	}
	if link.Slug == "" {
		return &domain.ValidationError{Field: "slug", Message: "is required"}
	}

	link.ID = uuid.New().String()
	link.CreatedAt = time.Now()
	link.UpdatedAt = link.CreatedAt
	link.TotalEarnings = decimal.Zero

	query := `
		INSERT INTO links (id, owner_id, slug, name, price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		link.ID, link.OwnerID, link.Slug, link.Name, link.Price,
		link.CreatedAt, link.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return &domain.ValidationError{Field: "slug", Message: "is already taken"}
	}
	if err != nil {
		return fmt.Errorf("insert link: %w", err)
	}
	return nil
}

// GetByID retrieves a link by id.
func (r *LinkRepository) GetByID(ctx context.Context, id string) (*domain.Link, error) {
	return r.getOne(ctx, `SELECT `+linkSelectList+` FROM links WHERE id = $1`, id)
}

// GetBySlug retrieves a link by its public slug. Soft-deleted links are
// not resolvable by slug.
func (r *LinkRepository) GetBySlug(ctx context.Context, slug string) (*domain.Link, error) {
	return r.getOne(ctx,
		`SELECT `+linkSelectList+` FROM links WHERE slug = $1 AND deleted = FALSE`, slug)
}

func (r *LinkRepository) getOne(ctx context.Context, query string, arg any) (*domain.Link, error) {
	var link domain.Link
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&link.ID, &link.OwnerID, &link.Slug, &link.Name, &link.Price,
		&link.TotalEarnings, &link.TotalClicks, &link.TotalSales,
		&link.Deleted, &link.Disabled, &link.Archived,
		&link.CreatedAt, &link.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query link: %w", err)
	}
	return &link, nil
}

// ListByOwner returns all of a user's links, soft-deleted ones included.
// Earnings are owed regardless of link visibility.
func (r *LinkRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Link, error) {
	query := `SELECT ` + linkSelectList + ` FROM links WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	var links []domain.Link
	for rows.Next() {
		var link domain.Link
		scanErr := rows.Scan(
			&link.ID, &link.OwnerID, &link.Slug, &link.Name, &link.Price,
			&link.TotalEarnings, &link.TotalClicks, &link.TotalSales,
			&link.Deleted, &link.Disabled, &link.Archived,
			&link.CreatedAt, &link.UpdatedAt,
		)
		if scanErr != nil {
			return nil, fmt.Errorf("scan link: %w", scanErr)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// SoftDelete hides a link from buyers. The row stays because activities
// reference it and its earnings remain withdrawable.
func (r *LinkRepository) SoftDelete(ctx context.Context, id, ownerID string) error {
	query := `
		UPDATE links
		SET deleted = TRUE, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2 AND deleted = FALSE`

	if err := execExpectOneRow(ctx, r.db, query, id, ownerID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("soft delete link: %w", err)
	}
	return nil
}

// AvailableBalance sums total_earnings over all of a user's links,
// including soft-deleted ones. The read sees the latest committed recorder
// writes; there is no cache in front of it.
func (r *LinkRepository) AvailableBalance(ctx context.Context, ownerID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_earnings), 0) FROM links WHERE owner_id = $1`,
		ownerID,
	).Scan(&balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum balance: %w", err)
	}
	return balance, nil
}
