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
	"github.com/calebhrenchir/granted.gg-sub001/internal/money"
)

// activitySelectList is the column list for SELECT on activities.
const activitySelectList = `id, link_id, type, amount_cents, platform_fee,
		external_ref, buyer_email, created_at`

// ActivityRepository is the activity recorder: the only code path that
// appends ledger entries and mutates a link's cached counters. Every write
// pairs the activity insert with the counter update in one transaction, and
// counters are incremented in SQL so concurrent events never lose updates.
type ActivityRepository struct {
	db  *sql.DB
	log logger.Logger
}

// NewActivityRepository creates a new repository.
func NewActivityRepository(db *sql.DB, log logger.Logger) *ActivityRepository {
	return &ActivityRepository{db: db, log: log}
}

// PurchaseInput carries the fields of a confirmed purchase.
type PurchaseInput struct {
	LinkID string
	// BaseAmountCents is the base price charged into the seller-fee
	// calculation (gross buyer payment minus the buyer surcharge).
	BaseAmountCents int64
	// FeePercent is the seller's platform fee percent, snapshotted onto
	// the activity so later fee changes never rewrite history.
	FeePercent int
	// ExternalRef is the rail's checkout/payment reference. Unique: a
	// retried confirmation returns domain.ErrDuplicateRef instead of
	// crediting the seller twice.
	ExternalRef string
	BuyerEmail  string
}

// RecordClick appends a click activity and increments the link's click
// counter. Both writes commit together or neither does.
func (r *ActivityRepository) RecordClick(ctx context.Context, linkID string) (*domain.Activity, error) {
	activity := &domain.Activity{
		ID:        uuid.New().String(),
		LinkID:    linkID,
		Type:      domain.ActivityClick,
		CreatedAt: time.Now(),
	}

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := insertActivity(ctx, tx, activity); err != nil {
			return err
		}
		return execExpectOneRow(ctx, tx,
			`UPDATE links SET total_clicks = total_clicks + 1, updated_at = NOW() WHERE id = $1`,
			linkID,
		)
	})
	if err != nil {
		return nil, fmt.Errorf("record click: %w", err)
	}
	return activity, nil
}

// RecordPurchase appends a purchase activity and increments the link's
// sale counter and seller-net earnings. The three effects are one atomic
// unit; on storage failure nothing is recorded and the caller may retry.
func (r *ActivityRepository) RecordPurchase(ctx context.Context, in PurchaseInput) (*domain.Activity, error) {
	if in.FeePercent < 0 || in.FeePercent > 100 {
		return nil, &domain.ValidationError{Field: "fee_percent", Message: "must be between 0 and 100"}
	}
	if in.BaseAmountCents < 0 {
		return nil, &domain.ValidationError{Field: "amount", Message: "must not be negative"}
	}

	sellerNetCents := money.SellerNetEarnings(in.BaseAmountCents, in.FeePercent)

	activity := &domain.Activity{
		ID:          uuid.New().String(),
		LinkID:      in.LinkID,
		Type:        domain.ActivityPurchase,
		AmountCents: &in.BaseAmountCents,
		PlatformFee: &in.FeePercent,
		ExternalRef: &in.ExternalRef,
		BuyerEmail:  &in.BuyerEmail,
		CreatedAt:   time.Now(),
	}

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := insertActivity(ctx, tx, activity); err != nil {
			return err
		}
		return execExpectOneRow(ctx, tx,
			`UPDATE links
			 SET total_sales = total_sales + 1,
			     total_earnings = total_earnings + $2,
			     updated_at = NOW()
			 WHERE id = $1`,
			in.LinkID, money.ToDollars(sellerNetCents),
		)
	})
	if errors.Is(err, domain.ErrDuplicateRef) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("record purchase: %w", err)
	}

	r.log.Info("Purchase recorded",
		logger.String("link_id", in.LinkID),
		logger.Int64("base_cents", in.BaseAmountCents),
		logger.Int64("seller_net_cents", sellerNetCents),
		logger.Int("platform_fee", in.FeePercent),
	)
	return activity, nil
}

func insertActivity(ctx context.Context, tx *sql.Tx, a *domain.Activity) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO activities (id, link_id, type, amount_cents, platform_fee, external_ref, buyer_email, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.LinkID, a.Type, a.AmountCents, a.PlatformFee, a.ExternalRef, a.BuyerEmail, a.CreatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateRef
	}
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// ListByLink returns a link's activity history, oldest first.
func (r *ActivityRepository) ListByLink(ctx context.Context, linkID string) ([]domain.Activity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+activitySelectList+` FROM activities WHERE link_id = $1 ORDER BY created_at ASC`,
		linkID,
	)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	return scanActivities(rows)
}

// RecomputeLinkTotals re-derives a link's counters from its activity
// history and overwrites the cached aggregates. Earnings since the last
// withdrawal equal the seller-net sum of all purchases minus the sum of
// all withdrawals; clicks and sales are lifetime counts. The link row is
// locked for the duration so concurrent recorder writes cannot slip
// between the scan and the overwrite.
func (r *ActivityRepository) RecomputeLinkTotals(ctx context.Context, linkID string) (*domain.LinkTotals, error) {
	var totals domain.LinkTotals

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var exists bool
		lockErr := tx.QueryRowContext(ctx,
			`SELECT TRUE FROM links WHERE id = $1 FOR UPDATE`, linkID,
		).Scan(&exists)
		if errors.Is(lockErr, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if lockErr != nil {
			return fmt.Errorf("lock link: %w", lockErr)
		}

		rows, queryErr := tx.QueryContext(ctx,
			`SELECT `+activitySelectList+` FROM activities WHERE link_id = $1 ORDER BY created_at ASC`,
			linkID,
		)
		if queryErr != nil {
			return fmt.Errorf("scan activities: %w", queryErr)
		}
		defer rows.Close()

		activities, scanErr := scanActivities(rows)
		if scanErr != nil {
			return scanErr
		}

		totals = deriveTotals(activities)

		return execExpectOneRow(ctx, tx,
			`UPDATE links
			 SET total_clicks = $2, total_sales = $3, total_earnings = $4, updated_at = NOW()
			 WHERE id = $1`,
			linkID, totals.TotalClicks, totals.TotalSales, totals.TotalEarnings,
		)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("recompute link totals: %w", err)
	}
	return &totals, nil
}

// deriveTotals replays an activity history into aggregate counters,
// applying the same fee arithmetic the recorder used at write time.
func deriveTotals(activities []domain.Activity) domain.LinkTotals {
	var earningsCents int64
	totals := domain.LinkTotals{TotalEarnings: decimal.Zero}

	for i := range activities {
		a := &activities[i]
		switch a.Type {
		case domain.ActivityClick:
			totals.TotalClicks++
		case domain.ActivityPurchase:
			totals.TotalSales++
			if a.AmountCents != nil && a.PlatformFee != nil {
				earningsCents += money.SellerNetEarnings(*a.AmountCents, *a.PlatformFee)
			}
		case domain.ActivityWithdraw:
			if a.AmountCents != nil {
				earningsCents -= *a.AmountCents
			}
		}
	}

	totals.TotalEarnings = money.ToDollars(earningsCents)
	return totals
}

func scanActivities(rows *sql.Rows) ([]domain.Activity, error) {
	var activities []domain.Activity
	for rows.Next() {
		var a domain.Activity
		err := rows.Scan(
			&a.ID, &a.LinkID, &a.Type, &a.AmountCents, &a.PlatformFee,
			&a.ExternalRef, &a.BuyerEmail, &a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}
