package repository

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/calebhrenchir/granted.gg-sub001/internal/domain"
	"github.com/calebhrenchir/granted.gg-sub001/internal/logger"
	"github.com/calebhrenchir/granted.gg-sub001/internal/money"
)

// EarningLink is a snapshot of one link's withdrawable earnings, taken
// under the withdrawal lock. Settlement only zeroes a link if its earnings
// still match this snapshot.
type EarningLink struct {
	LinkID   string
	Earnings decimal.Decimal
}

// SettlementRepository performs the ledger half of a withdrawal: the
// all-or-nothing transaction that records withdraw activities and zeroes
// link earnings, plus the per-user lock that keeps two withdrawals from
// draining the same balance.
type SettlementRepository struct {
	db  *sql.DB
	log logger.Logger
}

// NewSettlementRepository creates a new repository.
func NewSettlementRepository(db *sql.DB, log logger.Logger) *SettlementRepository {
	return &SettlementRepository{db: db, log: log}
}

// AcquireWithdrawalLock takes a session-scoped advisory lock keyed by the
// user id, held on a dedicated connection for the whole withdrawal flow.
// The lock outlives any single transaction, so no transaction needs to
// stay open across the external rail calls. Returns
// domain.ErrWithdrawalInProgress when another withdrawal holds the lock.
func (r *SettlementRepository) AcquireWithdrawalLock(ctx context.Context, userID string) (release func(), err error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	key := advisoryKey(userID)

	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&acquired); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		_ = conn.Close()
		return nil, domain.ErrWithdrawalInProgress
	}

	release = func() {
		// Unlock on the owning connection; closing the connection would
		// release the lock too, but an explicit unlock returns the pooled
		// connection clean.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, unlockErr := conn.ExecContext(unlockCtx, `SELECT pg_advisory_unlock($1)`, key); unlockErr != nil {
			r.log.Warn("Failed to release withdrawal lock",
				logger.String("user_id", userID),
				logger.Error(unlockErr),
			)
		}
		_ = conn.Close()
	}
	return release, nil
}

// advisoryKey maps a user id onto the bigint keyspace of Postgres
// advisory locks.
func advisoryKey(userID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(userID))
	return int64(h.Sum64())
}

// EarningLinks snapshots every link of the user with positive earnings.
// Soft-deleted links are included: their earnings are still owed.
func (r *SettlementRepository) EarningLinks(ctx context.Context, userID string) ([]EarningLink, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, total_earnings FROM links
		 WHERE owner_id = $1 AND total_earnings > 0
		 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query earning links: %w", err)
	}
	defer rows.Close()

	var links []EarningLink
	for rows.Next() {
		var l EarningLink
		if scanErr := rows.Scan(&l.LinkID, &l.Earnings); scanErr != nil {
			return nil, fmt.Errorf("scan earning link: %w", scanErr)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// Settle records one withdraw activity per earning link and zeroes each
// link's earnings, all inside a single transaction. Every zeroing is
// conditional on the earnings still matching the snapshot; any mismatch
// rolls back the whole settlement with domain.ErrBalanceChanged, so a
// partial zeroing can never be observed.
func (r *SettlementRepository) Settle(ctx context.Context, userID string, links []EarningLink) error {
	if len(links) == 0 {
		return domain.ErrNothingToSettle
	}

	now := time.Now()

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, l := range links {
			amountCents := money.ToCents(l.Earnings)

			activity := &domain.Activity{
				ID:          uuid.New().String(),
				LinkID:      l.LinkID,
				Type:        domain.ActivityWithdraw,
				AmountCents: &amountCents,
				CreatedAt:   now,
			}
			if err := insertActivity(ctx, tx, activity); err != nil {
				return err
			}

			result, execErr := tx.ExecContext(ctx,
				`UPDATE links
				 SET total_earnings = 0, updated_at = NOW()
				 WHERE id = $1 AND total_earnings = $2`,
				l.LinkID, l.Earnings,
			)
			if execErr != nil {
				return fmt.Errorf("zero link earnings: %w", execErr)
			}
			affected, rowsErr := result.RowsAffected()
			if rowsErr != nil {
				return fmt.Errorf("get affected rows: %w", rowsErr)
			}
			if affected == 0 {
				return domain.ErrBalanceChanged
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Info("Withdrawal settled",
		logger.String("user_id", userID),
		logger.Int("links", len(links)),
	)
	return nil
}
