// Package ledger exposes the read side of the activity ledger: balance
// aggregation and reconciliation of the cached link counters.
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/calebhrenchir/granted.gg-sub001/internal/domain"
	"github.com/calebhrenchir/granted.gg-sub001/internal/logger"
	"github.com/calebhrenchir/granted.gg-sub001/internal/metrics"
	"github.com/calebhrenchir/granted.gg-sub001/internal/repository"
)

// Service answers balance queries and repairs aggregate drift.
type Service struct {
	links      *repository.LinkRepository
	activities *repository.ActivityRepository
	metrics    *metrics.Metrics
	log        logger.Logger
}

// NewService creates a ledger service.
func NewService(
	links *repository.LinkRepository,
	activities *repository.ActivityRepository,
	m *metrics.Metrics,
	log logger.Logger,
) *Service {
	return &Service{links: links, activities: activities, metrics: m, log: log}
}

// AvailableBalance returns the user's withdrawable dollars: the sum of
// total_earnings over all of the user's links, soft-deleted ones included.
// The read reflects the latest committed recorder writes.
func (s *Service) AvailableBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	return s.links.AvailableBalance(ctx, userID)
}

// ReconcileReport compares a link's cached counters with the counters
// re-derived from its activity history.
type ReconcileReport struct {
	LinkID string            `json:"link_id"`
	Before domain.LinkTotals `json:"before"`
	After  domain.LinkTotals `json:"after"`
	Drift  bool              `json:"drift"`
}

// Reconcile re-derives a link's counters from the activity history and
// overwrites the cached values, reporting any drift it repaired. The
// activity log is the source of truth; the link row is a materialized
// cache of it.
func (s *Service) Reconcile(ctx context.Context, linkID string) (*ReconcileReport, error) {
	link, err := s.links.GetByID(ctx, linkID)
	if err != nil {
		return nil, err
	}

	before := domain.LinkTotals{
		TotalClicks:   link.TotalClicks,
		TotalSales:    link.TotalSales,
		TotalEarnings: link.TotalEarnings,
	}

	after, err := s.activities.RecomputeLinkTotals(ctx, linkID)
	if err != nil {
		return nil, fmt.Errorf("recompute totals: %w", err)
	}

	report := &ReconcileReport{
		LinkID: linkID,
		Before: before,
		After:  *after,
		Drift: before.TotalClicks != after.TotalClicks ||
			before.TotalSales != after.TotalSales ||
			!before.TotalEarnings.Equal(after.TotalEarnings),
	}

	if report.Drift {
		s.metrics.ReconcileDrifts.Inc()
		s.log.Warn("Link aggregates drifted from activity history",
			logger.String("link_id", linkID),
			logger.Int64("clicks_before", before.TotalClicks),
			logger.Int64("clicks_after", after.TotalClicks),
			logger.Int64("sales_before", before.TotalSales),
			logger.Int64("sales_after", after.TotalSales),
			logger.String("earnings_before", before.TotalEarnings.StringFixed(2)),
			logger.String("earnings_after", after.TotalEarnings.StringFixed(2)),
		)
	}
	return report, nil
}
