package repositories

import (
	"context"
	"time"

	"dinemart/internal/models"

	"github.com/google/uuid"
)

// OrderFactsRepository is the read-only boundary to the orders subsystem. The
// orders collaborator owns the correctness of "completed"; this engine only
// aggregates.
type OrderFactsRepository interface {
	// GetPeriodFacts aggregates completed/paid orders for the tenant whose
	// business timestamp falls in [start, end).
	GetPeriodFacts(ctx context.Context, tenantID uuid.UUID, start, end time.Time) (models.PeriodAggregate, error)
}

type orderFactsRepo struct {
	db DB
}

func NewOrderFactsRepo(db DB) OrderFactsRepository {
	return &orderFactsRepo{db: db}
}

func (r *orderFactsRepo) GetPeriodFacts(ctx context.Context, tenantID uuid.UUID, start, end time.Time) (models.PeriodAggregate, error) {
	// Cancelled/refunded orders are excluded from revenue but counted for
	// diagnostics.
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status IN ('completed', 'paid')),
			COALESCE(SUM(total_amount) FILTER (WHERE status IN ('completed', 'paid')), 0),
			COUNT(*) FILTER (WHERE status IN ('cancelled', 'refunded'))
		FROM orders
		WHERE tenant_id = $1 AND placed_at >= $2 AND placed_at < $3
	`
	agg := models.ZeroAggregate()
	err := r.db.QueryRow(ctx, query, tenantID, start, end).Scan(&agg.OrderCount, &agg.OrderRevenue, &agg.CancelledCount)
	if err != nil {
		return models.ZeroAggregate(), err
	}
	return agg, nil
}
