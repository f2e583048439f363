package repositories

import (
	"context"
	"errors"
	"fmt"

	"dinemart/internal/billing"
	"dinemart/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const subscriptionColumns = `id, tenant_id, status, tier, plan_cadence, billing_model, base_fee, commission_percent, trial_ends_at, activated_at, setup_fee_charged, delinquent_since, created_at, updated_at`

type SubscriptionRepository interface {
	Create(ctx context.Context, subscription *models.Subscription) error
	GetByTenantID(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error)
	Update(ctx context.Context, subscription *models.Subscription) error
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]*models.Subscription, error)
	ListExpiredTrials(ctx context.Context, asOf int64) ([]*models.Subscription, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type subscriptionRepo struct {
	db DB
}

func NewSubscriptionRepo(db DB) SubscriptionRepository {
	return &subscriptionRepo{db: db}
}

func scanSubscription(row pgx.Row) (*models.Subscription, error) {
	s := &models.Subscription{}
	err := row.Scan(&s.ID, &s.TenantID, &s.Status, &s.Tier, &s.PlanCadence, &s.BillingModel, &s.BaseFee, &s.CommissionPercent, &s.TrialEndsAt, &s.ActivatedAt, &s.SetupFeeCharged, &s.DelinquentSince, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *subscriptionRepo) Create(ctx context.Context, subscription *models.Subscription) error {
	query := `
		INSERT INTO subscriptions (id, tenant_id, status, tier, plan_cadence, billing_model, base_fee, commission_percent, trial_ends_at, activated_at, setup_fee_charged, delinquent_since, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, subscription.ID, subscription.TenantID, subscription.Status, subscription.Tier, subscription.PlanCadence, subscription.BillingModel, subscription.BaseFee, subscription.CommissionPercent, subscription.TrialEndsAt, subscription.ActivatedAt, subscription.SetupFeeCharged, subscription.DelinquentSince)
	return err
}

func (r *subscriptionRepo) GetByTenantID(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE tenant_id = $1
	`
	subscription, err := scanSubscription(r.db.QueryRow(ctx, query, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: tenant %s", billing.ErrSubscriptionNotFound, tenantID)
	}
	if err != nil {
		return nil, err
	}
	return subscription, nil
}

func (r *subscriptionRepo) Update(ctx context.Context, subscription *models.Subscription) error {
	query := `
		UPDATE subscriptions
		SET status = $1, tier = $2, plan_cadence = $3, billing_model = $4, base_fee = $5, commission_percent = $6, trial_ends_at = $7, activated_at = $8, setup_fee_charged = $9, delinquent_since = $10, updated_at = NOW()
		WHERE tenant_id = $11 AND id = $12
	`
	_, err := r.db.Exec(ctx, query, subscription.Status, subscription.Tier, subscription.PlanCadence, subscription.BillingModel, subscription.BaseFee, subscription.CommissionPercent, subscription.TrialEndsAt, subscription.ActivatedAt, subscription.SetupFeeCharged, subscription.DelinquentSince, subscription.TenantID, subscription.ID)
	return err
}

func (r *subscriptionRepo) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subscriptions []*models.Subscription
	for rows.Next() {
		subscription, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subscriptions = append(subscriptions, subscription)
	}
	return subscriptions, rows.Err()
}

// ListExpiredTrials returns trial subscriptions whose trial_ends_at has passed
// asOf (unix seconds). Used by the daily trial-expiry sweep.
func (r *subscriptionRepo) ListExpiredTrials(ctx context.Context, asOf int64) ([]*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = 'trial' AND trial_ends_at IS NOT NULL AND trial_ends_at < to_timestamp($1)
		ORDER BY trial_ends_at ASC
	`
	rows, err := r.db.Query(ctx, query, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subscriptions []*models.Subscription
	for rows.Next() {
		subscription, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subscriptions = append(subscriptions, subscription)
	}
	return subscriptions, rows.Err()
}

func (r *subscriptionRepo) CountByStatus(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM subscriptions
		GROUP BY status
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
