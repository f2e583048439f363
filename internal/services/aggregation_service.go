package services

import (
	"context"
	"fmt"
	"time"

	"dinemart/internal/billing"
	"dinemart/internal/caching"
	"dinemart/internal/models"
	"dinemart/internal/repositories"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AggregationService computes per-tenant, per-month order facts. Pure read;
// closed months are referentially transparent and memoized in Redis, the open
// month is always recomputed so draft previews stay fresh.
type AggregationService interface {
	Aggregate(ctx context.Context, tenantID uuid.UUID, month billing.Month) (models.PeriodAggregate, error)
}

type aggregationService struct {
	tenantRepo repositories.TenantRepository
	orderFacts repositories.OrderFactsRepository
	cache      caching.CacheService
	cacheTTL   time.Duration
	now        func() time.Time
}

func NewAggregationService(
	tenantRepo repositories.TenantRepository,
	orderFacts repositories.OrderFactsRepository,
	cache caching.CacheService,
	cacheTTL time.Duration,
) AggregationService {
	return &aggregationService{
		tenantRepo: tenantRepo,
		orderFacts: orderFacts,
		cache:      cache,
		cacheTTL:   cacheTTL,
		now:        time.Now,
	}
}

func (s *aggregationService) Aggregate(ctx context.Context, tenantID uuid.UUID, month billing.Month) (models.PeriodAggregate, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return models.ZeroAggregate(), err
	}

	loc, err := tenant.Location()
	if err != nil {
		return models.ZeroAggregate(), fmt.Errorf("tenant %s has invalid timezone %q: %w", tenantID, tenant.Timezone, err)
	}

	closed := month.ClosedAt(s.now(), loc)
	if closed {
		cached, err := s.cache.GetPeriodAggregate(ctx, tenantID, month.String())
		if err != nil {
			// Cache trouble never blocks billing; fall through to the source.
			logrus.WithError(err).WithField("tenant_id", tenantID).Warn("aggregate cache read failed")
		}
		if cached != nil {
			return *cached, nil
		}
	}

	start, end := month.Bounds(loc)
	agg, err := s.orderFacts.GetPeriodFacts(ctx, tenantID, start, end)
	if err != nil {
		return models.ZeroAggregate(), fmt.Errorf("%w: tenant %s month %s: %v", billing.ErrAggregationFailure, tenantID, month, err)
	}

	if closed {
		if err := s.cache.SetPeriodAggregate(ctx, tenantID, month.String(), agg, s.cacheTTL); err != nil {
			logrus.WithError(err).WithField("tenant_id", tenantID).Warn("aggregate cache write failed")
		}
	}

	return agg, nil
}
