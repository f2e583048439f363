package analytics

import (
	"context"
	"fmt"
	"time"

	"dinemart/internal/billing"
	"dinemart/internal/caching"
	"dinemart/internal/models"
	"dinemart/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// summaryCacheTTL keeps the operator dashboard snappy without letting the
// numbers drift far behind the source tables.
const summaryCacheTTL = 5 * time.Minute

// BillingSummary is the operator-facing financial snapshot. Expected revenue
// covers the named month only; outstanding spans every unpaid month.
type BillingSummary struct {
	Month           string          `json:"month"`
	ExpectedRevenue decimal.Decimal `json:"monthly_expected_revenue"`
	PaidThisMonth   decimal.Decimal `json:"paid_this_month"`
	Outstanding     decimal.Decimal `json:"outstanding"`
	Subscriptions   map[string]int  `json:"subscriptions_by_status"`
	ComputedAt      time.Time       `json:"computed_at"`
}

type SummaryService interface {
	Summary(ctx context.Context, month billing.Month) (*BillingSummary, error)
	// Refresh recomputes and recaches the summary, used by the scheduler so
	// the first dashboard hit after a sweep is already warm.
	Refresh(ctx context.Context, month billing.Month) (*BillingSummary, error)
}

type summaryService struct {
	invoiceRepo      repositories.InvoiceRepository
	subscriptionRepo repositories.SubscriptionRepository
	cache            caching.CacheService
	now              func() time.Time
}

func NewSummaryService(
	invoiceRepo repositories.InvoiceRepository,
	subscriptionRepo repositories.SubscriptionRepository,
	cache caching.CacheService,
) SummaryService {
	return &summaryService{
		invoiceRepo:      invoiceRepo,
		subscriptionRepo: subscriptionRepo,
		cache:            cache,
		now:              time.Now,
	}
}

func summaryKey(month string) string {
	return fmt.Sprintf("billing:summary:%s", month)
}

func (s *summaryService) Summary(ctx context.Context, month billing.Month) (*BillingSummary, error) {
	var cached BillingSummary
	hit, err := s.cache.GetJSON(ctx, summaryKey(month.String()), &cached)
	if err != nil {
		logrus.WithError(err).Warn("summary cache read failed")
	}
	if hit {
		return &cached, nil
	}
	return s.Refresh(ctx, month)
}

func (s *summaryService) Refresh(ctx context.Context, month billing.Month) (*BillingSummary, error) {
	expected, err := s.invoiceRepo.SumTotalDue(ctx, month.String(), []string{models.InvoiceDraft, models.InvoicePending})
	if err != nil {
		return nil, fmt.Errorf("failed to sum expected revenue: %w", err)
	}

	paid, err := s.invoiceRepo.SumTotalDue(ctx, month.String(), []string{models.InvoicePaid})
	if err != nil {
		return nil, fmt.Errorf("failed to sum paid revenue: %w", err)
	}

	outstanding, err := s.invoiceRepo.SumTotalDue(ctx, "", []string{models.InvoicePending, models.InvoiceOverdue})
	if err != nil {
		return nil, fmt.Errorf("failed to sum outstanding balance: %w", err)
	}

	counts, err := s.subscriptionRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count subscriptions: %w", err)
	}

	summary := &BillingSummary{
		Month:           month.String(),
		ExpectedRevenue: expected,
		PaidThisMonth:   paid,
		Outstanding:     outstanding,
		Subscriptions:   counts,
		ComputedAt:      s.now(),
	}

	if err := s.cache.SetJSON(ctx, summaryKey(month.String()), summary, summaryCacheTTL); err != nil {
		logrus.WithError(err).Warn("summary cache write failed")
	}
	return summary, nil
}
