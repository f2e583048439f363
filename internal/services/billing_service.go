package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dinemart/internal/billing"
	"dinemart/internal/models"
	"dinemart/internal/repositories"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// subscriptionPageSize bounds each page when walking active tenants.
const subscriptionPageSize = 200

// GenerationOutcome describes one tenant's result in a generation batch.
type GenerationOutcome struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	InvoiceID uuid.UUID `json:"invoice_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// GenerationError is a per-tenant failure that did not abort the batch.
type GenerationError struct {
	TenantID uuid.UUID `json:"tenant_id"`
	Message  string    `json:"message"`
}

// GenerationResult is the fold of a generation batch. It is reported, not
// persisted; callers decide whether to re-run.
type GenerationResult struct {
	Month   string              `json:"month"`
	Created []GenerationOutcome `json:"created"`
	Skipped []GenerationOutcome `json:"skipped"`
	Errors  []GenerationError   `json:"errors"`
}

// Skip reasons. "already finalized" is informational; operators must be able
// to tell it apart from an actionable failure.
const (
	skipDraftKept        = "draft exists; overwrite_drafts not set"
	skipAlreadyFinalized = "already finalized"
	skipConcurrentRace   = "invoice created concurrently"
)

// BillingService materializes subscription state into per-tenant monthly
// invoices. One tenant's bad data never blocks billing for the rest, and an
// invoice past draft is never touched.
type BillingService interface {
	Generate(ctx context.Context, month billing.Month, overwriteDrafts bool) (*GenerationResult, error)
	GenerateForTenant(ctx context.Context, tenantID uuid.UUID, month billing.Month, overwriteDrafts bool) (*models.Invoice, error)
}

type billingService struct {
	subscriptionRepo repositories.SubscriptionRepository
	invoiceRepo      repositories.InvoiceRepository
	aggregator       AggregationService
	workers          int
}

func NewBillingService(
	subscriptionRepo repositories.SubscriptionRepository,
	invoiceRepo repositories.InvoiceRepository,
	aggregator AggregationService,
	workers int,
) BillingService {
	if workers <= 0 {
		workers = 1
	}
	return &billingService{
		subscriptionRepo: subscriptionRepo,
		invoiceRepo:      invoiceRepo,
		aggregator:       aggregator,
		workers:          workers,
	}
}

// Generate walks every active subscription and creates or refreshes its draft
// invoice for the month. Tenants run concurrently under a bounded pool; the
// (tenant_id, month) unique constraint is the authoritative race guard.
func (s *billingService) Generate(ctx context.Context, month billing.Month, overwriteDrafts bool) (*GenerationResult, error) {
	result := &GenerationResult{Month: month.String()}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.workers)

	offset := 0
	for {
		// A systemic listing failure aborts the whole batch; per-tenant
		// failures below do not.
		subscriptions, err := s.subscriptionRepo.ListByStatus(ctx, models.SubscriptionActive, subscriptionPageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list active subscriptions: %w", err)
		}
		if len(subscriptions) == 0 {
			break
		}
		offset += len(subscriptions)

		for _, subscription := range subscriptions {
			wg.Add(1)
			sem <- struct{}{}
			go func(sub *models.Subscription) {
				defer wg.Done()
				defer func() { <-sem }()

				outcome, created, err := s.generateOne(ctx, sub, month, overwriteDrafts)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err != nil:
					result.Errors = append(result.Errors, GenerationError{TenantID: sub.TenantID, Message: err.Error()})
				case created:
					result.Created = append(result.Created, outcome)
				default:
					result.Skipped = append(result.Skipped, outcome)
				}
			}(subscription)
		}
	}

	wg.Wait()

	logrus.WithFields(logrus.Fields{
		"month":   month.String(),
		"created": len(result.Created),
		"skipped": len(result.Skipped),
		"errors":  len(result.Errors),
	}).Info("invoice generation finished")

	return result, nil
}

// GenerateForTenant prices a single tenant's month, with the same skip rules
// as the batch. Used for operator previews against the open month.
func (s *billingService) GenerateForTenant(ctx context.Context, tenantID uuid.UUID, month billing.Month, overwriteDrafts bool) (*models.Invoice, error) {
	subscription, err := s.subscriptionRepo.GetByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !subscription.Billable() {
		return nil, fmt.Errorf("%w: cannot bill %s subscription", billing.ErrInvalidTransition, subscription.Status)
	}

	outcome, created, err := s.generateOne(ctx, subscription, month, overwriteDrafts)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, fmt.Errorf("invoice not regenerated: %s", outcome.Reason)
	}
	return s.invoiceRepo.GetByID(ctx, outcome.InvoiceID)
}

func (s *billingService) generateOne(ctx context.Context, subscription *models.Subscription, month billing.Month, overwriteDrafts bool) (GenerationOutcome, bool, error) {
	outcome := GenerationOutcome{TenantID: subscription.TenantID}

	existing, err := s.invoiceRepo.GetByTenantAndMonth(ctx, subscription.TenantID, month.String())
	if err != nil {
		return outcome, false, fmt.Errorf("failed to look up existing invoice: %v", err)
	}

	if existing != nil {
		outcome.InvoiceID = existing.ID
		if existing.Status != models.InvoiceDraft {
			// Never overwritten, regardless of flags.
			outcome.Reason = fmt.Sprintf("%s (%s)", skipAlreadyFinalized, existing.Status)
			return outcome, false, nil
		}
		if !overwriteDrafts {
			outcome.Reason = skipDraftKept
			return outcome, false, nil
		}
	}

	aggregate, err := s.aggregator.Aggregate(ctx, subscription.TenantID, month)
	if err != nil {
		return outcome, false, err
	}

	charges, err := billing.Compute(subscription.BillingModel, subscription.BaseFee, subscription.CommissionPercent, aggregate)
	if err != nil {
		return outcome, false, err
	}

	invoice := &models.Invoice{
		ID:                uuid.New(),
		TenantID:          subscription.TenantID,
		Month:             month.String(),
		BillingModel:      subscription.BillingModel,
		BaseFee:           charges.BaseFee,
		OrderCount:        aggregate.OrderCount,
		OrderRevenue:      aggregate.OrderRevenue,
		CommissionPercent: charges.CommissionPercent,
		CommissionFee:     charges.CommissionFee,
		TotalDue:          charges.TotalDue,
		Status:            models.InvoiceDraft,
		GeneratedAt:       time.Now(),
	}

	if existing != nil {
		invoice.ID = existing.ID
		updated, err := s.invoiceRepo.UpdateDraft(ctx, invoice)
		if err != nil {
			return outcome, false, fmt.Errorf("failed to rewrite draft: %v", err)
		}
		if !updated {
			// The draft advanced between our read and write.
			outcome.Reason = skipAlreadyFinalized
			return outcome, false, nil
		}
		outcome.InvoiceID = invoice.ID
		return outcome, true, nil
	}

	if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
		if errors.Is(err, billing.ErrDuplicateInvoice) {
			// Lost a concurrent create; the other writer's invoice stands.
			outcome.Reason = skipConcurrentRace
			return outcome, false, nil
		}
		return outcome, false, fmt.Errorf("failed to create invoice: %v", err)
	}

	outcome.InvoiceID = invoice.ID
	return outcome, true, nil
}
