package services

import (
	"context"
	"fmt"
	"time"

	"dinemart/internal/billing"
	"dinemart/internal/models"
	"dinemart/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// SubscriptionService owns the tenant billing lifecycle. Operator commands and
// payment-gateway events both funnel through the same transition function, so
// the state machine has a single authoritative entry point.
type SubscriptionService interface {
	Create(ctx context.Context, tenantID uuid.UUID, billingModel string, baseFee, commissionPercent decimal.Decimal, trialEndsAt time.Time) (*models.Subscription, error)
	GetByTenantID(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error)

	// Operator commands.
	Activate(ctx context.Context, tenantID uuid.UUID, tier, cadence, note string) (*models.Subscription, error)
	Suspend(ctx context.Context, tenantID uuid.UUID, note string) error
	Reactivate(ctx context.Context, tenantID uuid.UUID, note string) error
	Cancel(ctx context.Context, tenantID uuid.UUID, note string) error

	// Gateway events.
	HandlePaymentSucceeded(ctx context.Context, tenantID uuid.UUID) error
	HandlePaymentFailed(ctx context.Context, tenantID uuid.UUID, failedAt time.Time) error

	// Scheduled sweeps.
	ExpireTrials(ctx context.Context, asOf time.Time) (int, error)
}

// subscriptionTransitions is the authoritative transition table. Terminal
// states have no exits; a returning tenant gets a new subscription record.
var subscriptionTransitions = map[string][]string{
	models.SubscriptionTrial:     {models.SubscriptionActive, models.SubscriptionExpired},
	models.SubscriptionActive:    {models.SubscriptionSuspended, models.SubscriptionCancelled},
	models.SubscriptionSuspended: {models.SubscriptionActive, models.SubscriptionCancelled},
	models.SubscriptionCancelled: {},
	models.SubscriptionExpired:   {},
}

func canTransitionSubscription(from, to string) bool {
	for _, allowed := range subscriptionTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type subscriptionService struct {
	subscriptionRepo repositories.SubscriptionRepository
	auditRepo        repositories.AuditLogsRepository
	graceDays        int
}

func NewSubscriptionService(
	subscriptionRepo repositories.SubscriptionRepository,
	auditRepo repositories.AuditLogsRepository,
	graceDays int,
) SubscriptionService {
	return &subscriptionService{
		subscriptionRepo: subscriptionRepo,
		auditRepo:        auditRepo,
		graceDays:        graceDays,
	}
}

// Create onboards a tenant in trial. Tier and cadence get defaults that
// activation later confirms or overrides.
func (s *subscriptionService) Create(ctx context.Context, tenantID uuid.UUID, billingModel string, baseFee, commissionPercent decimal.Decimal, trialEndsAt time.Time) (*models.Subscription, error) {
	if !models.ValidBillingModel(billingModel) {
		return nil, fmt.Errorf("%w: %q", billing.ErrInvalidBillingModel, billingModel)
	}
	if commissionPercent.IsNegative() || baseFee.IsNegative() {
		return nil, fmt.Errorf("billing rates must not be negative")
	}

	subscription := &models.Subscription{
		ID:                uuid.New(),
		TenantID:          tenantID,
		Status:            models.SubscriptionTrial,
		Tier:              models.TierBasic,
		PlanCadence:       models.CadenceMonthly,
		BillingModel:      billingModel,
		BaseFee:           baseFee,
		CommissionPercent: commissionPercent,
		TrialEndsAt:       &trialEndsAt,
	}
	if err := s.subscriptionRepo.Create(ctx, subscription); err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	return subscription, nil
}

func (s *subscriptionService) GetByTenantID(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	return s.subscriptionRepo.GetByTenantID(ctx, tenantID)
}

// Activate moves a trial tenant to active, charging the setup fee exactly
// once. Idempotent: on an already-active tenant it only updates tier and
// cadence, never the setup-fee flag or activation stamp.
func (s *subscriptionService) Activate(ctx context.Context, tenantID uuid.UUID, tier, cadence, note string) (*models.Subscription, error) {
	if !models.ValidTier(tier) {
		return nil, fmt.Errorf("invalid tier: %q", tier)
	}
	if !models.ValidCadence(cadence) {
		return nil, fmt.Errorf("invalid plan cadence: %q", cadence)
	}

	subscription, err := s.subscriptionRepo.GetByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if subscription.Status == models.SubscriptionActive {
		subscription.Tier = tier
		subscription.PlanCadence = cadence
		if err := s.subscriptionRepo.Update(ctx, subscription); err != nil {
			return nil, err
		}
		s.audit(ctx, subscription, models.SubscriptionActive, models.SubscriptionActive, note, "operator")
		return subscription, nil
	}

	if !canTransitionSubscription(subscription.Status, models.SubscriptionActive) {
		return nil, fmt.Errorf("%w: subscription %s -> active", billing.ErrInvalidTransition, subscription.Status)
	}

	from := subscription.Status
	now := time.Now()
	subscription.Status = models.SubscriptionActive
	subscription.Tier = tier
	subscription.PlanCadence = cadence
	subscription.DelinquentSince = nil
	if subscription.ActivatedAt == nil {
		subscription.ActivatedAt = &now
	}
	if !subscription.SetupFeeCharged {
		subscription.SetupFeeCharged = true
	}

	if err := s.subscriptionRepo.Update(ctx, subscription); err != nil {
		return nil, err
	}
	s.audit(ctx, subscription, from, models.SubscriptionActive, note, "operator")
	return subscription, nil
}

func (s *subscriptionService) Suspend(ctx context.Context, tenantID uuid.UUID, note string) error {
	return s.transition(ctx, tenantID, models.SubscriptionSuspended, note, "operator")
}

func (s *subscriptionService) Reactivate(ctx context.Context, tenantID uuid.UUID, note string) error {
	subscription, err := s.subscriptionRepo.GetByTenantID(ctx, tenantID)
	if err != nil {
		return err
	}
	if subscription.Status != models.SubscriptionSuspended {
		return fmt.Errorf("%w: subscription %s -> active", billing.ErrInvalidTransition, subscription.Status)
	}
	subscription.Status = models.SubscriptionActive
	subscription.DelinquentSince = nil
	if err := s.subscriptionRepo.Update(ctx, subscription); err != nil {
		return err
	}
	s.audit(ctx, subscription, models.SubscriptionSuspended, models.SubscriptionActive, note, "operator")
	return nil
}

func (s *subscriptionService) Cancel(ctx context.Context, tenantID uuid.UUID, note string) error {
	return s.transition(ctx, tenantID, models.SubscriptionCancelled, note, "operator")
}

// HandlePaymentSucceeded is the gateway-event entry point. First payment
// activates a trial; payment on a suspended tenant recovers it; payment on an
// active tenant clears delinquency.
func (s *subscriptionService) HandlePaymentSucceeded(ctx context.Context, tenantID uuid.UUID) error {
	subscription, err := s.subscriptionRepo.GetByTenantID(ctx, tenantID)
	if err != nil {
		return err
	}

	switch subscription.Status {
	case models.SubscriptionTrial, models.SubscriptionSuspended:
		from := subscription.Status
		now := time.Now()
		subscription.Status = models.SubscriptionActive
		subscription.DelinquentSince = nil
		if subscription.ActivatedAt == nil {
			subscription.ActivatedAt = &now
		}
		if !subscription.SetupFeeCharged {
			subscription.SetupFeeCharged = true
		}
		if err := s.subscriptionRepo.Update(ctx, subscription); err != nil {
			return err
		}
		s.audit(ctx, subscription, from, models.SubscriptionActive, "payment succeeded", "gateway")
		return nil
	case models.SubscriptionActive:
		if subscription.DelinquentSince != nil {
			subscription.DelinquentSince = nil
			return s.subscriptionRepo.Update(ctx, subscription)
		}
		return nil
	default:
		return fmt.Errorf("%w: payment succeeded for %s subscription", billing.ErrInvalidTransition, subscription.Status)
	}
}

// HandlePaymentFailed stamps the first failure and suspends once failures
// have persisted past the configured grace window.
func (s *subscriptionService) HandlePaymentFailed(ctx context.Context, tenantID uuid.UUID, failedAt time.Time) error {
	subscription, err := s.subscriptionRepo.GetByTenantID(ctx, tenantID)
	if err != nil {
		return err
	}
	if subscription.Status != models.SubscriptionActive {
		logrus.WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"status":    subscription.Status,
		}).Info("ignoring payment failure for non-active subscription")
		return nil
	}

	if subscription.DelinquentSince == nil {
		subscription.DelinquentSince = &failedAt
		return s.subscriptionRepo.Update(ctx, subscription)
	}

	grace := time.Duration(s.graceDays) * 24 * time.Hour
	if failedAt.Sub(*subscription.DelinquentSince) < grace {
		return nil
	}

	subscription.Status = models.SubscriptionSuspended
	if err := s.subscriptionRepo.Update(ctx, subscription); err != nil {
		return err
	}
	s.audit(ctx, subscription, models.SubscriptionActive, models.SubscriptionSuspended,
		fmt.Sprintf("payment failing since %s", subscription.DelinquentSince.Format(time.RFC3339)), "gateway")
	return nil
}

// ExpireTrials moves every lapsed trial to expired. Per-tenant failures are
// logged and skipped so one bad record cannot stall the sweep.
func (s *subscriptionService) ExpireTrials(ctx context.Context, asOf time.Time) (int, error) {
	expired, err := s.subscriptionRepo.ListExpiredTrials(ctx, asOf.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to list expired trials: %w", err)
	}

	count := 0
	for _, subscription := range expired {
		subscription.Status = models.SubscriptionExpired
		if err := s.subscriptionRepo.Update(ctx, subscription); err != nil {
			logrus.WithError(err).WithField("tenant_id", subscription.TenantID).Error("failed to expire trial")
			continue
		}
		s.audit(ctx, subscription, models.SubscriptionTrial, models.SubscriptionExpired, "trial ended without activation", "scheduler")
		count++
	}
	return count, nil
}

// transition applies a guarded status change for the simple operator actions.
func (s *subscriptionService) transition(ctx context.Context, tenantID uuid.UUID, to, note, actor string) error {
	subscription, err := s.subscriptionRepo.GetByTenantID(ctx, tenantID)
	if err != nil {
		return err
	}
	if !canTransitionSubscription(subscription.Status, to) {
		return fmt.Errorf("%w: subscription %s -> %s", billing.ErrInvalidTransition, subscription.Status, to)
	}

	from := subscription.Status
	subscription.Status = to
	if err := s.subscriptionRepo.Update(ctx, subscription); err != nil {
		return err
	}
	s.audit(ctx, subscription, from, to, note, actor)
	return nil
}

func (s *subscriptionService) audit(ctx context.Context, subscription *models.Subscription, from, to, note, actor string) {
	entry := &models.AuditLog{
		TenantID:   subscription.TenantID,
		EntityType: "subscription",
		EntityID:   subscription.ID,
		Action:     models.AuditSubscriptionTransition,
		FromState:  from,
		ToState:    to,
		Note:       note,
		Actor:      actor,
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		// The trail is best-effort; the transition itself already committed.
		logrus.WithError(err).WithField("tenant_id", subscription.TenantID).Error("failed to write subscription audit entry")
	}
}
