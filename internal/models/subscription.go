package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Subscription statuses. Terminal states (cancelled, expired) never transition
// further; a tenant coming back gets a new subscription record.
const (
	SubscriptionTrial     = "trial"
	SubscriptionActive    = "active"
	SubscriptionSuspended = "suspended"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
)

// Plan tiers.
const (
	TierBasic = "basic"
	TierPro   = "pro"
)

// Plan cadences.
const (
	CadenceMonthly = "monthly"
	CadenceYearly  = "yearly"
)

// Billing models.
const (
	BillingFlat       = "flat"
	BillingPercentage = "percentage"
	BillingHybrid     = "hybrid"
)

type Subscription struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	TenantID          uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	Status            string          `json:"status" db:"status"`
	Tier              string          `json:"tier" db:"tier"`
	PlanCadence       string          `json:"plan_cadence" db:"plan_cadence"`
	BillingModel      string          `json:"billing_model" db:"billing_model"`
	BaseFee           decimal.Decimal `json:"base_fee" db:"base_fee"`
	CommissionPercent decimal.Decimal `json:"commission_percent" db:"commission_percent"`
	TrialEndsAt       *time.Time      `json:"trial_ends_at" db:"trial_ends_at"`
	ActivatedAt       *time.Time      `json:"activated_at" db:"activated_at"`
	SetupFeeCharged   bool            `json:"setup_fee_charged" db:"setup_fee_charged"`
	DelinquentSince   *time.Time      `json:"delinquent_since" db:"delinquent_since"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// ValidTier reports whether tier is a known plan tier.
func ValidTier(tier string) bool {
	return tier == TierBasic || tier == TierPro
}

// ValidCadence reports whether cadence is a known plan cadence.
func ValidCadence(cadence string) bool {
	return cadence == CadenceMonthly || cadence == CadenceYearly
}

// ValidBillingModel reports whether model is one of flat, percentage, hybrid.
func ValidBillingModel(model string) bool {
	return model == BillingFlat || model == BillingPercentage || model == BillingHybrid
}

// Billable reports whether this subscription is eligible for invoice
// generation. Trial, suspended and terminal tenants keep their historical
// invoices but get no new ones.
func (s *Subscription) Billable() bool {
	return s.Status == SubscriptionActive
}
