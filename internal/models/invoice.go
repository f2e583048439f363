package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice statuses. Drafts are regeneratable; everything past draft is
// content-immutable and only moves by status transition.
const (
	InvoiceDraft   = "draft"
	InvoicePending = "pending"
	InvoicePaid    = "paid"
	InvoiceOverdue = "overdue"
)

// Invoice is the per-tenant, per-month billing record. (tenant_id, month) is
// unique at the storage layer; the billing model and rates are frozen copies
// taken from the subscription at generation time.
type Invoice struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	TenantID          uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	Month             string          `json:"month" db:"month"`
	BillingModel      string          `json:"billing_model" db:"billing_model"`
	BaseFee           decimal.Decimal `json:"base_fee" db:"base_fee"`
	OrderCount        int             `json:"order_count" db:"order_count"`
	OrderRevenue      decimal.Decimal `json:"order_revenue" db:"order_revenue"`
	CommissionPercent decimal.Decimal `json:"commission_percent" db:"commission_percent"`
	CommissionFee     decimal.Decimal `json:"commission_fee" db:"commission_fee"`
	TotalDue          decimal.Decimal `json:"total_due" db:"total_due"`
	Status            string          `json:"status" db:"status"`
	GeneratedAt       time.Time       `json:"generated_at" db:"generated_at"`
	FinalizedAt       *time.Time      `json:"finalized_at" db:"finalized_at"`
	PaidAt            *time.Time      `json:"paid_at" db:"paid_at"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// InvoiceSnapshot is the read-only projection handed to document and email
// collaborators. This engine does not render PDFs or send mail.
type InvoiceSnapshot struct {
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	TenantName    string          `json:"tenant_name"`
	Month         string          `json:"month"`
	BillingModel  string          `json:"billing_model"`
	BaseFee       decimal.Decimal `json:"base_fee"`
	OrderCount    int             `json:"order_count"`
	OrderRevenue  decimal.Decimal `json:"order_revenue"`
	CommissionFee decimal.Decimal `json:"commission_fee"`
	TotalDue      decimal.Decimal `json:"total_due"`
	Status        string          `json:"status"`
	GeneratedAt   time.Time       `json:"generated_at"`
}
