package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded by the billing engine.
const (
	AuditSubscriptionTransition = "SUBSCRIPTION_TRANSITION"
	AuditInvoiceReopened        = "INVOICE_REOPENED"
	AuditInvoiceTransition      = "INVOICE_TRANSITION"
)

// AuditLog records operator and system actions against billing entities.
// Subscriptions are never hard-deleted, so this trail plus the soft states is
// the full lifecycle history.
type AuditLog struct {
	ID         uuid.UUID `json:"id" db:"id"`
	TenantID   uuid.UUID `json:"tenant_id" db:"tenant_id"`
	EntityType string    `json:"entity_type" db:"entity_type"`
	EntityID   uuid.UUID `json:"entity_id" db:"entity_id"`
	Action     string    `json:"action" db:"action"`
	FromState  string    `json:"from_state" db:"from_state"`
	ToState    string    `json:"to_state" db:"to_state"`
	Note       string    `json:"note" db:"note"`
	Actor      string    `json:"actor" db:"actor"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
