package billing

import "errors"

// Error taxonomy for the billing engine. Single-item operations surface these
// directly; batch operations fold them into per-tenant error lists.
var (
	// ErrInvalidBillingModel rejects unknown billing model values at the
	// boundary instead of letting them propagate.
	ErrInvalidBillingModel = errors.New("invalid billing model")

	// ErrNegativeAggregate guards against negative revenue reaching the
	// policy. Upstream should never produce it.
	ErrNegativeAggregate = errors.New("negative order revenue in aggregate")

	// ErrTenantNotFound is returned when a tenant id is unknown.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrInvalidTransition is returned for disallowed subscription or
	// invoice status transitions. Never silently ignored.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDuplicateInvoice is the mapped unique-constraint violation on
	// (tenant_id, month). Batch generation recovers it as a skip.
	ErrDuplicateInvoice = errors.New("invoice already exists for tenant and month")

	// ErrInvoiceNotFound is returned when an invoice id is unknown.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrAggregationFailure wraps upstream order-facts lookup failures.
	// Isolated per tenant during batch generation.
	ErrAggregationFailure = errors.New("order facts aggregation failed")

	// ErrSubscriptionNotFound is returned when a tenant has no
	// subscription record.
	ErrSubscriptionNotFound = errors.New("subscription not found")
)
