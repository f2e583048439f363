package models

import (
	"github.com/shopspring/decimal"
)

// Order statuses owned by the orders collaborator. Only completed and paid
// orders count toward billable revenue.
const (
	OrderCompleted = "completed"
	OrderPaid      = "paid"
	OrderCancelled = "cancelled"
	OrderRefunded  = "refunded"
)

// PeriodAggregate is the computed order facts for one tenant and one calendar
// month. CancelledCount is diagnostic only and never enters billing math.
type PeriodAggregate struct {
	OrderCount     int             `json:"order_count"`
	OrderRevenue   decimal.Decimal `json:"order_revenue"`
	CancelledCount int             `json:"cancelled_count"`
}

// ZeroAggregate is the aggregate for a tenant with no orders in the month.
// Having no orders is a valid billing outcome, not an error.
func ZeroAggregate() PeriodAggregate {
	return PeriodAggregate{OrderRevenue: decimal.Zero}
}
