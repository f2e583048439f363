package billing

import (
	"fmt"

	"dinemart/internal/models"

	"github.com/shopspring/decimal"
)

// Charges is the priced outcome of one billing period for one tenant.
// TotalDue is always BaseFee + CommissionFee, computed here and nowhere else.
type Charges struct {
	BaseFee           decimal.Decimal `json:"base_fee"`
	CommissionFee     decimal.Decimal `json:"commission_fee"`
	CommissionPercent decimal.Decimal `json:"commission_percent"`
	TotalDue          decimal.Decimal `json:"total_due"`
}

// Compute prices a period aggregate under the given billing model. Pure: no
// I/O, no state. Commission is rounded half-up to 2 decimals exactly once, at
// the point of computation; the total is a plain sum of the rounded parts.
func Compute(model string, baseFee, commissionPercent decimal.Decimal, agg models.PeriodAggregate) (Charges, error) {
	if agg.OrderRevenue.IsNegative() {
		return Charges{}, fmt.Errorf("%w: revenue %s", ErrNegativeAggregate, agg.OrderRevenue)
	}

	switch model {
	case models.BillingFlat:
		return Charges{
			BaseFee:           baseFee,
			CommissionFee:     decimal.Zero,
			CommissionPercent: decimal.Zero,
			TotalDue:          baseFee,
		}, nil
	case models.BillingPercentage:
		fee := commission(agg.OrderRevenue, commissionPercent)
		return Charges{
			BaseFee:           decimal.Zero,
			CommissionFee:     fee,
			CommissionPercent: commissionPercent,
			TotalDue:          fee,
		}, nil
	case models.BillingHybrid:
		fee := commission(agg.OrderRevenue, commissionPercent)
		return Charges{
			BaseFee:           baseFee,
			CommissionFee:     fee,
			CommissionPercent: commissionPercent,
			TotalDue:          baseFee.Add(fee),
		}, nil
	default:
		return Charges{}, fmt.Errorf("%w: %q", ErrInvalidBillingModel, model)
	}
}

// commission multiplies at full precision and rounds once. Amounts here are
// non-negative, so decimal's round-half-away-from-zero is round-half-up.
func commission(revenue, percent decimal.Decimal) decimal.Decimal {
	return revenue.Mul(percent).Round(2)
}
