package handlers

import (
	"errors"
	"net/http"
	"time"

	"dinemart/internal/analytics"
	"dinemart/internal/billing"
	"dinemart/internal/common"
	"dinemart/internal/services"

	"github.com/labstack/echo/v4"
)

// BillingHandlers exposes the batch billing operations to operators
type BillingHandlers struct {
	billingService services.BillingService
	invoiceService services.InvoiceService
	summaryService analytics.SummaryService
	dueWindowDays  int
}

// NewBillingHandlers creates a new billing handlers instance
func NewBillingHandlers(
	billingService services.BillingService,
	invoiceService services.InvoiceService,
	summaryService analytics.SummaryService,
	dueWindowDays int,
) *BillingHandlers {
	return &BillingHandlers{
		billingService: billingService,
		invoiceService: invoiceService,
		summaryService: summaryService,
		dueWindowDays:  dueWindowDays,
	}
}

// monthParam parses a YYYY-MM body or query value, defaulting to the
// previous calendar month when absent.
func monthParam(raw string) (billing.Month, error) {
	if raw == "" {
		return billing.MonthOf(time.Now()).Prev(), nil
	}
	return billing.ParseMonth(raw)
}

// GenerateInvoices handles POST /billing/generate
// Runs batch invoice generation for every active subscription.
func (h *BillingHandlers) GenerateInvoices(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Month           string `json:"month"`
		OverwriteDrafts bool   `json:"overwrite_drafts"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	month, err := monthParam(req.Month)
	if err != nil {
		return common.SendValidationError(c, "month", "must be in YYYY-MM format")
	}

	result, err := h.billingService.Generate(ctx, month, req.OverwriteDrafts)
	if err != nil {
		return common.SendServerError(c, "Invoice generation failed: "+err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

// GenerateTenantInvoice handles POST /billing/tenants/:tenant_id/generate
// Prices a single tenant, including open-month previews.
func (h *BillingHandlers) GenerateTenantInvoice(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := common.ValidateUUID(c.Param("tenant_id"), "tenant_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	var req struct {
		Month           string `json:"month"`
		OverwriteDrafts bool   `json:"overwrite_drafts"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	month, err := monthParam(req.Month)
	if err != nil {
		return common.SendValidationError(c, "month", "must be in YYYY-MM format")
	}

	invoice, err := h.billingService.GenerateForTenant(ctx, tenantID, month, req.OverwriteDrafts)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrSubscriptionNotFound), errors.Is(err, billing.ErrTenantNotFound):
			return common.SendNotFoundError(c, "tenant")
		case errors.Is(err, billing.ErrInvalidTransition):
			return common.SendConflictError(c, err.Error())
		default:
			return common.SendServerError(c, err.Error())
		}
	}
	return c.JSON(http.StatusOK, invoice)
}

// FinalizeMonth handles POST /billing/finalize
// Commits every draft of the month to pending.
func (h *BillingHandlers) FinalizeMonth(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Month string `json:"month"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	month, err := monthParam(req.Month)
	if err != nil {
		return common.SendValidationError(c, "month", "must be in YYYY-MM format")
	}

	count, err := h.invoiceService.Finalize(ctx, month)
	if err != nil {
		return common.SendServerError(c, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"month":     month.String(),
		"finalized": count,
	})
}

// SweepOverdue handles POST /billing/sweep-overdue
func (h *BillingHandlers) SweepOverdue(c echo.Context) error {
	ctx := c.Request().Context()

	count, err := h.invoiceService.SweepOverdue(ctx, time.Now(), h.dueWindowDays)
	if err != nil {
		return common.SendServerError(c, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"overdue": count,
	})
}

// GetBillingSummary handles GET /billing/summary?month=YYYY-MM
func (h *BillingHandlers) GetBillingSummary(c echo.Context) error {
	ctx := c.Request().Context()

	month, err := monthParam(c.QueryParam("month"))
	if err != nil {
		return common.SendValidationError(c, "month", "must be in YYYY-MM format")
	}

	summary, err := h.summaryService.Summary(ctx, month)
	if err != nil {
		return common.SendServerError(c, err.Error())
	}
	return c.JSON(http.StatusOK, summary)
}
