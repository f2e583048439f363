package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"dinemart/internal/billing"
	"dinemart/internal/common"
	"dinemart/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// snapshotURLExpiry bounds how long an archived snapshot link stays valid.
const snapshotURLExpiry = 24 * time.Hour

// InvoiceHandlers handles HTTP requests for individual invoices
type InvoiceHandlers struct {
	invoiceService services.InvoiceService
	snapshotStore  services.SnapshotStore
}

// NewInvoiceHandlers creates a new invoice handlers instance
func NewInvoiceHandlers(invoiceService services.InvoiceService, snapshotStore services.SnapshotStore) *InvoiceHandlers {
	return &InvoiceHandlers{
		invoiceService: invoiceService,
		snapshotStore:  snapshotStore,
	}
}

// ListInvoices handles GET /invoices?month=YYYY-MM&status=pending
func (h *InvoiceHandlers) ListInvoices(c echo.Context) error {
	ctx := c.Request().Context()

	month, err := monthParam(c.QueryParam("month"))
	if err != nil {
		return common.SendValidationError(c, "month", "must be in YYYY-MM format")
	}

	limit, offset, err := common.ValidatePaginationParams(
		intQueryParam(c, "limit", 50), intQueryParam(c, "offset", 0))
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	invoices, err := h.invoiceService.ListByMonth(ctx, month, c.QueryParam("status"), limit, offset)
	if err != nil {
		return common.SendServerError(c, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"month":    month.String(),
		"invoices": invoices,
		"limit":    limit,
		"offset":   offset,
	})
}

// ListTenantInvoices handles GET /tenants/:tenant_id/invoices
// Returns the tenant's billing history, newest month first.
func (h *InvoiceHandlers) ListTenantInvoices(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := common.ValidateUUID(c.Param("tenant_id"), "tenant_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	limit, offset, err := common.ValidatePaginationParams(
		intQueryParam(c, "limit", 50), intQueryParam(c, "offset", 0))
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	invoices, err := h.invoiceService.ListByTenant(ctx, tenantID, limit, offset)
	if err != nil {
		return common.SendServerError(c, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tenant_id": tenantID,
		"invoices":  invoices,
		"limit":     limit,
		"offset":    offset,
	})
}

// GetInvoice handles GET /invoices/:id
func (h *InvoiceHandlers) GetInvoice(c echo.Context) error {
	ctx := c.Request().Context()

	invoiceID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	invoice, err := h.invoiceService.GetByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, billing.ErrInvoiceNotFound) {
			return common.SendNotFoundError(c, "invoice")
		}
		return common.SendServerError(c, err.Error())
	}
	return c.JSON(http.StatusOK, invoice)
}

// MarkPaid handles POST /invoices/:id/pay
func (h *InvoiceHandlers) MarkPaid(c echo.Context) error {
	return h.transition(c, h.invoiceService.MarkPaid, "Invoice marked paid")
}

// MarkPending handles POST /invoices/:id/pending
func (h *InvoiceHandlers) MarkPending(c echo.Context) error {
	return h.transition(c, h.invoiceService.MarkPending, "Invoice marked pending")
}

// ReopenInvoice handles POST /invoices/:id/reopen
// Drops a pending or overdue invoice back to draft for correction.
func (h *InvoiceHandlers) ReopenInvoice(c echo.Context) error {
	ctx := c.Request().Context()

	invoiceID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	var req struct {
		Note string `json:"note"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := common.ValidateRequiredString(req.Note, "note"); err != nil {
		return common.SendValidationError(c, "note", err.Error())
	}

	if err := h.invoiceService.Reopen(ctx, invoiceID, req.Note); err != nil {
		return mapInvoiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Invoice reopened as draft"})
}

// ArchiveSnapshot handles POST /invoices/:id/snapshot
// Archives the invoice snapshot to object storage and returns a download link.
func (h *InvoiceHandlers) ArchiveSnapshot(c echo.Context) error {
	ctx := c.Request().Context()

	invoiceID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	snapshot, err := h.invoiceService.Snapshot(ctx, invoiceID)
	if err != nil {
		return mapInvoiceError(c, err)
	}

	objectName, err := h.snapshotStore.Put(ctx, snapshot)
	if err != nil {
		return common.SendServerError(c, "Failed to archive snapshot: "+err.Error())
	}

	url, err := h.snapshotStore.PresignedURL(ctx, objectName, snapshotURLExpiry)
	if err != nil {
		return common.SendServerError(c, "Failed to generate download URL: "+err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"object":     objectName,
		"url":        url,
		"expires_in": snapshotURLExpiry.String(),
	})
}

func (h *InvoiceHandlers) transition(c echo.Context, apply func(ctx context.Context, id uuid.UUID) error, message string) error {
	ctx := c.Request().Context()

	invoiceID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	if err := apply(ctx, invoiceID); err != nil {
		return mapInvoiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": message})
}

func intQueryParam(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func mapInvoiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, billing.ErrInvoiceNotFound), errors.Is(err, billing.ErrTenantNotFound):
		return common.SendNotFoundError(c, "invoice")
	case errors.Is(err, billing.ErrInvalidTransition):
		return common.SendConflictError(c, err.Error())
	default:
		return common.SendServerError(c, err.Error())
	}
}
