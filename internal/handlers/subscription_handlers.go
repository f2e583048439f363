package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"dinemart/internal/billing"
	"dinemart/internal/common"
	"dinemart/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// SubscriptionHandlers handles HTTP requests for subscription lifecycle
type SubscriptionHandlers struct {
	subscriptionService services.SubscriptionService
	trialDays           int
}

// NewSubscriptionHandlers creates a new subscription handlers instance
func NewSubscriptionHandlers(subscriptionService services.SubscriptionService, trialDays int) *SubscriptionHandlers {
	return &SubscriptionHandlers{
		subscriptionService: subscriptionService,
		trialDays:           trialDays,
	}
}

// CreateSubscription handles POST /tenants/:tenant_id/subscription
// Onboards the tenant into a trial subscription.
func (h *SubscriptionHandlers) CreateSubscription(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := common.ValidateUUID(c.Param("tenant_id"), "tenant_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	var req struct {
		BillingModel      string `json:"billing_model"`
		BaseFee           string `json:"base_fee"`
		CommissionPercent string `json:"commission_percent"`
		TrialDays         *int   `json:"trial_days"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	baseFee, err := decimal.NewFromString(req.BaseFee)
	if err != nil {
		return common.SendValidationError(c, "base_fee", "must be a decimal number")
	}
	commissionPercent := decimal.Zero
	if req.CommissionPercent != "" {
		commissionPercent, err = decimal.NewFromString(req.CommissionPercent)
		if err != nil {
			return common.SendValidationError(c, "commission_percent", "must be a decimal number")
		}
	}

	trialDays := h.trialDays
	if req.TrialDays != nil && *req.TrialDays > 0 {
		trialDays = *req.TrialDays
	}
	trialEndsAt := time.Now().AddDate(0, 0, trialDays)

	subscription, err := h.subscriptionService.Create(ctx, tenantID, req.BillingModel, baseFee, commissionPercent, trialEndsAt)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidBillingModel) {
			return common.SendValidationError(c, "billing_model", err.Error())
		}
		return common.SendServerError(c, "Failed to create subscription: "+err.Error())
	}

	return c.JSON(http.StatusCreated, subscription)
}

// GetSubscription handles GET /tenants/:tenant_id/subscription
func (h *SubscriptionHandlers) GetSubscription(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := common.ValidateUUID(c.Param("tenant_id"), "tenant_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	subscription, err := h.subscriptionService.GetByTenantID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, billing.ErrSubscriptionNotFound) {
			return common.SendNotFoundError(c, "subscription")
		}
		return common.SendServerError(c, err.Error())
	}
	return c.JSON(http.StatusOK, subscription)
}

// ActivateSubscription handles POST /tenants/:tenant_id/subscription/activate
func (h *SubscriptionHandlers) ActivateSubscription(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := common.ValidateUUID(c.Param("tenant_id"), "tenant_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	var req struct {
		Tier    string `json:"tier"`
		Cadence string `json:"cadence"`
		Note    string `json:"note"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	subscription, err := h.subscriptionService.Activate(ctx, tenantID, req.Tier, req.Cadence, req.Note)
	if err != nil {
		return mapSubscriptionError(c, err)
	}
	return c.JSON(http.StatusOK, subscription)
}

// SuspendSubscription handles POST /tenants/:tenant_id/subscription/suspend
func (h *SubscriptionHandlers) SuspendSubscription(c echo.Context) error {
	return h.simpleTransition(c, h.subscriptionService.Suspend, "Subscription suspended")
}

// ReactivateSubscription handles POST /tenants/:tenant_id/subscription/reactivate
func (h *SubscriptionHandlers) ReactivateSubscription(c echo.Context) error {
	return h.simpleTransition(c, h.subscriptionService.Reactivate, "Subscription reactivated")
}

// CancelSubscription handles POST /tenants/:tenant_id/subscription/cancel
func (h *SubscriptionHandlers) CancelSubscription(c echo.Context) error {
	return h.simpleTransition(c, h.subscriptionService.Cancel, "Subscription cancelled")
}

func (h *SubscriptionHandlers) simpleTransition(
	c echo.Context,
	apply func(ctx context.Context, tenantID uuid.UUID, note string) error,
	message string,
) error {
	ctx := c.Request().Context()

	tenantID, err := common.ValidateUUID(c.Param("tenant_id"), "tenant_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	var req struct {
		Note string `json:"note"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	if err := apply(ctx, tenantID, req.Note); err != nil {
		return mapSubscriptionError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": message})
}

func mapSubscriptionError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, billing.ErrSubscriptionNotFound):
		return common.SendNotFoundError(c, "subscription")
	case errors.Is(err, billing.ErrInvalidTransition):
		return common.SendConflictError(c, err.Error())
	default:
		return common.SendServerError(c, err.Error())
	}
}
