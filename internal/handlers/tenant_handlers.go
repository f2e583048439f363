package handlers

import (
	"errors"
	"net/http"
	"time"

	"dinemart/internal/billing"
	"dinemart/internal/common"
	"dinemart/internal/models"
	"dinemart/internal/repositories"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// TenantHandlers handles HTTP requests for tenant records
type TenantHandlers struct {
	tenantRepo repositories.TenantRepository
}

// NewTenantHandlers creates a new tenant handlers instance
func NewTenantHandlers(tenantRepo repositories.TenantRepository) *TenantHandlers {
	return &TenantHandlers{tenantRepo: tenantRepo}
}

// CreateTenant handles POST /tenants
func (h *TenantHandlers) CreateTenant(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Name      string `json:"name"`
		Subdomain string `json:"subdomain"`
		Timezone  string `json:"timezone"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	if err := common.ValidateRequiredString(req.Name, "name"); err != nil {
		return common.SendValidationError(c, "name", err.Error())
	}
	if err := common.ValidateRequiredString(req.Subdomain, "subdomain"); err != nil {
		return common.SendValidationError(c, "subdomain", err.Error())
	}
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			return common.SendValidationError(c, "timezone", "must be a valid IANA timezone")
		}
	}

	tenant := &models.Tenant{
		ID:        uuid.New(),
		Name:      req.Name,
		Subdomain: req.Subdomain,
		Timezone:  req.Timezone,
		Status:    "active",
	}
	if err := h.tenantRepo.Create(ctx, tenant); err != nil {
		return common.SendServerError(c, "Failed to create tenant: "+err.Error())
	}
	return c.JSON(http.StatusCreated, tenant)
}

// GetTenant handles GET /tenants/:id
func (h *TenantHandlers) GetTenant(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	tenant, err := h.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, billing.ErrTenantNotFound) {
			return common.SendNotFoundError(c, "tenant")
		}
		return common.SendServerError(c, err.Error())
	}
	return c.JSON(http.StatusOK, tenant)
}

// ListTenants handles GET /tenants
func (h *TenantHandlers) ListTenants(c echo.Context) error {
	ctx := c.Request().Context()

	limit, offset, err := common.ValidatePaginationParams(
		intQueryParam(c, "limit", 50), intQueryParam(c, "offset", 0))
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	tenants, err := h.tenantRepo.List(ctx, limit, offset)
	if err != nil {
		return common.SendServerError(c, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tenants": tenants,
		"limit":   limit,
		"offset":  offset,
	})
}
