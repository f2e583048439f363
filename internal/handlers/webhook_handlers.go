package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"dinemart/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// WebhookHandlers receives payment gateway notifications
type WebhookHandlers struct {
	gateway             services.PaymentGatewayService
	subscriptionService services.SubscriptionService
	invoiceService      services.InvoiceService
}

// NewWebhookHandlers creates a new webhook handlers instance
func NewWebhookHandlers(
	gateway services.PaymentGatewayService,
	subscriptionService services.SubscriptionService,
	invoiceService services.InvoiceService,
) *WebhookHandlers {
	return &WebhookHandlers{
		gateway:             gateway,
		subscriptionService: subscriptionService,
		invoiceService:      invoiceService,
	}
}

// RazorpayWebhook handles POST /webhooks/razorpay
func (h *WebhookHandlers) RazorpayWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read request body")
	}

	signature := c.Request().Header.Get("X-Razorpay-Signature")
	if signature == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing Razorpay signature")
	}

	event, err := h.gateway.VerifyWebhook(c.Request().Context(), body, signature)
	if err != nil {
		if errors.Is(err, services.ErrInvalidWebhookSignature) {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid webhook signature")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.processEvent(c, event); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "success",
		"event":  event.Event,
	})
}

func (h *WebhookHandlers) processEvent(c echo.Context, event *services.PaymentEvent) error {
	ctx := c.Request().Context()

	switch event.Event {
	case services.EventPaymentCaptured:
		if err := h.subscriptionService.HandlePaymentSucceeded(ctx, event.TenantID); err != nil {
			return err
		}
		if event.InvoiceID != uuid.Nil {
			// Settle the referenced invoice. An invalid transition here
			// means it was already paid; the payment itself stands.
			if err := h.invoiceService.MarkPaid(ctx, event.InvoiceID); err != nil {
				logrus.WithError(err).WithField("invoice_id", event.InvoiceID).Warn("payment captured but invoice not settled")
			}
		}
		return nil
	case services.EventPaymentFailed:
		failedAt := time.Unix(event.CreatedAt, 0)
		if event.CreatedAt == 0 {
			failedAt = time.Now()
		}
		return h.subscriptionService.HandlePaymentFailed(ctx, event.TenantID, failedAt)
	default:
		// Unknown events are acknowledged so the gateway stops retrying.
		logrus.WithField("event", event.Event).Debug("ignoring unhandled webhook event")
		return nil
	}
}
