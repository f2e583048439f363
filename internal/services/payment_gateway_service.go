package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Razorpay webhook event names this engine reacts to. Everything else is
// acknowledged and dropped.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
)

var ErrInvalidWebhookSignature = errors.New("webhook signature verification failed")

// PaymentEvent is the normalized gateway notification. The tenant and invoice
// ids ride in the payment notes, set when the payment link is issued.
type PaymentEvent struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	TenantID  uuid.UUID `json:"tenant_id"`
	InvoiceID uuid.UUID `json:"invoice_id,omitempty"`
	CreatedAt int64     `json:"created_at"`
}

// PaymentGatewayService verifies and decodes Razorpay webhook deliveries.
type PaymentGatewayService interface {
	VerifyWebhook(ctx context.Context, rawBody []byte, signature string) (*PaymentEvent, error)
}

type razorpayGateway struct {
	webhookSecret string
}

func NewRazorpayGateway(webhookSecret string) PaymentGatewayService {
	return &razorpayGateway{webhookSecret: webhookSecret}
}

// razorpayEnvelope mirrors the wire shape Razorpay posts. Only the fields the
// billing engine needs are decoded.
type razorpayEnvelope struct {
	ID        string `json:"id"`
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Payment struct {
			Entity struct {
				Notes struct {
					TenantID  string `json:"tenant_id"`
					InvoiceID string `json:"invoice_id"`
				} `json:"notes"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// VerifyWebhook checks the X-Razorpay-Signature HMAC against the raw body
// before anything is decoded. A bad signature is rejected, never logged with
// the body.
func (g *razorpayGateway) VerifyWebhook(ctx context.Context, rawBody []byte, signature string) (*PaymentEvent, error) {
	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, ErrInvalidWebhookSignature
	}

	var envelope razorpayEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %v", err)
	}

	tenantID, err := uuid.Parse(envelope.Payload.Payment.Entity.Notes.TenantID)
	if err != nil {
		return nil, fmt.Errorf("webhook payment notes missing tenant_id: %v", err)
	}

	event := &PaymentEvent{
		ID:        envelope.ID,
		Event:     envelope.Event,
		TenantID:  tenantID,
		CreatedAt: envelope.CreatedAt,
	}
	if raw := envelope.Payload.Payment.Entity.Notes.InvoiceID; raw != "" {
		invoiceID, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("webhook payment notes carry malformed invoice_id: %v", err)
		}
		event.InvoiceID = invoiceID
	}
	return event, nil
}
