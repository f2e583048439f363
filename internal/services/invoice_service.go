package services

import (
	"context"
	"fmt"
	"time"

	"dinemart/internal/billing"
	"dinemart/internal/common"
	"dinemart/internal/models"
	"dinemart/internal/repositories"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// InvoiceService is the invoice lifecycle controller. Content belongs to the
// generator; this service only moves status, and only forward except through
// the audited reopen path.
type InvoiceService interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	ListByMonth(ctx context.Context, month billing.Month, status string, limit, offset int) ([]*models.Invoice, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Invoice, error)

	// Finalize commits every draft of the month to pending. Returns the
	// count finalized; non-drafts are untouched.
	Finalize(ctx context.Context, month billing.Month) (int64, error)
	MarkPaid(ctx context.Context, id uuid.UUID) error
	MarkPending(ctx context.Context, id uuid.UUID) error
	// Reopen drops a pending or overdue invoice back to draft for
	// correction. Audited; the only path that ever moves status backward.
	Reopen(ctx context.Context, id uuid.UUID, note string) error
	// SweepOverdue flags pending invoices finalized more than
	// dueWindowDays before asOf. Idempotent.
	SweepOverdue(ctx context.Context, asOf time.Time, dueWindowDays int) (int64, error)

	Snapshot(ctx context.Context, id uuid.UUID) (*models.InvoiceSnapshot, error)
}

// invoiceTransitions is the invoice status machine. paid is terminal.
var invoiceTransitions = map[string][]string{
	models.InvoiceDraft:   {models.InvoicePending},
	models.InvoicePending: {models.InvoicePaid, models.InvoiceOverdue},
	models.InvoiceOverdue: {models.InvoicePaid, models.InvoicePending},
	models.InvoicePaid:    {},
}

func canTransitionInvoice(from, to string) bool {
	for _, allowed := range invoiceTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type invoiceService struct {
	invoiceRepo repositories.InvoiceRepository
	tenantRepo  repositories.TenantRepository
	auditRepo   repositories.AuditLogsRepository
}

func NewInvoiceService(
	invoiceRepo repositories.InvoiceRepository,
	tenantRepo repositories.TenantRepository,
	auditRepo repositories.AuditLogsRepository,
) InvoiceService {
	return &invoiceService{
		invoiceRepo: invoiceRepo,
		tenantRepo:  tenantRepo,
		auditRepo:   auditRepo,
	}
}

func (s *invoiceService) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return s.invoiceRepo.GetByID(ctx, id)
}

func (s *invoiceService) ListByMonth(ctx context.Context, month billing.Month, status string, limit, offset int) ([]*models.Invoice, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.invoiceRepo.ListByMonth(ctx, month.String(), status, limit, offset)
}

func (s *invoiceService) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Invoice, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.invoiceRepo.ListByTenant(ctx, tenantID, limit, offset)
}

func (s *invoiceService) Finalize(ctx context.Context, month billing.Month) (int64, error) {
	count, err := s.invoiceRepo.FinalizeMonth(ctx, month.String())
	if err != nil {
		return 0, fmt.Errorf("failed to finalize month %s: %w", month, err)
	}
	logrus.WithFields(logrus.Fields{"month": month.String(), "finalized": count}).Info("finalized draft invoices")
	return count, nil
}

func (s *invoiceService) MarkPaid(ctx context.Context, id uuid.UUID) error {
	return s.advance(ctx, id, models.InvoicePaid)
}

// MarkPending moves a draft straight to pending (skipping the month-wide
// finalize) or resets an overdue invoice after a manual grace extension.
func (s *invoiceService) MarkPending(ctx context.Context, id uuid.UUID) error {
	return s.advance(ctx, id, models.InvoicePending)
}

func (s *invoiceService) Reopen(ctx context.Context, id uuid.UUID, note string) error {
	invoice, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if invoice.Status != models.InvoicePending && invoice.Status != models.InvoiceOverdue {
		return fmt.Errorf("%w: invoice %s -> draft", billing.ErrInvalidTransition, invoice.Status)
	}

	reopened, err := s.invoiceRepo.Reopen(ctx, id, invoice.Status)
	if err != nil {
		return err
	}
	if !reopened {
		return fmt.Errorf("%w: invoice advanced concurrently", billing.ErrInvalidTransition)
	}

	actor := "operator"
	if operatorID, ok := common.GetOperatorIDFromContext(ctx); ok {
		actor = operatorID.String()
	}
	entry := &models.AuditLog{
		TenantID:   invoice.TenantID,
		EntityType: "invoice",
		EntityID:   invoice.ID,
		Action:     models.AuditInvoiceReopened,
		FromState:  invoice.Status,
		ToState:    models.InvoiceDraft,
		Note:       note,
		Actor:      actor,
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		logrus.WithError(err).WithField("invoice_id", id).Error("failed to write invoice audit entry")
	}
	return nil
}

func (s *invoiceService) SweepOverdue(ctx context.Context, asOf time.Time, dueWindowDays int) (int64, error) {
	cutoff := asOf.AddDate(0, 0, -dueWindowDays)
	count, err := s.invoiceRepo.SweepOverdue(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("overdue sweep failed: %w", err)
	}
	if count > 0 {
		logrus.WithFields(logrus.Fields{"overdue": count, "cutoff": cutoff}).Info("swept pending invoices to overdue")
	}
	return count, nil
}

func (s *invoiceService) Snapshot(ctx context.Context, id uuid.UUID) (*models.InvoiceSnapshot, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tenant, err := s.tenantRepo.GetByID(ctx, invoice.TenantID)
	if err != nil {
		return nil, err
	}

	return &models.InvoiceSnapshot{
		InvoiceID:     invoice.ID,
		TenantID:      tenant.ID,
		TenantName:    tenant.Name,
		Month:         invoice.Month,
		BillingModel:  invoice.BillingModel,
		BaseFee:       invoice.BaseFee,
		OrderCount:    invoice.OrderCount,
		OrderRevenue:  invoice.OrderRevenue,
		CommissionFee: invoice.CommissionFee,
		TotalDue:      invoice.TotalDue,
		Status:        invoice.Status,
		GeneratedAt:   invoice.GeneratedAt,
	}, nil
}

// advance validates the transition against the loaded row, then applies it
// with a status-guarded update so a concurrent writer cannot double-apply.
func (s *invoiceService) advance(ctx context.Context, id uuid.UUID, to string) error {
	invoice, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !canTransitionInvoice(invoice.Status, to) {
		return fmt.Errorf("%w: invoice %s -> %s", billing.ErrInvalidTransition, invoice.Status, to)
	}

	applied, err := s.invoiceRepo.TransitionStatus(ctx, id, invoice.Status, to)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("%w: invoice advanced concurrently", billing.ErrInvalidTransition)
	}
	return nil
}
