package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dinemart/internal/billing"
	"dinemart/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const invoiceColumns = `id, tenant_id, month, billing_model, base_fee, order_count, order_revenue, commission_percent, commission_fee, total_due, status, generated_at, finalized_at, paid_at, created_at, updated_at`

// uniqueViolation is the Postgres error code the (tenant_id, month) unique
// constraint raises on a concurrent double-create.
const uniqueViolation = "23505"

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	// GetByTenantAndMonth returns (nil, nil) when no invoice exists; absence
	// is a normal generator outcome, not an error.
	GetByTenantAndMonth(ctx context.Context, tenantID uuid.UUID, month string) (*models.Invoice, error)
	// UpdateDraft rewrites invoice content only while the row is still a
	// draft. Returns false if the row advanced concurrently.
	UpdateDraft(ctx context.Context, invoice *models.Invoice) (bool, error)
	// TransitionStatus advances one invoice from -> to, stamping
	// finalized_at / paid_at as the target status requires. Returns false
	// when the row was not in the expected state.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
	// Reopen drops a pending or overdue invoice back to draft, clearing its
	// lifecycle stamps. The audited correction path.
	Reopen(ctx context.Context, id uuid.UUID, from string) (bool, error)
	FinalizeMonth(ctx context.Context, month string) (int64, error)
	SweepOverdue(ctx context.Context, finalizedBefore time.Time) (int64, error)
	ListByMonth(ctx context.Context, month, status string, limit, offset int) ([]*models.Invoice, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Invoice, error)
	SumTotalDue(ctx context.Context, month string, statuses []string) (decimal.Decimal, error)
}

type invoiceRepo struct {
	db DB
}

func NewInvoiceRepo(db DB) InvoiceRepository {
	return &invoiceRepo{db: db}
}

func scanInvoice(row pgx.Row) (*models.Invoice, error) {
	inv := &models.Invoice{}
	err := row.Scan(&inv.ID, &inv.TenantID, &inv.Month, &inv.BillingModel, &inv.BaseFee, &inv.OrderCount, &inv.OrderRevenue, &inv.CommissionPercent, &inv.CommissionFee, &inv.TotalDue, &inv.Status, &inv.GeneratedAt, &inv.FinalizedAt, &inv.PaidAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *invoiceRepo) Create(ctx context.Context, invoice *models.Invoice) error {
	query := `
		INSERT INTO invoices (id, tenant_id, month, billing_model, base_fee, order_count, order_revenue, commission_percent, commission_fee, total_due, status, generated_at, finalized_at, paid_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, invoice.ID, invoice.TenantID, invoice.Month, invoice.BillingModel, invoice.BaseFee, invoice.OrderCount, invoice.OrderRevenue, invoice.CommissionPercent, invoice.CommissionFee, invoice.TotalDue, invoice.Status, invoice.GeneratedAt, invoice.FinalizedAt, invoice.PaidAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: tenant %s month %s", billing.ErrDuplicateInvoice, invoice.TenantID, invoice.Month)
	}
	return err
}

func (r *invoiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE id = $1
	`
	invoice, err := scanInvoice(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", billing.ErrInvoiceNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (r *invoiceRepo) GetByTenantAndMonth(ctx context.Context, tenantID uuid.UUID, month string) (*models.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE tenant_id = $1 AND month = $2
	`
	invoice, err := scanInvoice(r.db.QueryRow(ctx, query, tenantID, month))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (r *invoiceRepo) UpdateDraft(ctx context.Context, invoice *models.Invoice) (bool, error) {
	query := `
		UPDATE invoices
		SET billing_model = $1, base_fee = $2, order_count = $3, order_revenue = $4, commission_percent = $5, commission_fee = $6, total_due = $7, generated_at = $8, updated_at = NOW()
		WHERE tenant_id = $9 AND month = $10 AND status = 'draft'
	`
	tag, err := r.db.Exec(ctx, query, invoice.BillingModel, invoice.BaseFee, invoice.OrderCount, invoice.OrderRevenue, invoice.CommissionPercent, invoice.CommissionFee, invoice.TotalDue, invoice.GeneratedAt, invoice.TenantID, invoice.Month)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *invoiceRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	// The CASE expressions see the pre-update row, so stamps are taken from
	// the state being left.
	query := `
		UPDATE invoices
		SET status = $1,
			finalized_at = CASE WHEN $1 = 'pending' AND status = 'draft' THEN NOW() ELSE finalized_at END,
			paid_at = CASE WHEN $1 = 'paid' THEN NOW() ELSE paid_at END,
			updated_at = NOW()
		WHERE id = $2 AND status = $3
	`
	tag, err := r.db.Exec(ctx, query, to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *invoiceRepo) Reopen(ctx context.Context, id uuid.UUID, from string) (bool, error) {
	query := `
		UPDATE invoices
		SET status = 'draft', finalized_at = NULL, paid_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`
	tag, err := r.db.Exec(ctx, query, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *invoiceRepo) FinalizeMonth(ctx context.Context, month string) (int64, error) {
	query := `
		UPDATE invoices
		SET status = 'pending', finalized_at = NOW(), updated_at = NOW()
		WHERE month = $1 AND status = 'draft'
	`
	tag, err := r.db.Exec(ctx, query, month)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *invoiceRepo) SweepOverdue(ctx context.Context, finalizedBefore time.Time) (int64, error) {
	// Only pending rows match, so re-running never re-stamps an invoice
	// already overdue.
	query := `
		UPDATE invoices
		SET status = 'overdue', updated_at = NOW()
		WHERE status = 'pending' AND finalized_at IS NOT NULL AND finalized_at < $1
	`
	tag, err := r.db.Exec(ctx, query, finalizedBefore)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *invoiceRepo) ListByMonth(ctx context.Context, month, status string, limit, offset int) ([]*models.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE month = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at ASC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.Query(ctx, query, month, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectInvoices(rows)
}

func (r *invoiceRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE tenant_id = $1
		ORDER BY month DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectInvoices(rows)
}

// SumTotalDue sums total_due over the given statuses; an empty month matches
// all months. Feeds the billing summary view.
func (r *invoiceRepo) SumTotalDue(ctx context.Context, month string, statuses []string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(total_due), 0)
		FROM invoices
		WHERE ($1 = '' OR month = $1) AND status = ANY($2)
	`
	var sum decimal.Decimal
	if err := r.db.QueryRow(ctx, query, month, statuses).Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

func collectInvoices(rows pgx.Rows) ([]*models.Invoice, error) {
	var invoices []*models.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}
