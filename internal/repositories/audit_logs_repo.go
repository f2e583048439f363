package repositories

import (
	"context"
	"time"

	"dinemart/internal/models"

	"github.com/google/uuid"
)

type AuditLogsRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	ListByEntity(ctx context.Context, tenantID, entityID uuid.UUID, limit, offset int) ([]*models.AuditLog, error)
}

type auditLogsRepo struct {
	db DB
}

func NewAuditLogsRepo(db DB) AuditLogsRepository {
	return &auditLogsRepo{db: db}
}

func (r *auditLogsRepo) Create(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()

	query := `
		INSERT INTO audit_logs (id, tenant_id, entity_type, entity_id, action, from_state, to_state, note, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query, entry.ID, entry.TenantID, entry.EntityType, entry.EntityID, entry.Action, entry.FromState, entry.ToState, entry.Note, entry.Actor, entry.CreatedAt)
	return err
}

func (r *auditLogsRepo) ListByEntity(ctx context.Context, tenantID, entityID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, tenant_id, entity_type, entity_id, action, from_state, to_state, note, actor, created_at
		FROM audit_logs
		WHERE tenant_id = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.Query(ctx, query, tenantID, entityID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.AuditLog
	for rows.Next() {
		entry := &models.AuditLog{}
		if err := rows.Scan(&entry.ID, &entry.TenantID, &entry.EntityType, &entry.EntityID, &entry.Action, &entry.FromState, &entry.ToState, &entry.Note, &entry.Actor, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
