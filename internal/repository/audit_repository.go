package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/culinaryhub/culinary-school-api/internal/models"
)

// AuditRepository records privileged actions.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends an audit entry.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	entry.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO audit_logs (user_id, action, resource, resource_id, detail, ip_address, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query,
		entry.UserID, entry.Action, entry.Resource, entry.ResourceID,
		entry.Detail, entry.IPAddress, entry.CreatedAt,
	).Scan(&entry.ID); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ListRecent returns the newest audit entries.
func (r *AuditRepository) ListRecent(ctx context.Context, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const query = `SELECT id, user_id, action, resource, resource_id, detail, ip_address, created_at
        FROM audit_logs ORDER BY created_at DESC LIMIT $1`
	var entries []models.AuditLog
	if err := r.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return entries, nil
}
