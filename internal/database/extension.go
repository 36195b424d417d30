package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/routepbx/routepbx/internal/database/models"
)

// extensionRepo implements ExtensionRepository.
type extensionRepo struct {
	db *DB
}

// NewExtensionRepository creates a new ExtensionRepository.
func NewExtensionRepository(db *DB) ExtensionRepository {
	return &extensionRepo{db: db}
}

const extensionColumns = `id, tenant_id, extension, password, name,
	voicemail_enabled, enabled, created_at, updated_at`

// Create inserts a new extension.
func (r *extensionRepo) Create(ctx context.Context, ext *models.Extension) error {
	err := r.db.QueryRowContext(ctx, r.db.Rebind(
		`INSERT INTO extensions (tenant_id, extension, password, name,
		 voicemail_enabled, enabled)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		ext.TenantID, ext.Extension, ext.Password, ext.Name,
		ext.VoicemailEnabled, ext.Enabled,
	).Scan(&ext.ID)
	if err != nil {
		return fmt.Errorf("inserting extension: %w", err)
	}
	return nil
}

// GetByTenantAndNumber returns the tenant's enabled extension with the given
// number, or nil.
func (r *extensionRepo) GetByTenantAndNumber(ctx context.Context, tenantID int64, number string) (*models.Extension, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, r.db.Rebind(
		`SELECT `+extensionColumns+` FROM extensions
		 WHERE tenant_id = ? AND extension = ? AND enabled = ?`),
		tenantID, number, true))
}

// FindAnyByNumber returns the first enabled extension with the given number
// across all tenants, earliest tenant first.
func (r *extensionRepo) FindAnyByNumber(ctx context.Context, number string) (*models.Extension, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, r.db.Rebind(
		`SELECT `+extensionColumns+` FROM extensions
		 WHERE extension = ? AND enabled = ?
		 ORDER BY tenant_id, id LIMIT 1`), number, true))
}

func (r *extensionRepo) scanOne(row *sql.Row) (*models.Extension, error) {
	var ext models.Extension
	err := row.Scan(&ext.ID, &ext.TenantID, &ext.Extension, &ext.Password,
		&ext.Name, &ext.VoicemailEnabled, &ext.Enabled, &ext.CreatedAt, &ext.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning extension: %w", err)
	}
	return &ext, nil
}
