package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/routepbx/routepbx/internal/database/models"
)

// gatewayRepo implements GatewayRepository.
type gatewayRepo struct {
	db *DB
}

// NewGatewayRepository creates a new GatewayRepository.
func NewGatewayRepository(db *DB) GatewayRepository {
	return &gatewayRepo{db: db}
}

const gatewayColumns = `id, tenant_id, name, caller_id_name, caller_id_number,
	enabled, created_at, updated_at`

// Create inserts a new gateway.
func (r *gatewayRepo) Create(ctx context.Context, gw *models.Gateway) error {
	err := r.db.QueryRowContext(ctx, r.db.Rebind(
		`INSERT INTO gateways (tenant_id, name, caller_id_name, caller_id_number, enabled)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`),
		gw.TenantID, gw.Name, gw.CallerIDName, gw.CallerIDNumber, gw.Enabled,
	).Scan(&gw.ID)
	if err != nil {
		return fmt.Errorf("inserting gateway: %w", err)
	}
	return nil
}

// GetByID returns a gateway by ID, or nil if not found.
func (r *gatewayRepo) GetByID(ctx context.Context, id int64) (*models.Gateway, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, r.db.Rebind(
		`SELECT `+gatewayColumns+` FROM gateways WHERE id = ?`), id))
}

// GetByTenantAndName returns the tenant's gateway with the given name, or nil.
func (r *gatewayRepo) GetByTenantAndName(ctx context.Context, tenantID int64, name string) (*models.Gateway, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, r.db.Rebind(
		`SELECT `+gatewayColumns+` FROM gateways WHERE tenant_id = ? AND name = ?`),
		tenantID, name))
}

func (r *gatewayRepo) scanOne(row *sql.Row) (*models.Gateway, error) {
	var gw models.Gateway
	err := row.Scan(&gw.ID, &gw.TenantID, &gw.Name, &gw.CallerIDName,
		&gw.CallerIDNumber, &gw.Enabled, &gw.CreatedAt, &gw.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning gateway: %w", err)
	}
	return &gw, nil
}
