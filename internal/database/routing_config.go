package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/routepbx/routepbx/internal/database/models"
)

// routingConfigRepo implements RoutingConfigRepository.
type routingConfigRepo struct {
	db *DB
}

// NewRoutingConfigRepository creates a new RoutingConfigRepository.
func NewRoutingConfigRepository(db *DB) RoutingConfigRepository {
	return &routingConfigRepo{db: db}
}

// Create inserts a routing config for a tenant.
func (r *routingConfigRepo) Create(ctx context.Context, rc *models.RoutingConfig) error {
	err := r.db.QueryRowContext(ctx, r.db.Rebind(
		`INSERT INTO routing_configs (tenant_id, internal_prefix, voicemail_prefix,
		 pstn_gateway, enable_e164, codec_string)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		rc.TenantID, rc.InternalPrefix, rc.VoicemailPrefix,
		rc.PSTNGateway, rc.EnableE164, rc.CodecString,
	).Scan(&rc.ID)
	if err != nil {
		return fmt.Errorf("inserting routing config: %w", err)
	}
	return nil
}

// GetByTenant returns the tenant's routing config, or nil if none exists.
func (r *routingConfigRepo) GetByTenant(ctx context.Context, tenantID int64) (*models.RoutingConfig, error) {
	var rc models.RoutingConfig
	err := r.db.QueryRowContext(ctx, r.db.Rebind(
		`SELECT id, tenant_id, internal_prefix, voicemail_prefix, pstn_gateway,
		 enable_e164, codec_string, created_at, updated_at
		 FROM routing_configs WHERE tenant_id = ?`), tenantID,
	).Scan(&rc.ID, &rc.TenantID, &rc.InternalPrefix, &rc.VoicemailPrefix,
		&rc.PSTNGateway, &rc.EnableE164, &rc.CodecString, &rc.CreatedAt, &rc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning routing config: %w", err)
	}
	return &rc, nil
}
