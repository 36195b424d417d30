package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/routepbx/routepbx/internal/database/models"
)

// inboundRouteRepo implements InboundRouteRepository.
type inboundRouteRepo struct {
	db *DB
}

// NewInboundRouteRepository creates a new InboundRouteRepository.
func NewInboundRouteRepository(db *DB) InboundRouteRepository {
	return &inboundRouteRepo{db: db}
}

const inboundRouteColumns = `id, tenant_id, did_number, destination_type,
	destination_value, priority, enabled, created_at, updated_at`

// Create inserts a new inbound route.
func (r *inboundRouteRepo) Create(ctx context.Context, route *models.InboundRoute) error {
	err := r.db.QueryRowContext(ctx, r.db.Rebind(
		`INSERT INTO inbound_routes (tenant_id, did_number, destination_type,
		 destination_value, priority, enabled)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		route.TenantID, route.DIDNumber, route.DestinationType,
		route.DestinationValue, route.Priority, route.Enabled,
	).Scan(&route.ID)
	if err != nil {
		return fmt.Errorf("inserting inbound route: %w", err)
	}
	return nil
}

// FirstEnabledByDID returns the winning enabled route for an exact DID match
// across all tenants: lowest priority first, creation order breaking ties.
// Nil if no enabled route matches.
func (r *inboundRouteRepo) FirstEnabledByDID(ctx context.Context, did string) (*models.InboundRoute, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, r.db.Rebind(
		`SELECT `+inboundRouteColumns+` FROM inbound_routes
		 WHERE did_number = ? AND enabled = ?
		 ORDER BY priority, created_at, id LIMIT 1`), did, true))
}

// FirstEnabledByDIDAndTenant is FirstEnabledByDID scoped to one tenant.
func (r *inboundRouteRepo) FirstEnabledByDIDAndTenant(ctx context.Context, did string, tenantID int64) (*models.InboundRoute, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, r.db.Rebind(
		`SELECT `+inboundRouteColumns+` FROM inbound_routes
		 WHERE did_number = ? AND tenant_id = ? AND enabled = ?
		 ORDER BY priority, created_at, id LIMIT 1`), did, tenantID, true))
}

func (r *inboundRouteRepo) scanOne(row *sql.Row) (*models.InboundRoute, error) {
	var route models.InboundRoute
	err := row.Scan(&route.ID, &route.TenantID, &route.DIDNumber, &route.DestinationType,
		&route.DestinationValue, &route.Priority, &route.Enabled, &route.CreatedAt, &route.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning inbound route: %w", err)
	}
	return &route, nil
}
