package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/routepbx/routepbx/internal/database/models"
)

// tenantRepo implements TenantRepository.
type tenantRepo struct {
	db *DB
}

// NewTenantRepository creates a new TenantRepository.
func NewTenantRepository(db *DB) TenantRepository {
	return &tenantRepo{db: db}
}

const tenantColumns = `id, name, domain, created_at, updated_at`

// Create inserts a new tenant.
func (r *tenantRepo) Create(ctx context.Context, t *models.Tenant) error {
	err := r.db.QueryRowContext(ctx, r.db.Rebind(
		`INSERT INTO tenants (name, domain) VALUES (?, ?) RETURNING id`),
		t.Name, t.Domain,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("inserting tenant: %w", err)
	}
	return nil
}

// GetByID returns a tenant by ID, or nil if not found.
func (r *tenantRepo) GetByID(ctx context.Context, id int64) (*models.Tenant, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, r.db.Rebind(
		`SELECT `+tenantColumns+` FROM tenants WHERE id = ?`), id))
}

// GetByDomain returns the tenant owning the given domain, or nil.
func (r *tenantRepo) GetByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, r.db.Rebind(
		`SELECT `+tenantColumns+` FROM tenants WHERE domain = ?`), domain))
}

// GetEarliest returns the earliest-created tenant, or nil if none exist.
func (r *tenantRepo) GetEarliest(ctx context.Context) (*models.Tenant, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY created_at, id LIMIT 1`))
}

// List returns all tenants in creation order.
func (r *tenantRepo) List(ctx context.Context) ([]models.Tenant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying tenants: %w", err)
	}
	defer rows.Close()

	var tenants []models.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Domain, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning tenant row: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// Count returns the number of tenants.
func (r *tenantRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tenants`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting tenants: %w", err)
	}
	return n, nil
}

func (r *tenantRepo) scanOne(row *sql.Row) (*models.Tenant, error) {
	var t models.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Domain, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning tenant: %w", err)
	}
	return &t, nil
}
