package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/routepbx/routepbx/internal/database/models"
)

// billingConfigRepo implements BillingConfigRepository.
type billingConfigRepo struct {
	db *DB
}

// NewBillingConfigRepository creates a new BillingConfigRepository.
func NewBillingConfigRepository(db *DB) BillingConfigRepository {
	return &billingConfigRepo{db: db}
}

// Create inserts a billing config for a tenant.
func (r *billingConfigRepo) Create(ctx context.Context, bc *models.BillingConfig) error {
	err := r.db.QueryRowContext(ctx, r.db.Rebind(
		`INSERT INTO billing_configs (tenant_id, currency, default_rate_per_minute,
		 default_increment_seconds, default_setup_fee, tax_percent, prepaid_enabled,
		 balance_amount)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		bc.TenantID, bc.Currency, bc.DefaultRatePerMinute,
		bc.DefaultIncrementSeconds, bc.DefaultSetupFee, bc.TaxPercent,
		bc.PrepaidEnabled, bc.BalanceAmount,
	).Scan(&bc.ID)
	if err != nil {
		return fmt.Errorf("inserting billing config: %w", err)
	}
	return nil
}

// GetByTenant returns the tenant's billing config, or nil if none exists.
func (r *billingConfigRepo) GetByTenant(ctx context.Context, tenantID int64) (*models.BillingConfig, error) {
	var bc models.BillingConfig
	err := r.db.QueryRowContext(ctx, r.db.Rebind(
		`SELECT id, tenant_id, currency, default_rate_per_minute,
		 default_increment_seconds, default_setup_fee, tax_percent,
		 prepaid_enabled, balance_amount, created_at, updated_at
		 FROM billing_configs WHERE tenant_id = ?`), tenantID,
	).Scan(&bc.ID, &bc.TenantID, &bc.Currency, &bc.DefaultRatePerMinute,
		&bc.DefaultIncrementSeconds, &bc.DefaultSetupFee, &bc.TaxPercent,
		&bc.PrepaidEnabled, &bc.BalanceAmount, &bc.CreatedAt, &bc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning billing config: %w", err)
	}
	return &bc, nil
}

// Debit subtracts amount from the tenant's prepaid balance.
func (r *billingConfigRepo) Debit(ctx context.Context, tenantID int64, amount float64) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE billing_configs SET balance_amount = balance_amount - ?
		 WHERE tenant_id = ?`), amount, tenantID)
	if err != nil {
		return fmt.Errorf("debiting balance: %w", err)
	}
	return nil
}
