package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/routepbx/routepbx/internal/database/models"
)

// outboundRuleRepo implements OutboundRuleRepository.
type outboundRuleRepo struct {
	db *DB
}

// NewOutboundRuleRepository creates a new OutboundRuleRepository.
func NewOutboundRuleRepository(db *DB) OutboundRuleRepository {
	return &outboundRuleRepo{db: db}
}

const outboundRuleColumns = `id, tenant_id, gateway_id, name, match_prefix,
	priority, strip_digits, prepend, billing_enabled, billing_rate_per_minute,
	billing_setup_fee, billing_increment_seconds, billing_cid, enabled,
	created_at, updated_at`

// Create inserts a new outbound rule.
func (r *outboundRuleRepo) Create(ctx context.Context, rule *models.OutboundRule) error {
	err := r.db.QueryRowContext(ctx, r.db.Rebind(
		`INSERT INTO outbound_rules (tenant_id, gateway_id, name, match_prefix,
		 priority, strip_digits, prepend, billing_enabled, billing_rate_per_minute,
		 billing_setup_fee, billing_increment_seconds, billing_cid, enabled)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		rule.TenantID, rule.GatewayID, rule.Name, rule.MatchPrefix,
		rule.Priority, rule.StripDigits, rule.Prepend, rule.BillingEnabled,
		rule.BillingRatePerMinute, rule.BillingSetupFee,
		rule.BillingIncrementSeconds, rule.BillingCID, rule.Enabled,
	).Scan(&rule.ID)
	if err != nil {
		return fmt.Errorf("inserting outbound rule: %w", err)
	}
	return nil
}

// ListEnabledByTenant returns the tenant's enabled rules ordered by
// priority asc then creation order.
func (r *outboundRuleRepo) ListEnabledByTenant(ctx context.Context, tenantID int64) ([]models.OutboundRule, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(
		`SELECT `+outboundRuleColumns+` FROM outbound_rules
		 WHERE tenant_id = ? AND enabled = ?
		 ORDER BY priority, created_at, id`), tenantID, true)
	if err != nil {
		return nil, fmt.Errorf("querying outbound rules: %w", err)
	}
	defer rows.Close()

	var rules []models.OutboundRule
	for rows.Next() {
		rule, err := scanOutboundRule(rows.Scan)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// GetByID returns an outbound rule by ID, or nil if not found.
func (r *outboundRuleRepo) GetByID(ctx context.Context, id int64) (*models.OutboundRule, error) {
	row := r.db.QueryRowContext(ctx, r.db.Rebind(
		`SELECT `+outboundRuleColumns+` FROM outbound_rules WHERE id = ?`), id)
	rule, err := scanOutboundRule(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rule, err
}

func scanOutboundRule(scan func(...any) error) (*models.OutboundRule, error) {
	var rule models.OutboundRule
	err := scan(&rule.ID, &rule.TenantID, &rule.GatewayID, &rule.Name,
		&rule.MatchPrefix, &rule.Priority, &rule.StripDigits, &rule.Prepend,
		&rule.BillingEnabled, &rule.BillingRatePerMinute, &rule.BillingSetupFee,
		&rule.BillingIncrementSeconds, &rule.BillingCID, &rule.Enabled,
		&rule.CreatedAt, &rule.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning outbound rule: %w", err)
	}
	return &rule, nil
}
