package database

import (
	"context"
	"fmt"

	"github.com/routepbx/routepbx/internal/database/models"
)

// dialplanRuleRepo implements DialplanRuleRepository.
type dialplanRuleRepo struct {
	db *DB
}

// NewDialplanRuleRepository creates a new DialplanRuleRepository.
func NewDialplanRuleRepository(db *DB) DialplanRuleRepository {
	return &dialplanRuleRepo{db: db}
}

// Create inserts a new dialplan rule.
func (r *dialplanRuleRepo) Create(ctx context.Context, rule *models.DialplanRule) error {
	err := r.db.QueryRowContext(ctx, r.db.Rebind(
		`INSERT INTO dialplan_rules (tenant_id, name, kind, match_type, pattern,
		 context, extension, priority, enabled, inherit_default, recording_enabled)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		rule.TenantID, rule.Name, rule.Kind, rule.MatchType, rule.Pattern,
		rule.Context, rule.Extension, rule.Priority, rule.Enabled,
		rule.InheritDefault, rule.RecordingEnabled,
	).Scan(&rule.ID)
	if err != nil {
		return fmt.Errorf("inserting dialplan rule: %w", err)
	}
	return nil
}

// CreateAction inserts an action under a rule.
func (r *dialplanRuleRepo) CreateAction(ctx context.Context, action *models.DialplanAction) error {
	err := r.db.QueryRowContext(ctx, r.db.Rebind(
		`INSERT INTO dialplan_actions (rule_id, application, data, position)
		 VALUES (?, ?, ?, ?) RETURNING id`),
		action.RuleID, action.Application, action.Data, action.Position,
	).Scan(&action.ID)
	if err != nil {
		return fmt.Errorf("inserting dialplan action: %w", err)
	}
	return nil
}

// ListEnabledByTenant returns the tenant's enabled rules ordered by
// priority asc then creation order.
func (r *dialplanRuleRepo) ListEnabledByTenant(ctx context.Context, tenantID int64) ([]models.DialplanRule, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(
		`SELECT id, tenant_id, name, kind, match_type, pattern, context, extension,
		 priority, enabled, inherit_default, recording_enabled,
		 created_at, updated_at
		 FROM dialplan_rules WHERE tenant_id = ? AND enabled = ?
		 ORDER BY priority, created_at, id`), tenantID, true)
	if err != nil {
		return nil, fmt.Errorf("querying dialplan rules: %w", err)
	}
	defer rows.Close()

	var rules []models.DialplanRule
	for rows.Next() {
		var rule models.DialplanRule
		if err := rows.Scan(&rule.ID, &rule.TenantID, &rule.Name, &rule.Kind,
			&rule.MatchType, &rule.Pattern, &rule.Context, &rule.Extension,
			&rule.Priority, &rule.Enabled, &rule.InheritDefault,
			&rule.RecordingEnabled,
			&rule.CreatedAt, &rule.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning dialplan rule row: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// ListActions returns a rule's actions ordered by position, ties broken by
// creation order.
func (r *dialplanRuleRepo) ListActions(ctx context.Context, ruleID int64) ([]models.DialplanAction, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(
		`SELECT id, rule_id, application, data, position, created_at
		 FROM dialplan_actions WHERE rule_id = ?
		 ORDER BY position, created_at, id`), ruleID)
	if err != nil {
		return nil, fmt.Errorf("querying dialplan actions: %w", err)
	}
	defer rows.Close()

	var actions []models.DialplanAction
	for rows.Next() {
		var a models.DialplanAction
		if err := rows.Scan(&a.ID, &a.RuleID, &a.Application, &a.Data,
			&a.Position, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning dialplan action row: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}
