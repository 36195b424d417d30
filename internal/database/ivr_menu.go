package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/routepbx/routepbx/internal/database/models"
)

// ErrDuplicateDigit is returned when an IVR option reuses a digit already
// mapped within the same menu.
var ErrDuplicateDigit = fmt.Errorf("ivr option digit already in use for this menu")

// validIVRDigits are the digits an IVR option may bind to.
const validIVRDigits = "0123456789*#"

// ivrMenuRepo implements IVRMenuRepository.
type ivrMenuRepo struct {
	db *DB
}

// NewIVRMenuRepository creates a new IVRMenuRepository.
func NewIVRMenuRepository(db *DB) IVRMenuRepository {
	return &ivrMenuRepo{db: db}
}

// Create inserts a new IVR menu.
func (r *ivrMenuRepo) Create(ctx context.Context, menu *models.IVRMenu) error {
	err := r.db.QueryRowContext(ctx, r.db.Rebind(
		`INSERT INTO ivr_menus (tenant_id, name, greeting_url, invalid_url,
		 timeout_seconds, max_retries, timeout_action, invalid_action)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		menu.TenantID, menu.Name, menu.GreetingURL, menu.InvalidURL,
		menu.TimeoutSeconds, menu.MaxRetries, menu.TimeoutAction, menu.InvalidAction,
	).Scan(&menu.ID)
	if err != nil {
		return fmt.Errorf("inserting ivr menu: %w", err)
	}
	return nil
}

// CreateOption inserts a digit option. The digit must be a single character
// out of 0-9, * and #, and unique within the menu.
func (r *ivrMenuRepo) CreateOption(ctx context.Context, opt *models.IVRMenuOption) error {
	if len(opt.Digit) != 1 || !strings.Contains(validIVRDigits, opt.Digit) {
		return fmt.Errorf("invalid ivr option digit %q", opt.Digit)
	}

	var count int
	err := r.db.QueryRowContext(ctx, r.db.Rebind(
		`SELECT COUNT(*) FROM ivr_menu_options WHERE menu_id = ? AND digit = ?`),
		opt.MenuID, opt.Digit,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking ivr option digit: %w", err)
	}
	if count > 0 {
		return ErrDuplicateDigit
	}

	err = r.db.QueryRowContext(ctx, r.db.Rebind(
		`INSERT INTO ivr_menu_options (menu_id, digit, action_type, action_value, position)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`),
		opt.MenuID, opt.Digit, opt.ActionType, opt.ActionValue, opt.Position,
	).Scan(&opt.ID)
	if err != nil {
		return fmt.Errorf("inserting ivr option: %w", err)
	}
	return nil
}

// GetByID returns an IVR menu by ID, or nil if not found.
func (r *ivrMenuRepo) GetByID(ctx context.Context, id int64) (*models.IVRMenu, error) {
	var m models.IVRMenu
	err := r.db.QueryRowContext(ctx, r.db.Rebind(
		`SELECT id, tenant_id, name, greeting_url, invalid_url, timeout_seconds,
		 max_retries, timeout_action, invalid_action, created_at, updated_at
		 FROM ivr_menus WHERE id = ?`), id,
	).Scan(&m.ID, &m.TenantID, &m.Name, &m.GreetingURL, &m.InvalidURL,
		&m.TimeoutSeconds, &m.MaxRetries, &m.TimeoutAction, &m.InvalidAction,
		&m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning ivr menu: %w", err)
	}
	return &m, nil
}

// ListOptions returns a menu's options ordered by position, ties broken by
// digit (lexical).
func (r *ivrMenuRepo) ListOptions(ctx context.Context, menuID int64) ([]models.IVRMenuOption, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(
		`SELECT id, menu_id, digit, action_type, action_value, position, created_at
		 FROM ivr_menu_options WHERE menu_id = ?
		 ORDER BY position, digit`), menuID)
	if err != nil {
		return nil, fmt.Errorf("querying ivr options: %w", err)
	}
	defer rows.Close()

	var opts []models.IVRMenuOption
	for rows.Next() {
		var o models.IVRMenuOption
		if err := rows.Scan(&o.ID, &o.MenuID, &o.Digit, &o.ActionType,
			&o.ActionValue, &o.Position, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning ivr option row: %w", err)
		}
		opts = append(opts, o)
	}
	return opts, rows.Err()
}
