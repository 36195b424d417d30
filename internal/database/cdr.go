package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/routepbx/routepbx/internal/database/models"
)

// cdrRepo implements CDRRepository.
type cdrRepo struct {
	db *DB
}

// NewCDRRepository creates a new CDRRepository.
func NewCDRRepository(db *DB) CDRRepository {
	return &cdrRepo{db: db}
}

// Create inserts a rated CDR.
func (r *cdrRepo) Create(ctx context.Context, cdr *models.CDR) error {
	err := r.db.QueryRowContext(ctx, r.db.Rebind(
		`INSERT INTO cdrs (call_uuid, tenant_id, outbound_rule_id, direction,
		 caller_number, callee_number, started_at, answered_at, ended_at,
		 bill_seconds, rated_seconds, rate_per_minute, setup_fee, tax_percent,
		 cost, currency, hangup_cause, recording_file)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		cdr.CallUUID, cdr.TenantID, cdr.OutboundRuleID, cdr.Direction,
		cdr.CallerNumber, cdr.CalleeNumber, cdr.StartedAt, cdr.AnsweredAt,
		cdr.EndedAt, cdr.BillSeconds, cdr.RatedSeconds, cdr.RatePerMinute,
		cdr.SetupFee, cdr.TaxPercent, cdr.Cost, cdr.Currency,
		cdr.HangupCause, cdr.RecordingFile,
	).Scan(&cdr.ID)
	if err != nil {
		return fmt.Errorf("inserting cdr: %w", err)
	}
	return nil
}

// GetByCallUUID returns a CDR by call UUID, or nil if not found.
func (r *cdrRepo) GetByCallUUID(ctx context.Context, callUUID string) (*models.CDR, error) {
	var cdr models.CDR
	err := r.db.QueryRowContext(ctx, r.db.Rebind(
		`SELECT id, call_uuid, tenant_id, outbound_rule_id, direction,
		 caller_number, callee_number, started_at, answered_at, ended_at,
		 bill_seconds, rated_seconds, rate_per_minute, setup_fee, tax_percent,
		 cost, currency, hangup_cause, recording_file, created_at
		 FROM cdrs WHERE call_uuid = ?`), callUUID,
	).Scan(&cdr.ID, &cdr.CallUUID, &cdr.TenantID, &cdr.OutboundRuleID,
		&cdr.Direction, &cdr.CallerNumber, &cdr.CalleeNumber, &cdr.StartedAt,
		&cdr.AnsweredAt, &cdr.EndedAt, &cdr.BillSeconds, &cdr.RatedSeconds,
		&cdr.RatePerMinute, &cdr.SetupFee, &cdr.TaxPercent, &cdr.Cost,
		&cdr.Currency, &cdr.HangupCause, &cdr.RecordingFile, &cdr.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning cdr: %w", err)
	}
	return &cdr, nil
}

// CountByDirection returns CDR counts grouped by call direction.
func (r *cdrRepo) CountByDirection(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT direction, COUNT(*) FROM cdrs GROUP BY direction`)
	if err != nil {
		return nil, fmt.Errorf("counting cdrs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var direction string
		var count int64
		if err := rows.Scan(&direction, &count); err != nil {
			return nil, fmt.Errorf("scanning cdr count: %w", err)
		}
		counts[direction] = count
	}
	return counts, rows.Err()
}
