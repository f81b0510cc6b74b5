package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ruralpay/txauth/internal/models"
)

// RecordArchive mirrors ledger records into durable storage. The in-memory
// ledger stays authoritative; archive failures are logged only.
type RecordArchive interface {
	Store(ctx context.Context, record models.TransactionRecord) error
}

// PostgresArchive stores transaction records in the transaction_records table.
type PostgresArchive struct {
	db *sql.DB
}

// NewPostgresArchive wraps an open database handle.
func NewPostgresArchive(db *sql.DB) *PostgresArchive {
	return &PostgresArchive{db: db}
}

const archiveSchema = `
	CREATE TABLE IF NOT EXISTS transaction_records (
		id                TEXT PRIMARY KEY,
		type              TEXT NOT NULL,
		source_account_id TEXT NOT NULL,
		target_account_id TEXT,
		amount            NUMERIC(20, 2) NOT NULL,
		initiator_id      TEXT NOT NULL,
		initiator_role    TEXT NOT NULL,
		success           BOOLEAN NOT NULL,
		failure_code      TEXT,
		failure_reason    TEXT,
		approval_level    TEXT,
		created_at        TIMESTAMPTZ NOT NULL
	)`

// EnsureSchema creates the archive table when missing.
func (a *PostgresArchive) EnsureSchema(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, archiveSchema); err != nil {
		return fmt.Errorf("create transaction_records: %w", err)
	}
	return nil
}

// Store inserts r. Storing the same record twice is a no-op.
func (a *PostgresArchive) Store(ctx context.Context, r models.TransactionRecord) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO transaction_records (id, type, source_account_id, target_account_id, amount,
			initiator_id, initiator_role, success, failure_code, failure_reason, approval_level, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`,
		r.ID, string(r.Type), r.SourceID, nullString(r.TargetID), r.Amount.String(),
		r.InitiatorID, string(r.InitiatorRole), r.Success, nullString(string(r.FailureCode)),
		nullString(r.FailureReason), nullString(string(r.ApprovalLevel)), r.Timestamp)
	if err != nil {
		return fmt.Errorf("archive record %s: %w", r.ID, err)
	}
	return nil
}

// RecordsFor reads back the newest archived records touching accountID.
func (a *PostgresArchive) RecordsFor(ctx context.Context, accountID string, limit int) ([]models.TransactionRecord, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, type, source_account_id, target_account_id, amount, initiator_id, initiator_role,
			success, failure_code, failure_reason, approval_level, created_at
		FROM transaction_records
		WHERE source_account_id = $1 OR target_account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("query archived records: %w", err)
	}
	defer rows.Close()

	var records []models.TransactionRecord
	for rows.Next() {
		var (
			r                              models.TransactionRecord
			txType, role                   string
			target, code, reason, approval sql.NullString
		)
		if err := rows.Scan(&r.ID, &txType, &r.SourceID, &target, &r.Amount, &r.InitiatorID, &role,
			&r.Success, &code, &reason, &approval, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan archived record: %w", err)
		}
		r.Type = models.TransactionType(txType)
		r.InitiatorRole = models.Role(role)
		r.TargetID = target.String
		r.FailureCode = models.FailureCode(code.String)
		r.FailureReason = reason.String
		r.ApprovalLevel = models.ApprovalLevel(approval.String)
		records = append(records, r)
	}
	return records, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
