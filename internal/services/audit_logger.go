package services

import (
	"github.com/ruralpay/txauth/internal/models"
	"go.uber.org/zap"
)

// AuditLogger emits one structured event per ledger record.
type AuditLogger struct {
	logger *zap.Logger
}

// NewAuditLogger creates an audit logger named "audit".
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditLogger{logger: logger.Named("audit")}
}

// LogRecord emits one audit event for an appended record.
func (a *AuditLogger) LogRecord(record models.TransactionRecord) {
	status := "SUCCESS"
	if !record.Success {
		status = "FAILED"
	}

	fields := []zap.Field{
		zap.String("event_type", string(record.Type)),
		zap.String("transaction_id", record.ID),
		zap.String("account_id", record.SourceID),
		zap.String("amount", record.Amount.String()),
		zap.String("status", status),
		zap.String("initiator_id", record.InitiatorID),
		zap.String("initiator_role", string(record.InitiatorRole)),
		zap.Time("timestamp", record.Timestamp),
	}
	if record.HasTarget() {
		fields = append(fields, zap.String("target_account_id", record.TargetID))
	}
	if record.Classified() {
		fields = append(fields, zap.String("approval_level", string(record.ApprovalLevel)))
	}
	if !record.Success {
		fields = append(fields,
			zap.String("failure_code", string(record.FailureCode)),
			zap.String("failure_reason", record.FailureReason),
		)
		a.logger.Warn("AUDIT", fields...)
		return
	}
	a.logger.Info("AUDIT", fields...)
}

func (a *AuditLogger) LogError(transactionID, accountID string, err error) {
	a.logger.Error("AUDIT",
		zap.String("event_type", "ERROR"),
		zap.String("transaction_id", transactionID),
		zap.String("account_id", accountID),
		zap.String("status", "FAILED"),
		zap.Error(err),
	)
}

func (a *AuditLogger) LogOperation(transactionID, accountID, operation, details string) {
	a.logger.Info("AUDIT",
		zap.String("event_type", operation),
		zap.String("transaction_id", transactionID),
		zap.String("account_id", accountID),
		zap.String("status", "SUCCESS"),
		zap.String("details", details),
	)
}
