package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ruralpay/txauth/internal/accounts"
	"github.com/ruralpay/txauth/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TransactionSettings are the tunable rules of the pipeline.
type TransactionSettings struct {
	Limits           Limits
	LargeTransaction decimal.Decimal
	Approvals        *ApprovalTable
	Privileges       *PrivilegePolicy
}

// DefaultTransactionSettings returns the standard limits, bands and ceilings.
func DefaultTransactionSettings() TransactionSettings {
	return TransactionSettings{
		Limits:           DefaultLimits(),
		LargeTransaction: decimal.NewFromInt(20000),
		Approvals:        MustApprovalTable(DefaultApprovalBands()...),
		Privileges:       DefaultPrivilegePolicy(),
	}
}

// TransactionRequest is one deposit, withdrawal or transfer. Target is only
// read for transfers.
type TransactionRequest struct {
	Type      models.TransactionType
	Source    accounts.Operator
	Target    accounts.Operator
	Amount    decimal.Decimal
	Initiator models.Initiator
}

// TransactionResult carries the record appended for the request. Err is the
// underlying rejection, nil on success.
type TransactionResult struct {
	Record models.TransactionRecord
	Err    error
}

func (r TransactionResult) OK() bool { return r.Err == nil }

// TransactionOption configures a TransactionService.
type TransactionOption func(*TransactionService)

// WithNotifier sets where large-transaction alerts go.
func WithNotifier(n NotificationPort) TransactionOption {
	return func(s *TransactionService) { s.notifier = n }
}

// WithArchive mirrors every appended record into a.
func WithArchive(a RecordArchive) TransactionOption {
	return func(s *TransactionService) { s.archive = a }
}

// WithLogger sets the service and audit logger.
func WithLogger(l *zap.Logger) TransactionOption {
	return func(s *TransactionService) { s.logger = l }
}

// WithIDGenerator replaces the uuid transaction ids.
func WithIDGenerator(fn func() string) TransactionOption {
	return func(s *TransactionService) { s.newID = fn }
}

// TransactionService runs every request through validation, the privilege
// ceiling, approval classification and execution, and appends exactly one
// ledger record per call whatever the outcome.
type TransactionService struct {
	ledger     *Ledger
	validator  *TransactionValidator
	approvals  *ApprovalTable
	privileges *PrivilegePolicy
	large      decimal.Decimal
	notifier   NotificationPort
	archive    RecordArchive
	audit      *AuditLogger
	logger     *zap.Logger
	newID      func() string
	alerts     sync.WaitGroup
}

// NewTransactionService creates a service appending to ledger. Without
// options it logs nowhere and alerts through a LogNotifier.
func NewTransactionService(ledger *Ledger, settings TransactionSettings, opts ...TransactionOption) *TransactionService {
	s := &TransactionService{
		ledger:     ledger,
		validator:  NewTransactionValidator(ledger, settings.Limits),
		approvals:  settings.Approvals,
		privileges: settings.Privileges,
		large:      settings.LargeTransaction,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.notifier == nil {
		s.notifier = NewLogNotifier(s.logger)
	}
	s.audit = NewAuditLogger(s.logger)
	return s
}

func (s *TransactionService) Ledger() *Ledger { return s.ledger }

// Deposit credits acct and reports whether it succeeded.
func (s *TransactionService) Deposit(ctx context.Context, acct accounts.Operator, amount decimal.Decimal, initiator models.Initiator) bool {
	return s.Handle(ctx, TransactionRequest{
		Type: models.TransactionDeposit, Source: acct, Amount: amount, Initiator: initiator,
	}).OK()
}

func (s *TransactionService) Withdraw(ctx context.Context, acct accounts.Operator, amount decimal.Decimal, initiator models.Initiator) bool {
	return s.Handle(ctx, TransactionRequest{
		Type: models.TransactionWithdraw, Source: acct, Amount: amount, Initiator: initiator,
	}).OK()
}

func (s *TransactionService) Transfer(ctx context.Context, source, target accounts.Operator, amount decimal.Decimal, initiator models.Initiator) bool {
	return s.Handle(ctx, TransactionRequest{
		Type: models.TransactionTransfer, Source: source, Target: target, Amount: amount, Initiator: initiator,
	}).OK()
}

// Handle runs req through the pipeline and appends exactly one record.
func (s *TransactionService) Handle(ctx context.Context, req TransactionRequest) TransactionResult {
	record := models.TransactionRecord{
		ID:            s.newID(),
		Type:          req.Type,
		Timestamp:     s.ledger.now(),
		Amount:        req.Amount,
		InitiatorID:   req.Initiator.ID,
		InitiatorRole: req.Initiator.Role,
	}
	if req.Source != nil {
		record.SourceID = req.Source.ID()
	}
	if req.Type == models.TransactionTransfer && req.Target != nil {
		record.TargetID = req.Target.ID()
	}

	if res := s.validator.Validate(req.Type, req.Source, req.Target, req.Amount); !res.OK {
		return s.commit(ctx, record, res.Err, res.Err)
	}

	if !s.privileges.Allows(req.Initiator.Role, req.Amount) {
		return s.commit(ctx, record, models.ErrInsufficientPrivilege, models.ErrInsufficientPrivilege)
	}

	record.ApprovalLevel = s.approvals.Classify(req.Amount)

	var result TransactionResult
	if err := s.execute(req); err != nil {
		failure := models.Failuref(models.CodeExecutionFailure, "execution failed: %v", err)
		result = s.commit(ctx, record, failure, err)
	} else {
		result = s.commit(ctx, record, nil, nil)
	}

	if req.Amount.GreaterThanOrEqual(s.large) {
		s.alert(ctx, result.Record)
	}
	return result
}

func (s *TransactionService) execute(req TransactionRequest) error {
	switch req.Type {
	case models.TransactionDeposit:
		return req.Source.Deposit(req.Amount)
	case models.TransactionWithdraw:
		return req.Source.Withdraw(req.Amount)
	case models.TransactionTransfer:
		return req.Source.Transfer(req.Target, req.Amount)
	}
	return models.ErrOperationNotSupported
}

// commit stamps the outcome on record and appends it. failure is what the
// record reports; cause is what the caller sees.
func (s *TransactionService) commit(ctx context.Context, record models.TransactionRecord, failure, cause error) TransactionResult {
	record.Success = failure == nil
	if failure != nil {
		record.FailureCode = models.CodeOf(failure)
		record.FailureReason = reasonOf(failure)
	}

	s.ledger.Append(record)
	s.audit.LogRecord(record)

	if s.archive != nil {
		if err := s.archive.Store(ctx, record); err != nil {
			s.audit.LogError(record.ID, record.SourceID, err)
		}
	}
	return TransactionResult{Record: record, Err: cause}
}

func reasonOf(err error) string {
	var f models.Failure
	if errors.As(err, &f) && f.Reason != "" {
		return f.Reason
	}
	return err.Error()
}

// alert notifies asynchronously. Notification errors never reach the caller.
func (s *TransactionService) alert(ctx context.Context, record models.TransactionRecord) {
	outcome := "completed"
	if !record.Success {
		outcome = "failed"
	}
	message := fmt.Sprintf("LARGE TRANSACTION ALERT: %s of $%s on account %s by %s (%s) %s at %s",
		record.Type, record.Amount.StringFixed(2), record.SourceID, record.InitiatorID,
		record.InitiatorRole, outcome, record.Timestamp.Format(time.RFC3339))

	notifyCtx := context.WithoutCancel(ctx)
	s.alerts.Add(1)
	go func() {
		defer s.alerts.Done()
		if err := s.notifier.Notify(notifyCtx, message); err != nil {
			s.logger.Warn("large transaction alert dropped",
				zap.String("transaction_id", record.ID),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until in-flight alerts have been handed to the notifier.
func (s *TransactionService) Wait() {
	s.alerts.Wait()
}
