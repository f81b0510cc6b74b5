package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the kind of monetary operation requested.
type TransactionType string

const (
	TransactionDeposit  TransactionType = "DEPOSIT"
	TransactionWithdraw TransactionType = "WITHDRAW"
	TransactionTransfer TransactionType = "TRANSFER"
)

// ApprovalLevel is the audit-only tier assigned to a transaction by amount.
type ApprovalLevel string

const (
	ApprovalNone    ApprovalLevel = ""
	ApprovalAuto    ApprovalLevel = "AUTO"
	ApprovalTeller  ApprovalLevel = "TELLER"
	ApprovalManager ApprovalLevel = "MANAGER"
	ApprovalAdmin   ApprovalLevel = "ADMIN"
)

// Rank orders levels Auto < Teller < Manager < Admin. ApprovalNone ranks 0.
func (l ApprovalLevel) Rank() int {
	switch l {
	case ApprovalAuto:
		return 1
	case ApprovalTeller:
		return 2
	case ApprovalManager:
		return 3
	case ApprovalAdmin:
		return 4
	}
	return 0
}

// TransactionRecord is the immutable audit entry written once per service
// invocation. Empty TargetID, FailureReason and ApprovalLevel mean "not set".
type TransactionRecord struct {
	ID            string          `json:"id" db:"id"`
	Type          TransactionType `json:"type" db:"type"`
	SourceID      string          `json:"sourceAccountId" db:"source_account_id"`
	TargetID      string          `json:"targetAccountId,omitempty" db:"target_account_id"`
	Timestamp     time.Time       `json:"timestamp" db:"created_at"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	InitiatorID   string          `json:"initiatorId" db:"initiator_id"`
	InitiatorRole Role            `json:"initiatorRole" db:"initiator_role"`
	Success       bool            `json:"success" db:"success"`
	FailureCode   FailureCode     `json:"failureCode,omitempty" db:"failure_code"`
	FailureReason string          `json:"failureReason,omitempty" db:"failure_reason"`
	ApprovalLevel ApprovalLevel   `json:"approvalLevel,omitempty" db:"approval_level"`
}

func (r TransactionRecord) HasTarget() bool {
	return r.TargetID != ""
}

// Classified reports whether the record went through approval classification.
func (r TransactionRecord) Classified() bool {
	return r.ApprovalLevel != ApprovalNone
}

// ValidationResult is the verdict of the transaction validator. It is folded
// into the audit record and never stored on its own.
type ValidationResult struct {
	OK  bool
	Err error
}

// Reason returns the rejection reason, or "OK".
func (v ValidationResult) Reason() string {
	if v.OK || v.Err == nil {
		return "OK"
	}
	return v.Err.Error()
}
