package models

import (
	"errors"
	"fmt"
)

// FailureCode is the machine-readable reason a transaction did not complete.
type FailureCode string

const (
	CodeInvalidAmount         FailureCode = "INVALID_AMOUNT"
	CodeStatePolicyViolation  FailureCode = "STATE_POLICY_VIOLATION"
	CodeInsufficientFunds     FailureCode = "INSUFFICIENT_FUNDS"
	CodeDailyLimitExceeded    FailureCode = "DAILY_LIMIT_EXCEEDED"
	CodeMissingSource         FailureCode = "MISSING_SOURCE"
	CodeMissingTarget         FailureCode = "MISSING_TARGET"
	CodeSameAccount           FailureCode = "SAME_ACCOUNT"
	CodeInsufficientPrivilege FailureCode = "INSUFFICIENT_PRIVILEGE"
	CodeOperationNotSupported FailureCode = "OPERATION_NOT_SUPPORTED"
	CodeExecutionFailure      FailureCode = "EXECUTION_FAILURE"
)

// Failure is a business rejection. It is returned as a value and folded into
// the audit record; it never signals a programming error.
type Failure struct {
	Code   FailureCode
	Reason string
}

func (f Failure) Error() string {
	if f.Reason == "" {
		return string(f.Code)
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Reason)
}

// Is matches any Failure carrying the same code, so callers can test
// errors.Is(err, models.ErrInsufficientFunds) regardless of the reason text.
func (f Failure) Is(target error) bool {
	t, ok := target.(Failure)
	return ok && t.Code == f.Code
}

// Failuref builds a Failure with a formatted reason.
func Failuref(code FailureCode, format string, args ...any) error {
	return Failure{Code: code, Reason: fmt.Sprintf(format, args...)}
}

var (
	ErrInvalidAmount         = Failure{Code: CodeInvalidAmount, Reason: "amount must be positive"}
	ErrStatePolicyViolation  = Failure{Code: CodeStatePolicyViolation, Reason: "account state disallows operation"}
	ErrInsufficientFunds     = Failure{Code: CodeInsufficientFunds, Reason: "insufficient funds"}
	ErrDailyLimitExceeded    = Failure{Code: CodeDailyLimitExceeded, Reason: "daily limit exceeded"}
	ErrMissingSource         = Failure{Code: CodeMissingSource, Reason: "source account required"}
	ErrMissingTarget         = Failure{Code: CodeMissingTarget, Reason: "target account required"}
	ErrSameAccount           = Failure{Code: CodeSameAccount, Reason: "source and target are the same account"}
	ErrInsufficientPrivilege = Failure{Code: CodeInsufficientPrivilege, Reason: "insufficient privileges"}
	ErrOperationNotSupported = Failure{Code: CodeOperationNotSupported, Reason: "operation not supported for account type"}
	ErrExecutionFailure      = Failure{Code: CodeExecutionFailure, Reason: "execution failed"}
)

// CodeOf extracts the failure code from err. Errors that are not a Failure
// are reported as execution failures.
func CodeOf(err error) FailureCode {
	var f Failure
	if errors.As(err, &f) {
		return f.Code
	}
	return CodeExecutionFailure
}
