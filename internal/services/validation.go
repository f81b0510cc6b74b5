package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ruralpay/txauth/internal/accounts"
	"github.com/ruralpay/txauth/internal/models"
	"github.com/shopspring/decimal"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Code    string            `json:"code,omitempty"`    // Failure code for business rejections
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	var fieldErrs validator.ValidationErrors
	if errors.As(validationErr, &fieldErrs) {
		errorResp.Details = make(map[string]string)
		for _, err := range fieldErrs {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}

// Limits are the per-account daily caps on outgoing money.
type Limits struct {
	DailyWithdraw decimal.Decimal
	DailyTransfer decimal.Decimal
}

// DefaultLimits returns the standard daily caps.
func DefaultLimits() Limits {
	return Limits{
		DailyWithdraw: decimal.NewFromInt(20000),
		DailyTransfer: decimal.NewFromInt(50000),
	}
}

// TransactionValidator applies the pre-execution rules. The first failing
// rule wins and nothing is mutated.
type TransactionValidator struct {
	ledger *Ledger
	limits Limits
}

// NewTransactionValidator creates a validator reading daily totals from ledger.
func NewTransactionValidator(ledger *Ledger, limits Limits) *TransactionValidator {
	return &TransactionValidator{ledger: ledger, limits: limits}
}

// Validate runs the rules for one request and reports the first failure.
func (v *TransactionValidator) Validate(txType models.TransactionType, source, target accounts.Operator, amount decimal.Decimal) models.ValidationResult {
	if err := v.check(txType, source, target, amount); err != nil {
		return models.ValidationResult{Err: err}
	}
	return models.ValidationResult{OK: true}
}

func (v *TransactionValidator) check(txType models.TransactionType, source, target accounts.Operator, amount decimal.Decimal) error {
	switch txType {
	case models.TransactionDeposit, models.TransactionWithdraw, models.TransactionTransfer:
	default:
		return models.Failuref(models.CodeOperationNotSupported, "unknown transaction type %q", txType)
	}
	if !amount.IsPositive() {
		return models.ErrInvalidAmount
	}
	if source == nil {
		return models.ErrMissingSource
	}

	state := source.Snapshot().State
	if !state.Allows(txType) {
		return models.Failuref(models.CodeStatePolicyViolation,
			"account is %s: %s", state, state.Description())
	}

	switch txType {
	case models.TransactionWithdraw:
		return v.checkDaily(source.ID(), txType, amount, v.limits.DailyWithdraw)
	case models.TransactionTransfer:
		if target == nil {
			return models.ErrMissingTarget
		}
		if target.ID() == source.ID() {
			return models.ErrSameAccount
		}
		return v.checkDaily(source.ID(), txType, amount, v.limits.DailyTransfer)
	}
	return nil
}

func (v *TransactionValidator) checkDaily(accountID string, txType models.TransactionType, amount, limit decimal.Decimal) error {
	spent := v.ledger.TodaysTotal(accountID, txType)
	if spent.Add(amount).GreaterThan(limit) {
		return models.Failuref(models.CodeDailyLimitExceeded,
			"daily %s limit %s exceeded: %s already used today",
			txTypeWord(txType), limit.StringFixed(2), spent.StringFixed(2))
	}
	return nil
}

func txTypeWord(t models.TransactionType) string {
	switch t {
	case models.TransactionWithdraw:
		return "withdrawal"
	case models.TransactionTransfer:
		return "transfer"
	}
	return "deposit"
}
