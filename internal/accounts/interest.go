package accounts

import (
	"github.com/ruralpay/txauth/internal/models"
	"github.com/shopspring/decimal"
)

// InterestStrategy computes the interest an account accrues for one period.
type InterestStrategy interface {
	Interest(acct Snapshot) decimal.Decimal
}

// InterestFunc adapts a plain function to InterestStrategy.
type InterestFunc func(acct Snapshot) decimal.Decimal

func (f InterestFunc) Interest(acct Snapshot) decimal.Decimal { return f(acct) }

var twelve = decimal.NewFromInt(12)

// MonthlyRate accrues one twelfth of an annual rate on the absolute balance,
// so loan accounts report the interest they owe.
func MonthlyRate(annual decimal.Decimal) InterestStrategy {
	return InterestFunc(func(acct Snapshot) decimal.Decimal {
		return acct.Balance.Abs().Mul(annual).Div(twelve).Round(2)
	})
}

var (
	SavingsRate = decimal.RequireFromString("0.03")
	LoanRate    = decimal.RequireFromString("0.05")
)

// DefaultInterest returns the strategy an account kind uses unless overridden.
func DefaultInterest(kind models.AccountKind) InterestStrategy {
	switch kind {
	case models.KindSavings:
		return MonthlyRate(SavingsRate)
	case models.KindLoan:
		return MonthlyRate(LoanRate)
	case models.KindInvestment:
		return InterestFunc(investmentReturn)
	}
	return nil
}
