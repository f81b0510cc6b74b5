package accounts

import (
	"fmt"
	"strings"

	"github.com/ruralpay/txauth/internal/models"
	"github.com/shopspring/decimal"
)

// Layer names reported by Chain.Layers.
const (
	LayerOverdraft = "overdraft"
	LayerFee       = "insurance-fee"
	LayerBonus     = "premium-bonus"
)

// Overdraft lets withdrawals take the balance down to -limit. Withdrawals the
// inner stages can already cover are delegated untouched.
func Overdraft(limit decimal.Decimal) Layer {
	return Layer{
		Name: LayerOverdraft,
		Intercept: func(op Operation, acct Snapshot) Outcome {
			if op.Type != models.TransactionWithdraw || acct.Kind.IsDebt() {
				return Pass()
			}
			if !op.Amount.IsPositive() || !op.Amount.GreaterThan(acct.Available()) {
				return Pass()
			}
			if !acct.State.CanWithdraw() {
				return Refuse(models.Failuref(models.CodeStatePolicyViolation,
					"cannot withdraw in %s state", acct.State))
			}
			if acct.Balance.Sub(op.Amount).LessThan(limit.Neg()) {
				return Refuse(models.Failuref(models.CodeInsufficientFunds,
					"overdraft limit %s exceeded", limit.StringFixed(2)))
			}
			return Apply(op.Amount.Neg())
		},
		Floor: func(op Operation, acct Snapshot) (decimal.Decimal, bool) {
			if op.Type != models.TransactionWithdraw || acct.Kind.IsDebt() {
				return decimal.Zero, false
			}
			return limit.Neg(), true
		},
		Describe: func(inner string) string {
			return fmt.Sprintf("%s\n  [Overdraft Protection: $%s]", inner, limit.StringFixed(2))
		},
	}
}

// Fee charges a flat amount after every successful withdrawal.
func Fee(amount decimal.Decimal) Layer {
	return Layer{
		Name: LayerFee,
		AfterSuccess: func(op Operation, _ Snapshot) decimal.Decimal {
			if op.Type != models.TransactionWithdraw {
				return decimal.Zero
			}
			return amount.Neg()
		},
		Describe: func(inner string) string {
			return fmt.Sprintf("%s\n  [Insured] fee $%s per withdrawal", inner, amount.StringFixed(2))
		},
	}
}

// Bonus raises reported interest by pct (0.10 is ten percent) and marks the
// account as premium.
func Bonus(pct decimal.Decimal) Layer {
	one := decimal.NewFromInt(1)
	return Layer{
		Name: LayerBonus,
		Interest: func(inner decimal.Decimal) decimal.Decimal {
			return inner.Mul(one.Add(pct))
		},
		Describe: func(inner string) string {
			if strings.HasPrefix(inner, "PREMIUM ") {
				return inner
			}
			return "PREMIUM " + inner
		},
	}
}
