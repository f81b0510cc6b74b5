package accounts

import (
	"fmt"
	"strings"

	"github.com/ruralpay/txauth/internal/models"
	"github.com/shopspring/decimal"
)

var (
	// InvestmentFeeRate is charged on every invest and liquidate.
	InvestmentFeeRate = decimal.RequireFromString("0.001")
	// TargetAnnualReturn drives simulated portfolio growth.
	TargetAnnualReturn = decimal.RequireFromString("0.07")
)

var hundred = decimal.NewFromInt(100)

// portfolio is the securities side of an investment account. It is guarded
// by the account lock.
type portfolio struct {
	value    decimal.Decimal
	invested decimal.Decimal
	returns  decimal.Decimal
}

func investmentFee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(InvestmentFeeRate).Round(2)
}

// Invest moves amount of cash into the portfolio less the transaction fee.
// It needs the same state as a withdrawal.
func (a *Account) Invest(amount decimal.Decimal) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkInvestment(a.state.CanWithdraw(), "invest", amount); err != nil {
		return err
	}
	if amount.GreaterThan(a.balance) {
		return models.Failuref(models.CodeInsufficientFunds,
			"cash balance %s is below %s", a.balance.StringFixed(2), amount.StringFixed(2))
	}

	net := amount.Sub(investmentFee(amount))
	a.balance = a.balance.Sub(amount)
	a.portfolio.value = a.portfolio.value.Add(net)
	a.portfolio.invested = a.portfolio.invested.Add(net)
	a.lastModified = a.now()
	return nil
}

// Liquidate sells amount of the portfolio and credits the proceeds less the
// transaction fee. It needs the same state as a deposit.
func (a *Account) Liquidate(amount decimal.Decimal) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkInvestment(a.state.CanDeposit(), "liquidate", amount); err != nil {
		return err
	}
	if amount.GreaterThan(a.portfolio.value) {
		return models.Failuref(models.CodeInsufficientFunds,
			"investment value %s is below %s", a.portfolio.value.StringFixed(2), amount.StringFixed(2))
	}

	a.portfolio.value = a.portfolio.value.Sub(amount)
	a.balance = a.balance.Add(amount.Sub(investmentFee(amount)))
	a.lastModified = a.now()
	return nil
}

func (a *Account) checkInvestment(allowed bool, action string, amount decimal.Decimal) error {
	if a.kind != models.KindInvestment {
		return models.Failuref(models.CodeOperationNotSupported,
			"cannot %s from a %s account", action, a.kind)
	}
	if !allowed {
		return models.Failuref(models.CodeStatePolicyViolation,
			"cannot %s in %s state", action, a.state)
	}
	if !amount.IsPositive() {
		return models.ErrInvalidAmount
	}
	return nil
}

// AccrueReturns credits one month of TargetAnnualReturn to the portfolio and
// returns the amount credited.
func (a *Account) AccrueReturns() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.kind != models.KindInvestment {
		return decimal.Zero
	}
	gain := investmentReturn(a.snapshotLocked())
	a.portfolio.value = a.portfolio.value.Add(gain)
	a.portfolio.returns = a.portfolio.returns.Add(gain)
	a.lastModified = a.now()
	return gain
}

// PortfolioValue is cash plus investments.
func (a *Account) PortfolioValue() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance.Add(a.portfolio.value)
}

// ReturnPercentage is accrued returns as a percentage of the net amount invested.
func (a *Account) ReturnPercentage() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.portfolio.returnPercentage()
}

func (p portfolio) returnPercentage() decimal.Decimal {
	if p.invested.IsZero() {
		return decimal.Zero
	}
	return p.returns.Div(p.invested).Mul(hundred).Round(2)
}

func investmentReturn(acct Snapshot) decimal.Decimal {
	return acct.InvestmentValue.Mul(TargetAnnualReturn).Div(twelve).Round(2)
}

func (a *Account) describePortfolio(b *strings.Builder) {
	a.mu.Lock()
	p, cash := a.portfolio, a.balance
	a.mu.Unlock()

	fmt.Fprintf(b, "  Investment Value: $%s\n", p.value.StringFixed(2))
	fmt.Fprintf(b, "  Total Portfolio Value: $%s\n", cash.Add(p.value).StringFixed(2))
	fmt.Fprintf(b, "  Total Invested: $%s\n", p.invested.StringFixed(2))
	fmt.Fprintf(b, "  Returns: $%s (%s%%)\n", p.returns.StringFixed(2), p.returnPercentage().StringFixed(2))
	fmt.Fprintf(b, "  Target Annual Return: %s%%\n", TargetAnnualReturn.Mul(hundred).StringFixed(2))
}
