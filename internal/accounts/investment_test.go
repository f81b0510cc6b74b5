package accounts

import (
	"sync"
	"testing"

	"github.com/ruralpay/txauth/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInvestment(t *testing.T, cash string) *Account {
	t.Helper()
	acct, err := New("Dana", models.KindInvestment, d(cash))
	require.NoError(t, err)
	return acct
}

func assertPortfolio(t *testing.T, acct *Account, cash, invested string) {
	t.Helper()
	snap := acct.Snapshot()
	assert.True(t, snap.Balance.Equal(d(cash)), "cash = %s, want %s", snap.Balance, cash)
	assert.True(t, snap.InvestmentValue.Equal(d(invested)), "investment value = %s, want %s", snap.InvestmentValue, invested)
}

func TestAccount_Invest(t *testing.T) {
	t.Run("moves cash net of fee", func(t *testing.T) {
		acct := newInvestment(t, "1000")
		assert.NoError(t, acct.Invest(d("500")))
		assertPortfolio(t, acct, "500", "499.50")
		assert.True(t, acct.PortfolioValue().Equal(d("999.50")))
	})

	t.Run("cash must cover the amount", func(t *testing.T) {
		acct := newInvestment(t, "100")
		assert.ErrorIs(t, acct.Invest(d("100.01")), models.ErrInsufficientFunds)
		assertPortfolio(t, acct, "100", "0")
	})

	t.Run("needs withdraw capability", func(t *testing.T) {
		acct := newInvestment(t, "100")
		acct.SetState(models.StateSuspended)
		assert.ErrorIs(t, acct.Invest(d("10")), models.ErrStatePolicyViolation)
	})

	t.Run("invalid amount", func(t *testing.T) {
		acct := newInvestment(t, "100")
		assert.ErrorIs(t, acct.Invest(d("0")), models.ErrInvalidAmount)
	})

	t.Run("other kinds are not supported", func(t *testing.T) {
		acct := newChecking(t, "100")
		assert.ErrorIs(t, acct.Invest(d("10")), models.ErrOperationNotSupported)
		assert.ErrorIs(t, acct.Liquidate(d("10")), models.ErrOperationNotSupported)
	})
}

func TestAccount_Liquidate(t *testing.T) {
	t.Run("credits proceeds net of fee", func(t *testing.T) {
		acct := newInvestment(t, "1000")
		require.NoError(t, acct.Invest(d("500")))

		assert.NoError(t, acct.Liquidate(d("99.50")))
		assertPortfolio(t, acct, "599.40", "400")
	})

	t.Run("cannot exceed investment value", func(t *testing.T) {
		acct := newInvestment(t, "1000")
		require.NoError(t, acct.Invest(d("100")))
		assert.ErrorIs(t, acct.Liquidate(d("100")), models.ErrInsufficientFunds)
		assertPortfolio(t, acct, "900", "99.90")
	})

	t.Run("allowed while suspended", func(t *testing.T) {
		acct := newInvestment(t, "1000")
		require.NoError(t, acct.Invest(d("100")))
		acct.SetState(models.StateSuspended)
		assert.NoError(t, acct.Liquidate(d("50")))

		acct.SetState(models.StateFrozen)
		assert.ErrorIs(t, acct.Liquidate(d("10")), models.ErrStatePolicyViolation)
	})
}

func TestAccount_InvestmentReturns(t *testing.T) {
	acct := newInvestment(t, "2000")
	require.NoError(t, acct.Invest(d("1000")))
	assertPortfolio(t, acct, "1000", "999")

	assert.True(t, acct.Interest().Equal(d("5.83")), "interest = %s", acct.Interest())
	assert.True(t, acct.ReturnPercentage().IsZero())

	gain := acct.AccrueReturns()
	assert.True(t, gain.Equal(d("5.83")))
	assertPortfolio(t, acct, "1000", "1004.83")
	assert.True(t, acct.ReturnPercentage().Equal(d("0.58")), "return = %s", acct.ReturnPercentage())

	assert.True(t, newChecking(t, "100").AccrueReturns().IsZero())

	details := acct.Details()
	assert.Contains(t, details, "INVESTMENT Account Details:")
	assert.Contains(t, details, "Investment Value: $1004.83")
	assert.Contains(t, details, "Total Portfolio Value: $2004.83")
	assert.Contains(t, details, "Returns: $5.83 (0.58%)")
}

func TestAccount_InvestConcurrency(t *testing.T) {
	acct := newInvestment(t, "1000")

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, acct.Invest(d("10")))
		}()
	}
	wg.Wait()

	assertPortfolio(t, acct, "0", "999")
}
