package services

import (
	"sync"
	"testing"
	"time"

	"github.com/ruralpay/txauth/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var ledgerDay = time.Date(2024, 6, 14, 10, 30, 0, 0, time.UTC)

func record(txType models.TransactionType, source string, amount string, success bool, at time.Time) models.TransactionRecord {
	return models.TransactionRecord{
		ID:        source + "-" + amount,
		Type:      txType,
		SourceID:  source,
		Timestamp: at,
		Amount:    decimal.RequireFromString(amount),
		Success:   success,
	}
}

func TestLedger_TodaysTotal(t *testing.T) {
	ledger := NewLedgerWithClock(func() time.Time { return ledgerDay })

	ledger.Append(record(models.TransactionWithdraw, "acc1", "100", true, ledgerDay))
	ledger.Append(record(models.TransactionWithdraw, "acc1", "250.50", true, ledgerDay.Add(-2*time.Hour)))
	ledger.Append(record(models.TransactionWithdraw, "acc1", "900", false, ledgerDay))
	ledger.Append(record(models.TransactionWithdraw, "acc1", "300", true, ledgerDay.AddDate(0, 0, -1)))
	ledger.Append(record(models.TransactionDeposit, "acc1", "5000", true, ledgerDay))
	ledger.Append(record(models.TransactionWithdraw, "acc2", "40", true, ledgerDay))

	t.Run("sums successful same-day records", func(t *testing.T) {
		total := ledger.TodaysTotal("acc1", models.TransactionWithdraw)
		assert.True(t, total.Equal(decimal.RequireFromString("350.50")), "total = %s", total)
	})

	t.Run("filters by type", func(t *testing.T) {
		total := ledger.TodaysTotal("acc1", models.TransactionDeposit)
		assert.True(t, total.Equal(decimal.NewFromInt(5000)))
	})

	t.Run("other days", func(t *testing.T) {
		total := ledger.TotalFor("acc1", models.TransactionWithdraw, ledgerDay.AddDate(0, 0, -1))
		assert.True(t, total.Equal(decimal.NewFromInt(300)))
	})

	t.Run("unknown account", func(t *testing.T) {
		assert.True(t, ledger.TodaysTotal("nobody", models.TransactionWithdraw).IsZero())
	})

	t.Run("transfers credited to an account do not count", func(t *testing.T) {
		rec := record(models.TransactionTransfer, "acc2", "70", true, ledgerDay)
		rec.TargetID = "acc1"
		ledger.Append(rec)
		assert.True(t, ledger.TodaysTotal("acc1", models.TransactionTransfer).IsZero())
		assert.Len(t, ledger.RecordsFor("acc1"), 6)
	})
}

func TestLedger_DailyReport(t *testing.T) {
	ledger := NewLedger()
	ledger.Append(record(models.TransactionDeposit, "acc1", "100", true, ledgerDay))
	ledger.Append(record(models.TransactionWithdraw, "acc1", "20", true, ledgerDay))
	ledger.Append(record(models.TransactionWithdraw, "acc1", "5000", false, ledgerDay))
	ledger.Append(record(models.TransactionDeposit, "acc1", "1", true, ledgerDay.AddDate(0, 0, 1)))

	report := ledger.DailyReport(ledgerDay)
	assert.Equal(t, 3, report.Count)
	assert.Equal(t, 1, report.Failures)
	assert.True(t, report.Total.Equal(decimal.NewFromInt(120)))
	assert.Equal(t, time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC), report.Date)
}

func TestLedger_RecordsAreCopies(t *testing.T) {
	ledger := NewLedger()
	ledger.Append(record(models.TransactionDeposit, "acc1", "1", true, ledgerDay))

	records := ledger.Records()
	records[0].Success = false
	assert.True(t, ledger.Records()[0].Success)
}

func TestLedger_ConcurrentAppend(t *testing.T) {
	ledger := NewLedgerWithClock(func() time.Time { return ledgerDay })

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ledger.Append(record(models.TransactionWithdraw, "acc1", "1", true, ledgerDay))
			_ = ledger.TodaysTotal("acc1", models.TransactionWithdraw)
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, ledger.Len())
	assert.True(t, ledger.TodaysTotal("acc1", models.TransactionWithdraw).Equal(decimal.NewFromInt(200)))
}
