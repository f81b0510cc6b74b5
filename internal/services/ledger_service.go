package services

import (
	"sync"
	"time"

	"github.com/ruralpay/txauth/internal/models"
	"github.com/shopspring/decimal"
)

// Ledger is the append-only audit log. Appends and aggregate reads are
// serialized through one lock, so a total never observes a half-written
// record.
type Ledger struct {
	mu      sync.RWMutex
	records []models.TransactionRecord
	now     func() time.Time
}

// NewLedger creates an empty ledger on the wall clock.
func NewLedger() *Ledger {
	return NewLedgerWithClock(time.Now)
}

// NewLedgerWithClock lets callers decide what "today" means.
func NewLedgerWithClock(now func() time.Time) *Ledger {
	return &Ledger{now: now}
}

// Append adds record to the end of the log.
func (l *Ledger) Append(record models.TransactionRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, record)
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Records returns a copy of every record in append order.
func (l *Ledger) Records() []models.TransactionRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.TransactionRecord, len(l.records))
	copy(out, l.records)
	return out
}

// RecordsFor returns the records where accountID is the source or the target.
func (l *Ledger) RecordsFor(accountID string) []models.TransactionRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []models.TransactionRecord
	for _, r := range l.records {
		if r.SourceID == accountID || r.TargetID == accountID {
			out = append(out, r)
		}
	}
	return out
}

// TodaysTotal sums the successful amounts of txType debited from accountID
// on the ledger clock's current day.
func (l *Ledger) TodaysTotal(accountID string, txType models.TransactionType) decimal.Decimal {
	return l.TotalFor(accountID, txType, l.now())
}

// TotalFor sums the successful amounts of txType debited from accountID on day.
func (l *Ledger) TotalFor(accountID string, txType models.TransactionType, day time.Time) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := decimal.Zero
	for _, r := range l.records {
		if r.Success && r.Type == txType && r.SourceID == accountID && sameDay(r.Timestamp, day) {
			total = total.Add(r.Amount)
		}
	}
	return total
}

// DailyReport counts every record on day. Total covers successful records only.
func (l *Ledger) DailyReport(day time.Time) models.DailyReport {
	y, m, d := day.Date()
	report := models.DailyReport{
		Date:  time.Date(y, m, d, 0, 0, 0, 0, day.Location()),
		Total: decimal.Zero,
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, r := range l.records {
		if !sameDay(r.Timestamp, day) {
			continue
		}
		report.Count++
		if r.Success {
			report.Total = report.Total.Add(r.Amount)
		} else {
			report.Failures++
		}
	}
	return report
}

func sameDay(ts, day time.Time) bool {
	y1, m1, d1 := ts.In(day.Location()).Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
