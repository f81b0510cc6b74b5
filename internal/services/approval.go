package services

import (
	"fmt"
	"sort"

	"github.com/ruralpay/txauth/internal/models"
	"github.com/shopspring/decimal"
)

// ApprovalBand assigns Level to every amount from From up to the next band.
type ApprovalBand struct {
	From  decimal.Decimal
	Level models.ApprovalLevel
}

// ApprovalTable classifies amounts into approval levels. The level is
// recorded for audit only and never blocks a transaction.
type ApprovalTable struct {
	bands []ApprovalBand
}

// DefaultApprovalBands returns Auto below 1000, Teller below 10000, Manager
// below 50000 and Admin above that.
func DefaultApprovalBands() []ApprovalBand {
	return []ApprovalBand{
		{From: decimal.Zero, Level: models.ApprovalAuto},
		{From: decimal.NewFromInt(1000), Level: models.ApprovalTeller},
		{From: decimal.NewFromInt(10000), Level: models.ApprovalManager},
		{From: decimal.NewFromInt(50000), Level: models.ApprovalAdmin},
	}
}

// NewApprovalTable checks that the bands start at zero, ascend strictly and
// escalate in level, so every non-negative amount maps to exactly one band.
func NewApprovalTable(bands ...ApprovalBand) (*ApprovalTable, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("approval table needs at least one band")
	}
	if !bands[0].From.IsZero() {
		return nil, fmt.Errorf("first approval band must start at 0, got %s", bands[0].From)
	}
	for i, b := range bands {
		if b.Level.Rank() == 0 {
			return nil, fmt.Errorf("approval band %d has no level", i)
		}
		if i == 0 {
			continue
		}
		prev := bands[i-1]
		if !b.From.GreaterThan(prev.From) {
			return nil, fmt.Errorf("approval band %s (%s) must start above %s", b.Level, b.From, prev.From)
		}
		if b.Level.Rank() <= prev.Level.Rank() {
			return nil, fmt.Errorf("approval band %s must escalate from %s", b.Level, prev.Level)
		}
	}

	t := &ApprovalTable{bands: make([]ApprovalBand, len(bands))}
	copy(t.bands, bands)
	return t, nil
}

// MustApprovalTable panics on a malformed table. Intended for boot.
func MustApprovalTable(bands ...ApprovalBand) *ApprovalTable {
	t, err := NewApprovalTable(bands...)
	if err != nil {
		panic(err)
	}
	return t
}

// Classify returns the level of the band containing amount.
func (t *ApprovalTable) Classify(amount decimal.Decimal) models.ApprovalLevel {
	i := sort.Search(len(t.bands), func(i int) bool {
		return t.bands[i].From.GreaterThan(amount)
	})
	if i == 0 {
		return t.bands[0].Level
	}
	return t.bands[i-1].Level
}

func (t *ApprovalTable) Bands() []ApprovalBand {
	out := make([]ApprovalBand, len(t.bands))
	copy(out, t.bands)
	return out
}
