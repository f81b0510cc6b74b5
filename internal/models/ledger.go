package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyReport summarises every record stamped on one calendar day.
type DailyReport struct {
	Date     time.Time       `json:"date"`
	Count    int             `json:"count"`
	Total    decimal.Decimal `json:"total"`
	Failures int             `json:"failures"`
}
