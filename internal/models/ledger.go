package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EntryType classifies a balance-affecting event.
type EntryType string

const (
	EntryPurchase EntryType = "purchase"
	EntrySpend    EntryType = "spend"
	EntryReward   EntryType = "reward"
	EntryTransfer EntryType = "transfer"
	EntryRefund   EntryType = "refund"
)

// ParseEntryType validates an entry type string.
func ParseEntryType(s string) (EntryType, error) {
	switch t := EntryType(s); t {
	case EntryPurchase, EntrySpend, EntryReward, EntryTransfer, EntryRefund:
		return t, nil
	}
	return "", fmt.Errorf("unknown entry type %q", s)
}

// LedgerEntry is one append-only record of a balance mutation. FatiDelta is
// positive for credits and negative for debits.
type LedgerEntry struct {
	ID               string              `json:"id" db:"id"`
	AccountID        string              `json:"accountId" db:"account_id"`
	Type             EntryType           `json:"type" db:"type"`
	USDAmount        decimal.NullDecimal `json:"usdAmount" db:"usd_amount"`
	FatiDelta        int64               `json:"fatiDelta" db:"fati_delta"`
	ResultingBalance int64               `json:"resultingBalance" db:"resulting_balance"`
	Metadata         Metadata            `json:"metadata" db:"metadata"`
	IdempotencyKey   string              `json:"idempotencyKey,omitempty" db:"idempotency_key"`
	CreatedAt        time.Time           `json:"createdAt" db:"created_at"`
}

// LedgerSummary aggregates absolute FATI volume per entry type.
type LedgerSummary struct {
	TotalPurchases int64 `json:"totalPurchases"`
	TotalSpent     int64 `json:"totalSpent"`
	TotalRewards   int64 `json:"totalRewards"`
	TotalTransfers int64 `json:"totalTransfers"`
	TotalRefunds   int64 `json:"totalRefunds"`
}

// Add folds one entry into the summary.
func (s *LedgerSummary) Add(e LedgerEntry) {
	amount := e.FatiDelta
	if amount < 0 {
		amount = -amount
	}
	switch e.Type {
	case EntryPurchase:
		s.TotalPurchases += amount
	case EntrySpend:
		s.TotalSpent += amount
	case EntryReward:
		s.TotalRewards += amount
	case EntryTransfer:
		s.TotalTransfers += amount
	case EntryRefund:
		s.TotalRefunds += amount
	}
}
