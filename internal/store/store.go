// Package store persists accounts, the FATI ledger, referral links and
// processed billing events.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/posi-ecosystem/fati-backend/internal/models"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrDuplicate   = errors.New("duplicate record")
	ErrConflict    = errors.New("conflicting update")
	ErrUnavailable = errors.New("store unavailable")
)

// Tx is the set of operations available inside a store transaction. Rows
// returned by the Lock* methods stay locked until the transaction ends.
type Tx interface {
	CreateAccount(ctx context.Context, a *models.Account) error
	LockAccount(ctx context.Context, id string) (*models.Account, error)
	UpdateBalance(ctx context.Context, id string, balance int64, version int) error
	UpdateAccount(ctx context.Context, id string, u models.AccountUpdate) error
	// SetReferredBy fails with ErrConflict if referred_by is already set.
	SetReferredBy(ctx context.Context, id, referrerID string) error

	AppendEntry(ctx context.Context, e *models.LedgerEntry) error
	FindEntryByKey(ctx context.Context, accountID, key string) (*models.LedgerEntry, error)

	CreateReferral(ctx context.Context, l *models.ReferralLink) error
	LockPendingReferral(ctx context.Context, referredID string) (*models.ReferralLink, error)
	CompleteReferral(ctx context.Context, id string, reward int64, at time.Time) error

	// MarkEventProcessed records a provider event id. It returns false when
	// the id was already recorded.
	MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error)
}

// Store is the persistence boundary of the ledger.
type Store interface {
	// WithTx runs fn in a transaction. Any error returned by fn rolls back
	// every write fn made.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	CreateAccount(ctx context.Context, a *models.Account) error
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	GetAccountByReferralCode(ctx context.Context, code string) (*models.Account, error)
	UpdateAccount(ctx context.Context, id string, u models.AccountUpdate) error

	// ListEntries returns entries newest first.
	ListEntries(ctx context.Context, accountID string, limit, offset int) ([]models.LedgerEntry, error)
	ListEntriesSince(ctx context.Context, accountID string, since time.Time) ([]models.LedgerEntry, error)
	Summary(ctx context.Context, accountID string) (models.LedgerSummary, error)

	GetReferralByReferred(ctx context.Context, referredID string) (*models.ReferralLink, error)
	ReferralStats(ctx context.Context, referrerID string) (models.ReferralStats, error)

	Ping(ctx context.Context) error
}
