package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/posi-ecosystem/fati-backend/internal/audit"
	"github.com/posi-ecosystem/fati-backend/internal/config"
	"github.com/posi-ecosystem/fati-backend/internal/models"
	"github.com/posi-ecosystem/fati-backend/internal/store"
	"github.com/shopspring/decimal"
)

// LedgerService is the only writer of account balances. Every credit, debit
// and transfer locks the affected account rows, updates the balance and
// appends a ledger entry inside one store transaction.
type LedgerService struct {
	store        store.Store
	audit        audit.Logger
	minTransfer  int64
	historyLimit int
	historyMax   int
	retry        RetryPolicy
	now          func() time.Time
}

func NewLedgerService(st store.Store, auditLogger audit.Logger, cfg config.LedgerConfig) *LedgerService {
	if auditLogger == nil {
		auditLogger = audit.NewAuditLoggerTo(io.Discard)
	}
	return &LedgerService{
		store:        st,
		audit:        auditLogger,
		minTransfer:  cfg.MinTransfer,
		historyLimit: cfg.DefaultHistoryLimit,
		historyMax:   cfg.MaxHistoryLimit,
		retry:        RetryPolicy{Attempts: cfg.RetryAttempts, BaseDelay: cfg.RetryBaseDelay},
		now:          time.Now,
	}
}

// Posting describes a single credit or debit.
type Posting struct {
	AccountID      string
	Amount         int64
	Type           models.EntryType
	USDAmount      decimal.NullDecimal
	Metadata       models.Metadata
	IdempotencyKey string
}

func (p Posting) validate() error {
	if p.Amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, p.Amount)
	}
	if p.AccountID == "" {
		return fmt.Errorf("%w: empty account id", ErrNotFound)
	}
	if _, err := models.ParseEntryType(string(p.Type)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntryType, err)
	}
	if err := p.Metadata.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	if unknown := p.Metadata.UnknownKeys(p.Type); len(unknown) > 0 {
		log.Printf("[LEDGER] %s posting for %s carries extra metadata keys %v", p.Type, p.AccountID, unknown)
	}
	return nil
}

// ParseFati converts a JSON number into a FATI amount. Fractions and values
// below one are rejected.
func ParseFati(n json.Number) (int64, error) {
	v, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a whole number", ErrInvalidAmount, n.String())
	}
	if v <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidAmount, v)
	}
	return v, nil
}

// Credit adds p.Amount to the account. Replaying an idempotency key already
// recorded for the account returns the original entry.
func (s *LedgerService) Credit(ctx context.Context, p Posting) (*models.LedgerEntry, error) {
	return s.post(ctx, p, 1)
}

// Debit removes p.Amount from the account and fails with
// ErrInsufficientBalance rather than let the balance go negative.
func (s *LedgerService) Debit(ctx context.Context, p Posting) (*models.LedgerEntry, error) {
	return s.post(ctx, p, -1)
}

// CreditTx is Credit inside a caller-owned transaction. The caller is
// responsible for committing and auditing.
func (s *LedgerService) CreditTx(ctx context.Context, tx store.Tx, p Posting) (*models.LedgerEntry, bool, error) {
	if err := p.validate(); err != nil {
		return nil, false, err
	}
	return s.apply(ctx, tx, p, 1)
}

func (s *LedgerService) DebitTx(ctx context.Context, tx store.Tx, p Posting) (*models.LedgerEntry, bool, error) {
	if err := p.validate(); err != nil {
		return nil, false, err
	}
	return s.apply(ctx, tx, p, -1)
}

func (s *LedgerService) post(ctx context.Context, p Posting, sign int64) (*models.LedgerEntry, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	// Retries reuse the generated key.
	if p.IdempotencyKey == "" {
		p.IdempotencyKey = "auto:" + uuid.NewString()
	}

	var (
		entry    *models.LedgerEntry
		replayed bool
	)
	err := WithRetry(ctx, s.retry, func() error {
		return s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			entry, replayed, err = s.apply(ctx, tx, p, sign)
			return err
		})
	})
	if err != nil {
		s.audit.LogError(p.IdempotencyKey, p.AccountID, err)
		return nil, err
	}
	if !replayed {
		s.recordAudit(entry)
	}
	return entry, nil
}

// apply locks the account, checks the key and balance, writes the new balance
// and appends the entry. It reports replayed=true when the key was already
// recorded and nothing changed.
func (s *LedgerService) apply(ctx context.Context, tx store.Tx, p Posting, sign int64) (*models.LedgerEntry, bool, error) {
	account, err := tx.LockAccount(ctx, p.AccountID)
	if err != nil {
		return nil, false, fmt.Errorf("lock account %s: %w", p.AccountID, err)
	}

	if p.IdempotencyKey != "" {
		existing, err := tx.FindEntryByKey(ctx, account.ID, p.IdempotencyKey)
		switch {
		case err == nil:
			if err := matchReplay(existing, p, sign); err != nil {
				return nil, false, err
			}
			log.Printf("[LEDGER] Replayed idempotency key %s on account %s", p.IdempotencyKey, account.ID)
			return existing, true, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, false, fmt.Errorf("find entry by key: %w", err)
		}
	}

	if sign > 0 && account.Balance > math.MaxInt64-p.Amount {
		return nil, false, fmt.Errorf("%w: balance overflow", ErrInvalidAmount)
	}
	delta := sign * p.Amount
	newBalance := account.Balance + delta
	if newBalance < 0 {
		return nil, false, fmt.Errorf("%w: balance %d, requested %d", ErrInsufficientBalance, account.Balance, p.Amount)
	}

	if err := tx.UpdateBalance(ctx, account.ID, newBalance, account.Version); err != nil {
		return nil, false, fmt.Errorf("update balance: %w", err)
	}

	entry := &models.LedgerEntry{
		AccountID:        account.ID,
		Type:             p.Type,
		USDAmount:        p.USDAmount,
		FatiDelta:        delta,
		ResultingBalance: newBalance,
		Metadata:         p.Metadata,
		IdempotencyKey:   p.IdempotencyKey,
		CreatedAt:        s.now(),
	}
	if entry.Metadata == nil {
		entry.Metadata = models.Metadata{}
	}
	if err := tx.AppendEntry(ctx, entry); err != nil {
		return nil, false, fmt.Errorf("append entry: %w", err)
	}

	log.Printf("[LEDGER] %s %+d FATI on account %s, balance %d", p.Type, delta, account.ID, newBalance)
	return entry, false, nil
}

// matchReplay rejects a replayed key whose recorded entry describes a
// different posting than the one requested.
func matchReplay(existing *models.LedgerEntry, p Posting, sign int64) error {
	if existing.Type != p.Type || existing.FatiDelta != sign*p.Amount {
		return fmt.Errorf("%w: key %s recorded %s %+d FATI, requested %s %+d FATI",
			ErrIdempotencyMismatch, p.IdempotencyKey, existing.Type, existing.FatiDelta, p.Type, sign*p.Amount)
	}
	if want := p.Metadata.String(models.MetaCounterparty); want != "" {
		if got := existing.Metadata.String(models.MetaCounterparty); got != want {
			return fmt.Errorf("%w: key %s recorded counterparty %s, requested %s",
				ErrIdempotencyMismatch, p.IdempotencyKey, got, want)
		}
	}
	return nil
}

func (s *LedgerService) recordAudit(entries ...*models.LedgerEntry) {
	auditEntries(s.audit, entries...)
}

func auditEntries(logger audit.Logger, entries ...*models.LedgerEntry) {
	for _, e := range entries {
		if e != nil {
			logger.LogEntry(e.ID, e.AccountID, string(e.Type), e.FatiDelta, e.ResultingBalance)
		}
	}
}

type TransferRequest struct {
	FromID         string
	ToID           string
	Amount         int64
	IdempotencyKey string
}

type TransferResult struct {
	Reference string              `json:"reference"`
	FromEntry *models.LedgerEntry `json:"fromEntry"`
	ToEntry   *models.LedgerEntry `json:"toEntry"`
	// Replayed is true when the idempotency key had already been applied
	// and both entries are the originals.
	Replayed bool `json:"replayed"`
}

// Transfer moves FATI between two accounts. The debit and the credit commit
// together or not at all.
func (s *LedgerService) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, req.Amount)
	}
	if req.Amount < s.minTransfer {
		return nil, fmt.Errorf("%w: minimum transfer is %d FATI", ErrInvalidAmount, s.minTransfer)
	}
	if req.FromID == req.ToID {
		return nil, ErrSelfTransfer
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}

	var (
		result   *TransferResult
		replayed bool
	)
	err := WithRetry(ctx, s.retry, func() error {
		return s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			result, replayed, err = s.TransferTx(ctx, tx, req)
			return err
		})
	})
	if err != nil {
		s.audit.LogTransfer(req.IdempotencyKey, req.FromID, req.ToID, req.Amount, "FAILED")
		s.audit.LogError(req.IdempotencyKey, req.FromID, err)
		return nil, err
	}

	if replayed {
		s.audit.LogTransfer(req.IdempotencyKey, req.FromID, req.ToID, req.Amount, "REPLAYED")
		return result, nil
	}
	s.audit.LogTransfer(req.IdempotencyKey, req.FromID, req.ToID, req.Amount, "SUCCESS")
	s.recordAudit(result.FromEntry, result.ToEntry)
	return result, nil
}

// TransferTx performs a transfer inside tx. Both accounts are locked in
// ascending id order before either balance is read. The recipient's entry key
// includes the sender id, since idempotency keys are unique per account. A
// replayed key returns both original entries and applies nothing; it fails
// with ErrIdempotencyMismatch if the recipient or amount differ.
func (s *LedgerService) TransferTx(ctx context.Context, tx store.Tx, req TransferRequest) (*TransferResult, bool, error) {
	firstLock, secondLock := req.FromID, req.ToID
	if firstLock > secondLock {
		firstLock, secondLock = secondLock, firstLock
	}
	for _, id := range []string{firstLock, secondLock} {
		if _, err := tx.LockAccount(ctx, id); err != nil {
			return nil, false, fmt.Errorf("lock account %s: %w", id, err)
		}
	}

	debit := Posting{
		AccountID: req.FromID,
		Amount:    req.Amount,
		Type:      models.EntryTransfer,
		Metadata: models.Metadata{
			models.MetaCounterparty: req.ToID,
			models.MetaDirection:    "out",
			models.MetaTransferTo:   req.ToID,
		},
		IdempotencyKey: req.IdempotencyKey + ":out",
	}
	credit := Posting{
		AccountID: req.ToID,
		Amount:    req.Amount,
		Type:      models.EntryTransfer,
		Metadata: models.Metadata{
			models.MetaCounterparty: req.FromID,
			models.MetaDirection:    "in",
			models.MetaTransferFrom: req.FromID,
		},
		IdempotencyKey: req.FromID + ":" + req.IdempotencyKey + ":in",
	}

	fromEntry, replayed, err := s.apply(ctx, tx, debit, -1)
	if err != nil {
		return nil, false, err
	}

	if replayed {
		toEntry, err := tx.FindEntryByKey(ctx, req.ToID, credit.IdempotencyKey)
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, fmt.Errorf("%w: transfer %s has no credit on %s", ErrIdempotencyMismatch, req.IdempotencyKey, req.ToID)
		}
		if err != nil {
			return nil, false, fmt.Errorf("find entry by key: %w", err)
		}
		if err := matchReplay(toEntry, credit, 1); err != nil {
			return nil, false, err
		}
		return &TransferResult{Reference: req.IdempotencyKey, FromEntry: fromEntry, ToEntry: toEntry, Replayed: true}, true, nil
	}

	toEntry, creditReplayed, err := s.apply(ctx, tx, credit, 1)
	if err != nil {
		return nil, false, err
	}
	if creditReplayed {
		return nil, false, fmt.Errorf("%w: transfer %s already credited %s", ErrIdempotencyMismatch, req.IdempotencyKey, req.ToID)
	}

	return &TransferResult{Reference: req.IdempotencyKey, FromEntry: fromEntry, ToEntry: toEntry}, false, nil
}

func (s *LedgerService) Balance(ctx context.Context, accountID string) (int64, error) {
	var balance int64
	err := WithRetry(ctx, s.retry, func() error {
		account, err := s.store.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		balance = account.Balance
		return nil
	})
	return balance, err
}

// History returns entries newest first. limit is clamped to the configured
// maximum; a non-positive limit selects the default page size.
func (s *LedgerService) History(ctx context.Context, accountID string, limit, offset int) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = s.historyLimit
	}
	if s.historyMax > 0 && limit > s.historyMax {
		limit = s.historyMax
	}
	if offset < 0 {
		offset = 0
	}

	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	var entries []models.LedgerEntry
	err := WithRetry(ctx, s.retry, func() error {
		var err error
		entries, err = s.store.ListEntries(ctx, accountID, limit, offset)
		return err
	})
	return entries, err
}

// Recent returns entries created within the last days, newest first.
func (s *LedgerService) Recent(ctx context.Context, accountID string, days int) ([]models.LedgerEntry, error) {
	if days <= 0 {
		days = 30
	}
	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)

	var entries []models.LedgerEntry
	err := WithRetry(ctx, s.retry, func() error {
		var err error
		entries, err = s.store.ListEntriesSince(ctx, accountID, since)
		return err
	})
	return entries, err
}

func (s *LedgerService) Summary(ctx context.Context, accountID string) (models.LedgerSummary, error) {
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return models.LedgerSummary{}, err
	}

	var summary models.LedgerSummary
	err := WithRetry(ctx, s.retry, func() error {
		var err error
		summary, err = s.store.Summary(ctx, accountID)
		return err
	})
	return summary, err
}
