package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/posi-ecosystem/fati-backend/internal/models"
)

// MemoryStore is an in-process Store. Transactions are serialized by a
// single mutex and rolled back through an undo journal.
type MemoryStore struct {
	mu sync.Mutex

	accounts  map[string]*models.Account
	byEmail   map[string]string
	byCode    map[string]string
	entries   map[string][]models.LedgerEntry
	entryKeys map[string]map[string]int
	referrals map[string]*models.ReferralLink
	events    map[string]string

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:  make(map[string]*models.Account),
		byEmail:   make(map[string]string),
		byCode:    make(map[string]string),
		entries:   make(map[string][]models.LedgerEntry),
		entryKeys: make(map[string]map[string]int),
		referrals: make(map[string]*models.ReferralLink),
		events:    make(map[string]string),
		now:       time.Now,
	}
}

func (m *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{s: m}
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
		if err != nil {
			tx.rollback()
		}
	}()

	return fn(ctx, tx)
}

func (m *MemoryStore) CreateAccount(ctx context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.insertAccount(a)
	return err
}

// insertAccount stores a copy of a and returns a function removing it again.
func (m *MemoryStore) insertAccount(a *models.Account) (func(), error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if _, ok := m.accounts[a.ID]; ok {
		return nil, ErrDuplicate
	}
	email := strings.ToLower(a.Email)
	if _, ok := m.byEmail[email]; ok {
		return nil, ErrDuplicate
	}
	if a.ReferralCode != "" {
		if _, ok := m.byCode[a.ReferralCode]; ok {
			return nil, ErrDuplicate
		}
	}
	if a.SubscriptionTier == "" {
		a.SubscriptionTier = models.TierFree
	}
	if a.Version == 0 {
		a.Version = 1
	}
	now := m.now()
	a.CreatedAt, a.UpdatedAt = now, now

	cp := *a
	m.accounts[a.ID] = &cp
	m.byEmail[email] = a.ID
	if a.ReferralCode != "" {
		m.byCode[a.ReferralCode] = a.ID
	}
	return func() {
		delete(m.accounts, cp.ID)
		delete(m.byEmail, email)
		if cp.ReferralCode != "" {
			delete(m.byCode, cp.ReferralCode)
		}
	}, nil
}

func (m *MemoryStore) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.account(id)
}

func (m *MemoryStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return m.account(id)
}

func (m *MemoryStore) GetAccountByReferralCode(ctx context.Context, code string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	return m.account(id)
}

func (m *MemoryStore) UpdateAccount(ctx context.Context, id string, u models.AccountUpdate) error {
	return m.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.UpdateAccount(ctx, id, u)
	})
}

func (m *MemoryStore) ListEntries(ctx context.Context, accountID string, limit, offset int) ([]models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.entries[accountID]
	out := []models.LedgerEntry{}
	for i := len(all) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (m *MemoryStore) ListEntriesSince(ctx context.Context, accountID string, since time.Time) ([]models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.entries[accountID]
	out := []models.LedgerEntry{}
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].CreatedAt.Before(since) {
			break
		}
		out = append(out, all[i])
	}
	return out, nil
}

func (m *MemoryStore) Summary(ctx context.Context, accountID string) (models.LedgerSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var s models.LedgerSummary
	for _, e := range m.entries[accountID] {
		s.Add(e)
	}
	return s, nil
}

func (m *MemoryStore) GetReferralByReferred(ctx context.Context, referredID string) (*models.ReferralLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.referrals[referredID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *MemoryStore) ReferralStats(ctx context.Context, referrerID string) (models.ReferralStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats models.ReferralStats
	for _, l := range m.referrals {
		if l.ReferrerID != referrerID {
			continue
		}
		stats.TotalReferrals++
		if l.Status == models.ReferralCompleted {
			stats.CompletedReferrals++
		}
		stats.TotalRewards += l.RewardFati
	}
	return stats, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

// Entries returns every entry of an account in creation order.
func (m *MemoryStore) Entries(accountID string) []models.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.LedgerEntry(nil), m.entries[accountID]...)
}

// AccountIDs returns all account ids in sorted order.
func (m *MemoryStore) AccountIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.accounts))
	for id := range m.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *MemoryStore) account(id string) (*models.Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

type memoryTx struct {
	s    *MemoryStore
	undo []func()
}

func (t *memoryTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memoryTx) CreateAccount(ctx context.Context, a *models.Account) error {
	undo, err := t.s.insertAccount(a)
	if err != nil {
		return err
	}
	t.undo = append(t.undo, undo)
	return nil
}

func (t *memoryTx) LockAccount(ctx context.Context, id string) (*models.Account, error) {
	return t.s.account(id)
}

func (t *memoryTx) UpdateBalance(ctx context.Context, id string, balance int64, version int) error {
	a, ok := t.s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	if a.Version != version {
		return ErrConflict
	}
	prev := *a
	t.undo = append(t.undo, func() { *a = prev })

	a.Balance = balance
	a.Version++
	a.UpdatedAt = t.s.now()
	return nil
}

func (t *memoryTx) UpdateAccount(ctx context.Context, id string, u models.AccountUpdate) error {
	a, ok := t.s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	if u.ReferralCode != nil {
		if owner, taken := t.s.byCode[*u.ReferralCode]; taken && owner != id {
			return ErrDuplicate
		}
	}

	prev := *a
	t.undo = append(t.undo, func() {
		if a.ReferralCode != prev.ReferralCode {
			delete(t.s.byCode, a.ReferralCode)
			if prev.ReferralCode != "" {
				t.s.byCode[prev.ReferralCode] = id
			}
		}
		*a = prev
	})

	if u.SubscriptionTier != nil {
		a.SubscriptionTier = *u.SubscriptionTier
	}
	if u.StripeCustomerID != nil {
		a.StripeCustomerID = *u.StripeCustomerID
	}
	if u.ReferralCode != nil {
		if a.ReferralCode != "" {
			delete(t.s.byCode, a.ReferralCode)
		}
		a.ReferralCode = *u.ReferralCode
		t.s.byCode[a.ReferralCode] = id
	}
	a.UpdatedAt = t.s.now()
	return nil
}

func (t *memoryTx) SetReferredBy(ctx context.Context, id, referrerID string) error {
	a, ok := t.s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	if a.ReferredBy != "" || id == referrerID {
		return ErrConflict
	}
	t.undo = append(t.undo, func() { a.ReferredBy = "" })
	a.ReferredBy = referrerID
	return nil
}

func (t *memoryTx) AppendEntry(ctx context.Context, e *models.LedgerEntry) error {
	if _, ok := t.s.accounts[e.AccountID]; !ok {
		return ErrNotFound
	}
	keys := t.s.entryKeys[e.AccountID]
	if e.IdempotencyKey != "" {
		if _, dup := keys[e.IdempotencyKey]; dup {
			return ErrDuplicate
		}
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = t.s.now()
	}

	accountID := e.AccountID
	prevLen := len(t.s.entries[accountID])
	t.s.entries[accountID] = append(t.s.entries[accountID], *e)
	if e.IdempotencyKey != "" {
		if keys == nil {
			keys = make(map[string]int)
			t.s.entryKeys[accountID] = keys
		}
		keys[e.IdempotencyKey] = prevLen
	}

	key := e.IdempotencyKey
	t.undo = append(t.undo, func() {
		t.s.entries[accountID] = t.s.entries[accountID][:prevLen]
		if key != "" {
			delete(t.s.entryKeys[accountID], key)
		}
	})
	return nil
}

func (t *memoryTx) FindEntryByKey(ctx context.Context, accountID, key string) (*models.LedgerEntry, error) {
	idx, ok := t.s.entryKeys[accountID][key]
	if !ok {
		return nil, ErrNotFound
	}
	e := t.s.entries[accountID][idx]
	return &e, nil
}

func (t *memoryTx) CreateReferral(ctx context.Context, l *models.ReferralLink) error {
	if _, dup := t.s.referrals[l.ReferredID]; dup {
		return ErrDuplicate
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = t.s.now()
	}
	cp := *l
	t.s.referrals[l.ReferredID] = &cp

	referredID := l.ReferredID
	t.undo = append(t.undo, func() { delete(t.s.referrals, referredID) })
	return nil
}

func (t *memoryTx) LockPendingReferral(ctx context.Context, referredID string) (*models.ReferralLink, error) {
	l, ok := t.s.referrals[referredID]
	if !ok || l.Status != models.ReferralPending {
		return nil, ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (t *memoryTx) CompleteReferral(ctx context.Context, id string, reward int64, at time.Time) error {
	for _, l := range t.s.referrals {
		if l.ID != id {
			continue
		}
		if l.Status != models.ReferralPending {
			return ErrConflict
		}
		prev := *l
		t.undo = append(t.undo, func() { *l = prev })

		completedAt := at
		l.Status = models.ReferralCompleted
		l.RewardFati = reward
		l.CompletedAt = &completedAt
		return nil
	}
	return ErrNotFound
}

func (t *memoryTx) MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	if _, seen := t.s.events[eventID]; seen {
		return false, nil
	}
	t.s.events[eventID] = eventType
	t.undo = append(t.undo, func() { delete(t.s.events, eventID) })
	return true, nil
}
