package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/posi-ecosystem/fati-backend/internal/models"
	"github.com/posi-ecosystem/fati-backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLedgerService_Credit(t *testing.T) {
	ctx := context.Background()
	ledger, st := newTestLedger(t)
	seedAccount(t, ledger, st, "acct-1", 0)

	t.Run("successful credit", func(t *testing.T) {
		entry, err := ledger.Credit(ctx, Posting{
			AccountID: "acct-1",
			Amount:    250,
			Type:      models.EntryReward,
			Metadata:  models.Metadata{models.MetaSource: "test"},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, entry.ID)
		assert.Equal(t, int64(250), entry.FatiDelta)
		assert.Equal(t, int64(250), entry.ResultingBalance)
		assert.Equal(t, models.EntryReward, entry.Type)

		balance, err := ledger.Balance(ctx, "acct-1")
		require.NoError(t, err)
		assert.Equal(t, int64(250), balance)
	})

	t.Run("non-positive amounts are rejected", func(t *testing.T) {
		before := len(st.Entries("acct-1"))
		for _, amount := range []int64{0, -5} {
			_, err := ledger.Credit(ctx, Posting{AccountID: "acct-1", Amount: amount, Type: models.EntryReward})
			assert.ErrorIs(t, err, ErrInvalidAmount)
			assert.Equal(t, KindInvalidAmount, KindOf(err))
		}
		assert.Len(t, st.Entries("acct-1"), before)
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := ledger.Credit(ctx, Posting{AccountID: "ghost", Amount: 10, Type: models.EntryReward})
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.Equal(t, KindNotFound, KindOf(err))
	})

	t.Run("unknown entry type", func(t *testing.T) {
		_, err := ledger.Credit(ctx, Posting{AccountID: "acct-1", Amount: 10, Type: "bonus"})
		assert.ErrorIs(t, err, ErrInvalidEntryType)
	})

	t.Run("nested metadata is rejected", func(t *testing.T) {
		_, err := ledger.Credit(ctx, Posting{
			AccountID: "acct-1",
			Amount:    10,
			Type:      models.EntryReward,
			Metadata:  models.Metadata{"nested": map[string]any{"a": 1}},
		})
		assert.ErrorIs(t, err, ErrInvalidMetadata)
	})

	t.Run("replayed idempotency key returns the original entry", func(t *testing.T) {
		p := Posting{AccountID: "acct-1", Amount: 40, Type: models.EntryReward, IdempotencyKey: "promo-7"}

		first, err := ledger.Credit(ctx, p)
		require.NoError(t, err)
		second, err := ledger.Credit(ctx, p)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		balance, _ := ledger.Balance(ctx, "acct-1")
		assert.Equal(t, int64(290), balance)
	})

	requireLedgerConsistent(t, st)
}

func TestLedgerService_Debit(t *testing.T) {
	ctx := context.Background()
	ledger, st := newTestLedger(t)
	seedAccount(t, ledger, st, "acct-1", 100)

	t.Run("insufficient balance leaves the account untouched", func(t *testing.T) {
		before := len(st.Entries("acct-1"))

		for _, amount := range []int64{101, 500} {
			_, err := ledger.Debit(ctx, Posting{AccountID: "acct-1", Amount: amount, Type: models.EntrySpend})
			assert.ErrorIs(t, err, ErrInsufficientBalance)
			assert.False(t, IsRetryable(err))
		}

		balance, _ := ledger.Balance(ctx, "acct-1")
		assert.Equal(t, int64(100), balance)
		assert.Len(t, st.Entries("acct-1"), before)
	})

	t.Run("debit to exactly zero", func(t *testing.T) {
		entry, err := ledger.Debit(ctx, Posting{AccountID: "acct-1", Amount: 100, Type: models.EntrySpend})
		require.NoError(t, err)
		assert.Equal(t, int64(-100), entry.FatiDelta)
		assert.Equal(t, int64(0), entry.ResultingBalance)
	})

	requireLedgerConsistent(t, st)
}

func TestLedgerService_CreditThenDebitRestoresBalance(t *testing.T) {
	ctx := context.Background()
	ledger, st := newTestLedger(t)
	seedAccount(t, ledger, st, "acct-1", 75)
	before := len(st.Entries("acct-1"))

	for _, amount := range []int64{1, 10, 75, 1000} {
		_, err := ledger.Credit(ctx, Posting{AccountID: "acct-1", Amount: amount, Type: models.EntryRefund})
		require.NoError(t, err)
		_, err = ledger.Debit(ctx, Posting{AccountID: "acct-1", Amount: amount, Type: models.EntrySpend})
		require.NoError(t, err)

		balance, err := ledger.Balance(ctx, "acct-1")
		require.NoError(t, err)
		assert.Equal(t, int64(75), balance)
		before += 2
		assert.Len(t, st.Entries("acct-1"), before)
	}

	requireLedgerConsistent(t, st)
}

func TestLedgerService_Transfer(t *testing.T) {
	ctx := context.Background()
	ledger, st := newTestLedger(t)
	seedAccount(t, ledger, st, "alice", 100)
	seedAccount(t, ledger, st, "bob", 20)

	t.Run("successful transfer", func(t *testing.T) {
		result, err := ledger.Transfer(ctx, TransferRequest{FromID: "alice", ToID: "bob", Amount: 30})
		require.NoError(t, err)

		assert.Equal(t, int64(-30), result.FromEntry.FatiDelta)
		assert.Equal(t, int64(30), result.ToEntry.FatiDelta)
		assert.Equal(t, models.EntryTransfer, result.FromEntry.Type)
		assert.Equal(t, "bob", result.FromEntry.Metadata.String(models.MetaCounterparty))
		assert.Equal(t, "alice", result.ToEntry.Metadata.String(models.MetaCounterparty))

		alice, _ := ledger.Balance(ctx, "alice")
		bob, _ := ledger.Balance(ctx, "bob")
		assert.Equal(t, int64(70), alice)
		assert.Equal(t, int64(50), bob)
		assert.Equal(t, int64(120), alice+bob)
	})

	t.Run("self transfer", func(t *testing.T) {
		_, err := ledger.Transfer(ctx, TransferRequest{FromID: "alice", ToID: "alice", Amount: 30})
		assert.ErrorIs(t, err, ErrSelfTransfer)
		assert.Equal(t, KindSelfTransfer, KindOf(err))
	})

	t.Run("below minimum transfer", func(t *testing.T) {
		_, err := ledger.Transfer(ctx, TransferRequest{FromID: "alice", ToID: "bob", Amount: 9})
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("insufficient balance applies nothing", func(t *testing.T) {
		aliceEntries, bobEntries := len(st.Entries("alice")), len(st.Entries("bob"))

		_, err := ledger.Transfer(ctx, TransferRequest{FromID: "alice", ToID: "bob", Amount: 71})
		assert.ErrorIs(t, err, ErrInsufficientBalance)

		alice, _ := ledger.Balance(ctx, "alice")
		bob, _ := ledger.Balance(ctx, "bob")
		assert.Equal(t, int64(70), alice)
		assert.Equal(t, int64(50), bob)
		assert.Len(t, st.Entries("alice"), aliceEntries)
		assert.Len(t, st.Entries("bob"), bobEntries)
	})

	t.Run("unknown recipient does not debit the sender", func(t *testing.T) {
		_, err := ledger.Transfer(ctx, TransferRequest{FromID: "alice", ToID: "nobody", Amount: 10})
		assert.ErrorIs(t, err, store.ErrNotFound)

		alice, _ := ledger.Balance(ctx, "alice")
		assert.Equal(t, int64(70), alice)
	})

	t.Run("replayed transfer is applied once", func(t *testing.T) {
		req := TransferRequest{FromID: "bob", ToID: "alice", Amount: 10, IdempotencyKey: "tr-1"}
		first, err := ledger.Transfer(ctx, req)
		require.NoError(t, err)
		second, err := ledger.Transfer(ctx, req)
		require.NoError(t, err)

		assert.Equal(t, first.FromEntry.ID, second.FromEntry.ID)
		assert.Equal(t, first.ToEntry.ID, second.ToEntry.ID)
		bob, _ := ledger.Balance(ctx, "bob")
		assert.Equal(t, int64(40), bob)
	})

	requireLedgerConsistent(t, st)
}

func TestLedgerService_ReusedKeyForDifferentPosting(t *testing.T) {
	ctx := context.Background()
	ledger, st := newTestLedger(t)
	seedAccount(t, ledger, st, "acct-1", 0)

	_, err := ledger.Credit(ctx, Posting{AccountID: "acct-1", Amount: 100, Type: models.EntryReward, IdempotencyKey: "bonus:acct-1"})
	require.NoError(t, err)

	t.Run("debit cannot replay a credit", func(t *testing.T) {
		entry, err := ledger.Debit(ctx, Posting{AccountID: "acct-1", Amount: 100, Type: models.EntrySpend, IdempotencyKey: "bonus:acct-1"})
		assert.ErrorIs(t, err, ErrIdempotencyMismatch)
		assert.Nil(t, entry)
		assert.Equal(t, KindIdempotencyMismatch, KindOf(err))
		assert.Equal(t, http.StatusConflict, StatusOf(err))
	})

	t.Run("credit with a different amount", func(t *testing.T) {
		_, err := ledger.Credit(ctx, Posting{AccountID: "acct-1", Amount: 500, Type: models.EntryReward, IdempotencyKey: "bonus:acct-1"})
		assert.ErrorIs(t, err, ErrIdempotencyMismatch)
	})

	balance, err := ledger.Balance(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
	assert.Len(t, st.Entries("acct-1"), 1)
	requireLedgerConsistent(t, st)
}

func TestLedgerService_TransferKeyReuse(t *testing.T) {
	ctx := context.Background()
	ledger, st := newTestLedger(t)
	seedAccount(t, ledger, st, "a", 100)
	seedAccount(t, ledger, st, "b", 0)
	seedAccount(t, ledger, st, "c", 0)

	first, err := ledger.Transfer(ctx, TransferRequest{FromID: "a", ToID: "b", Amount: 100, IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	t.Run("same request replays both entries", func(t *testing.T) {
		again, err := ledger.Transfer(ctx, TransferRequest{FromID: "a", ToID: "b", Amount: 100, IdempotencyKey: "k1"})
		require.NoError(t, err)
		assert.True(t, again.Replayed)
		assert.Equal(t, first.FromEntry.ID, again.FromEntry.ID)
		assert.Equal(t, first.ToEntry.ID, again.ToEntry.ID)
	})

	t.Run("different recipient is rejected", func(t *testing.T) {
		_, err := ledger.Transfer(ctx, TransferRequest{FromID: "a", ToID: "c", Amount: 100, IdempotencyKey: "k1"})
		assert.ErrorIs(t, err, ErrIdempotencyMismatch)
	})

	t.Run("different amount is rejected", func(t *testing.T) {
		_, err := ledger.Transfer(ctx, TransferRequest{FromID: "a", ToID: "b", Amount: 50, IdempotencyKey: "k1"})
		assert.ErrorIs(t, err, ErrIdempotencyMismatch)
	})

	var total int64
	for id, want := range map[string]int64{"a": 0, "b": 100, "c": 0} {
		balance, err := ledger.Balance(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, balance, id)
		total += balance
	}
	assert.Equal(t, int64(100), total)
	assert.Empty(t, st.Entries("c"))
	requireLedgerConsistent(t, st)
}

func TestLedgerService_ConcurrentDebits(t *testing.T) {
	ctx := context.Background()

	t.Run("two debits of 50 against 60", func(t *testing.T) {
		ledger, st := newTestLedger(t)
		seedAccount(t, ledger, st, "acct-1", 60)

		var wg sync.WaitGroup
		var succeeded, insufficient atomic.Int32
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := ledger.Debit(ctx, Posting{AccountID: "acct-1", Amount: 50, Type: models.EntrySpend})
				switch {
				case err == nil:
					succeeded.Add(1)
				case errors.Is(err, ErrInsufficientBalance):
					insufficient.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), succeeded.Load())
		assert.Equal(t, int32(1), insufficient.Load())
		balance, _ := ledger.Balance(ctx, "acct-1")
		assert.Equal(t, int64(10), balance)
		requireLedgerConsistent(t, st)
	})

	t.Run("many small debits never overdraw", func(t *testing.T) {
		ledger, st := newTestLedger(t)
		seedAccount(t, ledger, st, "acct-1", 100)

		var wg sync.WaitGroup
		var succeeded atomic.Int32
		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := ledger.Debit(ctx, Posting{AccountID: "acct-1", Amount: 10, Type: models.EntrySpend}); err == nil {
					succeeded.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(10), succeeded.Load())
		balance, _ := ledger.Balance(ctx, "acct-1")
		assert.Equal(t, int64(0), balance)
		requireLedgerConsistent(t, st)
	})
}

func TestLedgerService_ConcurrentOppositeTransfers(t *testing.T) {
	ctx := context.Background()
	ledger, st := newTestLedger(t)
	seedAccount(t, ledger, st, "a", 500)
	seedAccount(t, ledger, st, "b", 500)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ledger.Transfer(ctx, TransferRequest{FromID: "a", ToID: "b", Amount: 15})
		}()
		go func() {
			defer wg.Done()
			ledger.Transfer(ctx, TransferRequest{FromID: "b", ToID: "a", Amount: 10})
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("transfers did not finish")
	}

	a, _ := ledger.Balance(ctx, "a")
	b, _ := ledger.Balance(ctx, "b")
	assert.Equal(t, int64(1000), a+b)
	requireLedgerConsistent(t, st)
}

func TestLedgerService_History(t *testing.T) {
	ctx := context.Background()
	ledger, st := newTestLedger(t)
	seedAccount(t, ledger, st, "acct-1", 0)

	for i := int64(1); i <= 5; i++ {
		_, err := ledger.Credit(ctx, Posting{AccountID: "acct-1", Amount: i, Type: models.EntryReward})
		require.NoError(t, err)
	}

	t.Run("newest first", func(t *testing.T) {
		entries, err := ledger.History(ctx, "acct-1", 3, 0)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, int64(5), entries[0].FatiDelta)
		assert.Equal(t, int64(4), entries[1].FatiDelta)
		assert.Equal(t, int64(3), entries[2].FatiDelta)
	})

	t.Run("offset", func(t *testing.T) {
		entries, err := ledger.History(ctx, "acct-1", 10, 3)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, int64(2), entries[0].FatiDelta)
	})

	t.Run("default limit", func(t *testing.T) {
		entries, err := ledger.History(ctx, "acct-1", 0, -1)
		require.NoError(t, err)
		assert.Len(t, entries, 5)
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := ledger.History(ctx, "ghost", 10, 0)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestLedgerService_SummaryAndRecent(t *testing.T) {
	ctx := context.Background()
	ledger, st := newTestLedger(t)
	seedAccount(t, ledger, st, "alice", 1100)
	seedAccount(t, ledger, st, "bob", 0)

	_, err := ledger.Debit(ctx, Posting{AccountID: "alice", Amount: 100, Type: models.EntrySpend})
	require.NoError(t, err)
	_, err = ledger.Credit(ctx, Posting{AccountID: "alice", Amount: 25, Type: models.EntryReward})
	require.NoError(t, err)
	_, err = ledger.Transfer(ctx, TransferRequest{FromID: "alice", ToID: "bob", Amount: 50})
	require.NoError(t, err)

	summary, err := ledger.Summary(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.LedgerSummary{
		TotalPurchases: 1100,
		TotalSpent:     100,
		TotalRewards:   25,
		TotalTransfers: 50,
	}, summary)

	recent, err := ledger.Recent(ctx, "alice", 7)
	require.NoError(t, err)
	assert.Len(t, recent, 4)

	ledger.now = func() time.Time { return time.Now().Add(30 * 24 * time.Hour) }
	recent, err = ledger.Recent(ctx, "alice", 7)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestLedgerService_Audit(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	auditLog := new(MockAuditLogger)
	ledger := NewLedgerService(st, auditLog, testLedgerConfig())
	require.NoError(t, st.CreateAccount(ctx, &models.Account{ID: "acct-1", Email: "a@example.com"}))

	auditLog.On("LogEntry", mock.Anything, "acct-1", "reward", int64(50), int64(50)).Once()
	auditLog.On("LogError", mock.Anything, "acct-1", mock.Anything).Once()

	p := Posting{AccountID: "acct-1", Amount: 50, Type: models.EntryReward, IdempotencyKey: "k1"}
	_, err := ledger.Credit(ctx, p)
	require.NoError(t, err)
	_, err = ledger.Credit(ctx, p)
	require.NoError(t, err)

	_, err = ledger.Debit(ctx, Posting{AccountID: "acct-1", Amount: 500, Type: models.EntrySpend})
	require.ErrorIs(t, err, ErrInsufficientBalance)

	auditLog.AssertExpectations(t)
}

func TestLedgerService_TransferAudit(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	auditLog := new(MockAuditLogger)
	ledger := NewLedgerService(st, auditLog, testLedgerConfig())
	require.NoError(t, st.CreateAccount(ctx, &models.Account{ID: "from", Email: "from@example.com", Balance: 100}))
	require.NoError(t, st.CreateAccount(ctx, &models.Account{ID: "to", Email: "to@example.com"}))

	auditLog.On("LogTransfer", "tr-1", "from", "to", int64(40), "SUCCESS").Once()
	auditLog.On("LogEntry", mock.Anything, "from", "transfer", int64(-40), int64(60)).Once()
	auditLog.On("LogEntry", mock.Anything, "to", "transfer", int64(40), int64(40)).Once()
	auditLog.On("LogTransfer", "tr-1", "from", "to", int64(40), "REPLAYED").Once()

	req := TransferRequest{FromID: "from", ToID: "to", Amount: 40, IdempotencyKey: "tr-1"}
	_, err := ledger.Transfer(ctx, req)
	require.NoError(t, err)
	_, err = ledger.Transfer(ctx, req)
	require.NoError(t, err)

	auditLog.AssertExpectations(t)
}

// flakyStore fails the first n transactions with a transient error.
type flakyStore struct {
	*store.MemoryStore
	failures int
	calls    int
}

func (f *flakyStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	f.calls++
	if f.calls <= f.failures {
		return store.ErrUnavailable
	}
	return f.MemoryStore.WithTx(ctx, fn)
}

func TestLedgerService_RetriesTransientFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("recovers within the retry budget", func(t *testing.T) {
		mem := store.NewMemoryStore()
		require.NoError(t, mem.CreateAccount(ctx, &models.Account{ID: "acct-1", Email: "a@example.com"}))
		st := &flakyStore{MemoryStore: mem, failures: 2}
		ledger := NewLedgerService(st, nil, testLedgerConfig())

		entry, err := ledger.Credit(ctx, Posting{AccountID: "acct-1", Amount: 10, Type: models.EntryReward})
		require.NoError(t, err)
		assert.Equal(t, int64(10), entry.ResultingBalance)
		assert.Equal(t, 3, st.calls)
	})

	t.Run("gives up and reports the store as unavailable", func(t *testing.T) {
		mem := store.NewMemoryStore()
		require.NoError(t, mem.CreateAccount(ctx, &models.Account{ID: "acct-1", Email: "a@example.com"}))
		st := &flakyStore{MemoryStore: mem, failures: 10}
		ledger := NewLedgerService(st, nil, testLedgerConfig())

		_, err := ledger.Credit(ctx, Posting{AccountID: "acct-1", Amount: 10, Type: models.EntryReward})
		assert.ErrorIs(t, err, store.ErrUnavailable)
		assert.Equal(t, KindStoreUnavailable, KindOf(err))
		assert.Equal(t, 3, st.calls)
		assert.Empty(t, mem.Entries("acct-1"))
	})

	t.Run("validation errors are not retried", func(t *testing.T) {
		mem := store.NewMemoryStore()
		require.NoError(t, mem.CreateAccount(ctx, &models.Account{ID: "acct-1", Email: "a@example.com"}))
		st := &flakyStore{MemoryStore: mem}
		ledger := NewLedgerService(st, nil, testLedgerConfig())

		_, err := ledger.Debit(ctx, Posting{AccountID: "acct-1", Amount: 10, Type: models.EntrySpend})
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.Equal(t, 1, st.calls)
	})
}

func TestParseFati(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"100", 100, false},
		{"1", 1, false},
		{"0", 0, true},
		{"-5", 0, true},
		{"10.5", 0, true},
		{"1e3", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFati(json.Number(tt.in))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
