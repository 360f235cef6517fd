package services

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/posi-ecosystem/fati-backend/internal/audit"
	"github.com/posi-ecosystem/fati-backend/internal/config"
	"github.com/posi-ecosystem/fati-backend/internal/models"
	"github.com/posi-ecosystem/fati-backend/internal/store"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAuditLogger struct {
	mock.Mock
}

func (m *MockAuditLogger) LogEntry(entryID, accountID, entryType string, delta, balance int64) {
	m.Called(entryID, accountID, entryType, delta, balance)
}

func (m *MockAuditLogger) LogTransfer(reference, fromAccount, toAccount string, amount int64, status string) {
	m.Called(reference, fromAccount, toAccount, amount, status)
}

func (m *MockAuditLogger) LogWebhook(eventID, eventType, status string) {
	m.Called(eventID, eventType, status)
}

func (m *MockAuditLogger) LogError(reference, accountID string, err error) {
	m.Called(reference, accountID, err)
}

var _ audit.Logger = (*MockAuditLogger)(nil)

func testLedgerConfig() config.LedgerConfig {
	return config.LedgerConfig{
		MinTransfer:         10,
		DefaultHistoryLimit: 50,
		MaxHistoryLimit:     200,
		RetryAttempts:       3,
		RetryBaseDelay:      time.Millisecond,
	}
}

func newTestLedger(t *testing.T) (*LedgerService, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	return NewLedgerService(st, audit.NewAuditLoggerTo(io.Discard), testLedgerConfig()), st
}

// seedAccount creates an account and funds it through the ledger so the
// entry log matches the balance.
func seedAccount(t *testing.T, ledger *LedgerService, st *store.MemoryStore, id string, balance int64) {
	t.Helper()
	require.NoError(t, st.CreateAccount(context.Background(), &models.Account{
		ID:    id,
		Email: id + "@example.com",
	}))
	if balance > 0 {
		_, err := ledger.Credit(context.Background(), Posting{
			AccountID: id,
			Amount:    balance,
			Type:      models.EntryPurchase,
		})
		require.NoError(t, err)
	}
}

// requireLedgerConsistent checks that every account's entries sum to its
// balance.
func requireLedgerConsistent(t *testing.T, st *store.MemoryStore) {
	t.Helper()
	for _, id := range st.AccountIDs() {
		account, err := st.GetAccount(context.Background(), id)
		require.NoError(t, err)

		var sum int64
		for _, e := range st.Entries(id) {
			sum += e.FatiDelta
		}
		require.Equal(t, account.Balance, sum, "ledger of %s does not match balance", id)
	}
}
