package services

import (
	"context"
	"encoding/base64"
	"regexp"
	"testing"

	"github.com/posi-ecosystem/fati-backend/internal/models"
	"github.com/posi-ecosystem/fati-backend/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReferrals(t *testing.T) (*ReferralService, *LedgerService, *store.MemoryStore) {
	t.Helper()
	ledger, st := newTestLedger(t)
	return NewReferralService(st, ledger, "https://fati.example"), ledger, st
}

func TestReferralService_RedeemAndComplete(t *testing.T) {
	ctx := context.Background()
	referrals, ledger, st := newTestReferrals(t)

	require.NoError(t, st.CreateAccount(ctx, &models.Account{ID: "referrer", Email: "ref@example.com", ReferralCode: "REF-ABC123"}))
	require.NoError(t, st.CreateAccount(ctx, &models.Account{ID: "referee", Email: "new@example.com"}))

	result, err := referrals.Redeem(ctx, "REF-ABC123", "referee")
	require.NoError(t, err)
	assert.Equal(t, "referrer", result.ReferrerID)
	assert.Equal(t, int64(100), result.Bonus)
	assert.Equal(t, models.ReferralPending, result.Link.Status)

	referee, err := st.GetAccount(ctx, "referee")
	require.NoError(t, err)
	assert.Equal(t, int64(100), referee.Balance)
	assert.Equal(t, "referrer", referee.ReferredBy)

	link, err := referrals.CompleteOnFirstPurchase(ctx, "referee", decimal.NewFromInt(50))
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, models.ReferralCompleted, link.Status)
	assert.Equal(t, int64(1000), link.RewardFati)
	assert.NotNil(t, link.CompletedAt)

	again, err := referrals.CompleteOnFirstPurchase(ctx, "referee", decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.Nil(t, again)

	balance, err := ledger.Balance(ctx, "referrer")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance)

	stored, err := st.GetReferralByReferred(ctx, "referee")
	require.NoError(t, err)
	assert.Equal(t, models.ReferralCompleted, stored.Status)
	assert.Equal(t, int64(1000), stored.RewardFati)

	stats, err := referrals.Stats(ctx, "referrer")
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStats{TotalReferrals: 1, CompletedReferrals: 1, TotalRewards: 1000}, stats)

	requireLedgerConsistent(t, st)
}

func TestReferralService_SignupKeyCannotPayForSpend(t *testing.T) {
	ctx := context.Background()
	referrals, ledger, st := newTestReferrals(t)

	require.NoError(t, st.CreateAccount(ctx, &models.Account{ID: "referrer", Email: "ref@example.com", ReferralCode: "REF-ABC123"}))
	require.NoError(t, st.CreateAccount(ctx, &models.Account{ID: "new", Email: "new@example.com"}))
	_, err := referrals.Redeem(ctx, "REF-ABC123", "new")
	require.NoError(t, err)

	entry, err := ledger.Debit(ctx, Posting{AccountID: "new", Amount: 100, Type: models.EntrySpend, IdempotencyKey: "referral-signup:new"})
	assert.ErrorIs(t, err, ErrIdempotencyMismatch)
	assert.Nil(t, entry)

	balance, err := ledger.Balance(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
	requireLedgerConsistent(t, st)
}

func TestReferralService_RedeemFailures(t *testing.T) {
	ctx := context.Background()
	referrals, _, st := newTestReferrals(t)

	require.NoError(t, st.CreateAccount(ctx, &models.Account{ID: "referrer", Email: "ref@example.com", ReferralCode: "REF-ABC123"}))
	require.NoError(t, st.CreateAccount(ctx, &models.Account{ID: "other", Email: "other@example.com", ReferralCode: "REF-OTHER1"}))
	require.NoError(t, st.CreateAccount(ctx, &models.Account{ID: "referee", Email: "new@example.com"}))

	t.Run("unknown code", func(t *testing.T) {
		_, err := referrals.Redeem(ctx, "REF-NOPE0000", "referee")
		assert.ErrorIs(t, err, ErrInvalidCode)
		assert.Equal(t, KindInvalidCode, KindOf(err))
	})

	t.Run("self referral", func(t *testing.T) {
		_, err := referrals.Redeem(ctx, "REF-ABC123", "referrer")
		assert.ErrorIs(t, err, ErrSelfReferral)

		_, err = st.GetReferralByReferred(ctx, "referrer")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("unknown referee", func(t *testing.T) {
		_, err := referrals.Redeem(ctx, "REF-ABC123", "ghost")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("second redemption is rejected without a second bonus", func(t *testing.T) {
		_, err := referrals.Redeem(ctx, "REF-ABC123", "referee")
		require.NoError(t, err)

		_, err = referrals.Redeem(ctx, "REF-OTHER1", "referee")
		assert.ErrorIs(t, err, ErrAlreadyReferred)

		referee, _ := st.GetAccount(ctx, "referee")
		assert.Equal(t, int64(100), referee.Balance)
		assert.Equal(t, "referrer", referee.ReferredBy)
		assert.Len(t, st.Entries("referee"), 1)
	})

	requireLedgerConsistent(t, st)
}

func TestReferralService_CompleteWithoutPendingLink(t *testing.T) {
	ctx := context.Background()
	referrals, _, st := newTestReferrals(t)
	require.NoError(t, st.CreateAccount(ctx, &models.Account{ID: "solo", Email: "solo@example.com"}))

	link, err := referrals.CompleteOnFirstPurchase(ctx, "solo", decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Nil(t, link)
	assert.Empty(t, st.Entries("solo"))
}

func TestReferralService_EnsureCode(t *testing.T) {
	ctx := context.Background()
	referrals, _, st := newTestReferrals(t)
	require.NoError(t, st.CreateAccount(ctx, &models.Account{ID: "acct-1", Email: "a@example.com"}))

	info, err := referrals.EnsureCode(ctx, "acct-1")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^REF-[A-Z0-9]{8}$`), info.Code)
	assert.Equal(t, "https://fati.example/signup?ref="+info.Code, info.URL)

	png, err := base64.StdEncoding.DecodeString(info.QRCode)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])

	again, err := referrals.EnsureCode(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, info.Code, again.Code)

	owner, err := st.GetAccountByReferralCode(ctx, info.Code)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", owner.ID)
}

func TestGenerateReferralCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GenerateReferralCode()
		require.NoError(t, err)
		assert.Regexp(t, `^REF-[A-Z0-9]{8}$`, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 45)
}
