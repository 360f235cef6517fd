package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/posi-ecosystem/fati-backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_IssueAndValidate(t *testing.T) {
	ctx := context.Background()
	tokens := NewTokenService(config.JWTConfig{SecretKey: "test-secret", Expiry: time.Hour}, nil)

	token, err := tokens.Issue("acct-1")
	require.NoError(t, err)

	accountID, err := tokens.Validate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", accountID)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenService(config.JWTConfig{SecretKey: "other-secret", Expiry: time.Hour}, nil)
		_, err := other.Validate(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		tokens.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { tokens.now = time.Now }()

		_, err := tokens.Validate(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tokens.Validate(ctx, "not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestTokenService_Revoke(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	defer db.Close()

	issuedAt := time.Now().Truncate(time.Second)
	tokens := NewTokenService(config.JWTConfig{SecretKey: "test-secret", Expiry: 24 * time.Hour}, db)
	tokens.now = func() time.Time { return issuedAt }

	token, err := tokens.Issue("acct-1")
	require.NoError(t, err)

	t.Run("valid token is accepted", func(t *testing.T) {
		mock.ExpectExists("blacklist:" + token).SetVal(0)

		accountID, err := tokens.Validate(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "acct-1", accountID)
	})

	t.Run("revoke stores the token until expiry", func(t *testing.T) {
		mock.ExpectSet("blacklist:"+token, "1", 24*time.Hour).SetVal("OK")

		require.NoError(t, tokens.Revoke(ctx, token))
	})

	t.Run("revoked token is rejected", func(t *testing.T) {
		mock.ExpectExists("blacklist:" + token).SetVal(1)

		_, err := tokens.Validate(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("blacklist outage does not lock users out", func(t *testing.T) {
		mock.ExpectExists("blacklist:" + token).SetErr(errors.New("connection refused"))

		accountID, err := tokens.Validate(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "acct-1", accountID)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferLimiter(t *testing.T) {
	ctx := context.Background()
	cfg := config.LedgerConfig{TransferRateLimit: 3, TransferRateWindow: time.Hour}

	t.Run("under the limit", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		defer db.Close()
		limiter := NewTransferLimiter(db, cfg)

		mock.ExpectGet("fati:transfer_rate:acct-1").SetVal("2")
		assert.NoError(t, limiter.Check(ctx, "acct-1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("first transfer has no counter yet", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		defer db.Close()
		limiter := NewTransferLimiter(db, cfg)

		mock.ExpectGet("fati:transfer_rate:acct-1").RedisNil()
		assert.NoError(t, limiter.Check(ctx, "acct-1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("at the limit", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		defer db.Close()
		limiter := NewTransferLimiter(db, cfg)

		mock.ExpectGet("fati:transfer_rate:acct-1").SetVal("3")
		err := limiter.Check(ctx, "acct-1")
		assert.ErrorIs(t, err, ErrRateLimited)
		assert.Equal(t, KindRateLimited, KindOf(err))
	})

	t.Run("record increments and sets the window", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		defer db.Close()
		limiter := NewTransferLimiter(db, cfg)

		mock.ExpectIncr("fati:transfer_rate:acct-1").SetVal(1)
		mock.ExpectExpire("fati:transfer_rate:acct-1", time.Hour).SetVal(true)

		limiter.Record(ctx, "acct-1")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("without redis there is no limit", func(t *testing.T) {
		limiter := NewTransferLimiter(nil, cfg)
		assert.NoError(t, limiter.Check(ctx, "acct-1"))
		limiter.Record(ctx, "acct-1")
	})
}
