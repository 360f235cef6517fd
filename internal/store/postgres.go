package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/posi-ecosystem/fati-backend/internal/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore implements Store on top of database/sql and lib/pq.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const accountColumns = `id, email, password_hash, balance, version, subscription_tier,
	COALESCE(stripe_customer_id, ''), COALESCE(referral_code, ''), COALESCE(referred_by, ''),
	created_at, updated_at`

const entryColumns = `id, account_id, type, usd_amount, fati_delta, resulting_balance,
	metadata, COALESCE(idempotency_key, ''), created_at`

const referralColumns = `id, referrer_id, referred_id, status, reward_fati, created_at, completed_at`

func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &postgresTx{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

func (s *PostgresStore) CreateAccount(ctx context.Context, a *models.Account) error {
	return createAccount(ctx, s.db, a)
}

func createAccount(ctx context.Context, q querier, a *models.Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.SubscriptionTier == "" {
		a.SubscriptionTier = models.TierFree
	}
	if a.Version == 0 {
		a.Version = 1
	}

	err := q.QueryRowContext(ctx, `
		INSERT INTO accounts (id, email, password_hash, balance, version, subscription_tier, referral_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		a.ID, strings.ToLower(a.Email), a.PasswordHash, a.Balance, a.Version,
		string(a.SubscriptionTier), nullString(a.ReferralCode),
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return classify(err)
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (s *PostgresStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, strings.ToLower(email)))
}

func (s *PostgresStore) GetAccountByReferralCode(ctx context.Context, code string) (*models.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE referral_code = $1`, code))
}

func (s *PostgresStore) UpdateAccount(ctx context.Context, id string, u models.AccountUpdate) error {
	return updateAccount(ctx, s.db, id, u)
}

func (s *PostgresStore) ListEntries(ctx context.Context, accountID string, limit, offset int) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY seq DESC
		LIMIT $2 OFFSET $3`, accountID, limit, offset)
	if err != nil {
		return nil, classify(err)
	}
	return scanEntries(rows)
}

func (s *PostgresStore) ListEntriesSince(ctx context.Context, accountID string, since time.Time) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE account_id = $1 AND created_at >= $2
		ORDER BY seq DESC`, accountID, since)
	if err != nil {
		return nil, classify(err)
	}
	return scanEntries(rows)
}

func (s *PostgresStore) Summary(ctx context.Context, accountID string) (models.LedgerSummary, error) {
	var summary models.LedgerSummary
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, COALESCE(SUM(ABS(fati_delta)), 0)
		FROM ledger_entries
		WHERE account_id = $1
		GROUP BY type`, accountID)
	if err != nil {
		return summary, classify(err)
	}
	defer rows.Close()

	for rows.Next() {
		var entryType string
		var total int64
		if err := rows.Scan(&entryType, &total); err != nil {
			return summary, classify(err)
		}
		summary.Add(models.LedgerEntry{Type: models.EntryType(entryType), FatiDelta: total})
	}
	return summary, classify(rows.Err())
}

func (s *PostgresStore) GetReferralByReferred(ctx context.Context, referredID string) (*models.ReferralLink, error) {
	return scanReferral(s.db.QueryRowContext(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE referred_id = $1`, referredID))
}

func (s *PostgresStore) ReferralStats(ctx context.Context, referrerID string) (models.ReferralStats, error) {
	var stats models.ReferralStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COALESCE(SUM(reward_fati), 0)
		FROM referrals
		WHERE referrer_id = $1`, referrerID,
	).Scan(&stats.TotalReferrals, &stats.CompletedReferrals, &stats.TotalRewards)
	return stats, classify(err)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return classify(s.db.PingContext(ctx))
}

type postgresTx struct {
	q querier
}

func (t *postgresTx) CreateAccount(ctx context.Context, a *models.Account) error {
	return createAccount(ctx, t.q, a)
}

func (t *postgresTx) LockAccount(ctx context.Context, id string) (*models.Account, error) {
	return scanAccount(t.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
}

func (t *postgresTx) UpdateBalance(ctx context.Context, id string, balance int64, version int) error {
	result, err := t.q.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		balance, time.Now(), id, version)
	if err != nil {
		return classify(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: optimistic lock failed for account %s", ErrConflict, id)
	}
	return nil
}

func (t *postgresTx) UpdateAccount(ctx context.Context, id string, u models.AccountUpdate) error {
	return updateAccount(ctx, t.q, id, u)
}

func (t *postgresTx) SetReferredBy(ctx context.Context, id, referrerID string) error {
	result, err := t.q.ExecContext(ctx, `
		UPDATE accounts
		SET referred_by = $1, updated_at = $2
		WHERE id = $3 AND referred_by IS NULL AND id <> $1`,
		referrerID, time.Now(), id)
	if err != nil {
		return classify(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: account %s already has a referrer", ErrConflict, id)
	}
	return nil
}

func (t *postgresTx) AppendEntry(ctx context.Context, e *models.LedgerEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := t.q.ExecContext(ctx, `
		INSERT INTO ledger_entries
		(id, account_id, type, usd_amount, fati_delta, resulting_balance, metadata, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.AccountID, string(e.Type), e.USDAmount, e.FatiDelta, e.ResultingBalance,
		e.Metadata, nullString(e.IdempotencyKey), e.CreatedAt)
	return classify(err)
}

func (t *postgresTx) FindEntryByKey(ctx context.Context, accountID, key string) (*models.LedgerEntry, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE account_id = $1 AND idempotency_key = $2`, accountID, key)
	if err != nil {
		return nil, classify(err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return &entries[0], nil
}

func (t *postgresTx) CreateReferral(ctx context.Context, l *models.ReferralLink) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}

	_, err := t.q.ExecContext(ctx, `
		INSERT INTO referrals (id, referrer_id, referred_id, status, reward_fati, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		l.ID, l.ReferrerID, l.ReferredID, string(l.Status), l.RewardFati, l.CreatedAt)
	return classify(err)
}

func (t *postgresTx) LockPendingReferral(ctx context.Context, referredID string) (*models.ReferralLink, error) {
	return scanReferral(t.q.QueryRowContext(ctx, `
		SELECT `+referralColumns+`
		FROM referrals
		WHERE referred_id = $1 AND status = 'pending'
		FOR UPDATE`, referredID))
}

func (t *postgresTx) CompleteReferral(ctx context.Context, id string, reward int64, at time.Time) error {
	result, err := t.q.ExecContext(ctx, `
		UPDATE referrals
		SET status = 'completed', reward_fati = $1, completed_at = $2
		WHERE id = $3 AND status = 'pending'`,
		reward, at, id)
	if err != nil {
		return classify(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: referral %s is not pending", ErrConflict, id)
	}
	return nil
}

func (t *postgresTx) MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	result, err := t.q.ExecContext(ctx, `
		INSERT INTO processed_events (event_id, event_type, processed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO NOTHING`,
		eventID, eventType, time.Now())
	if err != nil {
		return false, classify(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, classify(err)
	}
	return rowsAffected == 1, nil
}

func updateAccount(ctx context.Context, q querier, id string, u models.AccountUpdate) error {
	if u.Empty() {
		return nil
	}

	var sets []string
	var args []any
	argIndex := 1

	if u.SubscriptionTier != nil {
		sets = append(sets, fmt.Sprintf("subscription_tier = $%d", argIndex))
		args = append(args, string(*u.SubscriptionTier))
		argIndex++
	}
	if u.StripeCustomerID != nil {
		sets = append(sets, fmt.Sprintf("stripe_customer_id = $%d", argIndex))
		args = append(args, nullString(*u.StripeCustomerID))
		argIndex++
	}
	if u.ReferralCode != nil {
		sets = append(sets, fmt.Sprintf("referral_code = $%d", argIndex))
		args = append(args, nullString(*u.ReferralCode))
		argIndex++
	}

	sets = append(sets, fmt.Sprintf("updated_at = $%d", argIndex))
	args = append(args, time.Now())
	argIndex++

	query := "UPDATE accounts SET " + strings.Join(sets, ", ") + fmt.Sprintf(" WHERE id = $%d", argIndex)
	args = append(args, id)

	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return classify(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var a models.Account
	var tier string
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Balance, &a.Version, &tier,
		&a.StripeCustomerID, &a.ReferralCode, &a.ReferredBy, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, classify(err)
	}
	a.SubscriptionTier = models.Tier(tier)
	return &a, nil
}

func scanEntries(rows *sql.Rows) ([]models.LedgerEntry, error) {
	defer rows.Close()

	entries := []models.LedgerEntry{}
	for rows.Next() {
		var e models.LedgerEntry
		var entryType string
		if err := rows.Scan(&e.ID, &e.AccountID, &entryType, &e.USDAmount, &e.FatiDelta,
			&e.ResultingBalance, &e.Metadata, &e.IdempotencyKey, &e.CreatedAt); err != nil {
			return nil, classify(err)
		}
		e.Type = models.EntryType(entryType)
		entries = append(entries, e)
	}
	return entries, classify(rows.Err())
}

func scanReferral(row *sql.Row) (*models.ReferralLink, error) {
	var l models.ReferralLink
	var status string
	var completedAt sql.NullTime
	err := row.Scan(&l.ID, &l.ReferrerID, &l.ReferredID, &status, &l.RewardFati, &l.CreatedAt, &completedAt)
	if err != nil {
		return nil, classify(err)
	}
	l.Status = models.ReferralStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		l.CompletedAt = &t
	}
	return &l, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// classify maps driver errors onto the store's sentinel errors.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505":
			return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
		case pqErr.Code == "40001", pqErr.Code == "40P01", pqErr.Code == "55P03":
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		case pqErr.Code.Class() == "08", pqErr.Code.Class() == "53", pqErr.Code.Class() == "57":
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
