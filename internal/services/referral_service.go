package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"log"
	"math/big"
	"time"

	"github.com/posi-ecosystem/fati-backend/internal/models"
	"github.com/posi-ecosystem/fati-backend/internal/store"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

const (
	referralCodePrefix   = "REF-"
	referralCodeLength   = 8
	referralCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeGenerateAttempts = 5
)

// ReferralService links new accounts to referrers and pays the referral
// rewards through the ledger.
type ReferralService struct {
	store  store.Store
	ledger *LedgerService
	appURL string
	now    func() time.Time
}

func NewReferralService(st store.Store, ledger *LedgerService, appURL string) *ReferralService {
	return &ReferralService{
		store:  st,
		ledger: ledger,
		appURL: appURL,
		now:    time.Now,
	}
}

// RedeemResult describes a successful referral redemption.
type RedeemResult struct {
	ReferrerID string              `json:"referrerId"`
	Bonus      int64               `json:"bonus"`
	Link       models.ReferralLink `json:"link"`
	Entry      *models.LedgerEntry `json:"entry"`
}

// Redeem links newAccountID to the owner of code, credits the signup bonus
// and opens a pending referral link, all in one transaction.
func (s *ReferralService) Redeem(ctx context.Context, code, newAccountID string) (*RedeemResult, error) {
	referrer, err := s.referrerFor(ctx, code)
	if err != nil {
		return nil, err
	}

	var result *RedeemResult
	err = WithRetry(ctx, s.ledger.retry, func() error {
		return s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			result, err = s.RedeemTx(ctx, tx, referrer, newAccountID)
			return err
		})
	})
	if err != nil {
		log.Printf("[REFERRAL] Redeem of %s by %s failed: %v", code, newAccountID, err)
		return nil, err
	}

	s.ledger.recordAudit(result.Entry)
	return result, nil
}

// referrerFor resolves the owner of a referral code.
func (s *ReferralService) referrerFor(ctx context.Context, code string) (*models.Account, error) {
	referrer, err := s.store.GetAccountByReferralCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("[REFERRAL] Unknown referral code %q", code)
		return nil, fmt.Errorf("%w: %s", ErrInvalidCode, code)
	}
	return referrer, err
}

// RedeemTx is Redeem inside a caller-owned transaction. The caller audits
// the returned entry after commit.
func (s *ReferralService) RedeemTx(ctx context.Context, tx store.Tx, referrer *models.Account, newAccountID string) (*RedeemResult, error) {
	if referrer.ID == newAccountID {
		return nil, ErrSelfReferral
	}
	if _, err := tx.LockAccount(ctx, newAccountID); err != nil {
		return nil, fmt.Errorf("lock account %s: %w", newAccountID, err)
	}

	if err := tx.SetReferredBy(ctx, newAccountID, referrer.ID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrAlreadyReferred
		}
		return nil, err
	}

	entry, _, err := s.ledger.CreditTx(ctx, tx, Posting{
		AccountID: newAccountID,
		Amount:    RefereeSignupBonus(),
		Type:      models.EntryReward,
		Metadata: models.Metadata{
			models.MetaSource:     models.MetaSourceSignup,
			models.MetaReferredBy: referrer.ID,
		},
		IdempotencyKey: "referral-signup:" + newAccountID,
	})
	if err != nil {
		return nil, err
	}

	link := models.ReferralLink{
		ReferrerID: referrer.ID,
		ReferredID: newAccountID,
		Status:     models.ReferralPending,
		CreatedAt:  s.now(),
	}
	if err := tx.CreateReferral(ctx, &link); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrAlreadyReferred
		}
		return nil, err
	}

	log.Printf("[REFERRAL] Account %s referred by %s, credited %d FATI", newAccountID, referrer.ID, RefereeSignupBonus())
	return &RedeemResult{ReferrerID: referrer.ID, Bonus: RefereeSignupBonus(), Link: link, Entry: entry}, nil
}

// CompleteOnFirstPurchase pays the referrer of accountID for its first
// purchase. It returns nil without error when there is no pending link.
func (s *ReferralService) CompleteOnFirstPurchase(ctx context.Context, accountID string, purchaseUSD decimal.Decimal) (*models.ReferralLink, error) {
	var (
		link  *models.ReferralLink
		entry *models.LedgerEntry
	)
	err := WithRetry(ctx, s.ledger.retry, func() error {
		return s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			link, entry, err = s.CompleteOnFirstPurchaseTx(ctx, tx, accountID, purchaseUSD)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	s.ledger.recordAudit(entry)
	return link, nil
}

// CompleteOnFirstPurchaseTx is CompleteOnFirstPurchase inside a caller-owned
// transaction. The returned entry is nil when no reward was credited.
func (s *ReferralService) CompleteOnFirstPurchaseTx(ctx context.Context, tx store.Tx, accountID string, purchaseUSD decimal.Decimal) (*models.ReferralLink, *models.LedgerEntry, error) {
	if !purchaseUSD.IsPositive() {
		return nil, nil, nil
	}

	link, err := tx.LockPendingReferral(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("lock pending referral: %w", err)
	}

	reward := ReferrerCompletionBonus(UsdToFati(purchaseUSD))
	var entry *models.LedgerEntry
	if reward > 0 {
		entry, _, err = s.ledger.CreditTx(ctx, tx, Posting{
			AccountID: link.ReferrerID,
			Amount:    reward,
			Type:      models.EntryReward,
			Metadata: models.Metadata{
				models.MetaSource:       models.MetaSourceReferral,
				models.MetaReferredUser: accountID,
				models.MetaPurchaseUSD:  purchaseUSD.StringFixed(2),
			},
			IdempotencyKey: "referral:" + accountID,
		})
		if err != nil {
			return nil, nil, err
		}
	}

	completedAt := s.now()
	if err := tx.CompleteReferral(ctx, link.ID, reward, completedAt); err != nil {
		return nil, nil, fmt.Errorf("complete referral: %w", err)
	}

	link.Status = models.ReferralCompleted
	link.RewardFati = reward
	link.CompletedAt = &completedAt

	log.Printf("[REFERRAL] Referral %s completed, referrer %s earned %d FATI", link.ID, link.ReferrerID, reward)
	return link, entry, nil
}

// ReferralInfo is what an account needs to share its referral code.
type ReferralInfo struct {
	Code   string               `json:"referralCode"`
	URL    string               `json:"referralUrl"`
	QRCode string               `json:"qrCode"`
	Stats  models.ReferralStats `json:"stats"`
}

// EnsureCode returns the account's referral details, assigning a new code if
// the account does not have one yet.
func (s *ReferralService) EnsureCode(ctx context.Context, accountID string) (*ReferralInfo, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	code := account.ReferralCode
	if code == "" {
		if code, err = s.assignCode(ctx, accountID); err != nil {
			return nil, err
		}
	}

	stats, err := s.store.ReferralStats(ctx, accountID)
	if err != nil {
		return nil, err
	}

	url := s.ReferralURL(code)
	qr, err := referralQRCode(url)
	if err != nil {
		return nil, fmt.Errorf("generate QR code: %w", err)
	}

	return &ReferralInfo{Code: code, URL: url, QRCode: qr, Stats: stats}, nil
}

func (s *ReferralService) assignCode(ctx context.Context, accountID string) (string, error) {
	for i := 0; i < codeGenerateAttempts; i++ {
		code, err := GenerateReferralCode()
		if err != nil {
			return "", err
		}
		err = s.store.UpdateAccount(ctx, accountID, models.AccountUpdate{ReferralCode: &code})
		if err == nil {
			log.Printf("[REFERRAL] Assigned referral code %s to account %s", code, accountID)
			return code, nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return "", err
		}
	}
	return "", fmt.Errorf("could not allocate a unique referral code after %d attempts", codeGenerateAttempts)
}

func (s *ReferralService) Stats(ctx context.Context, accountID string) (models.ReferralStats, error) {
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return models.ReferralStats{}, err
	}
	return s.store.ReferralStats(ctx, accountID)
}

func (s *ReferralService) ReferralURL(code string) string {
	return fmt.Sprintf("%s/signup?ref=%s", s.appURL, code)
}

// GenerateReferralCode returns REF- followed by eight random uppercase
// letters or digits.
func GenerateReferralCode() (string, error) {
	b := make([]byte, referralCodeLength)
	alphabetLen := big.NewInt(int64(len(referralCodeAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		b[i] = referralCodeAlphabet[n.Int64()]
	}
	return referralCodePrefix + string(b), nil
}

func referralQRCode(content string) (string, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
