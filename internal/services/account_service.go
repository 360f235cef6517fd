package services

import (
	"context"
	cryptorand "crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/posi-ecosystem/fati-backend/internal/config"
	"github.com/posi-ecosystem/fati-backend/internal/models"
	"github.com/posi-ecosystem/fati-backend/internal/store"
	"golang.org/x/crypto/argon2"
)

// AccountService handles signup, login and logout.
type AccountService struct {
	store        store.Store
	ledger       *LedgerService
	referrals    *ReferralService
	tokens       *TokenService
	argon        config.Argon2Config
	welcomeBonus int64
}

func NewAccountService(st store.Store, ledger *LedgerService, referrals *ReferralService, tokens *TokenService, argonCfg config.Argon2Config, ledgerCfg config.LedgerConfig) *AccountService {
	return &AccountService{
		store:        st,
		ledger:       ledger,
		referrals:    referrals,
		tokens:       tokens,
		argon:        argonCfg,
		welcomeBonus: ledgerCfg.WelcomeBonus,
	}
}

type RegisterInput struct {
	Email        string
	Password     string
	ReferralCode string
}

// AuthResult represents the authentication response
// @Description Authentication response structure
type AuthResult struct {
	Token    string          `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	Account  *models.Account `json:"account"`
	Referral *RedeemResult   `json:"referral,omitempty"`
}

// Register creates an account, pays the optional welcome bonus and redeems
// the referral code when one is given, in one transaction. An unknown code
// fails the signup before anything is written.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	log.Printf("[AUTH] Registration request for email: %s", email)

	if _, err := s.store.GetAccountByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	var referrer *models.Account
	if code := strings.TrimSpace(in.ReferralCode); code != "" {
		var err error
		if referrer, err = s.referrals.referrerFor(ctx, code); err != nil {
			return nil, err
		}
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var (
		account *models.Account
		result  = &AuthResult{}
		entries []*models.LedgerEntry
	)
	err = WithRetry(ctx, s.ledger.retry, func() error {
		return s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			ownCode, err := GenerateReferralCode()
			if err != nil {
				return err
			}
			account = &models.Account{
				Email:            email,
				PasswordHash:     hash,
				SubscriptionTier: models.TierFree,
				ReferralCode:     ownCode,
			}
			entries, result.Referral = nil, nil

			if err := tx.CreateAccount(ctx, account); err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					return ErrEmailTaken
				}
				return fmt.Errorf("create account: %w", err)
			}

			if s.welcomeBonus > 0 {
				entry, _, err := s.ledger.CreditTx(ctx, tx, Posting{
					AccountID:      account.ID,
					Amount:         s.welcomeBonus,
					Type:           models.EntryReward,
					Metadata:       models.Metadata{models.MetaSource: models.MetaSourceWelcome},
					IdempotencyKey: "welcome:" + account.ID,
				})
				if err != nil {
					return fmt.Errorf("credit welcome bonus: %w", err)
				}
				entries = append(entries, entry)
			}

			if referrer != nil {
				redeemed, err := s.referrals.RedeemTx(ctx, tx, referrer, account.ID)
				if err != nil {
					return fmt.Errorf("redeem referral code: %w", err)
				}
				result.Referral = redeemed
				entries = append(entries, redeemed.Entry)
			}
			return nil
		})
	})
	if err != nil {
		log.Printf("[AUTH] Registration failed for email %s: %v", email, err)
		return nil, err
	}
	log.Printf("[AUTH] Account created - ID: %s, Email: %s", account.ID, email)
	s.ledger.recordAudit(entries...)

	if result.Account, err = s.store.GetAccount(ctx, account.ID); err != nil {
		return nil, err
	}
	if result.Token, err = s.tokens.Issue(account.ID); err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	log.Printf("[AUTH] Registration successful for account %s", account.ID)
	return result, nil
}

func (s *AccountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	account, err := s.store.GetAccountByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("[AUTH] Account not found for email: %s", email)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !s.verifyPassword(password, account.PasswordHash) {
		log.Printf("[AUTH] Invalid password for account: %s", account.ID)
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(account.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	log.Printf("[AUTH] Login successful for account %s", account.ID)
	return &AuthResult{Token: token, Account: account}, nil
}

func (s *AccountService) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

func (s *AccountService) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	return s.store.GetAccount(ctx, accountID)
}

// ResolveAccountID accepts either an account id or an email address.
func (s *AccountService) ResolveAccountID(ctx context.Context, accountID, email string) (string, error) {
	if accountID != "" {
		return accountID, nil
	}
	account, err := s.store.GetAccountByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", fmt.Errorf("recipient %s: %w", email, err)
	}
	return account.ID, nil
}

func (s *AccountService) hashPassword(password string) (string, error) {
	salt := make([]byte, s.argon.SaltLength)
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, s.argon.Time, s.argon.Memory, s.argon.Threads, s.argon.KeyLength)
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func (s *AccountService) verifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, s.argon.Time, s.argon.Memory, s.argon.Threads, uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, computedHash) == 1
}
