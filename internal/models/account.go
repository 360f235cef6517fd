package models

import (
	"fmt"
	"time"
)

// Tier is the subscription level of an account.
type Tier string

const (
	TierFree       Tier = "free"
	TierBasic      Tier = "basic"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// ParseTier validates a tier string.
func ParseTier(s string) (Tier, error) {
	switch t := Tier(s); t {
	case TierFree, TierBasic, TierPro, TierEnterprise:
		return t, nil
	}
	return "", fmt.Errorf("unknown subscription tier %q", s)
}

// Account holds a user's identity fields and current FATI balance.
type Account struct {
	ID               string    `json:"id" db:"id"`
	Email            string    `json:"email" db:"email"`
	PasswordHash     string    `json:"-" db:"password_hash"`
	Balance          int64     `json:"balance" db:"balance"`
	Version          int       `json:"-" db:"version"` // bumped on every balance write
	SubscriptionTier Tier      `json:"subscriptionTier" db:"subscription_tier"`
	StripeCustomerID string    `json:"stripeCustomerId,omitempty" db:"stripe_customer_id"`
	ReferralCode     string    `json:"referralCode,omitempty" db:"referral_code"`
	ReferredBy       string    `json:"referredBy,omitempty" db:"referred_by"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time `json:"updatedAt" db:"updated_at"`
}

// AccountUpdate carries the mutable non-balance fields of an account. Nil
// fields are left untouched.
type AccountUpdate struct {
	SubscriptionTier *Tier
	StripeCustomerID *string
	ReferralCode     *string
}

// Empty reports whether the update changes nothing.
func (u AccountUpdate) Empty() bool {
	return u.SubscriptionTier == nil && u.StripeCustomerID == nil && u.ReferralCode == nil
}
