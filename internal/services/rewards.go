package services

import (
	"github.com/posi-ecosystem/fati-backend/internal/config"
	"github.com/posi-ecosystem/fati-backend/internal/models"
	"github.com/shopspring/decimal"
)

const (
	// USDToFatiRate is the fixed number of FATI per US dollar.
	USDToFatiRate = 100

	refereeSignupBonus   = 100
	referrerBonusPercent = 20
)

// PurchaseOption is one entry of the static FATI catalog.
type PurchaseOption struct {
	BaseAmount   int64           `json:"amount"`
	PriceUSD     decimal.Decimal `json:"price"`
	BonusPercent int64           `json:"bonus"`
	TotalFati    int64           `json:"totalFati"`
}

func newOption(base int64, priceUSD int64, bonus int64) PurchaseOption {
	o := PurchaseOption{
		BaseAmount:   base,
		PriceUSD:     decimal.NewFromInt(priceUSD),
		BonusPercent: bonus,
	}
	o.TotalFati = BonusForPurchase(o)
	return o
}

var purchaseCatalog = []PurchaseOption{
	newOption(100, 1, 0),
	newOption(500, 5, 5),
	newOption(1000, 10, 10),
	newOption(5000, 50, 20),
	newOption(10000, 100, 25),
}

// Catalog returns a copy of the purchase catalog ordered by size.
func Catalog() []PurchaseOption {
	return append([]PurchaseOption(nil), purchaseCatalog...)
}

// BonusForPurchase returns floor(base * (1 + bonus/100)).
func BonusForPurchase(o PurchaseOption) int64 {
	return o.BaseAmount * (100 + o.BonusPercent) / 100
}

func FindOptionByAmount(base int64) (PurchaseOption, bool) {
	for _, o := range purchaseCatalog {
		if o.BaseAmount == base {
			return o, true
		}
	}
	return PurchaseOption{}, false
}

func FindOptionByPrice(usd decimal.Decimal) (PurchaseOption, bool) {
	for _, o := range purchaseCatalog {
		if o.PriceUSD.Equal(usd) {
			return o, true
		}
	}
	return PurchaseOption{}, false
}

// BestOptionForUSD returns the largest option priced at or below usd.
func BestOptionForUSD(usd decimal.Decimal) (PurchaseOption, bool) {
	var best PurchaseOption
	found := false
	for _, o := range purchaseCatalog {
		if o.PriceUSD.LessThanOrEqual(usd) {
			best, found = o, true
		}
	}
	return best, found
}

// UsdToFati converts dollars to FATI, rounding down to whole units.
func UsdToFati(usd decimal.Decimal) int64 {
	return usd.Mul(decimal.NewFromInt(USDToFatiRate)).Floor().IntPart()
}

func FatiToUsd(fati int64) decimal.Decimal {
	return decimal.NewFromInt(fati).Div(decimal.NewFromInt(USDToFatiRate))
}

// RefereeSignupBonus is the flat reward credited to an account that redeems
// a referral code.
func RefereeSignupBonus() int64 {
	return refereeSignupBonus
}

// ReferrerCompletionBonus is 20% of the referee's first purchase, floored.
func ReferrerCompletionBonus(purchaseFati int64) int64 {
	if purchaseFati <= 0 {
		return 0
	}
	return purchaseFati * referrerBonusPercent / 100
}

var tierWelcomeBonus = map[models.Tier]int64{
	models.TierFree:       0,
	models.TierBasic:      100,
	models.TierPro:        500,
	models.TierEnterprise: 2000,
}

// TierWelcomeBonus is the FATI credited when a subscription starts.
func TierWelcomeBonus(t models.Tier) int64 {
	return tierWelcomeBonus[t]
}

// TierLimits describes per-tier feature quotas. -1 means unlimited.
type TierLimits struct {
	FatiBonus    int64 `json:"fatiBonus"`
	DailyQueries int   `json:"dailyQueries"`
	VoiceMinutes int   `json:"voiceMinutes"`
	AvatarLimit  int   `json:"avatarLimit"`
}

const Unlimited = -1

var tierLimits = map[models.Tier]TierLimits{
	models.TierFree:       {FatiBonus: 0, DailyQueries: 10, VoiceMinutes: 0, AvatarLimit: 3},
	models.TierBasic:      {FatiBonus: 100, DailyQueries: 100, VoiceMinutes: 60, AvatarLimit: 10},
	models.TierPro:        {FatiBonus: 500, DailyQueries: Unlimited, VoiceMinutes: 1000, AvatarLimit: Unlimited},
	models.TierEnterprise: {FatiBonus: 2000, DailyQueries: Unlimited, VoiceMinutes: Unlimited, AvatarLimit: Unlimited},
}

func LimitsForTier(t models.Tier) TierLimits {
	if l, ok := tierLimits[t]; ok {
		return l
	}
	return tierLimits[models.TierFree]
}

// PricingPlan is a subscription offering and its provider price id.
type PricingPlan struct {
	Tier         models.Tier     `json:"tier"`
	Name         string          `json:"name"`
	MonthlyPrice decimal.Decimal `json:"monthlyPrice"`
	PriceID      string          `json:"priceId,omitempty"`
	Limits       TierLimits      `json:"limits"`
}

func PricingPlans(cfg config.StripeConfig) []PricingPlan {
	return []PricingPlan{
		{Tier: models.TierFree, Name: "Free", MonthlyPrice: decimal.Zero, Limits: tierLimits[models.TierFree]},
		{Tier: models.TierBasic, Name: "Basic", MonthlyPrice: decimal.RequireFromString("9.99"), PriceID: cfg.PriceBasic, Limits: tierLimits[models.TierBasic]},
		{Tier: models.TierPro, Name: "Pro", MonthlyPrice: decimal.RequireFromString("29.99"), PriceID: cfg.PricePro, Limits: tierLimits[models.TierPro]},
		{Tier: models.TierEnterprise, Name: "Enterprise", MonthlyPrice: decimal.RequireFromString("99.99"), PriceID: cfg.PriceEnterprise, Limits: tierLimits[models.TierEnterprise]},
	}
}

// TierForPrice maps a provider price id to its tier.
func TierForPrice(cfg config.StripeConfig, priceID string) (models.Tier, bool) {
	if priceID == "" {
		return "", false
	}
	switch priceID {
	case cfg.PriceBasic:
		return models.TierBasic, true
	case cfg.PricePro:
		return models.TierPro, true
	case cfg.PriceEnterprise:
		return models.TierEnterprise, true
	}
	return "", false
}
