package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Known metadata keys. Entries may carry other keys from API callers, but
// internal code only reads these.
const (
	MetaCounterparty   = "counterparty"
	MetaDirection      = "direction"
	MetaSource         = "source"
	MetaTier           = "tier"
	MetaEventID        = "event_id"
	MetaSessionID      = "session_id"
	MetaReferredBy     = "referred_by"
	MetaReferredUser   = "referred_user"
	MetaPurchaseUSD    = "purchase_usd"
	MetaBaseAmount     = "base_amount"
	MetaBonusPercent   = "bonus_percent"
	MetaDescription    = "description"
	MetaTransferFrom   = "from"
	MetaTransferTo     = "to"
	MetaSourceSignup   = "referral_signup"
	MetaSourceReferral = "referral_completion"
	MetaSourceStripe   = "stripe_purchase"
	MetaSourceTierPerk = "subscription_bonus"
	MetaSourceWelcome  = "welcome_bonus"
)

// KnownMetadataKeys lists the keys each entry type is expected to carry.
var KnownMetadataKeys = map[EntryType][]string{
	EntryPurchase: {MetaSource, MetaEventID, MetaSessionID, MetaBaseAmount, MetaBonusPercent},
	EntrySpend:    {MetaDescription},
	EntryReward:   {MetaSource, MetaTier, MetaEventID, MetaReferredBy, MetaReferredUser, MetaPurchaseUSD},
	EntryTransfer: {MetaCounterparty, MetaDirection, MetaTransferFrom, MetaTransferTo},
	EntryRefund:   {MetaSource, MetaEventID, MetaDescription},
}

// Metadata type for JSONB fields
type Metadata map[string]any

// Validate rejects nested values; metadata is a flat bag of primitives.
func (m Metadata) Validate() error {
	for k, v := range m {
		if k == "" {
			return errors.New("metadata key must not be empty")
		}
		switch v.(type) {
		case nil, string, bool, float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
		default:
			return fmt.Errorf("metadata value for %q must be a string, number or bool", k)
		}
	}
	return nil
}

// UnknownKeys returns the keys not in KnownMetadataKeys for the entry type.
func (m Metadata) UnknownKeys(t EntryType) []string {
	known := make(map[string]struct{}, len(KnownMetadataKeys[t]))
	for _, k := range KnownMetadataKeys[t] {
		known[k] = struct{}{}
	}
	var unknown []string
	for k := range m {
		if _, ok := known[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	return unknown
}

// String returns the value stored under key if it is a string.
func (m Metadata) String(key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// Value implements driver.Valuer for Metadata
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for Metadata
func (m *Metadata) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(b, m)
}
