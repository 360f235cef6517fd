package models

import "time"

type ReferralStatus string

const (
	ReferralPending   ReferralStatus = "pending"
	ReferralCompleted ReferralStatus = "completed"
)

// ReferralLink ties a referred account to its referrer. There is at most one
// link per referred account.
type ReferralLink struct {
	ID          string         `json:"id" db:"id"`
	ReferrerID  string         `json:"referrerId" db:"referrer_id"`
	ReferredID  string         `json:"referredId" db:"referred_id"`
	Status      ReferralStatus `json:"status" db:"status"`
	RewardFati  int64          `json:"rewardFati" db:"reward_fati"`
	CreatedAt   time.Time      `json:"createdAt" db:"created_at"`
	CompletedAt *time.Time     `json:"completedAt,omitempty" db:"completed_at"`
}

type ReferralStats struct {
	TotalReferrals     int   `json:"totalReferrals"`
	CompletedReferrals int   `json:"completedReferrals"`
	TotalRewards       int64 `json:"totalRewards"`
}
