package models

import (
	"time"

	"github.com/google/uuid"
)

// ReferralCounts groups an advocate's referrals by effective status
type ReferralCounts struct {
	Pending   int `json:"pending"`
	SignedUp  int `json:"signed_up"`
	Activated int `json:"activated"`
	Flagged   int `json:"flagged"`
	Expired   int `json:"expired"`
	Total     int `json:"total"`
}

// Add counts one referral under status
func (c *ReferralCounts) Add(status ReferralStatus) {
	switch status {
	case ReferralStatusPending:
		c.Pending++
	case ReferralStatusSignedUp:
		c.SignedUp++
	case ReferralStatusActivated:
		c.Activated++
	case ReferralStatusFlagged:
		c.Flagged++
	case ReferralStatusExpired:
		c.Expired++
	}
	c.Total++
}

// ReferralInfo is the dashboard summary for the calling advocate
type ReferralInfo struct {
	Handle             *string        `json:"handle"`
	Counts             ReferralCounts `json:"counts"`
	ReferralCount      int            `json:"referral_count"`
	UnredeemedRewards  []Reward       `json:"unredeemed_rewards"`
	CanInvite          bool           `json:"can_invite"`
	InvitesRemaining   int            `json:"invites_remaining"`
	RewardsThisMonth   int            `json:"rewards_this_month"`
	MonthlyRewardLimit int            `json:"monthly_reward_limit"`
}

// ReferralActivity is one row of the recent-activity feed. The invitee name is
// reduced to first name and last initial.
type ReferralActivity struct {
	ReferralID  uuid.UUID      `json:"referral_id"`
	InviteeName string         `json:"invitee_name"`
	Status      ReferralStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	SignedUpAt  *time.Time     `json:"signed_up_at,omitempty"`
	ActivatedAt *time.Time     `json:"activated_at,omitempty"`
	ExpiresAt   time.Time      `json:"expires_at"`
}

// ExpiryReport counts open referrals whose expiry has lazily passed
type ExpiryReport struct {
	GeneratedAt     time.Time `json:"generated_at"`
	ExpiredPending  int64     `json:"expired_pending"`
	ExpiredSignedUp int64     `json:"expired_signed_up"`
}
