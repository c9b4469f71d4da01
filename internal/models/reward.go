package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RewardType is the closed set of benefits a referral can earn
type RewardType string

const (
	RewardTypeBonusAISession RewardType = "bonus_ai_session"
)

// Label is the human readable name used in notifications
func (t RewardType) Label() string {
	switch t {
	case RewardTypeBonusAISession:
		return "bonus AI session"
	}
	return string(t)
}

var (
	ErrRewardAlreadyRedeemed = errors.New("reward already redeemed")
	ErrRewardAlreadyRevoked  = errors.New("reward revoked")
	ErrRewardPastExpiry      = errors.New("reward expired")
)

// Reward is one grant earned by a referrer for an activated referral.
// Redeemed and Revoked are mutually exclusive and never unset.
type Reward struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProfileID     uuid.UUID  `gorm:"type:uuid;not null;index:idx_rewards_profile_earned,priority:1" json:"profile_id"`
	ReferralID    uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null" json:"referral_id"`
	Type          RewardType `gorm:"size:40;not null" json:"type"`
	EarnedAt      time.Time  `gorm:"not null;index:idx_rewards_profile_earned,priority:2" json:"earned_at"`
	ExpiresAt     time.Time  `gorm:"not null" json:"expires_at"`
	Redeemed      bool       `gorm:"not null;default:false" json:"redeemed"`
	RedeemedAt    *time.Time `json:"redeemed_at,omitempty"`
	Revoked       bool       `gorm:"not null;default:false;index" json:"revoked"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	RevokedReason *string    `gorm:"size:255" json:"revoked_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Reward) TableName() string {
	return "rewards"
}

// BeforeCreate assigns an id when the caller did not
func (r *Reward) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// IsAvailable reports whether the reward can still be redeemed at now
func (r *Reward) IsAvailable(now time.Time) bool {
	return !r.Redeemed && !r.Revoked && !now.After(r.ExpiresAt)
}

// Redeem marks the reward used
func (r *Reward) Redeem(now time.Time) error {
	if r.Redeemed {
		return ErrRewardAlreadyRedeemed
	}
	if r.Revoked {
		return ErrRewardAlreadyRevoked
	}
	if now.After(r.ExpiresAt) {
		return ErrRewardPastExpiry
	}
	at := now
	r.Redeemed = true
	r.RedeemedAt = &at
	return nil
}

// Revoke withdraws an unredeemed reward
func (r *Reward) Revoke(reason string, now time.Time) error {
	if r.Revoked {
		return ErrRewardAlreadyRevoked
	}
	if r.Redeemed {
		return ErrRewardAlreadyRedeemed
	}
	at := now
	r.Revoked = true
	r.RevokedAt = &at
	r.RevokedReason = &reason
	return nil
}
