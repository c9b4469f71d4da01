package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReferralStatus is the persisted lifecycle status of a referral.
// Expiry is not persisted; it is derived from ExpiresAt when read.
type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusSignedUp  ReferralStatus = "signed_up"
	ReferralStatusActivated ReferralStatus = "activated"
	ReferralStatusFlagged   ReferralStatus = "flagged"
	ReferralStatusExpired   ReferralStatus = "expired"
)

// ErrIllegalTransition is returned when a referral is asked to move to a
// state its current status does not allow.
var ErrIllegalTransition = errors.New("illegal referral transition")

// Referral is one invite-to-signup relationship. Rows are never deleted.
// Mutate it only through Claim, LinkProfile, AppendFlag, Activate and Flag.
type Referral struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ReferrerID       uuid.UUID      `gorm:"type:uuid;not null;index:idx_referrals_referrer_created,priority:1" json:"referrer_id"`
	Referrer         *Advocate      `gorm:"foreignKey:ReferrerID" json:"referrer,omitempty"`
	InviteeUserID    *uint          `gorm:"uniqueIndex" json:"invitee_user_id,omitempty"`
	InviteeProfileID *uuid.UUID     `gorm:"type:uuid;index" json:"invitee_profile_id,omitempty"`
	Status           ReferralStatus `gorm:"size:20;not null;index" json:"status"`
	CreatedAt        time.Time      `gorm:"not null;index:idx_referrals_referrer_created,priority:2" json:"created_at"`
	SignedUpAt       *time.Time     `json:"signed_up_at,omitempty"`
	ActivatedAt      *time.Time     `json:"activated_at,omitempty"`
	ExpiresAt        time.Time      `gorm:"not null" json:"expires_at"`
	UniversityMatch  bool           `gorm:"not null;default:false" json:"university_match"`
	FraudFlags       FraudFlags     `gorm:"type:text" json:"fraud_flags,omitempty"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (Referral) TableName() string {
	return "referrals"
}

// NewPendingReferral builds an unclaimed invite for referrerID
func NewPendingReferral(referrerID uuid.UUID, now, expiresAt time.Time) *Referral {
	return &Referral{
		ID:         uuid.New(),
		ReferrerID: referrerID,
		Status:     ReferralStatusPending,
		CreatedAt:  now,
		ExpiresAt:  expiresAt,
	}
}

// BeforeCreate assigns an id when the caller did not
func (r *Referral) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// BeforeSave refuses to persist a row that breaks the lifecycle invariants
func (r *Referral) BeforeSave(tx *gorm.DB) error {
	return r.Validate()
}

// Validate checks the invariants tying status, timestamps and fraud flags together
func (r *Referral) Validate() error {
	if r.ExpiresAt.IsZero() {
		return fmt.Errorf("referral %s: expires_at is required", r.ID)
	}

	switch r.Status {
	case ReferralStatusPending:
		if r.SignedUpAt != nil || r.ActivatedAt != nil {
			return fmt.Errorf("referral %s: pending referral carries signup timestamps", r.ID)
		}
	case ReferralStatusSignedUp:
		if r.SignedUpAt == nil || r.ActivatedAt != nil {
			return fmt.Errorf("referral %s: signed_up requires signed_up_at and no activated_at", r.ID)
		}
	case ReferralStatusActivated:
		if r.SignedUpAt == nil || r.ActivatedAt == nil {
			return fmt.Errorf("referral %s: activated requires signed_up_at and activated_at", r.ID)
		}
		if len(r.FraudFlags) > 0 {
			return fmt.Errorf("referral %s: activated referral cannot carry fraud flags", r.ID)
		}
	case ReferralStatusFlagged:
		if len(r.FraudFlags) == 0 {
			return fmt.Errorf("referral %s: flagged referral needs at least one fraud flag", r.ID)
		}
		if r.ActivatedAt != nil {
			return fmt.Errorf("referral %s: flagged referral cannot be activated", r.ID)
		}
	default:
		return fmt.Errorf("referral %s: unknown status %q", r.ID, r.Status)
	}
	return nil
}

// IsExpired reports whether an open referral has passed its expiry
func (r *Referral) IsExpired(now time.Time) bool {
	if r.Status != ReferralStatusPending && r.Status != ReferralStatusSignedUp {
		return false
	}
	return now.After(r.ExpiresAt)
}

// EffectiveStatus is the status a reader should see, with lazy expiry applied
func (r *Referral) EffectiveStatus(now time.Time) ReferralStatus {
	if r.IsExpired(now) {
		return ReferralStatusExpired
	}
	return r.Status
}

// Claim records the invitee signup. Any fraud flag, new or already on an
// unclaimed invite, forces the flagged state.
func (r *Referral) Claim(inviteeUserID uint, now, expiresAt time.Time, flags FraudFlags) error {
	if r.Status != ReferralStatusPending || r.InviteeUserID != nil {
		return fmt.Errorf("%w: claim from %s", ErrIllegalTransition, r.Status)
	}

	id := inviteeUserID
	signedUp := now
	r.InviteeUserID = &id
	r.SignedUpAt = &signedUp
	r.ExpiresAt = expiresAt
	for _, token := range flags {
		r.FraudFlags = r.FraudFlags.With(token)
	}
	if len(r.FraudFlags) > 0 {
		r.Status = ReferralStatusFlagged
	} else {
		r.Status = ReferralStatusSignedUp
	}
	return nil
}

// LinkProfile stamps the invitee profile and the university signal
func (r *Referral) LinkProfile(profileID uuid.UUID, universityMatch bool) {
	id := profileID
	r.InviteeProfileID = &id
	r.UniversityMatch = universityMatch
}

// AppendFlag adds a fraud token. Activated referrals are final.
func (r *Referral) AppendFlag(token string) error {
	if r.Status == ReferralStatusActivated {
		return fmt.Errorf("%w: flag activated referral", ErrIllegalTransition)
	}
	r.FraudFlags = r.FraudFlags.With(token)
	return nil
}

// Activate moves a clean signed_up referral to activated
func (r *Referral) Activate(now time.Time) error {
	if r.Status != ReferralStatusSignedUp {
		return fmt.Errorf("%w: activate from %s", ErrIllegalTransition, r.Status)
	}
	if len(r.FraudFlags) > 0 {
		return fmt.Errorf("%w: activate with fraud flags", ErrIllegalTransition)
	}
	activated := now
	r.ActivatedAt = &activated
	r.Status = ReferralStatusActivated
	return nil
}

// Flag blocks a signed_up referral that carries fraud flags
func (r *Referral) Flag() error {
	if r.Status != ReferralStatusSignedUp {
		return fmt.Errorf("%w: flag from %s", ErrIllegalTransition, r.Status)
	}
	if len(r.FraudFlags) == 0 {
		return fmt.Errorf("%w: flag without fraud flags", ErrIllegalTransition)
	}
	r.Status = ReferralStatusFlagged
	return nil
}
