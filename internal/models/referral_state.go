package models

import "time"

// ReferralState is a typed view of a referral where each variant carries only
// the timestamps that exist in that state.
type ReferralState interface {
	Status() ReferralStatus
	referralState()
}

type PendingState struct {
	CreatedAt time.Time
	ExpiresAt time.Time
}

type SignedUpState struct {
	SignedUpAt time.Time
	ExpiresAt  time.Time
}

type ActivatedState struct {
	SignedUpAt  time.Time
	ActivatedAt time.Time
}

type FlaggedState struct {
	SignedUpAt *time.Time
	Flags      FraudFlags
}

// ExpiredState is derived: a pending or signed_up referral read after ExpiresAt
type ExpiredState struct {
	From      ReferralStatus
	ExpiredAt time.Time
}

func (PendingState) Status() ReferralStatus   { return ReferralStatusPending }
func (SignedUpState) Status() ReferralStatus  { return ReferralStatusSignedUp }
func (ActivatedState) Status() ReferralStatus { return ReferralStatusActivated }
func (FlaggedState) Status() ReferralStatus   { return ReferralStatusFlagged }
func (ExpiredState) Status() ReferralStatus   { return ReferralStatusExpired }

func (PendingState) referralState()   {}
func (SignedUpState) referralState()  {}
func (ActivatedState) referralState() {}
func (FlaggedState) referralState()   {}
func (ExpiredState) referralState()   {}

// State returns the typed state as seen at now. It returns nil for rows that
// fail Validate, which BeforeSave keeps out of the table.
func (r *Referral) State(now time.Time) ReferralState {
	if r.Validate() != nil {
		return nil
	}
	if r.IsExpired(now) {
		return ExpiredState{From: r.Status, ExpiredAt: r.ExpiresAt}
	}

	switch r.Status {
	case ReferralStatusPending:
		return PendingState{CreatedAt: r.CreatedAt, ExpiresAt: r.ExpiresAt}
	case ReferralStatusSignedUp:
		return SignedUpState{SignedUpAt: *r.SignedUpAt, ExpiresAt: r.ExpiresAt}
	case ReferralStatusActivated:
		return ActivatedState{SignedUpAt: *r.SignedUpAt, ActivatedAt: *r.ActivatedAt}
	case ReferralStatusFlagged:
		return FlaggedState{SignedUpAt: r.SignedUpAt, Flags: r.FraudFlags}
	}
	return nil
}
