package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"referral-engine/internal/config"
	"referral-engine/internal/models"
	"referral-engine/internal/repository"
)

// VelocityExceeded reports whether an advocate with count referrals inside the
// trailing window has already used the whole cap
func VelocityExceeded(count int64, limit int) bool {
	return count >= int64(limit)
}

// IsSelfReferral compares stored account emails exactly. Unknown emails never match.
func IsSelfReferral(inviteeEmail, referrerEmail string) bool {
	return inviteeEmail != "" && inviteeEmail == referrerEmail
}

// ClaimFraudFlags evaluates every claim-time abuse signal. New signals append
// their own token here; the state machine only cares whether the set is empty.
func ClaimFraudFlags(inviteeEmail, referrerEmail string) models.FraudFlags {
	var flags models.FraudFlags
	if IsSelfReferral(inviteeEmail, referrerEmail) {
		flags = flags.With(models.FraudFlagSelfReferral)
	}
	return flags
}

// AbuseGuard applies the velocity cap and fraud flagging against stored history
type AbuseGuard struct {
	repo   *repository.Repository
	policy config.ReferralPolicy
}

func NewAbuseGuard(repo *repository.Repository, policy config.ReferralPolicy) *AbuseGuard {
	return &AbuseGuard{repo: repo, policy: policy}
}

// CheckVelocity returns ErrRateLimited when referrerID already created the
// weekly cap of referrals in the sliding window ending at now. Pass the
// transaction repository so the count and the following insert stay atomic.
func (g *AbuseGuard) CheckVelocity(ctx context.Context, tx *repository.Repository, referrerID uuid.UUID, now time.Time) error {
	count, err := tx.CountReferralsSince(ctx, referrerID, now.Add(-g.policy.VelocityWindow))
	if err != nil {
		return fmt.Errorf("failed to count recent referrals: %w", err)
	}
	if VelocityExceeded(count, g.policy.WeeklyInviteCap) {
		return ErrRateLimited
	}
	return nil
}

// InvitesRemaining returns how many more invites referrerID may create now
func (g *AbuseGuard) InvitesRemaining(ctx context.Context, referrerID uuid.UUID, now time.Time) (int, error) {
	count, err := g.repo.CountReferralsSince(ctx, referrerID, now.Add(-g.policy.VelocityWindow))
	if err != nil {
		return 0, fmt.Errorf("failed to count recent referrals: %w", err)
	}
	remaining := g.policy.WeeklyInviteCap - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// CanInvite is the read-only form of the velocity check, for UI gating
func (g *AbuseGuard) CanInvite(ctx context.Context, referrerID uuid.UUID, now time.Time) (bool, error) {
	remaining, err := g.InvitesRemaining(ctx, referrerID, now)
	if err != nil {
		return false, err
	}
	return remaining > 0, nil
}

// ClaimFlags loads both account emails and evaluates the claim-time signals
func (g *AbuseGuard) ClaimFlags(ctx context.Context, tx *repository.Repository, inviteeUserID uint, referrer *models.Advocate) (models.FraudFlags, error) {
	inviteeEmail, err := g.lookupEmail(ctx, tx, inviteeUserID)
	if err != nil {
		return nil, err
	}
	referrerEmail, err := g.lookupEmail(ctx, tx, referrer.UserID)
	if err != nil {
		return nil, err
	}
	return ClaimFraudFlags(inviteeEmail, referrerEmail), nil
}

func (g *AbuseGuard) lookupEmail(ctx context.Context, tx *repository.Repository, userID uint) (string, error) {
	email, err := tx.GetUserEmail(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load email for user %d: %w", userID, err)
	}
	return email, nil
}
