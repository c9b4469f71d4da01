package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"referral-engine/internal/calendar"
	"referral-engine/internal/config"
	"referral-engine/internal/metrics"
	"referral-engine/internal/models"
	"referral-engine/internal/repository"
	"referral-engine/internal/utils"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

// ReferralService drives the referral lifecycle from invite to activation
type ReferralService struct {
	repo    *repository.Repository
	policy  config.ReferralPolicy
	clock   clockwork.Clock
	locks   *keyedMutex
	guard   *AbuseGuard
	rewards *RewardService
	metrics *metrics.Registry
}

func NewReferralService(repo *repository.Repository, policy config.ReferralPolicy, clock clockwork.Clock, locks *keyedMutex, guard *AbuseGuard, rewards *RewardService, m *metrics.Registry) *ReferralService {
	return &ReferralService{
		repo:    repo,
		policy:  policy,
		clock:   clock,
		locks:   locks,
		guard:   guard,
		rewards: rewards,
		metrics: m,
	}
}

// CreateReferral issues a pending invite for the calling advocate. It fails
// with ErrRateLimited once the weekly cap is used up.
func (s *ReferralService) CreateReferral(ctx context.Context, userID uint) (*models.Referral, error) {
	referrer, err := s.advocateForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(referrer.ID.String())
	defer unlock()

	now := s.clock.Now().UTC()
	referral := models.NewPendingReferral(referrer.ID, now, now.Add(s.policy.DormantInviteTTL))

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := tx.LockAdvocate(ctx, referrer.ID); err != nil {
			return err
		}
		if err := s.guard.CheckVelocity(ctx, tx, referrer.ID, now); err != nil {
			return err
		}
		return tx.CreateReferral(ctx, referral)
	})
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			s.metrics.RateLimited.Inc()
			log.Info().Str("referrer_id", referrer.ID.String()).Msg("Invite rejected by weekly cap")
		}
		return nil, err
	}

	s.metrics.ReferralsCreated.Inc()
	log.Info().Str("referral_id", referral.ID.String()).Str("referrer_id", referrer.ID.String()).
		Str("status", string(referral.Status)).Time("expires_at", referral.ExpiresAt).Msg("Referral invite created")
	return referral, nil
}

// ClaimReferral records that the calling user signed up through handle.
// An unknown handle returns (nil, nil) so the endpoint does not reveal which
// handles exist. A user who already has a referral gets that row back.
func (s *ReferralService) ClaimReferral(ctx context.Context, handle string, inviteeUserID uint) (*models.Referral, error) {
	if existing, err := s.repo.GetReferralByInviteeUserID(ctx, inviteeUserID); err == nil {
		return existing, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	handle = strings.ToLower(strings.TrimSpace(handle))
	if !utils.IsValidHandle(handle, s.policy.HandleMaxLength) {
		return nil, nil
	}

	referrer, err := s.repo.GetAdvocateByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	unlock := s.locks.Lock(referrer.ID.String())
	defer unlock()

	now := s.clock.Now().UTC()
	horizon := calendar.AcademicYearEnd(now.In(s.policy.Location())).UTC()

	var referral *models.Referral
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		existing, err := tx.GetReferralByInviteeUserID(ctx, inviteeUserID)
		if err == nil {
			referral = existing
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		flags, err := s.guard.ClaimFlags(ctx, tx, inviteeUserID, referrer)
		if err != nil {
			return err
		}

		invite, err := tx.OldestOpenInvite(ctx, referrer.ID, now)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			invite = models.NewPendingReferral(referrer.ID, now, now.Add(s.policy.DormantInviteTTL))
			if err := invite.Claim(inviteeUserID, now, horizon, flags); err != nil {
				return err
			}
			if err := tx.CreateReferral(ctx, invite); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := invite.Claim(inviteeUserID, now, horizon, flags); err != nil {
				return err
			}
			if err := tx.SaveReferral(ctx, invite); err != nil {
				return err
			}
		}
		referral = invite
		return nil
	})
	if err != nil {
		// A concurrent claim for the same invitee wins the unique index.
		if existing, lookupErr := s.repo.GetReferralByInviteeUserID(ctx, inviteeUserID); lookupErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to claim referral: %w", err)
	}

	s.metrics.ReferralClaims.WithLabelValues(string(referral.Status)).Inc()
	event := log.Info()
	if referral.Status == models.ReferralStatusFlagged {
		event = log.Warn().Strs("fraud_flags", referral.FraudFlags)
	}
	event.Str("referral_id", referral.ID.String()).Str("referrer_id", referral.ReferrerID.String()).
		Uint("invitee_user_id", inviteeUserID).Str("status", string(referral.Status)).Msg("Referral claimed")
	return referral, nil
}

// LinkProfileToReferral stamps the invitee profile on its open referral once
// onboarding finishes. A handle that does not belong to the referrer of that
// referral, or a user without an open referral, is a no-op.
func (s *ReferralService) LinkProfileToReferral(ctx context.Context, profileID uuid.UUID, handle string) (*models.Referral, error) {
	profile, err := s.repo.GetAdvocateByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAdvocateNotFound
		}
		return nil, err
	}

	found, err := s.repo.GetReferralByInviteeUserID(ctx, profile.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	referrer, err := s.repo.GetAdvocateByHandle(ctx, strings.ToLower(strings.TrimSpace(handle)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if referrer.ID != found.ReferrerID {
		return nil, nil
	}

	unlock := s.locks.Lock(referrer.ID.String())
	defer unlock()

	now := s.clock.Now().UTC()
	var referral *models.Referral
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		current, err := tx.LockReferral(ctx, found.ID)
		if err != nil {
			return err
		}
		if current.IsExpired(now) {
			return nil
		}
		if current.Status != models.ReferralStatusPending && current.Status != models.ReferralStatusSignedUp {
			return nil
		}

		current.LinkProfile(profile.ID, universityMatch(referrer.University, profile.University))
		if err := tx.SaveReferral(ctx, current); err != nil {
			return err
		}
		referral = current
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to link profile: %w", err)
	}

	if referral != nil {
		log.Info().Str("referral_id", referral.ID.String()).Str("invitee_profile_id", profile.ID.String()).
			Bool("university_match", referral.UniversityMatch).Msg("Linked invitee profile to referral")
	}
	return referral, nil
}

// ActivateReferral handles the invitee's first completed session. It returns
// (nil, nil) unless the referral is signed_up and unexpired. Fraud flags move
// it to flagged without a reward; otherwise it is activated and the reward
// issuer runs in the same transaction.
func (s *ReferralService) ActivateReferral(ctx context.Context, inviteeProfileID uuid.UUID) (*models.Referral, error) {
	found, err := s.repo.GetReferralByInviteeProfileID(ctx, inviteeProfileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.Activations.WithLabelValues("ignored").Inc()
			return nil, nil
		}
		return nil, err
	}

	unlock := s.locks.Lock(found.ReferrerID.String())
	defer unlock()

	now := s.clock.Now().UTC()
	var (
		referral *models.Referral
		reward   *models.Reward
	)
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		current, err := tx.LockReferral(ctx, found.ID)
		if err != nil {
			return err
		}
		if current.Status != models.ReferralStatusSignedUp || current.IsExpired(now) {
			return nil
		}

		if len(current.FraudFlags) > 0 {
			if err := current.Flag(); err != nil {
				return err
			}
			referral = current
			return tx.SaveReferral(ctx, current)
		}

		if err := current.Activate(now); err != nil {
			return err
		}
		if err := tx.SaveReferral(ctx, current); err != nil {
			return err
		}
		referral = current

		reward, err = s.rewards.IssueRewardIfEligible(ctx, tx, current, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to activate referral: %w", err)
	}

	if referral == nil {
		s.metrics.Activations.WithLabelValues("ignored").Inc()
		log.Debug().Str("referral_id", found.ID.String()).Str("status", string(found.Status)).
			Msg("Activation ignored")
		return nil, nil
	}

	if referral.Status == models.ReferralStatusFlagged {
		s.metrics.Activations.WithLabelValues("flagged").Inc()
		log.Warn().Str("referral_id", referral.ID.String()).Str("referrer_id", referral.ReferrerID.String()).
			Strs("fraud_flags", referral.FraudFlags).Msg("Activation blocked by fraud flags")
		return referral, nil
	}

	s.metrics.Activations.WithLabelValues("activated").Inc()
	log.Info().Str("referral_id", referral.ID.String()).Str("referrer_id", referral.ReferrerID.String()).
		Bool("rewarded", reward != nil).Msg("Referral activated")

	if reward != nil {
		s.rewards.NotifyRewardEarned(reward)
	}
	return referral, nil
}

// FlagReferral appends an administrative fraud token to a referral that has
// not been activated yet
func (s *ReferralService) FlagReferral(ctx context.Context, referralID uuid.UUID, token string) (*models.Referral, error) {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return nil, fmt.Errorf("fraud flag token is required")
	}

	found, err := s.repo.GetReferralByID(ctx, referralID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrReferralNotFound
		}
		return nil, err
	}

	unlock := s.locks.Lock(found.ReferrerID.String())
	defer unlock()

	var referral *models.Referral
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		current, err := tx.LockReferral(ctx, referralID)
		if err != nil {
			return err
		}
		if err := current.AppendFlag(token); err != nil {
			return err
		}
		referral = current
		return tx.SaveReferral(ctx, current)
	})
	if err != nil {
		return nil, err
	}

	log.Warn().Str("referral_id", referral.ID.String()).Str("referrer_id", referral.ReferrerID.String()).
		Str("token", token).Msg("Fraud flag added to referral")
	return referral, nil
}

// MyReferralInfo builds the dashboard summary for the calling advocate
func (s *ReferralService) MyReferralInfo(ctx context.Context, userID uint) (*models.ReferralInfo, error) {
	advocate, err := s.advocateForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()

	referrals, err := s.repo.ListReferralsByReferrer(ctx, advocate.ID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	var counts models.ReferralCounts
	for i := range referrals {
		counts.Add(referrals[i].EffectiveStatus(now))
	}

	rewards, err := s.repo.ListRedeemableRewards(ctx, advocate.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}

	remaining, err := s.guard.InvitesRemaining(ctx, advocate.ID, now)
	if err != nil {
		return nil, err
	}

	monthStart := calendar.MonthStart(now.In(s.policy.Location())).UTC()
	thisMonth, err := s.repo.CountRewardsEarnedBetween(ctx, advocate.ID, monthStart, now)
	if err != nil {
		return nil, fmt.Errorf("failed to count monthly rewards: %w", err)
	}

	return &models.ReferralInfo{
		Handle:             advocate.Handle,
		Counts:             counts,
		ReferralCount:      advocate.ReferralCount,
		UnredeemedRewards:  rewards,
		CanInvite:          remaining > 0,
		InvitesRemaining:   remaining,
		RewardsThisMonth:   int(thisMonth),
		MonthlyRewardLimit: s.policy.MonthlyRewardCap,
	}, nil
}

// MyReferralActivity lists the caller's most recent referrals with the
// invitee's name reduced to first name and last initial
func (s *ReferralService) MyReferralActivity(ctx context.Context, userID uint, limit int) ([]models.ReferralActivity, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}

	advocate, err := s.advocateForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	referrals, err := s.repo.ListReferralsByReferrer(ctx, advocate.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}

	ids := make([]uint, 0, len(referrals))
	for _, r := range referrals {
		if r.InviteeUserID != nil {
			ids = append(ids, *r.InviteeUserID)
		}
	}
	users, err := s.repo.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load invitees: %w", err)
	}

	now := s.clock.Now().UTC()
	activity := make([]models.ReferralActivity, 0, len(referrals))
	for _, r := range referrals {
		item := models.ReferralActivity{
			ReferralID:  r.ID,
			Status:      r.EffectiveStatus(now),
			CreatedAt:   r.CreatedAt,
			SignedUpAt:  r.SignedUpAt,
			ActivatedAt: r.ActivatedAt,
			ExpiresAt:   r.ExpiresAt,
		}
		if r.InviteeUserID != nil {
			if u, ok := users[*r.InviteeUserID]; ok {
				item.InviteeName = utils.PrivateDisplayName(u.FirstName, u.LastName)
			}
		}
		activity = append(activity, item)
	}
	return activity, nil
}

// ExpiryReport counts open referrals that readers now see as expired and
// publishes the numbers as gauges. Rows are left untouched.
func (s *ReferralService) ExpiryReport(ctx context.Context) (*models.ExpiryReport, error) {
	now := s.clock.Now().UTC()

	pending, err := s.repo.CountExpiredReferrals(ctx, models.ReferralStatusPending, now)
	if err != nil {
		return nil, fmt.Errorf("failed to count expired pending referrals: %w", err)
	}
	signedUp, err := s.repo.CountExpiredReferrals(ctx, models.ReferralStatusSignedUp, now)
	if err != nil {
		return nil, fmt.Errorf("failed to count expired signed_up referrals: %w", err)
	}

	s.metrics.ExpiredReferrals.WithLabelValues(string(models.ReferralStatusPending)).Set(float64(pending))
	s.metrics.ExpiredReferrals.WithLabelValues(string(models.ReferralStatusSignedUp)).Set(float64(signedUp))

	log.Info().Int64("expired_pending", pending).Int64("expired_signed_up", signedUp).Msg("Referral expiry report")
	return &models.ExpiryReport{
		GeneratedAt:     now,
		ExpiredPending:  pending,
		ExpiredSignedUp: signedUp,
	}, nil
}

func (s *ReferralService) advocateForUser(ctx context.Context, userID uint) (*models.Advocate, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	advocate, err := s.repo.GetAdvocateByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAdvocateNotFound
		}
		return nil, err
	}
	return advocate, nil
}

func universityMatch(referrer, invitee string) bool {
	return referrer != "" && referrer == invitee
}
