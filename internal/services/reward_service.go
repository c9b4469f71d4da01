package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"referral-engine/internal/calendar"
	"referral-engine/internal/config"
	"referral-engine/internal/metrics"
	"referral-engine/internal/models"
	"referral-engine/internal/repository"
)

// RewardService issues capped rewards for activations and guards redemption
type RewardService struct {
	repo       *repository.Repository
	policy     config.ReferralPolicy
	clock      clockwork.Clock
	locks      *keyedMutex
	dispatcher *Dispatcher
	metrics    *metrics.Registry
}

func NewRewardService(repo *repository.Repository, policy config.ReferralPolicy, clock clockwork.Clock, locks *keyedMutex, dispatcher *Dispatcher, m *metrics.Registry) *RewardService {
	return &RewardService{
		repo:       repo,
		policy:     policy,
		clock:      clock,
		locks:      locks,
		dispatcher: dispatcher,
		metrics:    m,
	}
}

// IssueRewardIfEligible grants one reward for a freshly activated referral
// unless the referrer already reached a cap. A reached cap returns (nil, nil).
// The caller must hold the referrer's lock and pass its transaction.
func (s *RewardService) IssueRewardIfEligible(ctx context.Context, tx *repository.Repository, referral *models.Referral, now time.Time) (*models.Reward, error) {
	if referral.Status != models.ReferralStatusActivated {
		return nil, fmt.Errorf("%w: reward for %s referral", ErrInvalidTransition, referral.Status)
	}

	if _, err := tx.LockAdvocate(ctx, referral.ReferrerID); err != nil {
		return nil, fmt.Errorf("failed to lock referrer: %w", err)
	}

	local := now.In(s.policy.Location())

	monthly, err := tx.CountRewardsEarnedBetween(ctx, referral.ReferrerID, calendar.MonthStart(local).UTC(), now)
	if err != nil {
		return nil, fmt.Errorf("failed to count monthly rewards: %w", err)
	}
	if monthly >= int64(s.policy.MonthlyRewardCap) {
		s.metrics.RewardCapHits.WithLabelValues("monthly").Inc()
		log.Info().Str("referral_id", referral.ID.String()).Str("referrer_id", referral.ReferrerID.String()).
			Int64("rewards_this_month", monthly).Msg("Monthly reward cap reached, no reward issued")
		return nil, nil
	}

	if s.policy.EnforceTermCap {
		term, err := tx.CountRewardsEarnedBetween(ctx, referral.ReferrerID, calendar.AcademicYearStart(local).UTC(), now)
		if err != nil {
			return nil, fmt.Errorf("failed to count term rewards: %w", err)
		}
		if term >= int64(s.policy.TermRewardCap) {
			s.metrics.RewardCapHits.WithLabelValues("term").Inc()
			log.Info().Str("referral_id", referral.ID.String()).Str("referrer_id", referral.ReferrerID.String()).
				Int64("rewards_this_term", term).Msg("Term reward cap reached, no reward issued")
			return nil, nil
		}
	}

	reward := &models.Reward{
		ID:         uuid.New(),
		ProfileID:  referral.ReferrerID,
		ReferralID: referral.ID,
		Type:       models.RewardTypeBonusAISession,
		EarnedAt:   now,
		ExpiresAt:  calendar.AcademicYearEnd(local).UTC(),
	}
	if err := tx.CreateReward(ctx, reward); err != nil {
		return nil, fmt.Errorf("failed to create reward: %w", err)
	}

	if _, err := s.recount(ctx, tx, referral.ReferrerID); err != nil {
		return nil, err
	}

	s.metrics.RewardsIssued.Inc()
	log.Info().Str("reward_id", reward.ID.String()).Str("referral_id", referral.ID.String()).
		Str("referrer_id", referral.ReferrerID.String()).Msg("Referral reward issued")
	return reward, nil
}

// NotifyRewardEarned tells the referrer about a new reward. Delivery is
// asynchronous and its failure never reaches the caller.
func (s *RewardService) NotifyRewardEarned(reward *models.Reward) {
	s.dispatcher.Dispatch(&models.Notification{
		ProfileID: reward.ProfileID,
		Type:      models.NotificationTypeReferralReward,
		Title:     "You earned a referral reward",
		Body:      fmt.Sprintf("Someone you invited completed their first session. You unlocked one %s.", reward.Type.Label()),
		Metadata: models.Metadata{
			"reward_id":   reward.ID.String(),
			"referral_id": reward.ReferralID.String(),
			"reward_type": string(reward.Type),
			"expires_at":  reward.ExpiresAt.Format(time.RFC3339),
		},
		CreatedAt: reward.EarnedAt,
	})
}

// RedeemReward marks the caller's reward used and returns it
func (s *RewardService) RedeemReward(ctx context.Context, rewardID uuid.UUID, userID uint) (*models.Reward, error) {
	advocate, err := s.repo.GetAdvocateByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAdvocateNotFound
		}
		return nil, err
	}

	existing, err := s.repo.GetRewardByID(ctx, rewardID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRewardNotFound
		}
		return nil, err
	}
	if existing.ProfileID != advocate.ID {
		s.metrics.Redemptions.WithLabelValues("not_owner").Inc()
		return nil, ErrNotRewardOwner
	}

	unlock := s.locks.Lock(advocate.ID.String())
	defer unlock()

	var reward *models.Reward
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		reward, err = tx.LockReward(ctx, rewardID)
		if err != nil {
			return err
		}
		if err := reward.Redeem(s.clock.Now().UTC()); err != nil {
			return err
		}
		return tx.SaveReward(ctx, reward)
	})
	if err != nil {
		s.metrics.Redemptions.WithLabelValues(redemptionResult(err)).Inc()
		return nil, err
	}

	s.metrics.Redemptions.WithLabelValues("redeemed").Inc()
	log.Info().Str("reward_id", reward.ID.String()).Str("profile_id", advocate.ID.String()).Msg("Reward redeemed")
	return reward, nil
}

// RevokeReward withdraws a reward and recomputes the beneficiary's counter
func (s *RewardService) RevokeReward(ctx context.Context, rewardID uuid.UUID, reason string) (*models.Reward, error) {
	existing, err := s.repo.GetRewardByID(ctx, rewardID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRewardNotFound
		}
		return nil, err
	}

	unlock := s.locks.Lock(existing.ProfileID.String())
	defer unlock()

	var reward *models.Reward
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := tx.LockAdvocate(ctx, existing.ProfileID); err != nil {
			return err
		}
		reward, err = tx.LockReward(ctx, rewardID)
		if err != nil {
			return err
		}
		if err := reward.Revoke(reason, s.clock.Now().UTC()); err != nil {
			return err
		}
		if err := tx.SaveReward(ctx, reward); err != nil {
			return err
		}
		_, err = s.recount(ctx, tx, reward.ProfileID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Warn().Str("reward_id", reward.ID.String()).Str("profile_id", reward.ProfileID.String()).
		Str("reason", reason).Msg("Reward revoked")
	return reward, nil
}

// ListRewards returns every reward of the calling advocate
func (s *RewardService) ListRewards(ctx context.Context, userID uint) ([]models.Reward, error) {
	advocate, err := s.repo.GetAdvocateByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAdvocateNotFound
		}
		return nil, err
	}
	return s.repo.ListRewardsByProfile(ctx, advocate.ID)
}

// RecountReferrals rebuilds an advocate's cached counter from its rewards
func (s *RewardService) RecountReferrals(ctx context.Context, advocateID uuid.UUID) (int64, error) {
	unlock := s.locks.Lock(advocateID.String())
	defer unlock()

	var count int64
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := tx.LockAdvocate(ctx, advocateID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrAdvocateNotFound
			}
			return err
		}
		var err error
		count, err = s.recount(ctx, tx, advocateID)
		return err
	})
	return count, err
}

// recount derives referral_count from non-revoked rewards inside tx
func (s *RewardService) recount(ctx context.Context, tx *repository.Repository, advocateID uuid.UUID) (int64, error) {
	count, err := tx.CountActiveRewards(ctx, advocateID)
	if err != nil {
		return 0, fmt.Errorf("failed to count rewards: %w", err)
	}
	if err := tx.SetReferralCount(ctx, advocateID, count); err != nil {
		return 0, fmt.Errorf("failed to update referral count: %w", err)
	}
	return count, nil
}

func redemptionResult(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyRedeemed):
		return "already_redeemed"
	case errors.Is(err, ErrRewardRevoked):
		return "revoked"
	case errors.Is(err, ErrRewardExpired):
		return "expired"
	}
	return "error"
}
