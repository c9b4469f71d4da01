package services

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-engine/internal/config"
	"referral-engine/internal/models"
)

// activateFor signs up a fresh invitee under referrer and activates it
func (f *fixture) activateFor(referrer *models.Advocate, first string) *models.Referral {
	f.t.Helper()
	invitee := f.advocate(first, "Tester", "")
	f.signUp(referrer, invitee)

	referral, err := f.engine.Referrals.ActivateReferral(f.ctx, invitee.ID)
	require.NoError(f.t, err)
	require.NotNil(f.t, referral)
	require.Equal(f.t, models.ReferralStatusActivated, referral.Status)
	return referral
}

func TestMonthlyRewardCap(t *testing.T) {
	f := newFixture(t)
	jane := f.advocate("Jane", "Doe", "")

	for _, name := range []string{"Ann", "Ben", "Cat", "Dan", "Eve"} {
		f.activateFor(jane, name)
		f.clock.Advance(time.Hour)
	}
	require.Len(t, f.rewardsOf(jane), 5)
	require.Equal(t, 5, f.reload(jane).ReferralCount)

	sixth := f.activateFor(jane, "Fay")
	assert.Equal(t, models.ReferralStatusActivated, f.referral(sixth.ID).Status)
	assert.Len(t, f.rewardsOf(jane), 5)
	assert.Equal(t, 5, f.reload(jane).ReferralCount)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RewardCapHits.WithLabelValues("monthly")))

	// A new calendar month opens a fresh window.
	f.clock.Advance(time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC).Sub(f.clock.Now()))
	f.activateFor(jane, "Gus")
	assert.Len(t, f.rewardsOf(jane), 6)
	assert.Equal(t, 6, f.reload(jane).ReferralCount)

	f.dispatcher.Wait()
	assert.Len(t, f.notifier.Sent(), 6)
}

func TestConcurrentActivationsRespectMonthlyCap(t *testing.T) {
	f := newFixture(t)
	jane := f.advocate("Jane", "Doe", "")

	for _, name := range []string{"Ann", "Ben", "Cat", "Dan"} {
		f.activateFor(jane, name)
	}
	require.Len(t, f.rewardsOf(jane), 4)

	invitees := make([]*models.Advocate, 0, 4)
	for _, name := range []string{"Eve", "Fay", "Gus", "Hal"} {
		invitee := f.advocate(name, "Tester", "")
		f.signUp(jane, invitee)
		invitees = append(invitees, invitee)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(invitees))
	for i, invitee := range invitees {
		wg.Add(1)
		go func(i int, profileID uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.engine.Referrals.ActivateReferral(f.ctx, profileID)
		}(i, invitee.ID)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	for _, invitee := range invitees {
		referral, err := f.repo.GetReferralByInviteeProfileID(f.ctx, invitee.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ReferralStatusActivated, referral.Status)
	}
	assert.Len(t, f.rewardsOf(jane), 5)
	assert.Equal(t, 5, f.reload(jane).ReferralCount)
	assert.Equal(t, float64(3), testutil.ToFloat64(f.metrics.RewardCapHits.WithLabelValues("monthly")))
}

func TestMonthlyCapIgnoresRevokedRewards(t *testing.T) {
	f := newFixture(t)
	jane := f.advocate("Jane", "Doe", "")

	for _, name := range []string{"Ann", "Ben", "Cat", "Dan", "Eve"} {
		f.activateFor(jane, name)
	}
	rewards := f.rewardsOf(jane)
	require.Len(t, rewards, 5)

	_, err := f.engine.Rewards.RevokeReward(f.ctx, rewards[0].ID, "duplicate account")
	require.NoError(t, err)
	assert.Equal(t, 4, f.reload(jane).ReferralCount)

	f.activateFor(jane, "Fay")
	assert.Len(t, f.rewardsOf(jane), 6)
	assert.Equal(t, 5, f.reload(jane).ReferralCount)
}

func TestTermRewardCapWhenEnforced(t *testing.T) {
	f := newFixture(t, func(p *config.ReferralPolicy) {
		p.EnforceTermCap = true
		p.TermRewardCap = 2
	})
	jane := f.advocate("Jane", "Doe", "")

	f.activateFor(jane, "Ann")
	f.activateFor(jane, "Ben")
	f.activateFor(jane, "Cat")

	assert.Len(t, f.rewardsOf(jane), 2)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RewardCapHits.WithLabelValues("term")))
}

func TestTermRewardCapInertByDefault(t *testing.T) {
	f := newFixture(t, func(p *config.ReferralPolicy) {
		p.TermRewardCap = 1
	})
	jane := f.advocate("Jane", "Doe", "")

	f.activateFor(jane, "Ann")
	f.activateFor(jane, "Ben")

	assert.Len(t, f.rewardsOf(jane), 2)
}

func TestRedeemReward(t *testing.T) {
	f := newFixture(t)
	jane := f.advocate("Jane", "Doe", "")
	bob := f.advocate("Bob", "Smith", "")
	f.activateFor(jane, "Ann")
	reward := f.rewardsOf(jane)[0]

	_, err := f.engine.Rewards.RedeemReward(f.ctx, reward.ID, bob.UserID)
	assert.ErrorIs(t, err, ErrNotRewardOwner)

	_, err = f.engine.Rewards.RedeemReward(f.ctx, uuid.New(), jane.UserID)
	assert.ErrorIs(t, err, ErrRewardNotFound)

	f.clock.Advance(time.Hour)
	redeemed, err := f.engine.Rewards.RedeemReward(f.ctx, reward.ID, jane.UserID)
	require.NoError(t, err)
	assert.True(t, redeemed.Redeemed)
	require.NotNil(t, redeemed.RedeemedAt)
	assert.True(t, redeemed.RedeemedAt.Equal(testStart.Add(time.Hour)))
	assert.Equal(t, models.RewardTypeBonusAISession, redeemed.Type)

	_, err = f.engine.Rewards.RedeemReward(f.ctx, reward.ID, jane.UserID)
	assert.ErrorIs(t, err, ErrAlreadyRedeemed)

	_, err = f.engine.Rewards.RevokeReward(f.ctx, reward.ID, "too late")
	assert.ErrorIs(t, err, ErrAlreadyRedeemed)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Redemptions.WithLabelValues("redeemed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Redemptions.WithLabelValues("already_redeemed")))
}

func TestRedeemExpiredReward(t *testing.T) {
	f := newFixture(t)
	jane := f.advocate("Jane", "Doe", "")
	f.activateFor(jane, "Ann")
	reward := f.rewardsOf(jane)[0]

	f.clock.Advance(reward.ExpiresAt.Sub(f.clock.Now()) + time.Second)
	_, err := f.engine.Rewards.RedeemReward(f.ctx, reward.ID, jane.UserID)
	assert.ErrorIs(t, err, ErrRewardExpired)

	stored, err := f.repo.GetRewardByID(f.ctx, reward.ID)
	require.NoError(t, err)
	assert.False(t, stored.Redeemed)
}

func TestRevokeReward(t *testing.T) {
	f := newFixture(t)
	jane := f.advocate("Jane", "Doe", "")
	f.activateFor(jane, "Ann")
	f.activateFor(jane, "Ben")
	reward := f.rewardsOf(jane)[0]
	require.Equal(t, 2, f.reload(jane).ReferralCount)

	revoked, err := f.engine.Rewards.RevokeReward(f.ctx, reward.ID, "fraud review")
	require.NoError(t, err)
	assert.True(t, revoked.Revoked)
	require.NotNil(t, revoked.RevokedReason)
	assert.Equal(t, "fraud review", *revoked.RevokedReason)
	assert.Equal(t, 1, f.reload(jane).ReferralCount)

	_, err = f.engine.Rewards.RedeemReward(f.ctx, reward.ID, jane.UserID)
	assert.ErrorIs(t, err, ErrRewardRevoked)

	_, err = f.engine.Rewards.RevokeReward(f.ctx, reward.ID, "again")
	assert.ErrorIs(t, err, ErrRewardRevoked)

	info, err := f.engine.Referrals.MyReferralInfo(f.ctx, jane.UserID)
	require.NoError(t, err)
	assert.Len(t, info.UnredeemedRewards, 1)
}

func TestRecountReferrals(t *testing.T) {
	f := newFixture(t)
	jane := f.advocate("Jane", "Doe", "")
	f.activateFor(jane, "Ann")
	f.activateFor(jane, "Ben")

	require.NoError(t, f.repo.SetReferralCount(f.ctx, jane.ID, 40))

	count, err := f.engine.Rewards.RecountReferrals(f.ctx, jane.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, 2, f.reload(jane).ReferralCount)

	_, err = f.engine.Rewards.RecountReferrals(f.ctx, uuid.New())
	assert.ErrorIs(t, err, ErrAdvocateNotFound)
}

func TestListRewards(t *testing.T) {
	f := newFixture(t)
	jane := f.advocate("Jane", "Doe", "")
	f.activateFor(jane, "Ann")
	f.clock.Advance(time.Minute)
	f.activateFor(jane, "Ben")

	rewards, err := f.engine.Rewards.ListRewards(f.ctx, jane.UserID)
	require.NoError(t, err)
	require.Len(t, rewards, 2)
	assert.True(t, rewards[0].EarnedAt.After(rewards[1].EarnedAt))

	_, err = f.engine.Rewards.ListRewards(f.ctx, 777)
	assert.ErrorIs(t, err, ErrAdvocateNotFound)
}

func TestNotificationFailureDoesNotFailActivation(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errDeliveryDown
	jane := f.advocate("Jane", "Doe", "")

	f.activateFor(jane, "Ann")
	f.dispatcher.Wait()

	assert.Len(t, f.rewardsOf(jane), 1)
	assert.Equal(t, 1, f.reload(jane).ReferralCount)
	assert.Empty(t, f.notifier.Sent())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.NotificationErrors))
}
