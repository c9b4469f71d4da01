package services

import (
	"github.com/jonboulle/clockwork"

	"referral-engine/internal/config"
	"referral-engine/internal/metrics"
	"referral-engine/internal/repository"
)

// Engine bundles the referral services. They share one per-advocate lock so
// invite creation, claims, activations and redemptions for the same advocate
// never interleave inside this process.
type Engine struct {
	Handles   *HandleService
	Referrals *ReferralService
	Rewards   *RewardService
	Guard     *AbuseGuard
}

func NewEngine(repo *repository.Repository, policy config.ReferralPolicy, clock clockwork.Clock, m *metrics.Registry, dispatcher *Dispatcher) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if m == nil {
		m = metrics.New(nil)
	}

	locks := newKeyedMutex()
	guard := NewAbuseGuard(repo, policy)
	rewards := NewRewardService(repo, policy, clock, locks, dispatcher, m)

	return &Engine{
		Handles:   NewHandleService(repo, policy, clock, locks, m),
		Referrals: NewReferralService(repo, policy, clock, locks, guard, rewards, m),
		Rewards:   rewards,
		Guard:     guard,
	}
}
