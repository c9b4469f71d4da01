package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the Prometheus metrics of the referral engine
type Registry struct {
	HandlesAssigned    prometheus.Counter
	ReferralsCreated   prometheus.Counter
	RateLimited        prometheus.Counter
	ReferralClaims     *prometheus.CounterVec
	Activations        *prometheus.CounterVec
	RewardsIssued      prometheus.Counter
	RewardCapHits      *prometheus.CounterVec
	Redemptions        *prometheus.CounterVec
	NotificationErrors prometheus.Counter
	ExpiredReferrals   *prometheus.GaugeVec
}

// New creates the metrics and registers them with reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Registry {
	m := &Registry{
		HandlesAssigned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "referral_handles_assigned_total",
			Help: "Handles assigned to advocates",
		}),
		ReferralsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "referral_invites_created_total",
			Help: "Pending invites created by advocates",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "referral_invites_rate_limited_total",
			Help: "Invite attempts rejected by the weekly velocity cap",
		}),
		ReferralClaims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "referral_claims_total",
			Help: "Referral claims by resulting status",
		}, []string{"status"}),
		Activations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "referral_activations_total",
			Help: "Activation events by outcome",
		}, []string{"outcome"}),
		RewardsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "referral_rewards_issued_total",
			Help: "Rewards granted to referrers",
		}),
		RewardCapHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "referral_reward_cap_hits_total",
			Help: "Activations that earned no reward because a cap was reached",
		}, []string{"cap"}),
		Redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "referral_reward_redemptions_total",
			Help: "Reward redemption attempts by result",
		}, []string{"result"}),
		NotificationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "referral_notification_errors_total",
			Help: "Reward notifications that could not be delivered",
		}),
		ExpiredReferrals: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "referral_expired_open_referrals",
			Help: "Open referrals past their expiry, by stored status",
		}, []string{"status"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.HandlesAssigned,
			m.ReferralsCreated,
			m.RateLimited,
			m.ReferralClaims,
			m.Activations,
			m.RewardsIssued,
			m.RewardCapHits,
			m.Redemptions,
			m.NotificationErrors,
			m.ExpiredReferrals,
		)
	}
	return m
}
