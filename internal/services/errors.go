package services

import (
	"errors"

	"referral-engine/internal/models"
)

// Caller-facing failures. Policy outcomes such as a reached reward cap or an
// unknown handle on claim are not errors and return a nil result instead.
var (
	ErrUnauthenticated   = errors.New("not authenticated")
	ErrAdvocateNotFound  = errors.New("advocate profile not found")
	ErrReferralNotFound  = errors.New("referral not found")
	ErrRewardNotFound    = errors.New("reward not found")
	ErrNotRewardOwner    = errors.New("reward belongs to another advocate")
	ErrRateLimited       = errors.New("weekly invite limit reached")
	ErrHandleExhausted   = errors.New("no free handle for advocate")
	ErrInvalidTransition = models.ErrIllegalTransition

	ErrAlreadyRedeemed = models.ErrRewardAlreadyRedeemed
	ErrRewardRevoked   = models.ErrRewardAlreadyRevoked
	ErrRewardExpired   = models.ErrRewardPastExpiry
)
