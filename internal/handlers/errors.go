package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"referral-engine/internal/services"
)

// apiError maps an engine error to a status and a stable code clients can switch on
type apiError struct {
	status  int
	code    string
	message string
}

var knownErrors = []struct {
	err error
	api apiError
}{
	{services.ErrUnauthenticated, apiError{http.StatusUnauthorized, "unauthenticated", "Not authenticated"}},
	{services.ErrAdvocateNotFound, apiError{http.StatusNotFound, "advocate_not_found", "Advocate profile not found"}},
	{services.ErrReferralNotFound, apiError{http.StatusNotFound, "referral_not_found", "Referral not found"}},
	{services.ErrRewardNotFound, apiError{http.StatusNotFound, "reward_not_found", "Reward not found"}},
	{services.ErrNotRewardOwner, apiError{http.StatusForbidden, "not_reward_owner", "Reward belongs to another advocate"}},
	{services.ErrAlreadyRedeemed, apiError{http.StatusConflict, "already_redeemed", "Reward already redeemed"}},
	{services.ErrRewardRevoked, apiError{http.StatusConflict, "reward_revoked", "Reward has been revoked"}},
	{services.ErrRewardExpired, apiError{http.StatusGone, "reward_expired", "Reward has expired"}},
	{services.ErrRateLimited, apiError{http.StatusTooManyRequests, "rate_limited", "Weekly invite limit reached, try again next week"}},
	{services.ErrInvalidTransition, apiError{http.StatusConflict, "invalid_transition", "Referral cannot move to that state"}},
	{services.ErrHandleExhausted, apiError{http.StatusInternalServerError, "handle_exhausted", "No handle available, support has been alerted"}},
}

func respondError(c *gin.Context, err error) {
	for _, known := range knownErrors {
		if errors.Is(err, known.err) {
			c.JSON(known.api.status, gin.H{"error": known.api.message, "code": known.api.code})
			return
		}
	}

	log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "code": "internal"})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "code": "bad_request"})
}
