package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"referral-engine/internal/services"
)

// AdminHandler exposes moderation actions on referrals and rewards
type AdminHandler struct {
	referrals *services.ReferralService
	rewards   *services.RewardService
}

func NewAdminHandler(engine *services.Engine) *AdminHandler {
	return &AdminHandler{
		referrals: engine.Referrals,
		rewards:   engine.Rewards,
	}
}

// FlagReferral adds a fraud token to a referral
func (h *AdminHandler) FlagReferral(c *gin.Context) {
	referralID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "Invalid referral ID")
		return
	}

	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "token is required")
		return
	}

	referral, err := h.referrals.FlagReferral(c.Request.Context(), referralID, req.Token)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": referral})
}

// RevokeReward withdraws a reward
func (h *AdminHandler) RevokeReward(c *gin.Context) {
	rewardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "Invalid reward ID")
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "reason is required")
		return
	}

	reward, err := h.rewards.RevokeReward(c.Request.Context(), rewardID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": reward})
}
