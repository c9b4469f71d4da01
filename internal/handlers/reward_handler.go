package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"referral-engine/internal/auth"
	"referral-engine/internal/services"
)

type RewardHandler struct {
	rewards *services.RewardService
}

func NewRewardHandler(engine *services.Engine) *RewardHandler {
	return &RewardHandler{rewards: engine.Rewards}
}

// ListRewards returns every reward of the caller
func (h *RewardHandler) ListRewards(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		respondError(c, services.ErrUnauthenticated)
		return
	}

	rewards, err := h.rewards.ListRewards(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    rewards,
		"count":   len(rewards),
	})
}

// RedeemReward spends one of the caller's rewards
func (h *RewardHandler) RedeemReward(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		respondError(c, services.ErrUnauthenticated)
		return
	}

	rewardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "Invalid reward ID")
		return
	}

	reward, err := h.rewards.RedeemReward(c.Request.Context(), rewardID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"reward_id":   reward.ID,
			"reward_type": reward.Type,
			"redeemed_at": reward.RedeemedAt,
		},
	})
}
