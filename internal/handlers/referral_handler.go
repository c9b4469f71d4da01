package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"referral-engine/internal/auth"
	"referral-engine/internal/services"
)

type ReferralHandler struct {
	handles   *services.HandleService
	referrals *services.ReferralService
}

func NewReferralHandler(engine *services.Engine) *ReferralHandler {
	return &ReferralHandler{
		handles:   engine.Handles,
		referrals: engine.Referrals,
	}
}

// EnsureHandle returns the caller's public handle, assigning it on first use
func (h *ReferralHandler) EnsureHandle(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		respondError(c, services.ErrUnauthenticated)
		return
	}

	handle, err := h.handles.EnsureHandle(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"handle": handle},
	})
}

// CreateInvite issues a pending invite for the caller
func (h *ReferralHandler) CreateInvite(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		respondError(c, services.ErrUnauthenticated)
		return
	}

	referral, err := h.referrals.CreateReferral(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"referral_id": referral.ID,
			"expires_at":  referral.ExpiresAt,
		},
	})
}

// ClaimReferral records the caller's signup through a join link. An unknown
// handle yields a null referral id rather than an error.
func (h *ReferralHandler) ClaimReferral(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		respondError(c, services.ErrUnauthenticated)
		return
	}

	var req struct {
		Handle string `json:"handle" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "handle is required")
		return
	}

	referral, err := h.referrals.ClaimReferral(c.Request.Context(), req.Handle, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	data := gin.H{"referral_id": nil}
	if referral != nil {
		data = gin.H{"referral_id": referral.ID, "status": referral.Status}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// GetMyReferralInfo returns the referral dashboard of the caller
func (h *ReferralHandler) GetMyReferralInfo(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		respondError(c, services.ErrUnauthenticated)
		return
	}

	info, err := h.referrals.MyReferralInfo(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": info})
}

// GetMyReferralActivity returns the caller's recent referrals
func (h *ReferralHandler) GetMyReferralActivity(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		respondError(c, services.ErrUnauthenticated)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	activity, err := h.referrals.MyReferralActivity(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    activity,
		"count":   len(activity),
	})
}
