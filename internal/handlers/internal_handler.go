package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"referral-engine/internal/services"
)

// InternalHandler serves events from other backend services
type InternalHandler struct {
	referrals *services.ReferralService
}

func NewInternalHandler(engine *services.Engine) *InternalHandler {
	return &InternalHandler{referrals: engine.Referrals}
}

// LinkProfile is called when an invitee finishes onboarding
func (h *InternalHandler) LinkProfile(c *gin.Context) {
	var req struct {
		ProfileID string `json:"profile_id" binding:"required"`
		Handle    string `json:"handle" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "profile_id and handle are required")
		return
	}
	profileID, err := uuid.Parse(req.ProfileID)
	if err != nil {
		respondBadRequest(c, "Invalid profile ID")
		return
	}

	referral, err := h.referrals.LinkProfileToReferral(c.Request.Context(), profileID, req.Handle)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "linked": referral != nil})
}

// ActivateReferral is called when an invitee completes a first session
func (h *InternalHandler) ActivateReferral(c *gin.Context) {
	var req struct {
		InviteeProfileID string `json:"invitee_profile_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invitee_profile_id is required")
		return
	}
	profileID, err := uuid.Parse(req.InviteeProfileID)
	if err != nil {
		respondBadRequest(c, "Invalid profile ID")
		return
	}

	referral, err := h.referrals.ActivateReferral(c.Request.Context(), profileID)
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
