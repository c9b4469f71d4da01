package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"referral-engine/internal/auth"
	"referral-engine/internal/services"
)

// RouterConfig carries what the HTTP surface needs besides the engine
type RouterConfig struct {
	ServiceToken string
	Gatherer     prometheus.Gatherer
}

// SetupRoutes registers every referral endpoint on router
func SetupRoutes(router *gin.Engine, engine *services.Engine, cfg RouterConfig) {
	referralHandler := NewReferralHandler(engine)
	rewardHandler := NewRewardHandler(engine)
	internalHandler := NewInternalHandler(engine)
	adminHandler := NewAdminHandler(engine)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		api.POST("/referral/handle", referralHandler.EnsureHandle)
		api.POST("/referral/invites", referralHandler.CreateInvite)
		api.POST("/referral/claim", referralHandler.ClaimReferral)
		api.GET("/referral/me", referralHandler.GetMyReferralInfo)
		api.GET("/referral/activity", referralHandler.GetMyReferralActivity)

		api.GET("/rewards", rewardHandler.ListRewards)
		api.POST("/rewards/:id/redeem", rewardHandler.RedeemReward)
	}

	admin := router.Group("/api/admin")
	admin.Use(auth.AuthMiddleware(), auth.RequireRole(auth.RoleAdmin))
	{
		admin.POST("/referrals/:id/flags", adminHandler.FlagReferral)
		admin.POST("/rewards/:id/revoke", adminHandler.RevokeReward)
	}

	internal := router.Group("/internal")
	internal.Use(auth.ServiceTokenMiddleware(cfg.ServiceToken))
	{
		internal.POST("/referral/link", internalHandler.LinkProfile)
		internal.POST("/referral/activate", internalHandler.ActivateReferral)
	}
}
