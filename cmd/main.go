package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"referral-engine/internal/auth"
	"referral-engine/internal/config"
	"referral-engine/internal/database"
	"referral-engine/internal/handlers"
	"referral-engine/internal/jobs"
	"referral-engine/internal/logging"
	"referral-engine/internal/metrics"
	"referral-engine/internal/repository"
	"referral-engine/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Setup(cfg.App.LogLevel, cfg.App.LogPretty)

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	db, err := database.Connect(cfg.GetDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	// Run migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Initialize services
	repo := repository.NewRepository(db)
	notifier := services.NewBreakerNotifier(services.NewStoreNotifier(repo))
	dispatcher := services.NewDispatcher(notifier, 5*time.Second, m)
	clock := clockwork.NewRealClock()
	engine := services.NewEngine(repo, cfg.Referral, clock, m, dispatcher)

	// Expiry report job
	expiryJob, err := jobs.NewExpiryReportJob(engine.Referrals, cfg.Jobs.ExpiryReportInterval, clock)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create expiry report job")
	}
	expiryJob.Start()

	// Set up Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), logging.GinLogger())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handlers.SetupRoutes(router, engine, handlers.RouterConfig{
		ServiceToken: cfg.App.ServiceToken,
		Gatherer:     registry,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Server starting")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := expiryJob.Stop(); err != nil {
		log.Error().Err(err).Msg("Expiry report job did not stop cleanly")
	}
	dispatcher.Wait()

	log.Info().Msg("Server exited")
}
