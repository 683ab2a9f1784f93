package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/missionhub/missionhub-api/internal/config"
	"github.com/missionhub/missionhub-api/internal/domain/campaign"
	"github.com/missionhub/missionhub-api/internal/domain/experience"
	"github.com/missionhub/missionhub-api/internal/domain/ledger"
	"github.com/missionhub/missionhub-api/internal/domain/mission"
	"github.com/missionhub/missionhub-api/internal/domain/notification"
	"github.com/missionhub/missionhub-api/internal/domain/order"
	"github.com/missionhub/missionhub-api/internal/domain/payment"
	"github.com/missionhub/missionhub-api/internal/domain/payout"
	"github.com/missionhub/missionhub-api/internal/middleware"
	"github.com/missionhub/missionhub-api/internal/pkg/database"
	"github.com/missionhub/missionhub-api/internal/pkg/jwt"
	"github.com/missionhub/missionhub-api/internal/pkg/logger"
	pkgresponse "github.com/missionhub/missionhub-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting MissionHub API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		// The cache is advisory; run without it rather than refuse to start.
		log.Warn().Err(err).Msg("Redis unavailable, balance cache and feed fan-out disabled")
		redisClient = nil
	}
	defer database.CloseRedis(redisClient)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	// ---------- Repositories ----------
	ledgerRepo := ledger.NewRepository(db)
	paymentRepo := payment.NewRepository(db)
	orderRepo := order.NewRepository(db)
	campaignRepo := campaign.NewRepository(db)
	missionRepo := mission.NewRepository(db)
	payoutRepo := payout.NewRepository(db)
	experienceRepo := experience.NewRepository(db)

	// ---------- Review feed hub ----------
	feedHub := notification.NewHub(redisClient)
	go feedHub.Run()
	defer feedHub.Shutdown()

	// ---------- Services ----------
	ledgerSvc := ledger.NewService(ledgerRepo, redisClient, cfg.BalanceCacheTTL)
	campaignSvc := campaign.NewService(campaignRepo)
	orderSvc := order.NewService(orderRepo, ledgerRepo, campaignRepo, missionRepo)
	paymentSvc := payment.NewService(paymentRepo, ledgerRepo, ledgerSvc)
	paymentSvc.SetOrderService(orderSvc)
	missionSvc := mission.NewService(missionRepo, ledgerRepo, cfg.ParticipationTTL)
	missionSvc.SetPublisher(feedHub)
	payoutSvc := payout.NewService(payoutRepo, ledgerRepo, ledgerSvc)
	payoutSvc.SetPublisher(feedHub)
	experienceSvc := experience.NewService(experienceRepo, ledgerRepo)

	// ---------- Handlers ----------
	ledgerHandler := ledger.NewHandler(ledgerSvc)
	paymentHandler := payment.NewHandler(paymentSvc)
	orderHandler := order.NewHandler(orderSvc)
	campaignHandler := campaign.NewHandler(campaignSvc)
	missionHandler := mission.NewHandler(missionSvc)
	payoutHandler := payout.NewHandler(payoutSvc)
	experienceHandler := experience.NewHandler(experienceSvc)
	feedHandler := notification.NewHandler(feedHub)

	authMiddleware := middleware.Auth(jwtService)
	advertiserOnly := middleware.RequireAdvertiser()
	adminOnly := middleware.RequireAdmin()

	// ---------- Background jobs ----------
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.ExpirySchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := missionSvc.ExpireOverdue(ctx); err != nil {
			log.Error().Err(err).Msg("participation expiry sweep failed")
		}
		if err := experienceSvc.CloseExpired(ctx); err != nil {
			log.Error().Err(err).Msg("experience deadline sweep failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule expiry sweep")
	}
	if _, err := scheduler.AddFunc(cfg.RolloverSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := missionSvc.Rollover(ctx); err != nil {
			log.Error().Err(err).Msg("mission day rollover failed")
		}
		if err := campaignSvc.EndFinished(ctx); err != nil {
			log.Error().Err(err).Msg("campaign rollover failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule rollover")
	}
	scheduler.Start()
	defer scheduler.Stop()

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	// WebSocket endpoint (browser clients pass the token as a query param)
	r.Get("/ws/review-feed", func(w http.ResponseWriter, r *http.Request) {
		if token := r.URL.Query().Get("token"); token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		authMiddleware(adminOnly(http.HandlerFunc(feedHandler.ReviewFeed))).ServeHTTP(w, r)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/ledger", ledgerHandler.Routes(authMiddleware))
		r.Mount("/payments", paymentHandler.Routes(authMiddleware))
		r.Mount("/orders", orderHandler.Routes(authMiddleware, advertiserOnly))
		r.Mount("/campaigns", campaignHandler.Routes(authMiddleware))
		r.Mount("/missions", missionHandler.Routes(authMiddleware))
		r.Mount("/payouts", payoutHandler.Routes(authMiddleware))
		r.Mount("/experiences", experienceHandler.Routes(authMiddleware, advertiserOnly))
	})

	r.Mount("/webhooks/payment", paymentHandler.WebhookRoutes())

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Mount("/ledger", ledgerHandler.AdminRoutes(authMiddleware, adminOnly))
		r.Mount("/orders", orderHandler.AdminRoutes(authMiddleware, adminOnly))
		r.Mount("/campaigns", campaignHandler.AdminRoutes(authMiddleware, adminOnly))
		r.Mount("/missions", missionHandler.AdminRoutes(authMiddleware, adminOnly))
		r.Mount("/payouts", payoutHandler.AdminRoutes(authMiddleware, adminOnly))
		r.Mount("/experiences", experienceHandler.AdminRoutes(authMiddleware, adminOnly))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
