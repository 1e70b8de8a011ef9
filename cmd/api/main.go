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
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/brandboost/brandboost-api/internal/config"
	"github.com/brandboost/brandboost-api/internal/domain/auth"
	"github.com/brandboost/brandboost-api/internal/domain/campaign"
	"github.com/brandboost/brandboost-api/internal/domain/ledger"
	"github.com/brandboost/brandboost-api/internal/domain/notification"
	"github.com/brandboost/brandboost-api/internal/domain/partner"
	"github.com/brandboost/brandboost-api/internal/middleware"
	"github.com/brandboost/brandboost-api/internal/pkg/database"
	"github.com/brandboost/brandboost-api/internal/pkg/idempotency"
	"github.com/brandboost/brandboost-api/internal/pkg/jwt"
	"github.com/brandboost/brandboost-api/internal/pkg/logger"
	"github.com/brandboost/brandboost-api/internal/pkg/response"
	"github.com/brandboost/brandboost-api/internal/pkg/saga"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Str("ledger_mode", cfg.LedgerMode).
		Msg("Starting BrandBoost API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)

	// ---------- Gem ledger ----------
	// Memory mode keeps balances in-process for demos and local development;
	// everything else still runs against Postgres.
	var gemStore ledger.Store
	if cfg.LedgerMode == config.LedgerModeMemory {
		log.Warn().Msg("Gem ledger running in memory mode, balances are not durable")
		gemStore = ledger.NewMemoryStore()
	} else {
		gemStore = ledger.NewRepository(db)
	}
	gemService := ledger.NewService(gemStore)

	// ---------- Notifications ----------
	hub := notification.NewHub(redis)
	go hub.Run()

	notificationRepo := notification.NewRepository(db)
	notificationService := notification.NewService(notificationRepo, hub, parseOperatorID(cfg.OperatorAccountID))

	// ---------- Workflow plumbing ----------
	workflowExec := saga.NewExecutor(notificationService)
	idemGuard := idempotency.NewGuard(redis, cfg.IdempotencyTTL)

	// ---------- Partner onboarding ----------
	partnerRepo := partner.NewRepository(db)
	directory := partner.NewDirectory(db)
	partnerService := partner.NewService(partnerRepo, directory, gemService, notificationService, workflowExec, partner.Costs{
		ApprovalCost: cfg.ApprovalCost,
		PartnerQuota: cfg.PartnerGemQuota,
	})

	// ---------- Campaigns ----------
	campaignRepo := campaign.NewRepository(db)
	allocator := campaign.NewAllocator(cfg.TicketSecret)
	accountChecker := &partnerAccountChecker{directory: directory}
	campaignService := campaign.NewService(campaignRepo, gemService, accountChecker, allocator, notificationService, workflowExec, cfg.CampaignSlotCost)

	// ---------- Auth ----------
	authService := auth.NewService(auth.NewRepository(db), jwtService)

	// ---------- Handlers ----------
	authHandler := auth.NewHandler(authService)
	gemHandler := ledger.NewHandler(gemService)
	partnerHandler := partner.NewHandler(partnerService, idemGuard)
	campaignHandler := campaign.NewHandler(campaignService, idemGuard)
	notificationHandler := notification.NewHandler(notificationService, hub)

	authMiddleware := middleware.Auth(jwtService)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/auth", authHandler.Routes())
		r.Mount("/partners/applications", partnerHandler.Routes(authMiddleware))
		r.Mount("/gems", gemHandler.Routes(authMiddleware))
		r.Mount("/campaigns", campaignHandler.Routes(authMiddleware))
		r.Mount("/notifications", notificationHandler.Routes(authMiddleware))
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
	hub.Shutdown()

	log.Info().Msg("Server exited properly")
}

func parseOperatorID(raw string) uuid.UUID {
	if raw == "" {
		log.Warn().Msg("OPERATOR_ACCOUNT_ID not set, reconciliation alerts will only be logged")
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		log.Warn().Str("operator_account_id", raw).Msg("Invalid OPERATOR_ACCOUNT_ID, reconciliation alerts will only be logged")
		return uuid.Nil
	}
	return id
}

// partnerAccountChecker adapts partner.Directory to campaign.AccountChecker.
type partnerAccountChecker struct {
	directory interface {
		GetAccount(ctx context.Context, accountID uuid.UUID) (*partner.IdentityAccount, error)
	}
}

func (c *partnerAccountChecker) CheckActivePartner(ctx context.Context, accountID uuid.UUID) error {
	account, err := c.directory.GetAccount(ctx, accountID)
	if err != nil {
		return campaign.ErrPermissionDenied
	}
	if !account.Active {
		return campaign.ErrPermissionDenied
	}
	if account.Role != middleware.RolePartner && account.Role != middleware.RoleAdmin {
		return campaign.ErrPermissionDenied
	}
	return nil
}
