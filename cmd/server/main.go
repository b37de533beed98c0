package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/digkill/petdance/internal/api"
	"github.com/digkill/petdance/internal/auth"
	"github.com/digkill/petdance/internal/config"
	"github.com/digkill/petdance/internal/database"
	"github.com/digkill/petdance/internal/payments"
	"github.com/digkill/petdance/internal/prompt"
	"github.com/digkill/petdance/internal/repository"
	"github.com/digkill/petdance/internal/service"
	"github.com/digkill/petdance/internal/storage"
	"github.com/digkill/petdance/internal/videogen"
	"github.com/digkill/petdance/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New(cfg.LogLevel)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	creditRepo := repository.NewCreditRepository(db)
	videoRepo := repository.NewVideoRepository(db)
	generationRepo := repository.NewGenerationRepository(db)
	planRepo := repository.NewPlanRepository(db)
	checkoutRepo := repository.NewCheckoutRepository(db)
	referralRepo := repository.NewReferralRepository(db)

	videoClient := videogen.NewClient(cfg, logr)

	var enhancer service.PromptEnhancer
	if cfg.PromptEnhancerConfigured() {
		e, err := prompt.NewEnhancer(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logr)
		if err != nil {
			logr.Warn("prompt enhancer disabled", "err", err)
		} else {
			defer e.Close()
			enhancer = e
		}
	}

	var uploader service.PhotoUploader
	if cfg.StorageConfigured() {
		u, err := storage.NewUploader(storage.Config{
			Endpoint:      cfg.S3Endpoint,
			Region:        cfg.S3Region,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			PublicBaseURL: cfg.S3PublicBaseURL,
			UsePathStyle:  cfg.S3UsePathStyle,
			Prefix:        cfg.S3Prefix,
		})
		if err != nil {
			log.Fatalf("storage uploader: %v", err)
		}
		uploader = u
	}

	var checkoutProvider service.CheckoutProvider
	if cfg.PaymentsConfigured() || cfg.WebhooksConfigured() {
		checkoutProvider = payments.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookKey, logr)
	}

	creditService := service.NewCreditService(creditRepo, cfg.GenerationCost)
	userService := service.NewUserService(logr, userRepo, service.UserOptions{
		LookupAttempts: cfg.ProfileLookupAttempts,
		LookupDelay:    cfg.ProfileLookupDelay,
		StarterCredits: cfg.StarterCredits,
	})
	planService := service.NewPlanService(cfg, planRepo)
	paymentService := service.NewPaymentService(cfg, logr, checkoutProvider, checkoutRepo, planService)
	referralService := service.NewReferralService(referralRepo, cfg.ReferralBonus)
	generationService := service.NewGenerationService(logr, creditService, videoRepo, generationRepo, videoClient, enhancer, uploader,
		service.GenerationOptions{Duration: cfg.VideoDuration, AspectRatio: cfg.VideoAspectRatio})

	if err := planService.EnsureDefaultPlans(ctx); err != nil {
		log.Fatalf("ensure default plans: %v", err)
	}

	for _, missing := range []struct {
		ok   bool
		name string
	}{
		{cfg.VideoConfigured(), "KIE_API_KEY"},
		{cfg.PaymentsConfigured(), "STRIPE_SECRET_KEY"},
		{cfg.WebhooksConfigured(), "STRIPE_WEBHOOK_SECRET"},
		{cfg.PromptEnhancerConfigured(), "GEMINI_API_KEY"},
		{cfg.StorageConfigured(), "S3_*"},
	} {
		if !missing.ok {
			logr.Warn("optional provider not configured", "env", missing.name)
		}
	}

	if !cfg.AdminEnabled() {
		logr.Warn("admin routes disabled", "env", "ADMIN_PASSWORD")
	}

	server := api.NewServer(api.Deps{
		Config:      cfg,
		Log:         logr,
		DB:          db,
		Verifier:    auth.NewVerifier(cfg.AuthJWTSecret, cfg.AuthJWTAudience),
		Profiles:    userService,
		Ledger:      creditService,
		Generations: generationService,
		Checkouts:   paymentService,
		Plans:       planService,
		Referrals:   referralService,
		Video:       videoClient,
	})

	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("http server stopped", "err", err)
	}
}
