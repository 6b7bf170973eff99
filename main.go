package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"token-vesting-service/config"
	"token-vesting-service/handlers"
	"token-vesting-service/ledger"
	"token-vesting-service/metrics"
	"token-vesting-service/middleware"
	"token-vesting-service/services"
	"token-vesting-service/utils"
	"token-vesting-service/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024, // 1MB
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed, no exceptions
	app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayToken))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token, X-Device-ID, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}
	if err := ledger.AutoMigrate(db); err != nil {
		log.Fatal("failed to migrate database:", err)
	}
	store := ledger.NewGormStore(db)

	metrics.Register()

	grantService := services.NewGrantService(store, cfg.TokenDecimals)
	claimService := services.NewClaimService(store)
	campaignService := services.NewCampaignService(store, cfg.TokenDecimals)
	summaryService := services.NewSummaryService(store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	schedCfg := services.SchedulerConfig{
		SweepInterval:  cfg.SweepInterval,
		ReportInterval: cfg.ReportInterval,
	}
	if cfg.R2.Enabled() {
		archiver, err := utils.NewR2Archiver(ctx, cfg.R2)
		if err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
		schedCfg.Archiver = archiver
	} else {
		log.Println("⚠️  R2 not configured, campaign report archive disabled")
	}
	scheduler, err := services.StartVestingScheduler(grantService, summaryService, schedCfg)
	if err != nil {
		log.Fatal("failed to start vesting scheduler:", err)
	}

	if cfg.IssuanceServiceURL != "" {
		workers.NewIssuanceIntakeWorker(grantService, cfg.IssuanceServiceURL, cfg.ServiceToken, cfg.PollInterval).Start(ctx)
	}
	if cfg.SettlementServiceURL != "" {
		dispatcher := workers.NewSettlementDispatcher(store, cfg.SettlementServiceURL, cfg.ServiceToken)
		go workers.PollSettlements(ctx, dispatcher, cfg.PollInterval)
	}

	grantHandler := &handlers.GrantHandler{
		Grants:    grantService,
		Claims:    claimService,
		Campaigns: campaignService,
		Summaries: summaryService,
		Now:       time.Now,
	}
	if cfg.AuthServiceURL != "" {
		grantHandler.Auth = services.NewAuthServiceClient(cfg.AuthServiceURL, cfg.ServiceToken)
		grantHandler.Stream = services.NewGrantStream(summaryService, time.Now, 10*time.Second)
	}

	handlers.SetupRoutes(app, grantHandler, &handlers.CampaignHandler{
		Campaigns: campaignService,
		Grants:    grantService,
		Summaries: summaryService,
		Now:       time.Now,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", cfg.Port)
	log.Printf("✅ Vesting sweeps every %s", cfg.SweepInterval)
	log.Println("✅ GatewayAuthMiddleware enforced globally, all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", cfg.AllowedOrigins)

	<-ctx.Done()
	log.Println("Shutting down server...")

	if err := scheduler.Shutdown(); err != nil {
		log.Printf("Scheduler shutdown error: %v", err)
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
