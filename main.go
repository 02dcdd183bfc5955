package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"prize-hub/config"
	"prize-hub/handlers"
	"prize-hub/middleware"
	"prize-hub/services"
	"prize-hub/utils"
	"prize-hub/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config: ", err)
	}

	// Amounts go out as JSON numbers, the way the prize page reads them.
	decimal.MarshalJSONWithoutQuotes = true

	db, err := utils.OpenDatabase(cfg.DBDriver, cfg.DBURL)
	if err != nil {
		log.Fatal(err)
	}

	hasher, err := utils.NewPasswordHasher(utils.Argon2Params{
		Time:      cfg.Argon2Time,
		MemoryKB:  cfg.Argon2MemoryKB,
		Threads:   cfg.Argon2Threads,
		KeyLength: cfg.Argon2KeyLength,
	})
	if err != nil {
		log.Fatal("failed to configure password hashing:", err)
	}
	tokens, err := utils.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.SessionTTL, time.Now)
	if err != nil {
		log.Fatal("failed to configure session tokens:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var notifier services.Notifier = services.NopNotifier{}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != 0 {
		tg, err := services.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			log.Printf("⚠️  Telegram notifications disabled: %v", err)
		} else {
			notifier = tg
		}
	}

	var store services.ObjectStore
	if cfg.R2Enabled() {
		r2, err := utils.NewR2Client(ctx, utils.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessSecret,
			Bucket:          cfg.R2Bucket,
			CDNBaseURL:      cfg.CDNBaseURL,
		})
		if err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
		store = r2
	} else {
		log.Println("⚠️  R2 not configured, winner archives disabled")
	}

	validator := services.NewValidator()
	settingsService := services.NewSettingsService(db, validator, cfg.BuildMarker)
	competitionService := services.NewCompetitionService(db, validator)
	participantService := services.NewParticipantService(db, validator)
	maintenanceService := services.NewMaintenanceService(db)

	deps := &handlers.Deps{
		DB:           db,
		Validator:    validator,
		Auth:         services.NewAuthService(db, hasher, tokens, cfg.LockoutThreshold, cfg.LockoutDuration),
		Competitions: competitionService,
		Participants: participantService,
		Winners:      services.NewWinnerService(db, validator, notifier),
		Prizes:       services.NewPrizeService(db, settingsService),
		Settings:     settingsService,
		Maintenance:  maintenanceService,
		Archive:      services.NewArchiveService(db, store),
		CookieSecure: cfg.CookieSecure,
		IngestToken:  cfg.IngestToken,
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal("invalid REDIS_URL:", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("⚠️  Redis unreachable, login throttle will fail open: %v", err)
		}
		deps.LoginThrottle = middleware.NewLoginThrottle(rdb, cfg.LoginRateLimit, cfg.LoginRateWindow).Handler()
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 4 * 1024 * 1024,
		AppName:   "prize-hub",
	})

	app.Use(recover.New())
	app.Use(logger.New())

	allowedOriginsString := strings.Join(cfg.AllowedOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Service-Token",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	app.Use(middleware.RateLimit(rate.NewLimiter(rate.Limit(cfg.APIRateLimitRPS), cfg.APIRateLimitBurst)))

	handlers.SetupRoutes(app, deps)

	if cfg.MaintenanceInterval > 0 {
		sched, err := maintenanceService.StartScheduler(cfg.MaintenanceInterval)
		if err != nil {
			log.Fatal("failed to start maintenance scheduler:", err)
		}
		defer sched.Shutdown()
	}

	if cfg.ScoreFeedURL != "" {
		workers.NewScoreFeedWorker(competitionService, participantService, cfg.ScoreFeedURL, cfg.ScoreFeedToken, cfg.ScoreFeedInterval).Start(ctx)
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", cfg.Port)
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
}
