package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"dance-battle-system/handlers"
	"dance-battle-system/middleware"
	"dance-battle-system/models"
	"dance-battle-system/services"
	"dance-battle-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		utils.Info("⚠️  No .env file found, reading environment variables directly")
	}
	utils.InitLogger(os.Getenv("LOG_LEVEL"))
	defer utils.Sync()

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // 10MB — media goes straight to R2, not through us
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())
	app.Use(middleware.UserContextMiddleware())

	// Load allowed origins from environment variable
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		utils.Info("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		utils.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		utils.Fatal("failed to initialize R2 client", "err", err)
	}

	// TranslateError turns driver duplicate-key errors into
	// gorm.ErrDuplicatedKey, which the services rely on for the
	// one-callout-per-pair and one-vote-per-voter guarantees.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		utils.Fatal("failed to connect to database", "err", err)
	}

	if err := db.AutoMigrate(
		&models.Match{},
		&models.Vote{},
	); err != nil {
		utils.Fatal("failed to migrate database", "err", err)
	}

	profileServiceURL := os.Getenv("PROFILE_SERVICE_URL")
	if profileServiceURL == "" {
		utils.Fatal("PROFILE_SERVICE_URL environment variable not set")
	}
	mailServiceURL := os.Getenv("MAIL_SERVICE_URL")
	if mailServiceURL == "" {
		utils.Fatal("MAIL_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("BATTLE_SERVICE_TOKEN")
	if serviceToken == "" {
		utils.Fatal("BATTLE_SERVICE_TOKEN environment variable not set")
	}

	cfg := services.LoadEngineConfig()
	clock := clockwork.NewRealClock()
	directory := services.NewDirectoryClient(profileServiceURL, serviceToken)
	notifier := services.NewMailClient(mailServiceURL, serviceToken)

	battleService := services.NewBattleService(db, directory, notifier, clock, cfg)
	battleService.AdminRecipient = os.Getenv("ADMIN_NOTIFY_RECIPIENT")
	voteService := services.NewVoteService(db, clock, cfg)
	queryService := services.NewQueryService(db)

	scheduler := services.NewTallyScheduler(db, battleService, clock, cfg)
	if err := scheduler.Start(); err != nil {
		utils.Fatal("failed to start tally scheduler", "err", err)
	}

	handlers.SetupBattleRoutes(app, battleService, queryService)
	handlers.SetupVoteRoutes(app, voteService, queryService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := app.Listen(":5300"); err != nil {
			utils.Error("server error", "err", err)
		}
	}()

	utils.Info("✅ Server running on http://localhost:5300")
	utils.Info("✅ Tally scheduler running", "interval", cfg.TallyTickInterval)
	utils.Info("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	utils.Info("✅ CORS configured", "origins", allowedOriginsString)

	<-ctx.Done()
	utils.Info("Shutting down server...")
	scheduler.Stop()
	_ = app.Shutdown()
}
