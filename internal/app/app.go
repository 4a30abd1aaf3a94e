package app

import (
	"context"
	"fmt"
	"time"

	"commhub_backend/database"
	"commhub_backend/internal/config"
	"commhub_backend/internal/handlers"
	"commhub_backend/internal/logger"
	"commhub_backend/internal/realtime"
	"commhub_backend/internal/repositories"
	"commhub_backend/internal/routes"
	"commhub_backend/internal/services"
	"commhub_backend/internal/validator"
	"commhub_backend/internal/workers"
	"commhub_backend/ws"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Run() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Server.Env)
	logger.Info("logger initialized", "env", cfg.Server.Env)

	gormDB, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		logger.Fatal("failed to connect to database", "error", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatal("failed to get *sql.DB", "error", err)
	}
	if err := sqlDB.Ping(); err != nil {
		logger.Fatal("database unavailable", "error", err)
	}
	logger.Info("database connected")

	if err := database.Migrate(gormDB); err != nil {
		logger.Fatal("migration failed", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router := SetupRouter(ctx, cfg, gormDB)

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("server starting", "address", address)
	if err := router.Run(address); err != nil {
		logger.Fatal("server startup error", "error", err)
	}
}

// SetupRouter builds the full dependency graph and returns the gin engine.
// Split from Run so tests can assemble the app against their own database.
func SetupRouter(ctx context.Context, cfg *config.Config, gormDB *gorm.DB) *gin.Engine {
	// Repositories
	userRepo := repositories.NewUserRepository(gormDB)
	chatRepo := repositories.NewChatRepository(gormDB)
	notificationRepo := repositories.NewNotificationRepository(gormDB)

	// Realtime: in-process broker plus the enriching fan-out.
	broker := realtime.NewBroker()
	fanout := realtime.NewFanout(broker, chatRepo)

	// Background workers
	outbox := workers.NewNotificationOutbox(notificationRepo, cfg.Notifications.OutboxBuffer)
	outbox.Start(ctx)

	retention := workers.NewRetentionWorker(notificationRepo, cfg.Notifications.RetentionDays)
	if err := retention.Start(); err != nil {
		logger.Fatal("failed to start retention worker", "error", err)
	}

	// Services
	membershipService := services.NewMembershipService(chatRepo, userRepo)
	messageService := services.NewMessageService(chatRepo, userRepo, broker, services.MessageConfig{
		MaxContentLength: cfg.Chat.MaxMessageLength,
		DefaultPageSize:  cfg.Chat.DefaultPageSize,
		MaxPageSize:      cfg.Chat.MaxPageSize,
	})
	notificationService := services.NewNotificationService(notificationRepo, outbox)
	authService := services.NewAuthService(userRepo, cfg.JWT.Secret, time.Duration(cfg.JWT.TTL)*time.Hour)

	// Websocket hub
	wsManager := ws.NewManager(fanout, chatRepo, messageService)
	go wsManager.Run()

	// Handlers
	v := validator.New()
	base := handlers.NewBaseHandler(v)
	appHandlers := &routes.Handlers{
		Auth:         handlers.NewAuthHandler(base, authService),
		Chat:         handlers.NewChatHandler(base, membershipService, messageService),
		Notification: handlers.NewNotificationHandler(base, notificationService),
		WS:           ws.NewHandler(wsManager),
	}

	if cfg.Server.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	routes.RegisterRoutes(router, appHandlers, cfg.JWT.Secret)

	return router
}
