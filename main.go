package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"go.uber.org/zap"

	"github.com/promptdeck/promptdeck/pkg/auth"
	"github.com/promptdeck/promptdeck/pkg/config"
	"github.com/promptdeck/promptdeck/pkg/database"
	"github.com/promptdeck/promptdeck/pkg/handlers"
	"github.com/promptdeck/promptdeck/pkg/middleware"
	"github.com/promptdeck/promptdeck/pkg/repositories"
	"github.com/promptdeck/promptdeck/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var logger *zap.Logger
	if cfg.Env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", cfg.Database.Host),
		zap.String("redis", cfg.Redis.Host))

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	sqlDB, err := sql.Open("pgx", cfg.Database.URL())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = sqlDB.Close()

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisClient == nil {
		logger.Info("Redis not configured; projection cache disabled")
	}

	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
	})
	if err != nil {
		logger.Fatal("Failed to initialize JWKS client", zap.Error(err))
	}
	authService := auth.NewAuthService(jwksClient, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)
	tenantMiddleware := handlers.TenantMiddleware(database.WithWorkspaceContext(db, logger))

	promptRepo := repositories.NewPromptRepository()
	versionRepo := repositories.NewVersionRepository()

	projectionService := services.NewProjectionService(promptRepo, versionRepo, redisClient, cfg.PreviewLength, logger)
	promptService := services.NewPromptService(promptRepo, projectionService, logger)
	historyService := services.NewHistoryService(versionRepo)
	reconcilerService := services.NewReconcilerService(versionRepo, projectionService, logger)

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewPromptsHandler(promptService, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewVersionsHandler(historyService, reconcilerService, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)

	server := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting promptdeck",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, server); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
