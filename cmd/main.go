package main

import (
	"fmt"
	"os"

	"github.com/sanctuarylabs/sanctuary-backend/internal/clients/redis"
	"github.com/sanctuarylabs/sanctuary-backend/internal/config"
	"github.com/sanctuarylabs/sanctuary-backend/internal/db"
	"github.com/sanctuarylabs/sanctuary-backend/internal/handlers"
	"github.com/sanctuarylabs/sanctuary-backend/internal/logger"
	"github.com/sanctuarylabs/sanctuary-backend/internal/middleware"
	"github.com/sanctuarylabs/sanctuary-backend/internal/repos"
	"github.com/sanctuarylabs/sanctuary-backend/internal/server"
	"github.com/sanctuarylabs/sanctuary-backend/internal/services"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Config
	log.Info("Loading configuration from main...")
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatal("Failed to load configuration", "error", err)
	}
	if cfg.JWTAccessSecret == "" || cfg.JWTRefreshSecret == "" {
		log.Fatal("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must be configured")
	}

	// Postgres
	postgresService, err := db.NewPostgresService(cfg, log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Cache (optional)
	cache, err := redis.NewCache(cfg, log)
	if err != nil {
		log.Warn("Redis cache init failed, continuing without cache", "error", err)
		cache = nil
	}

	// Repos
	log.Info("Setting up repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	ritualRepo := repos.NewRitualRepo(thePG, log)

	// Clients
	genaiClient, err := services.NewGenAIClient(cfg, log)
	genaiConfigured := err == nil
	if err != nil {
		log.Warn("GenAI client unavailable", "error", err)
	}
	qlooClient, err := services.NewQlooClient(cfg, log)
	qlooConfigured := err == nil
	if err != nil {
		log.Warn("Qloo client unavailable", "error", err)
	}

	// Services
	log.Info("Setting up services from main...")
	authService := services.NewAuthService(
		thePG,
		log,
		userRepo,
		cfg.JWTAccessSecret,
		cfg.JWTRefreshSecret,
		cfg.AccessTTL(),
		cfg.RefreshTTL(),
	)
	ritualService := services.NewRitualService(log, ritualRepo, genaiClient, qlooClient, cache)

	// Handlers
	log.Info("Setting up handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(authService)
	ritualHandler := handlers.NewRitualHandler(log, ritualService, genaiConfigured, qlooConfigured)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:      authHandler,
		AuthMiddleware:   authMiddleware,
		UserHandler:      userHandler,
		RitualHandler:    ritualHandler,
		CORSAllowOrigins: cfg.CORSAllowOrigins,
	})

	log.Info("Server listening", "port", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Server failed", "error", err)
	}
}
