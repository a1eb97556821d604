package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/sanctuarylabs/sanctuary-backend/internal/handlers"
	"github.com/sanctuarylabs/sanctuary-backend/internal/middleware"
)

type RouterConfig struct {
	AuthHandler      *handlers.AuthHandler
	AuthMiddleware   *middleware.AuthMiddleware
	UserHandler      *handlers.UserHandler
	RitualHandler    *handlers.RitualHandler
	CORSAllowOrigins string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := strings.Split(cfg.CORSAllowOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/health", handlers.HealthCheck)
	router.POST("/signup", cfg.AuthHandler.Signup)
	router.POST("/signin", cfg.AuthHandler.Signin)
	router.POST("/refresh", cfg.AuthHandler.Refresh)

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	protected.GET("/me", cfg.UserHandler.GetMe)
	protected.POST("/change-password", cfg.AuthHandler.ChangePassword)
	protected.POST("/analyze-emotion", cfg.RitualHandler.AnalyzeEmotion)
	protected.POST("/get-ritual", cfg.RitualHandler.GetRitual)
	protected.GET("/rituals", cfg.RitualHandler.ListRituals)
	protected.POST("/feedback", cfg.RitualHandler.SubmitFeedback)

	return router
}
