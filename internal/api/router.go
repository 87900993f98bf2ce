package api

import (
	"net/http"
	"time"

	"github.com/ayman-boop/ub-chat/internal/middleware"
	"github.com/ayman-boop/ub-chat/internal/observ"
	"github.com/ayman-boop/ub-chat/internal/realtime"
	"github.com/ayman-boop/ub-chat/internal/repository"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Threads  ThreadService
	Queries  QueryService
	Messages MessageService
	Auth     AuthService
	Hub      *realtime.Hub

	HealthChecks map[string]repository.HealthChecker

	JWTSecret   string
	CORSOrigins []string
	Logger      *zap.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		observ.GinLogger(cfg.Logger),
		observ.GinMetrics(),
		cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)

	threads := NewThreadHandler(cfg.Threads, cfg.Queries, cfg.Logger)
	messages := NewMessageHandler(cfg.Messages, cfg.Queries, cfg.Logger)
	authH := NewAuthHandler(cfg.Auth, cfg.Logger)
	users := NewUserHandler(cfg.Auth, cfg.Logger)
	health := NewHealthHandler(cfg.HealthChecks, cfg.Logger)
	ws := NewWSHandler(cfg.Hub, cfg.Messages, cfg.CORSOrigins, cfg.Logger)

	requireAuth := middleware.AuthMiddleware(cfg.JWTSecret, false)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	v1 := router.Group("/v1")
	v1.GET("/health", health.Check)
	v1.POST("/auth/signin", authH.Signin)
	v1.GET("/threads", threads.List)
	v1.GET("/threads/:slug", threads.GetBySlug)
	v1.GET("/messages/:id/replies", messages.Replies)

	// Authenticated
	v1.POST("/threads", requireAuth, threads.Create)
	v1.POST("/messages", requireAuth, messages.Create)
	v1.POST("/messages/:id/reactions", requireAuth, messages.React)
	v1.GET("/users/me", requireAuth, users.GetMe)
	v1.GET("/ws", middleware.AuthMiddleware(cfg.JWTSecret, true), ws.Serve)

	return router
}
