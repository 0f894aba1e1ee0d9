package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"helpdesk-collab/backend/pkg/di"
	"helpdesk-collab/backend/pkg/errors"
	"helpdesk-collab/backend/pkg/health"
	"helpdesk-collab/backend/pkg/logger"
	"helpdesk-collab/backend/pkg/middleware"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Health    *health.Checker
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	logger.SetGlobal(container.Logger)

	cfg := container.Config
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Logger middleware first so every later middleware sees the
	// request-scoped logger.
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(corsMiddleware())

	checker := health.NewChecker(container.Logger, 30*time.Second)
	checker.RegisterDatabaseCheck(func() error {
		sqlDB, err := container.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Ping()
	})
	if container.TicketCache != nil {
		cache := container.TicketCache
		checker.RegisterRedisCheck(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return cache.Ping(ctx)
		})
	}
	checker.Start()

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Health:    checker,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	c := r.Container
	cfg := c.Config

	jwtAuth := middleware.JWTAuthMiddleware(c.JWTService, r.Logger)

	// Ticket creation gets its own limiter; the rest of the API is not
	// rate limited.
	createLimiter := middleware.NewRateLimiter(r.Logger, middleware.RateLimiterOptions{
		Limit:          rate.Limit(cfg.Security.CreateTicketRateLimit),
		Burst:          cfg.Security.CreateTicketBurst,
		ExpiryDuration: time.Hour,
		KeyFunc:        middleware.DefaultRateLimiterOptions().KeyFunc,
	})

	r.Engine.GET("/health", gin.WrapF(r.Health.HTTPHandler()))
	r.Engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})))

	v1 := r.Engine.Group("/api/v1")

	authRoutes := v1.Group("/auth")
	{
		authRoutes.POST("/signup", c.AuthHandler.Signup)
		authRoutes.POST("/login", c.AuthHandler.Login)
		authRoutes.GET("/me", jwtAuth, c.AuthHandler.Me)
	}

	protected := v1.Group("/")
	protected.Use(jwtAuth)
	{
		adminRoutes := protected.Group("/admin")
		adminRoutes.Use(middleware.RequireRole("admin"))
		{
			adminRoutes.PUT("/users/:id/role", c.AuthHandler.UpdateUserRole)
			adminRoutes.GET("/users/:id/violations", c.ViolationHandler.ListForUser)
		}

		ticketRoutes := protected.Group("/tickets")
		{
			ticketRoutes.POST("", createLimiter.Middleware(), c.TicketHandler.Create)
			ticketRoutes.GET("", c.TicketHandler.List)
			ticketRoutes.GET("/:id", c.TicketHandler.Get)
			ticketRoutes.PATCH("/:id", c.TicketHandler.Update)

			ticketRoutes.GET("/:id/messages", c.MessageHandler.List)
			ticketRoutes.POST("/:id/messages", c.MessageHandler.Send)
		}

		protected.PUT("/messages/:id/feedback", c.MessageHandler.SetFeedback)
	}

	// The socket carries its own token auth so failures can surface as
	// application close codes.
	r.Engine.GET("/ws/tickets/:id", c.WSHandler.ServeWs)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, Authorization, Origin, Upgrade, Connection, Cache-Control")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Upgrade, Connection")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
