package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"helpdesk-collab/backend/internal/models"
	"helpdesk-collab/backend/pkg/config"
	"helpdesk-collab/backend/pkg/di"
	"helpdesk-collab/backend/pkg/logger"
	"helpdesk-collab/backend/pkg/observability"
	"helpdesk-collab/backend/pkg/router"
	"helpdesk-collab/backend/pkg/secrets"
)

func main() {
	// Load environment variables
	_ = godotenv.Load()

	cfg := config.New()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"
	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("Starting helpdesk backend", "env", cfg.Server.Env)

	// Resolve sensitive config through the secrets manager; it falls back
	// to the environment when Vault is not configured.
	secretManager, err := secrets.New(log)
	if err != nil {
		log.LogError(err, "Failed to initialize secrets manager")
		os.Exit(1)
	}
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	cfg.JWT.Secret = secretManager.GetSecretWithDefault(bootCtx, "JWT_SECRET", cfg.JWT.Secret)
	cfg.Hooks.Token = secretManager.GetSecretWithDefault(bootCtx, "WEBHOOK_TOKEN", cfg.Hooks.Token)
	cfg.Safety.APIKey = secretManager.GetSecretWithDefault(bootCtx, "SAFETY_SERVICE_API_KEY", cfg.Safety.APIKey)
	bootCancel()

	if cfg.JWT.Secret == "" {
		log.Error("JWT_SECRET is not configured")
		os.Exit(1)
	}

	shutdownTracing, err := observability.SetupTracing("helpdesk-backend")
	if err != nil {
		log.LogError(err, "Failed to set up tracing")
		os.Exit(1)
	}
	defer shutdownTracing()

	// Initialize database
	db, err := config.NewDB()
	if err != nil {
		log.LogError(err, "Failed to initialize database")
		os.Exit(1)
	}

	// Auto-migrate the schema
	if err := db.AutoMigrate(&models.User{}, &models.Ticket{}, &models.Message{}, &models.Violation{}); err != nil {
		log.LogError(err, "Failed to migrate database")
		os.Exit(1)
	}

	// Composite index backing ticket-room history reads
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_messages_ticket_ts ON messages(ticket_id, timestamp)").Error; err != nil {
		log.LogError(err, "Failed to create message index", "index", "idx_messages_ticket_ts")
	}

	container := di.New(db, cfg, log)

	meterProvider, err := observability.SetupMeterProvider(container.Registry)
	if err != nil {
		log.LogError(err, "Failed to set up meter provider")
		os.Exit(1)
	}
	defer func() { _ = meterProvider.Shutdown(context.Background()) }()

	r := router.New(container)
	r.SetupRoutes()

	// No read/write timeouts on the server itself: the websocket endpoint
	// holds connections open indefinitely and does its own keepalive.
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r.Engine,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "Server failed to start")
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	container.Hub.CloseAll("server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}

	log.Info("Server exited gracefully")
}
