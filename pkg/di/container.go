package di

import (
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"helpdesk-collab/backend/internal/api"
	"helpdesk-collab/backend/internal/hooks"
	"helpdesk-collab/backend/internal/repository"
	"helpdesk-collab/backend/internal/safety"
	"helpdesk-collab/backend/internal/service"
	"helpdesk-collab/backend/internal/ws"
	"helpdesk-collab/backend/pkg/cache"
	"helpdesk-collab/backend/pkg/config"
	"helpdesk-collab/backend/pkg/jwt"
	"helpdesk-collab/backend/pkg/logger"
	"helpdesk-collab/backend/pkg/observability"
)

// Container wires the application object graph. Everything with a lifetime
// lives here; handlers and services hold references, never globals.
type Container struct {
	DB             *gorm.DB
	Logger         *logger.Logger
	Config         *config.Config
	Metrics        *observability.Metrics
	Registry       *prometheus.Registry
	JWTService     *jwt.Service
	TicketCache    *cache.TicketCache
	Gate           *safety.Gate
	Hub            *ws.Hub
	UserService    *service.UserService
	TicketService  *service.TicketService
	MessageService *service.MessageService
	Notifier       *hooks.Notifier
	AuthHandler      *api.AuthHandler
	TicketHandler    *api.TicketHandler
	MessageHandler   *api.MessageHandler
	ViolationHandler *api.ViolationHandler
	WSHandler        *ws.Handler
}

// New builds the full dependency graph from an open database handle and
// loaded configuration.
func New(db *gorm.DB, cfg *config.Config, log *logger.Logger) *Container {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry)

	ticketRepo := repository.NewTicketRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	violationRepo := repository.NewViolationRepository(db)
	userRepo := repository.NewUserRepository(db)

	var ticketCache *cache.TicketCache
	var cacheForService service.TicketCache
	if cfg.Cache.Enabled {
		ticketCache = cache.NewTicketCache(cfg, log)
		cacheForService = ticketCache
	}

	notifier := hooks.NewNotifier(hooks.Config{
		NotificationURL:  cfg.Hooks.NotificationURL,
		SummarizationURL: cfg.Hooks.SummarizationURL,
		Token:            cfg.Hooks.Token,
		Timeout:          cfg.Hooks.Timeout,
	}, metrics, log)

	safetyClient := safety.NewServiceClient(safety.ClientConfig{
		BaseURL: cfg.Safety.BaseURL,
		APIKey:  cfg.Safety.APIKey,
		Timeout: cfg.Safety.Timeout,
	}, log)

	gate := safety.NewGate(safetyClient, safetyClient, ticketRepo, violationRepo, safety.Limits{
		MaxTitleLen:       cfg.Limits.MaxTitleLen,
		MaxDescriptionLen: cfg.Limits.MaxDescriptionLen,
	}, metrics, log)

	hub := ws.NewHub(metrics, log)

	userService := service.NewUserService(userRepo, jwtService)
	ticketService := service.NewTicketService(ticketRepo, cacheForService, notifier, log)
	messageService := service.NewMessageService(messageRepo, ticketService, hub, notifier, metrics, log)

	return &Container{
		DB:             db,
		Logger:         log,
		Config:         cfg,
		Metrics:        metrics,
		Registry:       registry,
		JWTService:     jwtService,
		TicketCache:    ticketCache,
		Gate:           gate,
		Hub:            hub,
		UserService:    userService,
		TicketService:  ticketService,
		MessageService: messageService,
		Notifier:       notifier,
		AuthHandler:      api.NewAuthHandler(userService, log),
		TicketHandler:    api.NewTicketHandler(gate, ticketService, log),
		MessageHandler:   api.NewMessageHandler(messageService, log),
		ViolationHandler: api.NewViolationHandler(violationRepo, log),
		WSHandler: ws.NewHandler(hub, ticketService, messageService, jwtService,
			cfg.Security.AllowedOrigins, log),
	}
}
