package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-sync/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quote-sync/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quote-sync/internal/platform/config"
	"github.com/jsamuelsen/quote-sync/internal/platform/telemetry"
)

// DefaultRequestTimeout bounds API requests when RouterConfig.Timeout is unset.
const DefaultRequestTimeout = 30 * time.Second

// RouterConfig wires handlers and middleware settings into the engine.
type RouterConfig struct {
	Logger      *slog.Logger
	ServiceName string
	Auth        *config.AuthConfig
	RateLimit   *config.RateLimitConfig
	Timeout     time.Duration

	// SyncTimeout replaces Timeout for POST /api/v1/sync, which waits on
	// the remote source.
	SyncTimeout time.Duration

	Health        *handlers.HealthHandler
	Quotes        *handlers.QuoteHandler
	Sync          *handlers.SyncHandler
	Notifications *handlers.NotificationHandler
}

// SetupRouter installs the middleware chain and routes.
//
// Middleware order: recovery, context logger, request ID, correlation ID,
// OpenTelemetry, access log, rate limit. /api/v1 adds the request timeout
// and mutating routes add the write-scope guard.
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	engine.Use(
		middleware.Recovery(),
		middleware.ContextLogger(logger),
		middleware.RequestID(),
		middleware.CorrelationID(),
	)
	engine.Use(telemetry.Middleware(cfg.ServiceName)...)
	engine.Use(middleware.Logging())

	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		engine.Use(middleware.RateLimit(middleware.NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)))
	}

	if cfg.Health != nil {
		cfg.Health.RegisterRoutes(engine)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	var overrides map[string]time.Duration
	if cfg.SyncTimeout > 0 {
		overrides = map[string]time.Duration{"/api/v1/sync": cfg.SyncTimeout}
	}

	api := engine.Group("/api/v1", middleware.Timeout(timeout, overrides))
	write := api.Group("", middleware.RequireWriteScope(cfg.Auth))

	if cfg.Quotes != nil {
		cfg.Quotes.RegisterRoutes(api, write)
	}

	if cfg.Sync != nil {
		cfg.Sync.RegisterRoutes(api, write)
	}

	if cfg.Notifications != nil {
		cfg.Notifications.RegisterRoutes(api)
	}
}
