package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"presence-service/internal/handler"
	"presence-service/internal/metrics"
	"presence-service/internal/middleware"
	"presence-service/internal/service"
)

// Config holds router configuration
type Config struct {
	DB             *gorm.DB
	Redis          *redis.Client
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	ServiceName    string
	BasePath       string
	InternalAPIKey string
	AllowedOrigins []string

	Validator           middleware.TokenValidator
	PresenceService     service.PresenceService
	NotificationService service.NotificationService
	Jobs                handler.JobRunner
	// GeoState reports the geolocation breaker state on /ready. Optional.
	GeoState func() string
}

// Setup sets up the router with all routes
func Setup(cfg Config) *gin.Engine {
	r := gin.New()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(middleware.Metrics(cfg.Metrics))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	healthHandler := handler.NewHealthHandler(cfg.DB, cfg.Redis, cfg.GeoState)
	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)

	presenceHandler := handler.NewPresenceHandler(cfg.PresenceService, cfg.Logger)
	notificationHandler := handler.NewNotificationHandler(cfg.NotificationService, cfg.Logger)
	jobHandler := handler.NewJobHandler(cfg.Jobs, cfg.Logger)

	authMiddleware := middleware.AuthMiddleware(cfg.Validator)
	internalAuth := middleware.InternalAuthMiddleware(cfg.InternalAPIKey)

	api := r.Group(cfg.BasePath)
	{
		presence := api.Group("/presence")
		{
			presence.POST("", authMiddleware, presenceHandler.ReportPresence)
			presence.GET("/me", authMiddleware, presenceHandler.GetMyPresence)
			presence.GET("/online", internalAuth, presenceHandler.GetOnlineUsers)
		}

		notifications := api.Group("/notifications")
		notifications.Use(authMiddleware)
		{
			notifications.GET("", notificationHandler.GetNotifications)
			notifications.GET("/unread-count", notificationHandler.GetUnreadCount)
			notifications.PATCH("/:id/read", notificationHandler.MarkAsRead)
			notifications.POST("/read-all", notificationHandler.MarkAllAsRead)
		}

		internal := api.Group("/internal")
		internal.Use(internalAuth)
		{
			internal.GET("/jobs", jobHandler.ListJobs)
			internal.POST("/jobs/:name/run", jobHandler.RunJob)
		}
	}

	return r
}
