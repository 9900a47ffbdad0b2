package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"presence-service/internal/client"
	"presence-service/internal/config"
	"presence-service/internal/database"
	"presence-service/internal/events"
	"presence-service/internal/job"
	"presence-service/internal/metrics"
	"presence-service/internal/repository"
	"presence-service/internal/service"
)

// app holds the dependencies shared by the serve and job commands.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *gorm.DB
	redis     *redis.Client
	metrics   *metrics.Metrics
	publisher events.Publisher
	geo       *client.GeoClient
	scheduler *job.Scheduler

	presenceService     service.PresenceService
	notificationService service.NotificationService

	stopDBStats chan struct{}
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewWithLogger(logger),
	}

	db, err := database.NewWithRetry(ctx, database.Config{
		DSN:             cfg.Database.GetDSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, 5, 3*time.Second, logger)
	if err != nil {
		return nil, err
	}
	a.db = db
	logger.Info("Database connected successfully")

	if err := database.RegisterMetricsCallbacks(db, a.metrics); err != nil {
		logger.Warn("Failed to register database metrics callbacks", zap.Error(err))
	}
	a.stopDBStats = database.StartDBStatsCollector(db, a.metrics, 15*time.Second)

	// Redis backs caches and the default event bus; the service degrades without it.
	rdb, err := database.NewRedis(cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis unavailable, caching and redis events disabled", zap.Error(err))
	} else {
		a.redis = rdb
	}

	publisher, err := events.New(cfg.Events, a.redis, logger)
	if err != nil {
		logger.Warn("Event bus unavailable, events disabled", zap.Error(err))
		publisher = events.Noop{}
	}
	a.publisher = publisher

	presenceRepo := repository.NewPresenceRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	scoreRepo := repository.NewScoreRepository(db)
	decayRepo := repository.NewDecayRepository(db)

	var geo client.GeoLocator
	if cfg.Geo.Enabled {
		a.geo = client.NewGeoClient(cfg.Geo, a.redis, logger, a.metrics)
		geo = a.geo
	}

	a.presenceService = service.NewPresenceService(presenceRepo, profileRepo, geo, publisher, a.metrics, logger)
	a.notificationService = service.NewNotificationService(notificationRepo, a.redis, logger)

	notifier := job.NewNotifier(publisher, a.notificationService, a.metrics, logger)
	a.scheduler = job.NewScheduler(a.metrics, logger, cfg.Jobs.RunTimeout)

	jobs := []struct {
		job      job.Job
		enabled  bool
		schedule string
	}{
		{
			job:      job.NewInactivityScanner(cfg.Jobs.Inactivity, presenceRepo, scoreRepo, notificationRepo, notifier, a.metrics, logger),
			enabled:  cfg.Jobs.Inactivity.Enabled,
			schedule: cfg.Jobs.Inactivity.Schedule,
		},
		{
			job:      job.NewStaleScoreScanner(cfg.Jobs.StaleScore, scoreRepo, notificationRepo, notifier, a.metrics, logger),
			enabled:  cfg.Jobs.StaleScore.Enabled,
			schedule: cfg.Jobs.StaleScore.Schedule,
		},
		{
			job:      job.NewDecayJob(decayRepo, cfg.Decay, notifier, a.metrics, logger),
			enabled:  cfg.Jobs.Decay.Enabled,
			schedule: cfg.Jobs.Decay.Schedule,
		},
		{
			job:      job.NewPresenceSweeper(presenceRepo, cfg.Presence.StaleAfter, a.metrics, logger),
			enabled:  cfg.Jobs.PresenceSweep.Enabled,
			schedule: cfg.Jobs.PresenceSweep.Schedule,
		},
	}
	for _, j := range jobs {
		if err := a.scheduler.Register(j.job, jobSchedule(cfg.Jobs.Enabled, j.enabled, j.schedule)); err != nil {
			a.Close()
			return nil, err
		}
	}

	return a, nil
}

// jobSchedule returns the cron spec for a job, or "" when it may only be run manually.
func jobSchedule(jobsEnabled, jobEnabled bool, schedule string) string {
	if !jobsEnabled || !jobEnabled {
		return ""
	}
	return schedule
}

func (a *app) geoState() func() string {
	if a.geo == nil {
		return nil
	}
	return a.geo.State
}

// Close releases connections in reverse order of creation.
func (a *app) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close redis", zap.Error(err))
		}
	}
	if a.stopDBStats != nil {
		close(a.stopDBStats)
	}
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			a.logger.Warn("Failed to close database", zap.Error(err))
		}
	}
}
