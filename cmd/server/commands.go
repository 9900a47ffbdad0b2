package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"presence-service/internal/client"
	"presence-service/internal/database"
	"presence-service/internal/metrics"
	"presence-service/internal/router"
	"presence-service/internal/telemetry"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("Starting Presence Service",
		zap.String("port", cfg.Server.Port),
		zap.String("mode", cfg.Server.Mode),
		zap.String("base_path", cfg.Server.BasePath),
		zap.String("events_driver", cfg.Events.Driver),
		zap.Bool("jobs_enabled", cfg.Jobs.Enabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Init(ctx, cfg.Telemetry, logger)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := database.Migrate(ctx, a.db, logger); err != nil {
		logger.Warn("Failed to run database migrations", zap.Error(err))
	} else {
		logger.Info("Database migrations completed")
	}

	collector := metrics.NewBusinessMetricsCollector(a.db, a.metrics, logger, 30*time.Second)
	collector.Start()
	defer collector.Stop()

	r := router.Setup(router.Config{
		DB:                  a.db,
		Redis:               a.redis,
		Logger:              logger,
		Metrics:             a.metrics,
		ServiceName:         cfg.Telemetry.ServiceName,
		BasePath:            cfg.Server.BasePath,
		InternalAPIKey:      cfg.Auth.InternalAPIKey,
		AllowedOrigins:      cfg.CORS.AllowedOrigins,
		Validator:           client.NewAuthServiceValidator(cfg.Auth.ServiceURL, cfg.Auth.JWTSecret, cfg.Auth.Timeout, logger, a.metrics),
		PresenceService:     a.presenceService,
		NotificationService: a.notificationService,
		Jobs:                a.scheduler,
		GeoState:            a.geoState(),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	a.scheduler.Start()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Presence Service started successfully", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	case err := <-serverErr:
		logger.Error("Server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	a.scheduler.Stop(shutdownCtx)
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("Failed to flush traces", zap.Error(err))
	}

	logger.Info("Server exited gracefully")
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	db, err := database.NewWithRetry(ctx, database.Config{
		DSN:             cfg.Database.GetDSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, 5, 3*time.Second, logger)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.Migrate(ctx, db, logger); err != nil {
		return err
	}
	logger.Info("Database migrations completed")
	return nil
}

// runJob runs a single job in the foreground, for use from Kubernetes CronJobs.
// The result is printed as JSON; a job-level failure yields a non-zero exit code.
func runJob(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.scheduler.Run(ctx, args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func listJobs(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSCHEDULE")
	for _, info := range a.scheduler.List() {
		schedule := info.Schedule
		if !info.Scheduled {
			schedule = "manual"
		}
		fmt.Fprintf(w, "%s\t%s\n", info.Name, schedule)
	}
	return w.Flush()
}
