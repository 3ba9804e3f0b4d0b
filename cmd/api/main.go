package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/resto-planning/pointage-backend-go/internal/config"
	appHTTP "github.com/resto-planning/pointage-backend-go/internal/handler/http"
	"github.com/resto-planning/pointage-backend-go/internal/pkg/cron"
	"github.com/resto-planning/pointage-backend-go/internal/pkg/database"
	"github.com/resto-planning/pointage-backend-go/internal/pkg/jwt"
	"github.com/resto-planning/pointage-backend-go/internal/pkg/sse"
	"github.com/resto-planning/pointage-backend-go/internal/repository/postgresql"
	anomalyService "github.com/resto-planning/pointage-backend-go/internal/service/anomaly"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.App.SlogLevel()})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolOptions{
		MaxConns:        cfg.Database.MaxConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}
	defer db.Close()

	rules, err := cfg.Rules()
	if err != nil {
		return err
	}

	shiftRepo := postgresql.NewShiftRepository(db)
	pointageRepo := postgresql.NewPointageRepository(db)
	employeeRepo := postgresql.NewEmployeeRepository(db)

	anomalySvc := anomalyService.NewAnomalyService(
		shiftRepo,
		pointageRepo,
		employeeRepo,
		rules,
		anomalyService.WithReportCache(cfg.Anomaly.ReportCacheSize, cfg.Anomaly.ReportCacheTTL),
		anomalyService.WithRetry(uint(cfg.Anomaly.FetchRetryAttempts), 200*time.Millisecond),
		anomalyService.WithReadTx(postgresql.ReadSnapshot(db)),
	)

	JWTService := jwt.NewJWTService(cfg.JWT.Secret)
	hub := sse.NewHub()

	scheduler := cron.NewScheduler()
	cron.NewAnomalyJobs(anomalySvc, hub, cfg.Anomaly.LiveAlertInterval).RegisterJobs(scheduler)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	anomalyHandler := appHTTP.NewAnomalyHandler(anomalySvc, JWTService, hub)
	router := appHTTP.NewRouter(cfg, JWTService, anomalyHandler)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Request contexts end with the signal so open streams let Shutdown finish.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server running", "addr", server.Addr, "env", cfg.App.Env, "timezone", cfg.Anomaly.Timezone)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
