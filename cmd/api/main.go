package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/attendance-ledger/internal/config"
	appHTTP "github.com/cmlabs-hris/attendance-ledger/internal/handler/http"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/cron"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-ledger/internal/repository/postgresql"
	anomalyService "github.com/cmlabs-hris/attendance-ledger/internal/service/anomaly"
	complianceService "github.com/cmlabs-hris/attendance-ledger/internal/service/compliance"
	ledgerService "github.com/cmlabs-hris/attendance-ledger/internal/service/ledger"
	scheduleService "github.com/cmlabs-hris/attendance-ledger/internal/service/schedule"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.App.LogLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDB(cfg.DatabaseURL())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := database.Bootstrap(ctx, db); err != nil {
		return err
	}

	tx := postgresql.NewTransactor(db)
	markRepo := postgresql.NewMarkRepository(db)
	workerRepo := postgresql.NewWorkerRepository(db)
	siteRepo := postgresql.NewSiteRepository(db)
	entryRepo := postgresql.NewScheduleEntryRepository(db)
	alertRepo := postgresql.NewComplianceAlertRepository(db)
	anomalyRepo := postgresql.NewAnomalyRepository(db)
	hoursRepo := postgresql.NewHRHoursRepository(db)

	hub := sse.NewHub()

	anomalySvc := anomalyService.NewAnomalyService(anomalyRepo, markRepo, entryRepo, hub, cfg.Policy, cfg.App.Timezone)
	ledgerSvc := ledgerService.NewLedgerService(tx, markRepo, workerRepo, siteRepo, anomalySvc)

	engine := complianceService.NewEngine(tx, entryRepo, alertRepo, workerRepo, hoursRepo).PublishTo(hub)
	dispatcher := complianceService.NewDispatcher(engine, cfg.Compliance.Workers)
	dispatcher.Start(ctx)

	scheduleSvc := scheduleService.NewScheduleService(entryRepo, workerRepo, dispatcher)

	scheduler := cron.NewScheduler(ctx)
	cron.NewLedgerJobs(ledgerSvc, alertRepo, hub).RegisterJobs(scheduler, cfg.Jobs.VerifyInterval)
	cron.NewComplianceJobs(entryRepo, dispatcher, cfg.App.Timezone).RegisterJobs(scheduler, cfg.Jobs.SweepInterval)
	scheduler.Start()

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)

	router := appHTTP.NewRouter(
		appHTTP.RouterConfig{
			Version:     version,
			Env:         cfg.App.Env,
			LogLevel:    cfg.App.LogLevel,
			CORSOrigins: cfg.App.CORSOrigins,
		},
		JWTService,
		appHTTP.Handlers{
			Mark:       appHTTP.NewMarkHandler(ledgerSvc),
			Schedule:   appHTTP.NewScheduleHandler(scheduleSvc),
			Compliance: appHTTP.NewComplianceHandler(engine, anomalySvc),
			Events:     appHTTP.NewEventsHandler(hub, JWTService),
		},
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Server running", "addr", server.Addr, "env", cfg.App.Env, "version", version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			stop()
			scheduler.Stop()
			<-dispatcher.Done()
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown", "error", err)
	}
	scheduler.Stop()

	// Queued recomputations finish before the pool closes.
	select {
	case <-dispatcher.Done():
	case <-shutdownCtx.Done():
		slog.Warn("Compliance dispatcher did not drain before shutdown deadline")
	}
	return nil
}
