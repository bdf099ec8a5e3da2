package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appledger "github.com/finledger/backend/internal/application/ledger"
	"github.com/finledger/backend/internal/infrastructure/auth"
	"github.com/finledger/backend/internal/infrastructure/config"
	"github.com/finledger/backend/internal/infrastructure/lock"
	"github.com/finledger/backend/internal/infrastructure/logger"
	"github.com/finledger/backend/internal/infrastructure/notification"
	"github.com/finledger/backend/internal/infrastructure/persistence"
	"github.com/finledger/backend/internal/infrastructure/scheduler"
	"github.com/finledger/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// version is set at build time via -ldflags
var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting finledger backend",
		zap.String("env", cfg.App.Env),
		zap.String("version", version))

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, log, logger.MapGormLogLevel(cfg.Log.Level))
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	sweepLock, err := lock.NewRedisSweepLock(cfg.Redis, cfg.Sweep, log)
	if err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}
	defer func() { _ = sweepLock.Close() }()

	txnRepo := persistence.NewGormTransactionRepository(db.DB)
	batchRepo := persistence.NewGormPaymentBatchRepository(db.DB)
	tmplRepo := persistence.NewGormRecurringTemplateRepository(db.DB)
	auditRepo := persistence.NewGormAuditLogRepository(db.DB)
	costCenters := persistence.NewGormCostCenterDirectory(db.DB)
	dispatcher := notification.NewEmailDispatcher(cfg.SMTP, cfg.Approval, log)
	audit := appledger.NewAuditRecorder(auditRepo, log)

	services := router.Services{
		Transactions: appledger.NewTransactionService(txnRepo, batchRepo, costCenters, audit),
		Batches:      appledger.NewBatchService(batchRepo, txnRepo, audit),
		Approvals: appledger.NewApprovalService(
			txnRepo, batchRepo, costCenters, dispatcher, audit, log,
			cfg.Approval.TransactionTokenTTL, cfg.Approval.BatchTokenTTL),
		Recurrence: appledger.NewRecurrenceService(tmplRepo, costCenters, audit, log, sweepLock),
		Audit:      appledger.NewAuditService(auditRepo),
	}

	engine := router.Setup(router.Config{
		AppConfig:  cfg,
		Logger:     log,
		DB:         db,
		JWTService: auth.NewJWTService(cfg.JWT),
		Services:   services,
		Version:    version,
	})

	var sweeper *scheduler.SweepScheduler
	if cfg.Sweep.Enabled {
		sweeper = scheduler.NewSweepScheduler(services.Recurrence, cfg.Sweep, log)
		sweeper.Start()
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", zap.String("signal", sig.String()))

	if sweeper != nil {
		sweeper.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	log.Info("server stopped")
}
