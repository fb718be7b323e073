package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marketplace/adminpanel/internal/api"
	"github.com/marketplace/adminpanel/internal/cache"
	"github.com/marketplace/adminpanel/internal/config"
	"github.com/marketplace/adminpanel/internal/ingestion"
	"github.com/marketplace/adminpanel/internal/logger"
	"github.com/marketplace/adminpanel/internal/reconciliation"
	"github.com/marketplace/adminpanel/internal/repository"
	"github.com/marketplace/adminpanel/internal/resolution"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	log.WithField("path", cfg.DBPath).Info("initializing database")
	db, err := repository.InitDB(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("init db")
	}
	defer db.Close()

	// Create repositories.
	escrowRepo := repository.NewEscrowRepo(db)
	disputeRepo := repository.NewDisputeRepo(db)
	batchRepo := repository.NewBatchRepo(db)

	// Create services.
	opts := []resolution.Option{resolution.WithTopUrgentLimit(cfg.Disputes.TopUrgentLimit)}
	var ingestOpts []ingestion.Option
	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		client, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		cancel()
		if err != nil {
			log.WithError(err).Warn("redis unavailable, stats cache disabled")
		} else {
			statsCache := cache.NewRedisCache(client, cfg.Redis.StatsTTL)
			defer statsCache.Close()
			opts = append(opts, resolution.WithCache(statsCache))
			ingestOpts = append(ingestOpts, ingestion.WithCache(statsCache))
			log.WithField("addr", cfg.Redis.Addr).Info("stats cache enabled")
		}
	}

	resolutionSvc := resolution.NewService(disputeRepo, escrowRepo, log, opts...)
	ingestionSvc := ingestion.NewService(batchRepo, disputeRepo, escrowRepo, log, ingestOpts...)
	auditSvc := reconciliation.NewService(escrowRepo, disputeRepo, log)

	// Seed if DB is empty.
	count, err := disputeRepo.Count()
	if err != nil {
		log.WithError(err).Fatal("count disputes")
	}
	if count == 0 {
		log.WithField("dir", cfg.SeedDir).Info("database is empty, seeding")
		if err := ingestionSvc.Seed(cfg.SeedDir); err != nil {
			log.WithError(err).Warn("seed failed")
		}
	} else {
		log.WithField("disputes", count).Info("database already seeded")
	}

	router := api.NewRouter(api.Deps{
		EscrowRepo: escrowRepo,
		Resolution: resolutionSvc,
		Ingestion:  ingestionSvc,
		Audit:      auditSvc,
		Log:        log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("admin panel API listening on /api/v1")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("shutdown")
	}
	log.Info("server stopped")
}
