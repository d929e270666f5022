package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	_ "github.com/noah-isme/badger-tutors-api/api/swagger"
	"github.com/noah-isme/badger-tutors-api/internal/handler"
	"github.com/noah-isme/badger-tutors-api/internal/repository"
	"github.com/noah-isme/badger-tutors-api/internal/service"
	"github.com/noah-isme/badger-tutors-api/pkg/cache"
	"github.com/noah-isme/badger-tutors-api/pkg/config"
	"github.com/noah-isme/badger-tutors-api/pkg/database"
	"github.com/noah-isme/badger-tutors-api/pkg/events"
	"github.com/noah-isme/badger-tutors-api/pkg/export"
	"github.com/noah-isme/badger-tutors-api/pkg/hashing"
	"github.com/noah-isme/badger-tutors-api/pkg/logger"
	"github.com/noah-isme/badger-tutors-api/pkg/storage"
)

// @title Badger Tutors API
// @version 1.0.0
// @description Peer tutoring marketplace: escrowed session payments, review gate and student registry.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	readiness := map[string]handler.ReadinessCheck{}

	stores, db, err := openStores(cfg, logr)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		readiness["database"] = db.PingContext
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	var cacheBackend service.CacheRepository
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, "badger-tutors:")
		defer cacheRepo.Close()
		cacheBackend = cacheRepo
		readiness["cache"] = cacheRepo.Ping
	}

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheBackend, metrics, cfg.Reviews.RatingCacheTTL, logr)

	dispatcher, err := newDispatcher(cfg, logr)
	if err != nil {
		return err
	}
	dispatcher.Start(ctx)
	defer func() {
		if err := dispatcher.Stop(); err != nil {
			logr.Warn("event sink close failed", zap.Error(err))
		}
	}()

	archive, err := storage.NewArchive(cfg.Receipts.Dir)
	if err != nil {
		return fmt.Errorf("open receipt archive: %w", err)
	}

	validate := validator.New()
	hasher := hashing.New(cfg.Hashing.Salt)

	escrowSvc := service.NewEscrowService(stores.Sessions, stores.SessionEvents, dispatcher, metrics, validate, logr, service.EscrowConfig{
		ConfirmationWindow: cfg.Escrow.ConfirmationWindow,
	})
	reviewSvc := service.NewReviewService(stores.Reviews, stores.Sessions, cacheSvc, hasher, dispatcher, metrics, validate, logr, service.ReviewConfig{
		MinTextLength:  cfg.Reviews.MinTextLength,
		MaxTextLength:  cfg.Reviews.MaxTextLength,
		RatingCacheTTL: cfg.Reviews.RatingCacheTTL,
	})
	registrySvc := service.NewRegistryService(stores.Registry, hasher, validate, logr, service.RegistryConfig{
		EmailDomain: cfg.Registry.EmailDomain,
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	receiptSvc := service.NewReceiptService(stores.Sessions, export.NewPDFExporter(), archive,
		storage.NewLinkSigner(cfg.Receipts.LinkSecret, cfg.Receipts.LinkTTL, nil), logr, nil)

	if cfg.Escrow.SweepEnabled {
		escrowSvc.StartAutoRelease(ctx, cfg.Escrow.SweepInterval)
		logr.Info("auto-release sweep scheduled", zap.Duration("interval", cfg.Escrow.SweepInterval))
	}

	router := newRouter(cfg, logr, routeDeps{
		metrics:  metrics,
		registry: registrySvc,
		sessions: handler.NewSessionHandler(escrowSvc),
		admin:    handler.NewAdminHandler(escrowSvc),
		reviews:  handler.NewReviewHandler(reviewSvc),
		receipts: handler.NewReceiptHandler(receiptSvc, cfg.APIPrefix),
		health:   handler.NewMetricsHandler(metrics, readiness),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStores(cfg *config.Config, logr *zap.Logger) (repository.Stores, *sqlx.DB, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		logr.Warn("using in-memory storage; data is lost on restart")
		return repository.NewMemoryStores(), nil, nil
	case config.StorageDriverPostgres, "":
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return repository.Stores{}, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := database.Migrate(db, cfg.Storage.MigrationsPath, cfg.Database.Name); err != nil {
			_ = db.Close()
			return repository.Stores{}, nil, err
		}
		return repository.NewPostgresStores(db), db, nil
	default:
		return repository.Stores{}, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func newDispatcher(cfg *config.Config, logr *zap.Logger) (*events.Dispatcher, error) {
	var sink events.Sink = events.LogSink{Logger: logr}
	if len(cfg.Events.Brokers) > 0 {
		kafkaSink, err := events.NewKafkaSink(events.KafkaConfig{Brokers: cfg.Events.Brokers, Topic: cfg.Events.Topic})
		if err != nil {
			return nil, fmt.Errorf("init kafka sink: %w", err)
		}
		sink = kafkaSink
	}
	return events.NewDispatcher(sink, events.DispatcherConfig{
		Workers:    cfg.Events.Workers,
		MaxRetries: cfg.Events.MaxRetries,
		RetryDelay: cfg.Events.RetryDelay,
	}, logr), nil
}
