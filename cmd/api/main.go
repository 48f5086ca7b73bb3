package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"social-custody-gateway/config"
	httpHandler "social-custody-gateway/internal/adapter/http/handler"
	"social-custody-gateway/internal/adapter/ledger/rpc"
	"social-custody-gateway/internal/adapter/storage/migrations"
	pgStorage "social-custody-gateway/internal/adapter/storage/postgres"
	redisStorage "social-custody-gateway/internal/adapter/storage/redis"
	sqliteStorage "social-custody-gateway/internal/adapter/storage/sqlite"
	"social-custody-gateway/internal/core/ports"
	"social-custody-gateway/internal/dispatch"
	"social-custody-gateway/internal/observability"
	"social-custody-gateway/internal/service"
	"social-custody-gateway/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// storage bundles the repositories of whichever backend is configured.
type storage struct {
	wallets   ports.WalletRepository
	accounts  ports.SocialAccountRepository
	transfers ports.TransferRepository
	audit     ports.AuditRepository
	health    ports.HealthChecker
	close     func()
}

func openStorage(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*storage, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := sqliteStorage.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("SQLite opened")
		return &storage{
			wallets:   sqliteStorage.NewWalletRepo(db),
			accounts:  sqliteStorage.NewSocialAccountRepo(db),
			transfers: sqliteStorage.NewTransferRepo(db),
			audit:     sqliteStorage.NewAuditRepo(db),
			health:    sqliteStorage.NewHealthCheck(db),
			close:     func() { _ = db.Close() },
		}, nil

	default:
		if err := migrations.RunPostgres(cfg.DSN()); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		pool, err := pgStorage.NewPool(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("PostgreSQL connected")
		return &storage{
			wallets:   pgStorage.NewWalletRepo(pool),
			accounts:  pgStorage.NewSocialAccountRepo(pool),
			transfers: pgStorage.NewTransferRepo(pool),
			audit:     pgStorage.NewAuditRepository(pool),
			health:    pgStorage.NewHealthCheck(pool),
			close:     pool.Close,
		}, nil
	}
}

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("SCG_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("driver", cfg.Database.Driver).
		Msg("Starting Social Custody Gateway")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret is required")
	}

	ctx := context.Background()

	store, err := openStorage(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	checkers := []ports.HealthChecker{store.health}

	var rateLimitStore *redisStorage.RateLimitStore
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		checkers = append(checkers, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis disabled, tool calls are not rate limited")
	}

	cipher, err := service.NewAESCipher(cfg.Cipher.MasterSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize cipher")
	}

	ledger := rpc.NewClient(cfg.Ledger, logger.Component(log, "ledger"), rpc.WithMetrics(metrics))
	checkers = append(checkers, rpc.NewHealthCheck(ledger))

	auditSvc := service.NewAuditService(store.audit, logger.Component(log, "audit"))
	vaultSvc := service.NewVaultService(store.wallets, store.accounts, cipher, auditSvc, logger.Component(log, "vault"))
	transferSvc := service.NewTransferService(ledger, vaultSvc, store.transfers, auditSvc, logger.Component(log, "transfers"))
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	dispatcher := dispatch.New(
		dispatch.Operations(dispatch.Deps{Vault: vaultSvc, Transfers: transferSvc, Ledger: ledger}),
		logger.Component(log, "dispatch"),
		dispatch.WithTimeout(cfg.Dispatcher.Timeout),
		dispatch.WithMetrics(metrics),
	)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Dispatcher:     dispatcher,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		RateLimit:      cfg.RateLimit,
		HealthCheckers: checkers,
		Metrics:        metrics,
		Gatherer:       reg,
		Logger:         logger.Component(log, "http"),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	// In-flight transfers may still be confirming; give them the dispatcher
	// timeout to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Dispatcher.Timeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
