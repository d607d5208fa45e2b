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

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/josh-kwaku/custody-ledger/internal/auth"
	"github.com/josh-kwaku/custody-ledger/internal/config"
	"github.com/josh-kwaku/custody-ledger/internal/fx"
	"github.com/josh-kwaku/custody-ledger/internal/handler"
	"github.com/josh-kwaku/custody-ledger/internal/logging"
	"github.com/josh-kwaku/custody-ledger/internal/notify"
	"github.com/josh-kwaku/custody-ledger/internal/repository"
	"github.com/josh-kwaku/custody-ledger/internal/service"
	"github.com/josh-kwaku/custody-ledger/internal/service/confirmation"
	"github.com/josh-kwaku/custody-ledger/internal/service/settlement"
)

const idempotencySweepInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Init("custody-ledger", cfg.LogLevel, cfg.AppEnv)
	defer logger.Sync()
	log := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Errorw("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) error {
	pool, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := repository.Migrate(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return err
	}
	log.Infow("migrations applied", "dir", cfg.MigrationsDir)

	db := repository.NewDB(pool, cfg.LockTimeout)

	accountRepo := repository.NewAccountRepository(pool)
	walletRepo := repository.NewWalletRepository(pool)
	transferRepo := repository.NewTransferRepository(pool)
	exchangeRepo := repository.NewExchangeRepository(pool)
	commissionRepo := repository.NewCommissionRepository(pool)
	currencyRepo := repository.NewCurrencyRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	idempotencyRepo := repository.NewIdempotencyRepository(pool)
	activityRepo := repository.NewActivityRepository(sqlx.NewDb(pool, "postgres"))

	health := handler.NewHealthHandler(pool.PingContext)

	var oracle fx.Oracle = fx.NewStoreOracle(repository.NewRateRepository(pool))
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		oracle = fx.NewRedisCache(rdb, oracle, cfg.RateCacheTTL, log)
		health.WithCheck("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	calc := fx.NewCalculator(cfg.ReferenceCurrency)
	refresher := fx.NewRefresher(oracle, calc, log, cfg.RateRefreshInterval)

	var sink notify.Sink = notify.NewStoreSink(notificationRepo)
	var dispatcher confirmation.Dispatcher = confirmation.NewLogDispatcher(log)
	var decisions *kafka.Reader

	if cfg.KafkaEnabled() {
		notificationWriter := newNotificationWriter(cfg.KafkaBrokers, cfg.KafkaNotificationTopic, log)
		defer notificationWriter.Close()
		approvalWriter := newApprovalWriter(cfg.KafkaBrokers, cfg.KafkaApprovalTopic)
		defer approvalWriter.Close()

		sink = notify.Fanout{sink, notify.NewKafkaSink(notificationWriter)}
		dispatcher = confirmation.NewKafkaDispatcher(approvalWriter)

		decisions = kafka.NewReader(kafka.ReaderConfig{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaGroupID,
			Topic:   cfg.KafkaDecisionTopic,
		})
		defer decisions.Close()
		log.Infow("kafka enabled", "brokers", cfg.KafkaBrokers)
	}

	settler := settlement.NewService(
		accountRepo, walletRepo, transferRepo, exchangeRepo,
		commissionRepo, currencyRepo, calc, sink, db, cfg,
	)
	gateway := confirmation.NewGateway(settler, accountRepo, dispatcher, cfg.ConfirmationWindow)
	accounts := service.NewAccountService(accountRepo, walletRepo, activityRepo, notificationRepo, calc, db)
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTExpiry)

	go refresher.Start(ctx)
	go sweepIdempotencyKeys(ctx, idempotencyRepo, log)
	if decisions != nil {
		go confirmation.NewConsumer(decisions, gateway, log).Start(ctx)
	}

	router := newRouter(handlers{
		health:    health,
		accounts:  handler.NewAccountHandler(accounts, tokens),
		transfers: handler.NewTransferHandler(settler, accounts, gateway),
		exchanges: handler.NewExchangeHandler(settler, accounts, gateway),
		fx:        handler.NewFXHandler(calc, currencyRepo),
		decisions: handler.NewDecisionHandler(gateway, cfg.DecisionSecret),
	}, idempotencyRepo, tokens)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("server started", "addr", addr)
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

	log.Infow("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Infow("server stopped")
	return nil
}

func sweepIdempotencyKeys(ctx context.Context, repo *repository.IdempotencyRepository, log *zap.SugaredLogger) {
	ticker := time.NewTicker(idempotencySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.CleanExpired(ctx)
			if err != nil {
				log.Warnw("idempotency sweep failed", "error", err)
				continue
			}
			if n > 0 {
				log.Infow("expired idempotency keys removed", "count", n)
			}
		}
	}
}
