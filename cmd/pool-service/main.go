package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"github.com/radieske/wager-pool/internal/pool-service/cache"
	phttp "github.com/radieske/wager-pool/internal/pool-service/http"
	"github.com/radieske/wager-pool/internal/pool-service/metrics"
	"github.com/radieske/wager-pool/internal/pool-service/producer"
	"github.com/radieske/wager-pool/internal/pool-service/repo"
	"github.com/radieske/wager-pool/internal/shared/auth"
	sharedcache "github.com/radieske/wager-pool/internal/shared/cache"
	"github.com/radieske/wager-pool/internal/shared/config"
	"github.com/radieske/wager-pool/internal/shared/db"
	"github.com/radieske/wager-pool/internal/shared/kafka"
	"github.com/radieske/wager-pool/internal/shared/logger"
	sharedmetrics "github.com/radieske/wager-pool/internal/shared/metrics"
	"github.com/radieske/wager-pool/internal/wager"
)

func main() {
	cfg := config.LoadService("pool-service")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	var checks []sharedmetrics.HealthCheck

	// Store: Postgres (padrão) ou memória para ENV local
	var store wager.Store
	switch cfg.Store {
	case "memory":
		store = repo.NewMemory()
		log.Warn("using in-memory store, state is lost on restart")
	case "postgres":
		if cfg.AutoMigrate {
			applied, err := db.Migrate(ctx, cfg.PostgresDSN)
			if err != nil {
				log.Fatal("migrations", zap.Error(err))
			}
			log.Info("migrations checked", zap.Bool("applied", applied))
		}
		pg, err := db.ConnectPostgres(cfg.PostgresDSN)
		if err != nil {
			log.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()
		store = repo.NewPostgres(pg)
		checks = append(checks, sharedmetrics.HealthCheck{Name: "postgres", Check: pg.PingContext})
		log.Info("postgres connected")
	}

	// Redis: cache de pools + replay guard (opcional com REDIS_ADDR vazio)
	var (
		poolCache phttp.PoolCache
		replay    phttp.ReplayGuard
	)
	if cfg.RedisAddr != "" {
		rdb, err := sharedcache.ConnectRedis(ctx, cfg.Redis())
		if err != nil {
			log.Fatal("failed to connect redis", zap.Error(err))
		}
		defer rdb.Close()
		poolCache = cache.NewPoolCache(rdb, cfg.PoolCacheTTL)
		replay = cache.NewReplayGuard(rdb, 2*cfg.ReplayWindow)
		checks = append(checks, sharedmetrics.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		log.Info("redis connected")
	} else {
		log.Warn("REDIS_ADDR empty: replay guard and pool cache disabled")
	}

	// Kafka: um writer para os três tópicos (Topic por mensagem)
	var notifier wager.Notifier
	if cfg.KafkaBrokers != "" {
		writer := kafka.NewWriter(cfg.KafkaBrokers, "")
		defer writer.Close()
		notifier = producer.NewKafkaPublisher(writer, producer.Topics{
			PoolInitialized: cfg.TopicPoolInitialized,
			BetPlaced:       cfg.TopicBetPlaced,
			BetSettled:      cfg.TopicBetSettled,
		}, log)
		log.Info("kafka writer ready", zap.String("brokers", cfg.KafkaBrokers))
	}

	engine := wager.NewEngine(store, log, notifier, metrics.NewEngine())

	api := phttp.NewServer(log, engine, auth.NewVerifier(cfg.ReplayWindow), poolCache, replay)
	api.AllowDeposits = cfg.AllowDeposits
	if cfg.RateLimitRPS > 0 {
		api.Limiter = ratelimit.New(cfg.RateLimitRPS)
	}

	metricsSrv := sharedmetrics.StartMetricsServer(cfg.MetricsPort, log, checks...)

	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = apiSrv.Shutdown(sctx)
		_ = metricsSrv.Shutdown(sctx)
	}()

	log.Info("pool-service listening",
		zap.String("addr", apiSrv.Addr),
		zap.String("store", cfg.Store),
		zap.Bool("allow_deposits", cfg.AllowDeposits),
	)
	if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("api", zap.Error(err))
	}
}
