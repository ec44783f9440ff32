package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/wager-pool/internal/settlement-feed/cache"
	"github.com/radieske/wager-pool/internal/settlement-feed/consumer"
	fhttp "github.com/radieske/wager-pool/internal/settlement-feed/http"
	"github.com/radieske/wager-pool/internal/settlement-feed/pubsub"
	"github.com/radieske/wager-pool/internal/settlement-feed/ws"
	sharedcache "github.com/radieske/wager-pool/internal/shared/cache"
	"github.com/radieske/wager-pool/internal/shared/config"
	"github.com/radieske/wager-pool/internal/shared/kafka"
	"github.com/radieske/wager-pool/internal/shared/logger"
	"github.com/radieske/wager-pool/internal/shared/metrics"
)

func main() {
	cfg := config.LoadService("settlement-feed")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	redisClient, err := sharedcache.ConnectRedis(ctx, cfg.Redis())
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// consumer group settlement-feed lendo os três tópicos de eventos
	reader := kafka.NewGroupReader(cfg.KafkaBrokers, "settlement-feed",
		cfg.TopicPoolInitialized, cfg.TopicBetPlaced, cfg.TopicBetSettled)
	defer reader.Close()

	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerDLQ)
	defer dlq.Close()

	// Métricas Prometheus do feed
	consumed := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "wager_feed_messages_consumed_total", Help: "mensagens consumidas por tópico"}, []string{"topic"})
	broadcasts := prometheus.NewCounter(prometheus.CounterOpts{Name: "wager_feed_broadcasts_total", Help: "updates publicados no Redis Pub/Sub"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "wager_feed_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, broadcasts, errorsBy)

	last := cache.NewLastSettlement(redisClient, cfg.LastSettlementTTL)
	proc := &consumer.Processor{
		Log:         log,
		Reader:      reader,
		Cache:       last,
		Broadcaster: pubsub.NewUpdatePublisher(redisClient, cfg.RedisPubSubChannel),
		DLQ:         dlq,
		Topics: consumer.Topics{
			PoolInitialized: cfg.TopicPoolInitialized,
			BetPlaced:       cfg.TopicBetPlaced,
			BetSettled:      cfg.TopicBetSettled,
		},
		OnConsumed:  func(topic string) { consumed.WithLabelValues(topic).Inc() },
		OnBroadcast: func() { broadcasts.Inc() },
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// WebSocket: Redis Pub/Sub -> hub -> clientes inscritos por pool
	hub := ws.NewHub(func(r *http.Request) bool { return true })
	ws.StartRedisSubscriber(ctx, redisClient, cfg.RedisPubSubChannel, hub, log)

	api := &fhttp.API{WS: hub.HandleWS, Cache: last}
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("settlement-feed http listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http", zap.Error(err))
		}
	}()

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log, metrics.HealthCheck{
		Name:  "redis",
		Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	})

	log.Info("settlement-feed started")
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}

	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	_ = srv.Shutdown(sctx)
	_ = metricsSrv.Shutdown(sctx)
	log.Info("settlement-feed stopped")
}
