package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/radieske/wager-pool/internal/shared/config"
	"github.com/radieske/wager-pool/internal/shared/logger"
	"github.com/radieske/wager-pool/internal/shared/metrics"
)

func rp(to string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil {
		return nil, err
	}
	return httputil.NewSingleHostReverseProxy(u), nil
}

func main() {
	cfg := config.LoadService("api-gateway")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pools, err := rp(cfg.PoolServiceURL)
	if err != nil {
		log.Fatal("pool-service url", zap.Error(err))
	}
	feed, err := rp(cfg.FeedURL)
	if err != nil {
		log.Fatal("feed url", zap.Error(err))
	}

	mux := http.NewServeMux()

	// pools/apostas/contas (ex.: /api/wager/v1/pools -> pool-service /v1/pools)
	mux.Handle("/api/wager/", http.StripPrefix("/api/wager", pools))

	// feed (ex.: /api/feed/ws -> settlement-feed /ws)
	mux.Handle("/api/feed/", http.StripPrefix("/api/feed", feed))

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log)

	s := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: cors.New(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
		}).Handler(mux),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		log.Info("shutting down the http server")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(sctx); err != nil {
			log.Error("failed to shutdown http server", zap.Error(err))
		}
		_ = metricsSrv.Shutdown(sctx)
	}()

	log.Info("api-gateway listening",
		zap.String("addr", s.Addr),
		zap.String("pool_service", cfg.PoolServiceURL),
		zap.String("feed", cfg.FeedURL),
	)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("gateway failed", zap.Error(err))
	}
}
