package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-pools/internal/ledger"
	httpapi "github.com/radieske/parimutuel-pools/internal/odds-service/http"
	"github.com/radieske/parimutuel-pools/internal/odds-service/ws"
	"github.com/radieske/parimutuel-pools/internal/shared/cache"
	"github.com/radieske/parimutuel-pools/internal/shared/config"
	"github.com/radieske/parimutuel-pools/internal/shared/logger"
	"github.com/radieske/parimutuel-pools/internal/shared/metrics"
	"github.com/radieske/parimutuel-pools/internal/shared/oddsfeed"
)

func main() {
	// carrega config
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// inicia logger
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := ledger.Open(ctx, ledger.Options{Driver: cfg.LedgerDriver, PostgresDSN: cfg.PostgresDSN, SQLitePath: cfg.SQLitePath})
	if err != nil {
		log.Fatal("ledger", zap.Error(err))
	}
	defer store.Close()

	// conecta com cache Redis
	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer rdb.Close()
	log.Info("redis connected")

	feed := oddsfeed.New(log, store, cache.NewOddsCache(rdb, cfg.OddsCacheTTL))
	api := httpapi.New(log, store, feed)

	// WebSocket: snapshot na inscrição, depois atualizações vindas do Redis
	hub := ws.NewHub(log, func(r *http.Request) bool { return true }, api.Snapshot)
	api.WS = hub.HandleWS
	ws.StartRedisSubscriber(ctx, log, rdb, cfg.RedisPubSubChannel, hub)

	handler := cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})(api.Router())

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// sobe servidor de métricas e health
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.All(
		metrics.Named("ledger", store.Ping),
		metrics.Named("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
	))

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	log.Info("odds-service listening", zap.String("addr", srv.Addr), zap.String("metrics", metricsSrv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("api", zap.Error(err))
	}
}
