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

	"github.com/radieske/parimutuel-pools/internal/ledger"
	shttp "github.com/radieske/parimutuel-pools/internal/settlement-service/http"
	"github.com/radieske/parimutuel-pools/internal/settlement-service/lock"
	"github.com/radieske/parimutuel-pools/internal/settlement-service/producer"
	"github.com/radieske/parimutuel-pools/internal/shared/cache"
	"github.com/radieske/parimutuel-pools/internal/shared/config"
	"github.com/radieske/parimutuel-pools/internal/shared/kafka"
	"github.com/radieske/parimutuel-pools/internal/shared/logger"
	"github.com/radieske/parimutuel-pools/internal/shared/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Inicializa logger estruturado
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := ledger.Open(ctx, ledger.Options{Driver: cfg.LedgerDriver, PostgresDSN: cfg.PostgresDSN, SQLitePath: cfg.SQLitePath})
	if err != nil {
		log.Fatal("ledger", zap.Error(err))
	}
	defer store.Close()

	// Redis só para o lock de liquidação
	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMarketSettled)
	defer writer.Close()
	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMarketSettledDLQ)
	defer dlq.Close()

	api := shttp.NewServer(log, store,
		lock.NewRedisLock(rdb, cfg.SettlementLockTTL),
		producer.NewKafkaPublisher(writer, dlq),
		shttp.NewMetrics(prometheus.DefaultRegisterer),
	)

	// Servidor HTTP público (API de liquidação)
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Servidor de métricas e health check
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.All(
		metrics.Named("ledger", store.Ping),
		metrics.Named("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
	))
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = apiSrv.Shutdown(shutdownCtx)
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	log.Info("api listening", zap.String("addr", apiSrv.Addr), zap.String("rake", cfg.Rake.String()))
	if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("api srv", zap.Error(err))
	}
}
