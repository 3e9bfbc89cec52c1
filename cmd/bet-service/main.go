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

	bhttp "github.com/radieske/parimutuel-pools/internal/bet-service/http"
	kpub "github.com/radieske/parimutuel-pools/internal/bet-service/producer"
	"github.com/radieske/parimutuel-pools/internal/ledger"
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
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Livro de apostas (Postgres, SQLite ou memória)
	store, err := ledger.Open(ctx, ledger.Options{Driver: cfg.LedgerDriver, PostgresDSN: cfg.PostgresDSN, SQLitePath: cfg.SQLitePath})
	if err != nil {
		log.Fatal("ledger", zap.Error(err))
	}
	defer store.Close()

	// Kafka writer (topic bet_placed) + DLQ
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced)
	defer writer.Close()
	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlacedDLQ)
	defer dlq.Close()

	publ := kpub.NewKafkaPublisher(writer, dlq)
	m := bhttp.NewMetrics(prometheus.DefaultRegisterer)

	api := bhttp.NewServer(log, store, publ, m, bhttp.Options{
		Rake:         cfg.Rake,
		BettorDomain: cfg.BettorDomain,
		RateLimit:    cfg.BetRateLimit,
		RateBurst:    cfg.BetRateBurst,
	})
	apiSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// metrics/health
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.Named("ledger", store.Ping))
	log.Info("metrics/health", zap.String("addr", metricsSrv.Addr))

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = apiSrv.Shutdown(shutdownCtx)
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	log.Info("bet-service listening",
		zap.String("addr", apiSrv.Addr),
		zap.String("ledger", cfg.LedgerDriver),
		zap.String("rake", cfg.Rake.String()),
	)
	if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("api", zap.Error(err))
	}
	log.Info("bet-service stopped")
}
