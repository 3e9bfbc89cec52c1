package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-pools/internal/ledger"
	"github.com/radieske/parimutuel-pools/internal/odds-processor/consumer"
	"github.com/radieske/parimutuel-pools/internal/odds-processor/pubsub"
	"github.com/radieske/parimutuel-pools/internal/shared/cache"
	"github.com/radieske/parimutuel-pools/internal/shared/config"
	"github.com/radieske/parimutuel-pools/internal/shared/kafka"
	"github.com/radieske/parimutuel-pools/internal/shared/logger"
	"github.com/radieske/parimutuel-pools/internal/shared/metrics"
	"github.com/radieske/parimutuel-pools/internal/shared/oddsfeed"
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

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Inicializa dependências: livro de apostas e Redis
	store, err := ledger.Open(ctx, ledger.Options{Driver: cfg.LedgerDriver, PostgresDSN: cfg.PostgresDSN, SQLitePath: cfg.SQLitePath})
	if err != nil {
		log.Fatal("ledger", zap.Error(err))
	}
	defer store.Close()

	redisClient, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Feed com cache versionado: o odds-service lê as mesmas chaves
	feed := oddsfeed.New(log, store, cache.NewOddsCache(redisClient, cfg.OddsCacheTTL))

	// Consumer Kafka (consumer group odds-processor)
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicBetPlaced, "odds-processor")
	defer reader.Close()

	// Métricas Prometheus para monitoramento do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_proc_messages_consumed_total", Help: "mensagens consumidas"})
	refreshed := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_proc_refreshes_total", Help: "recálculos de odds a partir do livro"})
	published := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_proc_broadcasts_total", Help: "snapshots publicados no pub/sub"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "odds_proc_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, refreshed, published, errorsBy)

	proc := &consumer.Processor{
		Log:         log,
		Reader:      reader,
		Odds:        feed,
		Broadcaster: pubsub.NewRedisBroadcaster(redisClient, cfg.RedisPubSubChannel),
		OnConsumed:  func() { consumed.Inc() },
		OnRefreshed: func() { refreshed.Inc() },
		OnPublished: func() { published.Inc() },
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// Servidor HTTP para métricas e health check
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.All(
		metrics.Named("ledger", store.Ping),
		metrics.Named("redis", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
	))
	defer metricsSrv.Close()
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	log.Info("odds-processor started", zap.String("topic", cfg.TopicBetPlaced))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("odds-processor stopped")
}
