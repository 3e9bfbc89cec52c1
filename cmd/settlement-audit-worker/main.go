package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-pools/internal/ledger"
	audit "github.com/radieske/parimutuel-pools/internal/settlement-audit"
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

	// Livro para conferência cruzada com a liquidação gravada
	store, err := ledger.Open(ctx, ledger.Options{Driver: cfg.LedgerDriver, PostgresDSN: cfg.PostgresDSN, SQLitePath: cfg.SQLitePath})
	if err != nil {
		log.Fatal("ledger", zap.Error(err))
	}
	defer store.Close()

	// Kafka consumer: market_settled; violações vão para um tópico próprio
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicMarketSettled, "settlement-audit")
	defer reader.Close()
	violations := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicViolations)
	defer violations.Close()

	audited := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_audits_total", Help: "eventos market_settled conferidos"}, []string{"market", "status"})
	violated := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_audit_violations_total", Help: "eventos com alguma violação"}, []string{"market"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_audit_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(audited, violated, errorsBy)

	w := &audit.Worker{
		Log:         log,
		Reader:      reader,
		Ledger:      store,
		Violations:  violations,
		OnAudited:   func(m, s string) { audited.WithLabelValues(m, s).Inc() },
		OnViolation: func(m string) { violated.WithLabelValues(m).Inc() },
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// Servidor HTTP para métricas Prometheus e healthcheck
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.Named("ledger", store.Ping))
	defer metricsSrv.Close()
	log.Info("metrics/health", zap.String("addr", metricsSrv.Addr))

	log.Info("settlement-audit-worker started",
		zap.String("consume", cfg.TopicMarketSettled),
		zap.String("publish", cfg.TopicViolations),
	)
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("audit worker stopped with error", zap.Error(err))
	}
	log.Info("settlement-audit-worker stopped")
}
