package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	simulator "github.com/radieske/parimutuel-pools/internal/bet-simulator"
	"github.com/radieske/parimutuel-pools/internal/shared/config"
	"github.com/radieske/parimutuel-pools/internal/shared/logger"
	"github.com/radieske/parimutuel-pools/internal/shared/metrics"
)

var (
	// Métricas Prometheus do tráfego gerado
	betsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_bets_sent_total",
		Help: "Apostas aceitas pelo bet-service",
	}, []string{"market"})
	betsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_bets_failed_total",
		Help: "Apostas recusadas ou com erro de transporte",
	}, []string{"market"})
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

	prometheus.MustRegister(betsSent, betsFailed)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sim := simulator.New(log, simulator.NewClient(cfg.BetServiceURL), simulator.DefaultCatalog(), 20, cfg.BettorDomain)
	sim.OnSent = func(m string) { betsSent.WithLabelValues(m).Inc() }
	sim.OnFailed = func(m string) { betsFailed.WithLabelValues(m).Inc() }

	// sem dependências próprias: healthz só indica que o processo está vivo
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil)
	defer metricsSrv.Close()
	log.Info("bet simulator (metrics) running", zap.String("addr", metricsSrv.Addr))

	if cfg.SimSeedMarkets {
		if err := sim.Seed(ctx); err != nil {
			log.Fatal("seed markets", zap.Error(err))
		}
	}

	log.Info("bet simulator running",
		zap.String("target", cfg.BetServiceURL),
		zap.Duration("interval", cfg.SimInterval),
	)
	if err := sim.Run(ctx, cfg.SimInterval); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("simulator", zap.Error(err))
	}
	log.Info("bet simulator stopped")
}
