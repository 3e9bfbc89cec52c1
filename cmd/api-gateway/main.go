package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	gateway "github.com/radieske/parimutuel-pools/internal/api-gateway"
	"github.com/radieske/parimutuel-pools/internal/shared/config"
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

	// targets
	handler, err := gateway.Router(log, gateway.Targets{
		Bets:       cfg.BetServiceURL,
		Odds:       cfg.OddsServiceURL,
		Settlement: cfg.SettlementServiceURL,
	}, cfg.CORSAllowedOrigins)
	if err != nil {
		log.Fatal("gateway routes", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil)

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	log.Info("api-gateway listening",
		zap.String("addr", srv.Addr),
		zap.String("bets", cfg.BetServiceURL),
		zap.String("odds", cfg.OddsServiceURL),
		zap.String("settlement", cfg.SettlementServiceURL),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("gateway failed", zap.Error(err))
	}
}
