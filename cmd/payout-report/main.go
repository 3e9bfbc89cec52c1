package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/radieske/parimutuel-pools/internal/ledger"
	report "github.com/radieske/parimutuel-pools/internal/payout-report"
	"github.com/radieske/parimutuel-pools/internal/shared/config"
	"github.com/radieske/parimutuel-pools/internal/shared/logger"
)

func main() {
	resultsPath := flag.String("results", "results.yaml", "path to the event results file")
	driver := flag.String("ledger", "", "ledger driver: postgres|sqlite (overrides LEDGER_DRIVER)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "payout-report"
	}
	if *driver != "" {
		cfg.LedgerDriver = *driver
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	results, err := report.LoadResults(*resultsPath)
	if err != nil {
		log.Fatal("results", zap.Error(err))
	}

	ctx := context.Background()
	store, err := ledger.Open(ctx, ledger.Options{Driver: cfg.LedgerDriver, PostgresDSN: cfg.PostgresDSN, SQLitePath: cfg.SQLitePath})
	if err != nil {
		log.Fatal("ledger", zap.Error(err))
	}
	defer store.Close()

	rep, err := report.Build(ctx, store, results, cfg.Rake)
	if err != nil {
		log.Fatal("payout report", zap.Error(err))
	}
	if err := report.Print(os.Stdout, rep); err != nil {
		log.Fatal("print report", zap.Error(err))
	}
}
