// Command portfel aggregates account balances across cryptocurrency
// exchange accounts, values them in each group's valuation currency and
// republishes the consolidated view to a terminal table, a Telegram
// chat and a Google spreadsheet.
//
// Usage:
//
//	portfel --config config.yaml
//
// Credentials are taken from the environment variables named in the
// config, e.g. BINANCE_API_KEY / BINANCE_API_SECRET per account.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/portfel/config"
	"github.com/vadiminshakov/portfel/internal"
	"github.com/vadiminshakov/portfel/internal/connection"
	"github.com/vadiminshakov/portfel/internal/services/aggregator"
	"github.com/vadiminshakov/portfel/internal/services/normalizer"
	"github.com/vadiminshakov/portfel/internal/services/pricer"
	"github.com/vadiminshakov/portfel/internal/sinks/sheets"
	"github.com/vadiminshakov/portfel/internal/sinks/table"
	"github.com/vadiminshakov/portfel/internal/sinks/telegram"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	cfg, err := config.Get()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store := aggregator.NewStore()
	alternates := internal.PublicPriceSources(logger)

	g, ctx := errgroup.WithContext(ctx)

	started := 0
	for i, acc := range cfg.Accounts {
		acc := acc
		connLogger := logger.With(
			zap.String("exchange", acc.Exchange),
			zap.String("group", acc.Group))

		if err := acc.Validate(); err != nil {
			// a bad account declaration kills only this connection
			connLogger.Error("skipping misconfigured account", zap.Error(err))
			continue
		}

		client, err := internal.NewExchangeClient(acc, connLogger)
		if err != nil {
			connLogger.Error("skipping account, client setup failed", zap.Error(err))
			continue
		}

		epsilon := normalizer.RestEpsilon
		if acc.PushUpdates {
			epsilon = normalizer.PushEpsilon
		}
		norm := normalizer.New(normalizer.Config{
			Client:      client,
			Resolver:    pricer.NewResolver(client, alternates, connLogger),
			Cache:       normalizer.NewCache(epsilon),
			Store:       store,
			Group:       acc.Group,
			Connection:  acc.ConnectionID(i),
			Valuation:   acc.ValuationCurrency,
			FundAccount: acc.Fund,
			Logger:      connLogger,
		})

		monitor := connection.NewMonitor(client, norm, acc.PollInterval, connLogger)
		g.Go(func() error { return monitor.Run(ctx) })
		connLogger.Info("connection started")
		started++
	}
	if started == 0 {
		logger.Fatal("no usable account connections")
	}

	renderer := table.NewRenderer(store, os.Stdout, logger)
	g.Go(func() error { return renderer.Run(ctx) })

	if cfg.Telegram.Token != "" {
		notifier, err := telegram.NewNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID, store, logger)
		if err != nil {
			logger.Error("telegram sink disabled", zap.Error(err))
		} else {
			g.Go(func() error { return notifier.Run(ctx) })
		}
	}

	if cfg.Sheets.SpreadsheetID != "" {
		sheetLogger, err := sheets.NewLogger(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID,
			cfg.Sheets.Range, cfg.Sheets.Schedule, store, logger)
		if err != nil {
			logger.Error("sheets sink disabled", zap.Error(err))
		} else {
			g.Go(func() error { return sheetLogger.Run(ctx) })
		}
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Error(err.Error())
	}
}
