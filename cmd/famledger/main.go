// Command famledger is the terminal client for encrypted ledger stores.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/famledger/famledger/cmd/famledger/cli"
	"github.com/famledger/famledger/internal/app"
	"github.com/famledger/famledger/internal/commands"
	"github.com/famledger/famledger/internal/kdf"
	"github.com/famledger/famledger/internal/observability"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}
	os.Exit(int(run()))
}

func run() subcommands.ExitStatus {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Default().Warn("load .env", slog.Any("error", err))
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return subcommands.ExitFailure
	}
	logger := app.NewLogger(cfg)

	deriver, err := kdf.New(cfg.KDFParams())
	if err != nil {
		logger.Error("kdf parameters", slog.Any("error", err))
		return subcommands.ExitFailure
	}
	types, err := cfg.AccountTypes()
	if err != nil {
		logger.Error("account types", slog.Any("error", err))
		return subcommands.ExitFailure
	}
	engine, err := commands.NewEngine(commands.Options{
		Deriver:      deriver,
		AccountTypes: types,
		Logger:       logger,
		Metrics:      observability.NewCommandMetrics(prometheus.NewRegistry()),
	})
	if err != nil {
		logger.Error("build engine", slog.Any("error", err))
		return subcommands.ExitFailure
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Warn("close stores", slog.Any("error", err))
		}
	}()

	env := &cli.Env{
		Engine:   engine,
		Deriver:  deriver,
		Logger:   logger,
		Currency: cfg.Currency(),
		Out:      os.Stdout,
	}
	commander := subcommands.NewCommander(flag.CommandLine, filepath.Base(os.Args[0]))
	cli.BindFlags(flag.CommandLine, env, cfg.LedgerPath)
	cli.Register(commander, env)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return commander.Execute(ctx)
}
