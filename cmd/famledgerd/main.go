// Command famledgerd serves the command engine to the local presentation
// layer over a loopback-only HTTP bridge.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

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

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Default().Warn("load .env", slog.Any("error", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	deriver, err := kdf.New(cfg.KDFParams())
	if err != nil {
		logger.Error("kdf parameters", slog.Any("error", err))
		os.Exit(1)
	}
	types, err := cfg.AccountTypes()
	if err != nil {
		logger.Error("account types", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	engine, err := commands.NewEngine(commands.Options{
		Deriver:      deriver,
		AccountTypes: types,
		Logger:       logger,
		Metrics:      metrics.Commands(),
	})
	if err != nil {
		logger.Error("build engine", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Warn("close stores", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:  logger,
		Config:  cfg,
		Engine:  engine,
		Metrics: metrics,
	})

	server := &http.Server{
		Addr:         cfg.BridgeAddr,
		Handler:      router,
		ReadTimeout:  cfg.BridgeReadTimeout,
		WriteTimeout: cfg.BridgeWriteTimeout,
	}

	go func() {
		logger.Info("starting command bridge", slog.String("addr", cfg.BridgeAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
