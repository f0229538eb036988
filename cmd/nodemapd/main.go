// Command nodemapd serves the graph API backed by SQLite.
//
// Usage:
//
//	nodemapd [-config nodemap.yaml] [-addr :5001] [-db nodemap.db] [-trace]
//
// JWT_SECRET_KEY must be set, either in the environment, in a .env file or
// under server.jwt_secret in the config file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/randalmurphal/nodemap/pkg/nodemap/config"
	"github.com/randalmurphal/nodemap/pkg/nodemap/observability"
	"github.com/randalmurphal/nodemap/pkg/nodemap/server"
	"github.com/randalmurphal/nodemap/pkg/nodemap/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "nodemapd:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a YAML or JSON config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	tracing := flag.Bool("trace", false, "enable request tracing")
	flag.Parse()

	settings, err := config.Load(*configPath, ".env")
	if err != nil {
		return err
	}
	if *addr != "" {
		settings.Server.Addr = *addr
	}
	if *dbPath != "" {
		settings.Server.Database = *dbPath
	}

	logger, err := observability.NewLogger(observability.LoggerConfig{
		Level: settings.Log.Level,
		File:  settings.Log.File,
		JSON:  settings.Log.JSON,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if *tracing {
		tp := sdktrace.NewTracerProvider()
		otel.SetTracerProvider(tp)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(ctx)
		}()
	}

	repo, err := storage.NewSQLiteStore(settings.Server.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer repo.Close()

	srv, err := server.New(repo, server.Config{
		JWTSecret: settings.Server.JWTSecret,
		TokenTTL:  settings.Server.TokenTTL,
		Logger:    logger,
		Tracing:   *tracing,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(settings.Server.Addr) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
