// Command flowdeck serves the flow editor and execution API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/randalmurphal/flowdeck/internal/api"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/config"
)

func main() {
	configPath := flag.String("config", os.Getenv("FLOWDECK_CONFIG"), "path to a YAML settings file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "flowdeck: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(settings)
	slog.SetDefault(logger)

	if settings.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := wire(ctx, settings, logger)
	if err != nil {
		return err
	}
	defer app.close(logger)

	srv := &http.Server{
		Addr:    settings.HTTP.Addr,
		Handler: api.NewRouter(app.deps),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting",
			slog.String("addr", settings.HTTP.Addr),
			slog.String("store", settings.Store.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", slog.Duration("timeout", settings.HTTP.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.HTTP.ShutdownTimeout)
	defer cancel()

	// SSE subscribers hold connections open until the bus closes.
	if app.deps.Bus != nil {
		app.deps.Bus.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newLogger(s config.Settings) *slog.Logger {
	opts := &slog.HandlerOptions{Level: s.SlogLevel()}
	if s.Log.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
