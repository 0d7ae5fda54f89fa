// File: cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iyunix/go-rigadvisor/internal/app"
	"github.com/iyunix/go-rigadvisor/internal/config"
	"github.com/iyunix/go-rigadvisor/internal/services"
)

// shutdownTimeout leaves room for a suggestion that is mid-backoff to settle.
const shutdownTimeout = 15 * time.Second

func main() {
	logger := services.NewLogger("rigadvisor")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	// Event streams never go idle; ending their base context lets Shutdown drain them.
	baseCtx, cancelStreams := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           application.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelStreams)

	logger.Info("server starting",
		"addr", srv.Addr,
		"provider", cfg.LLMProvider,
		"plans", application.Catalog.IDs(),
		"max_attempts", cfg.Retry.MaxAttempts,
		"initial_delay_ms", cfg.Retry.InitialDelay.Milliseconds())

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server startup failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down server gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", "error", err)
		return
	}
	logger.Info("server stopped")
}
