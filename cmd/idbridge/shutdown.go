package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vyrodovalexey/idbridge/internal/observability"
)

// runService starts the HTTP server and blocks until shutdown.
func runService(app *application, logger observability.Logger) {
	go func() {
		logger.Info("http server listening",
			observability.String("addr", app.httpServer.Addr))
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", observability.Error(err))
		}
	}()

	waitForShutdown(app, logger)
}

// waitForShutdown waits for a shutdown signal and stops components in
// dependency order.
func waitForShutdown(app *application, logger observability.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", observability.String("signal", sig.String()))

	timeout := app.config.Server.ShutdownTimeout.Duration()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to stop http server gracefully", observability.Error(err))
	}

	if app.pool != nil {
		if err := app.pool.Close(); err != nil {
			logger.Error("failed to close database pool", observability.Error(err))
		}
	}

	if err := app.cacheReg.Close(); err != nil {
		logger.Error("failed to close cache", observability.Error(err))
	}

	if err := app.resolver.Close(); err != nil {
		logger.Error("failed to close secret resolver", observability.Error(err))
	}

	logger.Info("idbridge stopped")
}
