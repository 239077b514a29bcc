package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"tracker/internal/cache"
	"tracker/internal/cli"
	apphttp "tracker/internal/http"
	"tracker/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	res := cli.InitBackend(context.Background(), logger, cfg)

	caches := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	res.Ledger.RegisterCaches(caches)
	caches.StartCleanup(cfg.CacheTTL)

	srv := apphttp.NewServer(":"+cfg.Port, res.Ledger, cfg.Palette, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting tracker server",
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		"store", cfg.StorePath())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
