package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/broker-docs/internal/adapters/http"
	"github.com/kirillkom/broker-docs/internal/adapters/http/openapi"
	"github.com/kirillkom/broker-docs/internal/bootstrap"
	"github.com/kirillkom/broker-docs/internal/config"
	"github.com/kirillkom/broker-docs/internal/observability/logging"
	"github.com/kirillkom/broker-docs/internal/observability/metrics"
)

const service = "api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger(service, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(service)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Observers{
		BreakerStateChange: httpMetrics.BreakerObserver(service),
		InspectedPages: func(pages int) {
			httpMetrics.RecordAnalysisPages(service, pages)
		},
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg, app.Workspaces, app.Jobs, app.Profiles).WithMetrics(httpMetrics)
	if cfg.APIValidateRequests {
		validator, err := openapi.NewValidator(ctx)
		if err != nil {
			slog.Error("openapi_validator_failed", "error", err)
			os.Exit(1)
		}
		router = router.WithValidator(validator)
	}

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		// Synchronous analysis polls the remote service until it finishes.
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
