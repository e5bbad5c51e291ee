// cmd/worker-manager/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lending-engine/internal/app"
	"lending-engine/internal/common/camunda"
	"lending-engine/internal/common/config"
	"lending-engine/internal/common/logger"
	notifyusers "lending-engine/internal/workers/communication/notify-users"
	loanaction "lending-engine/internal/workers/loan/loan-action"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = app.RetryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(ctx, camunda.ConfigFrom(cfg.Camunda))
		return err
	}, 10, 2*time.Second, log, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// jobs push to users connected to the API processes
	app.RequireRelay(cfg, log)

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		zeebe.Close()
		zapLog.Fatal("startup failed", zap.Error(err))
	}

	workers := camunda.NewWorkerSet(zeebe, log)

	loanAction, err := loanaction.NewHandler(loanaction.HandlerOptions{
		AppConfig: cfg,
		Loans:     application.Loans,
		Users:     application.Directory,
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("failed to create loan-action handler", zap.Error(err))
	}
	workers.Add(loanaction.TaskType, loanAction)

	notifyUsers, err := notifyusers.NewHandler(notifyusers.HandlerOptions{
		AppConfig: cfg,
		Notifier:  application.Dispatcher,
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("failed to create notify-users handler", zap.Error(err))
	}
	workers.Add(notifyusers.TaskType, notifyUsers)

	zapLog.Info("All workers registered successfully", zap.Int("workers", workers.Len()))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := zeebe.HealthCheck(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		if err := application.Ready(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("/metrics", promhttp.Handler())

	metricsServer := &http.Server{Addr: ":8080", Handler: mux}
	go func() {
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	workers.Stop()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping metrics server", zap.Error(err))
	}
	application.Close()

	zapLog.Info("Worker manager stopped gracefully")
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}
