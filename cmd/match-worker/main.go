// cmd/match-worker/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"match-workers/internal/app"
	"match-workers/internal/common/camunda"
	"match-workers/internal/common/config"
	"match-workers/internal/common/logger"
	"match-workers/internal/common/observability"
	"match-workers/internal/scheduler"

	rmb "match-workers/internal/workers/matching/run-match-batch"
	smp "match-workers/internal/workers/matching/score-match-pair"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
	})

	zapLog.Info("Starting match worker...")

	obs := observability.New(cfg.App.Name, observability.WithLogger(log))
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log, obs, app.Options{Retries: 15, InitialDelay: 2 * time.Second})
	if err != nil {
		zapLog.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	// --- Zeebe workers ---
	var zeebe *camunda.Client
	var workers []*camunda.Worker
	if cfg.Camunda.Enabled {
		err = app.Retry(ctx, func() error {
			var err error
			zeebe, err = camunda.NewClient(camunda.ConfigFrom(cfg.Camunda))
			return err
		}, 10, 2*time.Second, log, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")

		if config.IsWorkerEnabled(cfg, smp.TaskType) {
			wcfg := config.GetWorkerConfig(cfg, smp.TaskType)
			handler := smp.NewHandler(smp.LoadConfig(wcfg), a.Pipeline, log)
			workers = append(workers, camunda.StartWorker(zeebe.Zeebe(), smp.TaskType, wcfg, handler, log, obs))
		}

		if config.IsWorkerEnabled(cfg, rmb.TaskType) {
			wcfg := config.GetWorkerConfig(cfg, rmb.TaskType)
			handler := rmb.NewHandler(rmb.LoadConfig(wcfg), a.Pipeline, obs, log)
			workers = append(workers, camunda.StartWorker(zeebe.Zeebe(), rmb.TaskType, wcfg, handler, log, obs))
		}
		zapLog.Info("Workers registered", zap.Int("count", len(workers)))
	}

	// --- Periodic sweep ---
	var sched *scheduler.Scheduler
	if spec := cfg.Matching.SweepSchedule; spec != "" {
		sched = scheduler.New(spec, a.Pipeline, log, scheduler.WithObservability(obs))
		if err := sched.Start(ctx); err != nil {
			zapLog.Fatal("scheduler failed to start", zap.Error(err))
		}
	}

	// --- Health & Metrics Server ---
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           routes(a, zeebe),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if sched != nil {
		sched.Stop()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping Health/Metrics server", zap.Error(err))
	}

	zapLog.Info("Match worker stopped gracefully")
}

func routes(a *app.App, zeebe *camunda.Client) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", "")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if err := a.Ready(ctx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "not ready", err.Error())
			return
		}
		if zeebe != nil {
			if err := zeebe.HealthCheck(ctx); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, "not ready", err.Error())
				return
			}
		}
		writeStatus(w, http.StatusOK, "ready", "")
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, code int, status, reason string) {
	body := map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	}
	if reason != "" {
		body["reason"] = reason
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
