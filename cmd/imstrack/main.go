package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imstrack/imstrack/internal/api"
	"github.com/imstrack/imstrack/internal/api/middleware"
	"github.com/imstrack/imstrack/internal/carrier"
	"github.com/imstrack/imstrack/internal/config"
	"github.com/imstrack/imstrack/internal/connectivity"
	"github.com/imstrack/imstrack/internal/database"
	"github.com/imstrack/imstrack/internal/ims/imstest"
	"github.com/imstrack/imstrack/internal/metrics"
	"github.com/imstrack/imstrack/internal/notify"
	"github.com/imstrack/imstrack/internal/telemetry"
	"github.com/imstrack/imstrack/internal/telemetry/pgstore"
	"github.com/imstrack/imstrack/internal/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Configure structured logging.
	logger := slog.New(cfg.SlogHandler(os.Stdout))
	slog.SetDefault(logger)

	slog.Info("starting imstrack",
		"http_port", cfg.HTTPPort,
		"data_dir", cfg.DataDir,
	)

	// Open database and run migrations.
	db, err := database.Open(cfg.DataDir)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cdrRepo := database.NewCDRRepository(db)

	// Application context for background goroutines.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	if cfg.CDRRetention > 0 {
		go pruneCDRs(appCtx, cdrRepo, cfg.CDRRetention)
	}

	// Carrier policy, reloadable through the control API.
	carrierSrc, err := carrier.NewSource(cfg.CarrierConfig)
	if err != nil {
		slog.Error("failed to load carrier config", "error", err)
		os.Exit(1)
	}

	// Call event sinks: structured logs always, PostgreSQL and MQTT
	// when configured.
	sinks := []telemetry.Sink{telemetry.LogSink{Logger: logger}}

	if cfg.EventsDSN != "" {
		store, err := pgstore.New(cfg.EventsDSN)
		if err != nil {
			slog.Error("failed to open event store", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		sinks = append(sinks, store)
		slog.Info("call event store enabled")
	}

	if cfg.MQTTBroker != "" {
		pub, err := notify.NewMQTTPublisher(notify.MQTTOptions{
			Broker:   cfg.MQTTBroker,
			ClientID: "imstrack",
			QoS:      1,
		})
		if err != nil {
			slog.Error("failed to connect mqtt broker", "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		sinks = append(sinks, notify.NewEventSink(pub, cfg.MQTTTopic))
		slog.Info("mqtt event publishing enabled", "broker", cfg.MQTTBroker)
	}

	// The session layer. The loopback provider answers the tracker's
	// session requests in-process; a radio integration replaces it by
	// implementing ims.Provider.
	provider := imstest.NewProvider()

	trk := tracker.New(tracker.Deps{
		Logger:       logger,
		Provider:     provider,
		Carrier:      carrierSrc,
		Connectivity: connectivity.NewManual(),
		CDRs:         database.NewCDRSink(cdrRepo),
		Events:       telemetry.Multi{Sinks: sinks, Logger: logger},
	})
	trk.Start()
	defer trk.Stop()

	// Persist per-UID video usage so totals survive a restart.
	usageFlusher := database.NewUsageFlusher(database.NewCallUsageRepository(db), trk, logger)
	go usageFlusher.Run(appCtx, time.Minute)

	// Control API auth.
	secret, err := cfg.JWTSecretBytes()
	if err != nil {
		slog.Error("invalid jwt secret", "error", err)
		os.Exit(1)
	}
	token, expiresAt, err := middleware.GenerateToken(secret, "admin")
	if err != nil {
		slog.Error("failed to generate admin token", "error", err)
		os.Exit(1)
	}
	slog.Info("control api token issued", "token", token, "expires_at", expiresAt.Format(time.RFC3339))

	apiSrv := api.NewServer(trk, cdrRepo, cfg, secret)
	defer apiSrv.Close()

	// Prometheus metrics next to the control API.
	prometheus.MustRegister(metrics.NewCollector(trk, trk, time.Now()))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", apiSrv)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "error", err)
	}

	// Graceful shutdown with timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
		os.Exit(1)
	}

	if err := usageFlusher.Flush(ctx); err != nil {
		slog.Error("final usage flush failed", "error", err)
	}

	slog.Info("imstrack stopped")
}

// pruneCDRs deletes call detail records older than the retention
// window, once a day.
func pruneCDRs(ctx context.Context, repo database.CDRRepository, days int) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		n, err := repo.DeleteOlderThan(ctx, days)
		if err != nil {
			slog.Error("cdr pruning failed", "error", err)
		} else if n > 0 {
			slog.Info("pruned old cdrs", "deleted", n, "retention_days", days)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
