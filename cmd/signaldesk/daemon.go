package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/NivraSD/SignalDesk-sub028/internal/config"
	"github.com/NivraSD/SignalDesk-sub028/internal/controlplane"
	"github.com/NivraSD/SignalDesk-sub028/internal/dispatch"
	"github.com/NivraSD/SignalDesk-sub028/internal/engine"
	"github.com/NivraSD/SignalDesk-sub028/internal/metrics"
	"github.com/NivraSD/SignalDesk-sub028/internal/notify"
	"github.com/NivraSD/SignalDesk-sub028/internal/providers"
	"github.com/NivraSD/SignalDesk-sub028/internal/store"
	"github.com/NivraSD/SignalDesk-sub028/internal/telemetry"
)

var (
	listenAddr string
	dbPath     string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the SignalDesk daemon",
	Long:  `Starts the SignalDesk daemon which serves the HTTP API and delivers provider notifications.`,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (overrides server.listen)")
	daemonCmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides store.path)")
}

// runtime holds the components every in-process command shares.
type runtime struct {
	store    *store.Store
	engine   *engine.Engine
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	shutdown telemetry.Shutdown
}

func newRuntime(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*runtime, error) {
	shutdown, err := telemetry.Init(ctx, cfg.Telemetry.Endpoint, cfg.Telemetry.ServiceName, version, cfg.Telemetry.Insecure)
	if err != nil {
		return nil, err
	}

	s, err := store.New(cfg.Store.Path)
	if err != nil {
		shutdown(ctx)
		return nil, err
	}

	reg, err := cfg.Registry()
	if err != nil {
		s.Close()
		shutdown(ctx)
		return nil, err
	}

	analyzer, err := providers.New(ctx, cfg.Analysis.Analyzer)
	if err != nil {
		s.Close()
		shutdown(ctx)
		return nil, fmt.Errorf("analyzer: %w", err)
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promReg)

	eng, err := engine.New(engine.Options{
		Registry:        reg,
		Store:           s,
		Analyzer:        analyzer,
		Logger:          logger.Named("engine"),
		Metrics:         m,
		Tracer:          telemetry.Tracer("github.com/NivraSD/SignalDesk-sub028/internal/engine"),
		StoreTimeout:    cfg.Store.Timeout,
		AnalysisTimeout: cfg.Analysis.Timeout,
	})
	if err != nil {
		s.Close()
		shutdown(ctx)
		return nil, err
	}

	logger.Info("engine ready",
		zap.String("db", cfg.Store.Path),
		zap.String("analyzer", analyzer.Name()),
		zap.Int("providers", reg.Count()),
	)
	return &runtime{store: s, engine: eng, metrics: m, registry: promReg, shutdown: shutdown}, nil
}

func (r *runtime) Close(ctx context.Context) {
	if err := r.store.Close(); err != nil {
		logger.Warn("database close error", zap.Error(err))
	}
	if err := r.shutdown(ctx); err != nil {
		logger.Warn("telemetry shutdown error", zap.Error(err))
	}
}

func newNotifier(cfg config.DispatchConfig, logger *zap.Logger) notify.Notifier {
	if cfg.Notifier == config.NotifierWebhook {
		return notify.NewWebhookNotifier(cfg.WebhookURL, cfg.Timeout)
	}
	return notify.NewLogNotifier(logger.Named("notify"))
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if listenAddr != "" {
		cfg.Server.Listen = listenAddr
	}
	if dbPath != "" {
		cfg.Store.Path = dbPath
	}

	logger.Info("starting SignalDesk daemon", zap.String("version", version))

	rt, err := newRuntime(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	var stats controlplane.StatsSource
	var dispatcher *dispatch.Dispatcher
	if cfg.Dispatch.Enabled {
		dispatcher = dispatch.New(rt.store, newNotifier(cfg.Dispatch, logger), &dispatch.Config{
			GlobalMax:    cfg.Dispatch.GlobalMax,
			ByProvider:   cfg.Dispatch.ByProvider,
			MaxAttempts:  cfg.Dispatch.MaxAttempts,
			PollInterval: cfg.Dispatch.PollInterval,
			Timeout:      cfg.Dispatch.Timeout,
			LeaseTTL:     cfg.Dispatch.LeaseTTL,
		}, logger, rt.metrics)
		dispatcher.Start()
		stats = dispatcher
	}

	service := controlplane.NewService(rt.engine, rt.store, stats, version)
	server := controlplane.NewServer(service, cfg.Server.Listen, rt.registry, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
		close(serverErr)
	}()

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info("received signal, initiating graceful shutdown", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", zap.Error(err))
			runErr = err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down HTTP server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	if dispatcher != nil {
		dispatcher.Stop()
	}

	rt.Close(shutdownCtx)
	logger.Info("shutdown complete")
	return runErr
}
