package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/micro-ha/connectivity-monitor/addon/internal/adapters/ha"
	"github.com/micro-ha/connectivity-monitor/addon/internal/adapters/system"
	"github.com/micro-ha/connectivity-monitor/addon/internal/config"
	"github.com/micro-ha/connectivity-monitor/addon/internal/domain/connectivity"
	httpapi "github.com/micro-ha/connectivity-monitor/addon/internal/http"
	"github.com/micro-ha/connectivity-monitor/addon/internal/http/handlers"
	"github.com/micro-ha/connectivity-monitor/addon/internal/logging"
	"github.com/micro-ha/connectivity-monitor/addon/internal/monitor"
	"github.com/micro-ha/connectivity-monitor/addon/internal/notify"
	"github.com/micro-ha/connectivity-monitor/addon/internal/poller"
	"github.com/micro-ha/connectivity-monitor/addon/internal/storage"
)

func main() {
	if err := run(); err != nil {
		slog.Default().Error("server terminated with error", "err", err)
		os.Exit(1)
	}
}

// run owns every resource so deferred cleanup happens before main exits.
func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	logger := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DBDir(), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}
	repo, err := storage.New(ctx, cfg.DBPath, logger)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	defer repo.Close()

	journal := storage.NewJournal(repo, cfg.JournalRetention, logger)
	hub := handlers.NewHub(logger)

	sinks := notify.Fanout{notify.NewLogSink(logger)}
	if cfg.HANotificationsEnabled() {
		sinks = append(sinks, ha.NewNotifier(cfg.HABaseURL, cfg.SupervisorToken))
	} else {
		logger.Warn("SUPERVISOR_TOKEN is empty or notifications disabled; home assistant alerts off")
	}

	source := system.NewSource(system.Config{
		ProbeTarget:      cfg.ProbeTarget,
		ProbeTimeout:     cfg.ProbeTimeout,
		Debounce:         cfg.Debounce,
		OnlyInterfaces:   cfg.OnlyInterfaces,
		IgnoreInterfaces: cfg.IgnoreInterfaces,
	}, logger)

	mon := monitor.New(
		source,
		sinks,
		logger,
		monitor.WithPermissions(system.StaticPermissions{AllowSSID: cfg.AllowSSID}),
		monitor.WithObservers(journal, hub),
		monitor.WithAlertTimeout(cfg.AlertTimeout),
	)

	// Background writers outlive the signal context long enough to flush
	// what Stop produces.
	bgCtx, cancelBackground := context.WithCancel(context.WithoutCancel(ctx))
	journalDone := make(chan struct{})
	go func() {
		journal.Run(bgCtx)
		close(journalDone)
	}()
	go hub.Run(bgCtx)
	defer func() {
		cancelBackground()
		<-journalDone
	}()

	if err := mon.Start(ctx); err != nil {
		if errors.Is(err, connectivity.ErrSubscribeFailed) {
			return fmt.Errorf("start connectivity monitor: %w", err)
		}
		logger.Warn("initial connectivity read failed", "err", err)
	}
	defer mon.Stop()

	refresher := poller.New(mon, cfg.RefreshInterval, logger)
	go refresher.Run(ctx)

	if cfg.SupervisorToken != "" {
		watcher := ha.NewWatcher(cfg.HABaseURL, cfg.SupervisorToken, logger)
		go watcher.Run(ctx, refresher.TriggerRefresh)
	}

	api := handlers.New(mon, repo, hub, logger, cfg.FrontendDist)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(api),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("server starting", "addr", httpServer.Addr, "allow_ssid", cfg.AllowSSID)
	if err := httpapi.RunServer(ctx, httpServer, logger); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("server stopped")
	return nil
}
