package main

import (
	"fmt"

	"go.uber.org/zap"

	"meshinv/internal/adapter"
	"meshinv/internal/config"
	"meshinv/internal/logging"
	"meshinv/internal/notify"
	"meshinv/internal/repository/postgres"
	"meshinv/internal/repository/sqlite"
	"meshinv/internal/repository/sqlstore"
	"meshinv/internal/service"
)

type rootOptions struct {
	configPath string
}

// app holds the wired services shared by every subcommand
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	store      *sqlstore.Store
	events     *service.EventBus
	allocator  *service.Allocator
	reconciler *service.ReconcileService
}

func loadConfig(opts *rootOptions) (*config.Config, string, error) {
	if opts.configPath != "" {
		return config.LoadFromPath(opts.configPath)
	}
	return config.Load()
}

// newApp loads configuration, opens (and migrates) the store and builds the
// service graph. Callers must Close the returned app.
func newApp(opts *rootOptions) (*app, error) {
	cfg, path, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	if path != "" {
		logger.Info("loaded config", zap.String("path", path))
	} else {
		logger.Info("no config file found, using defaults")
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	events := service.NewEventBus()
	notifier, err := buildNotifier(cfg, events, logger)
	if err != nil {
		_ = store.Close()
		_ = logger.Sync()
		return nil, err
	}

	sectors := service.SectorDefaults{RadiusKm: cfg.Sectors.RadiusKm, WidthDeg: cfg.Sectors.WidthDeg}
	devices := service.NewDeviceReconciler(store, notifier, sectors, logger)
	links := service.NewLinkReconciler(store, notifier, logger)
	los := service.NewLOSProjector(store, notifier, logger)

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		events:     events,
		allocator:  service.NewAllocator(store, cfg.NetworkNumbers, notifier, events, logger),
		reconciler: service.NewReconcileService(devices, links, los, events, logger),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func openStore(cfg *config.Config, logger *zap.Logger) (*sqlstore.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		return postgres.Open(cfg.Database.DSN, cfg.Database.MaxConns, logger)
	case config.DriverSQLite:
		if err := config.EnsureConfigDir(cfg.Database.Path); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		return sqlite.Open(cfg.Database.Path, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

// buildNotifier assembles the configured sinks. The event bus sink is always
// present so SSE clients see every notification.
func buildNotifier(cfg *config.Config, events *service.EventBus, logger *zap.Logger) (*service.MultiNotifier, error) {
	notifier := service.NewMultiNotifier(logger)
	if cfg.Notify.Log {
		notifier.Add("log", notify.NewLogSink(logger))
	}
	if cfg.SlackEnabled() {
		slack, err := notify.NewSlackSink(notify.SlackConfig{
			WebhookURL: cfg.Notify.Slack.WebhookURL,
			Attempts:   cfg.Notify.Slack.Attempts,
			Timeout:    cfg.Notify.Slack.Timeout.Duration(),
		}, logger)
		if err != nil {
			return nil, err
		}
		notifier.Add("slack", slack)
	}
	notifier.Add("events", service.NewEventNotifier(events))
	return notifier, nil
}

func newUISPAdapter(cfg *config.Config, logger *zap.Logger) (*adapter.UISPAdapter, error) {
	return adapter.NewUISPAdapter(adapter.UISPConfig{
		URL:                cfg.UISP.URL,
		Username:           cfg.UISP.Username,
		Password:           cfg.UISP.Password,
		Timeout:            cfg.UISP.Timeout.Duration(),
		InsecureSkipVerify: cfg.UISP.InsecureSkipVerify,
	}, logger)
}
