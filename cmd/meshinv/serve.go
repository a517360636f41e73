package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"meshinv/internal/adapter"
	"meshinv/internal/domain"
	"meshinv/internal/handler"
	"meshinv/internal/hub"
	"meshinv/internal/service"
	"meshinv/internal/watcher"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr, watchFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the UISP polling loop",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			if addr != "" {
				a.cfg.HTTP.Addr = addr
			}
			return serve(cmd.Context(), a, watchFile)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	cmd.Flags().StringVar(&watchFile, "watch-file", "", "reconcile this snapshot file whenever it is rewritten")
	return cmd
}

func serve(parent context.Context, a *app, watchFile string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := a.logger

	sseHub := hub.New(logger)
	go sseHub.Run(ctx)

	// Bridge event bus to SSE hub
	eventCh := make(chan service.Event, 100)
	a.events.Subscribe(eventCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				sseHub.Broadcast(event)
			}
		}
	}()

	registry := adapter.NewRegistry(func(ctx context.Context, _ string, snapshot *domain.Snapshot) error {
		_, err := a.reconciler.Run(ctx, snapshot)
		return err
	}, logger)

	if a.cfg.UISP.Enabled {
		uisp, err := newUISPAdapter(a.cfg, logger)
		if err != nil {
			return err
		}
		if err := registry.Register(uisp, adapter.AdapterConfig{
			Enabled:      true,
			PollInterval: a.cfg.UISP.PollInterval.Duration(),
		}); err != nil {
			return err
		}
	}
	if watchFile != "" {
		file := adapter.NewFileAdapter(watchFile)
		if err := registry.Register(file, adapter.AdapterConfig{Enabled: true}); err != nil {
			return err
		}
		w := watcher.New(watchFile, func() {
			if err := registry.TriggerSync(ctx, file.Name()); err != nil {
				logger.Warn("snapshot file sync failed", zap.String("path", watchFile), zap.Error(err))
			}
		}, logger)
		go func() {
			if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("snapshot file watcher stopped", zap.Error(err))
			}
		}()
	}
	if err := registry.Start(ctx); err != nil {
		return err
	}

	inventory := handler.NewInventoryHandler(a.allocator, a.reconciler, logger)
	inventory.SetSyncTrigger(registry)

	mux := http.NewServeMux()
	handler.Routes(mux, inventory)
	mux.Handle("GET /events", sseHub)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr: a.cfg.HTTP.Addr,
		Handler: handler.Chain(mux,
			handler.Recover(logger),
			handler.CORS,
			handler.Logger(logger),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE streams stay open
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
	case runErr = <-serverErr:
		logger.Error("server error", zap.Error(runErr))
	}

	if err := registry.Stop(); err != nil {
		logger.Warn("adapter registry shutdown error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout.Duration())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", zap.Error(err))
	}

	logger.Info("server stopped")
	return runErr
}
