package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HerbHall/cliphub/internal/clipapi"
	"github.com/HerbHall/cliphub/internal/event"
	"github.com/HerbHall/cliphub/internal/metrics"
	"github.com/HerbHall/cliphub/internal/server"
	"github.com/HerbHall/cliphub/internal/services"
	"github.com/HerbHall/cliphub/internal/store"
	"github.com/HerbHall/cliphub/internal/version"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the clip API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.String("host", "", "listen host (overrides server.host)")
	f.Int("port", 0, "listen port (overrides server.port)")
	f.Bool("require-ajax", false, "reject mutating requests without X-Requested-With")
	_ = opts.v.BindPFlag("server.host", f.Lookup("host"))
	_ = opts.v.BindPFlag("server.port", f.Lookup("port"))
	_ = opts.v.BindPFlag("server.require_ajax", f.Lookup("require-ajax"))

	return cmd
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("ClipHub server starting",
		zap.String("version", version.Short()),
		zap.String("db", cfg.Storage.Path),
	)

	st, err := store.New(cfg.Storage.Path)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer st.Close()

	bus := event.NewBus(logger.Named("events"))
	m := metrics.New()

	clips, err := services.NewClipService(ctx, st, cfg.Clips,
		services.WithLogger(logger.Named("clips")),
		services.WithPublisher(bus),
		services.WithMetrics(m),
	)
	if err != nil {
		logger.Fatal("failed to initialize clip store", zap.Error(err))
	}

	hub := clipapi.NewHub(logger.Named("events"))
	unsubscribe := bus.SubscribeAll(hub.HandleEvent)
	defer unsubscribe()

	srv := server.New(cfg.Server, logger,
		server.WithMetrics(m),
		server.WithHealthCheck(st.Ping),
		server.WithRoutes(clipapi.NewHandler(clips, hub, logger.Named("api"))),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	logger.Info("ClipHub server ready",
		zap.String("addr", cfg.Server.Addr()),
		zap.Int("max_length", clips.MaxLength()),
	)

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return errors.New("server stopped unexpectedly")
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if err := st.Checkpoint(shutdownCtx); err != nil {
		logger.Warn("final WAL checkpoint failed", zap.Error(err))
	}

	logger.Info("ClipHub server stopped")
	return nil
}
