// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/starford/mnemo/internal/index"
	"github.com/starford/mnemo/internal/mcpserver"
	"github.com/starford/mnemo/internal/noteservice"
	"github.com/starford/mnemo/internal/storage"
)

// Version is reported to MCP clients.
const Version = "0.3.0"

// App holds the opened store, index and note service.
type App struct {
	Config  *Config
	Logger  *slog.Logger
	Store   *storage.FS
	Index   *index.DB
	Service *noteservice.Service
}

// Open validates the configuration, opens the knowledge directory and its
// index, and builds the note service. With WithStartupSync the index is
// reconciled with the directory before Open returns.
func Open(opts ...Option) (*App, error) {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}

	logger.Debug("Configuration loaded",
		slog.String("store_path", cfg.Store.Path),
		slog.String("sqlite_path", cfg.IndexPath()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := storage.NewFS(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.IndexPath())
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	svc := noteservice.New(store, db,
		noteservice.WithLogger(logger),
		noteservice.WithCollisionPolicy(noteservice.CollisionPolicy(cfg.Notes.OnCollision)),
		noteservice.WithLimits(cfg.Notes.SearchLimit, cfg.Notes.ListLimit),
	)

	a := &App{Config: cfg, Logger: logger, Store: store, Index: db, Service: svc}

	if app.sync {
		if _, err := svc.Reindex(context.Background(), false); err != nil {
			logger.Warn("initial sync failed", slog.String("error", err.Error()))
		}
	}
	return a, nil
}

// Close releases the index.
func (a *App) Close() error {
	return a.Index.Close()
}

// Watch keeps the index in sync with the knowledge directory until ctx is
// cancelled or the process receives SIGINT or SIGTERM.
func (a *App) Watch(ctx context.Context) error {
	return a.run(ctx, nil)
}

// ServeMCP runs the MCP stdio server on in and out alongside the watcher.
// It returns when the client closes in, ctx is cancelled or a shutdown
// signal arrives.
func (a *App) ServeMCP(ctx context.Context, in io.Reader, out io.Writer) error {
	srv := mcpserver.New(a.Service, a.Logger, Version)
	return a.run(ctx, func(ctx context.Context) error {
		a.Logger.Info("Starting MCP stdio server")
		if err := srv.Listen(ctx, in, out); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP server error: %w", err)
		}
		return errStopped
	})
}

// errStopped ends the group when the foreground task finishes on its own.
var errStopped = errors.New("stopped")

func (a *App) run(ctx context.Context, foreground func(context.Context) error) error {
	logger := a.Logger
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := index.Watch(gCtx, a.Service, a.Store.Root(), logger, func(kind, id string) {
			logger.Debug("note changed", slog.String("kind", kind), slog.String("id", id))
		})
		if err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
		return nil
	})

	if foreground != nil {
		g.Go(func() error { return foreground(gCtx) })
	}

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			return errStopped
		case <-gCtx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errStopped) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Stopped")
	return nil
}
