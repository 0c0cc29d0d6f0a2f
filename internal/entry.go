// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/notevault/internal/api"
	"github.com/starford/notevault/internal/daily"
	"github.com/starford/notevault/internal/mcpserver"
	"github.com/starford/notevault/internal/noteservice"
	"github.com/starford/notevault/internal/sse"
	"github.com/starford/notevault/internal/storage"
	"github.com/starford/notevault/internal/termui"
	"github.com/starford/notevault/internal/vaultpath"
	"github.com/starford/notevault/internal/watch"
)

const shutdownTimeout = 10 * time.Second

type vault struct {
	root  vaultpath.Root
	store *storage.FS
	svc   *noteservice.Service
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	return app, nil
}

// newLogger builds the JSON logger. Output goes to the configured writer
// (fallback otherwise) and, when app.log_file is set, to that file as well.
func (a *application) newLogger(fallback io.Writer) (*slog.Logger, func(), error) {
	out := a.logOut
	if out == nil {
		out = fallback
	}
	closeFn := func() {}

	if path := a.config.App.LogFile; path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(out, f)
		closeFn = func() { _ = f.Close() }
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	return logger, closeFn, nil
}

// openVault creates the vault directory if needed and builds the service
// stack on top of it.
func openVault(cfg *Config) (*vault, error) {
	if err := os.MkdirAll(cfg.Vault.Location, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	root, err := vaultpath.NewRoot(cfg.Vault.Location)
	if err != nil {
		return nil, fmt.Errorf("init vault root: %w", err)
	}
	store := storage.NewFS(root)
	gen := daily.New(root, store, daily.NewTemplateRenderer(root), cfg.Vault.DailyNote)
	return &vault{
		root:  root,
		store: store,
		svc:   noteservice.NewService(root, store, gen),
	}, nil
}

// newHandler builds the HTTP handler tree. broker and tools may be nil.
func newHandler(cfg *Config, v *vault, broker *sse.Broker, tools *mcpserver.Server) http.Handler {
	var events http.Handler
	if broker != nil {
		events = broker
	}
	apiRouter := api.NewRouter(v.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, events)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := os.Stat(v.root.Dir()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"vault unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	if tools != nil {
		r.Mount("/mcp", api.AuthMiddleware(cfg.Auth.AuthEnabled(), cfg.Auth.Token)(tools.HTTPHandler()))
	}

	return r
}

// Run starts the HTTP server and, when enabled, the change feed.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger, closeLog, err := app.newLogger(os.Stdout)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.Server.Address()),
		slog.String("vault_location", cfg.Vault.Location),
		slog.String("daily_format", cfg.Vault.DailyNote.DateFormat),
		slog.Bool("mcp", cfg.Server.MCP),
		slog.Bool("events", cfg.Events.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	v, err := openVault(cfg)
	if err != nil {
		return err
	}

	var broker *sse.Broker
	if cfg.Events.Enabled {
		broker = sse.NewBroker(cfg.Events.Throttle)
		defer broker.Close()
	}

	var tools *mcpserver.Server
	if cfg.Server.MCP {
		tools = mcpserver.New(v.svc, logger, app.version)
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           newHandler(cfg, v, broker, tools),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if broker != nil {
		g.Go(func() error {
			w := watch.New(v.root, v.store, logger)
			if err := w.Run(gCtx, func(kind watch.Kind, rel string) {
				broker.PublishFileEvent(string(kind), rel)
			}); err != nil {
				logger.Warn("change feed disabled", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.Server.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		// Streaming clients only return once the broker drops them.
		if broker != nil {
			broker.Close()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the vault tools over stdin/stdout. Logs go to stderr so they
// never corrupt the protocol stream.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	logger, closeLog, err := app.newLogger(os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	v, err := openVault(app.config)
	if err != nil {
		return err
	}

	logger.Info("MCP stdio server starting", slog.String("vault_location", v.root.Dir()))
	if err := mcpserver.New(v.svc, logger, app.version).ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// RunDaily gets or creates today's note and prints it.
func RunDaily(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	logger, closeLog, err := app.newLogger(os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	v, err := openVault(app.config)
	if err != nil {
		return err
	}

	n, err := v.svc.Daily(ctx)
	if err != nil {
		return fmt.Errorf("daily note: %w", err)
	}
	logger.Debug("daily note", slog.String("path", n.Path), slog.Bool("created", n.Created))

	return termui.NewPrinter(app.stdout).PrintNote(n.Path, n.Content, n.Created)
}
