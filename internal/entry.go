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
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/starford/quire/internal/api"
	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/loader"
	"github.com/starford/quire/internal/locator"
	"github.com/starford/quire/internal/mcpserver"
	"github.com/starford/quire/internal/metrics"
	"github.com/starford/quire/internal/render"
	"github.com/starford/quire/internal/storage"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{
		version: "dev",
		logOut:  os.Stdout,
		out:     os.Stdout,
	}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// newLogger initializes the structured JSON logger and installs it as default.
func (a *application) newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOut, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// engine is the content side of the application.
type engine struct {
	store    *storage.FS
	loader   *loader.Loader
	registry *prometheus.Registry
}

func (a *application) newEngine(logger *slog.Logger) (*engine, error) {
	cfg := a.config

	store, err := storage.NewFS(cfg.Content.Root, cfg.Content.Extensions...)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	reg := prometheus.NewRegistry()
	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Metrics.Enabled {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		recorder = metrics.NewPrometheusRecorder(reg)
	}

	loc := locator.New(store,
		locator.WithCategories(cfg.Content.Categories...),
		locator.WithExtensions(cfg.Content.Extensions...),
		locator.WithLogger(logger),
	)
	l := loader.New(store, loc,
		loader.WithMaxConcurrency(cfg.Loader.MaxConcurrency),
		loader.WithRenderOptions(render.Options{
			PageBase:  cfg.Render.PageBase,
			AssetBase: cfg.Render.AssetBase,
		}),
		loader.WithRecorder(recorder),
		loader.WithLogger(logger),
	)
	return &engine{store: store, loader: l, registry: reg}, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("content_root", cfg.Content.Root),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Int("max_concurrency", cfg.Loader.MaxConcurrency),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure content directory exists.
	if err := os.MkdirAll(cfg.Content.Root, 0o755); err != nil {
		return fmt.Errorf("create content dir: %w", err)
	}

	eng, err := app.newEngine(logger)
	if err != nil {
		return err
	}

	// Initialize SQLite index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	// Run initial sync.
	if err := index.Sync(ctx, db, eng.store, eng.loader, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	// Build chi router.
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
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, metrics.HTTPHandler(eng.registry))
	}

	// Local asset base: serve media referenced by rendered documents.
	if strings.HasPrefix(cfg.Render.AssetBase, "/") {
		assets := api.NewAssetHandler(eng.store, cfg.Content.Extensions)
		r.Get(path.Join(cfg.Render.AssetBase, "*"), assets.ServeFile)
	}

	// Mount API routes under /api.
	r.Mount("/api", api.NewRouter(api.NewHandler(eng.loader, db), cfg.Auth.AuthEnabled(), cfg.Auth.Token))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Keep the index and the loader cache in step with the content tree.
	if cfg.Content.Watch {
		g.Go(func() error {
			if err := index.Watch(gCtx, db, eng.store, eng.loader, logger, func(kind, p string) {
				logger.Info("content changed", slog.String("op", kind), slog.String("path", p))
			}); err != nil {
				logger.Error("watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
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

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
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

// errShutdown cancels the errgroup so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. The index is optional: when
// it cannot be opened the search tools report an error and rendering still
// works.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	app.logOut = os.Stderr
	logger := app.newLogger()

	eng, err := app.newEngine(logger)
	if err != nil {
		return err
	}

	var idx index.DocumentIndex
	if db, err := index.Open(app.config.SQLite.Path); err != nil {
		logger.Warn("index unavailable", slog.String("error", err.Error()))
	} else {
		defer db.Close()
		if err := index.Sync(ctx, db, eng.store, eng.loader, logger); err != nil {
			logger.Warn("initial sync failed", slog.String("error", err.Error()))
		}
		idx = db
	}

	logger.Info("MCP server starting", slog.String("version", app.version))
	return mcpserver.New(eng.loader, idx, app.version).ServeStdio()
}

// Render resolves ref and writes it in format to the configured output.
func Render(ctx context.Context, ref, format string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger()

	f, err := render.ParseFormat(format)
	if err != nil {
		return err
	}
	eng, err := app.newEngine(logger)
	if err != nil {
		return err
	}
	doc, err := eng.loader.Load(ctx, ref)
	if err != nil {
		return err
	}
	for _, d := range doc.Diagnostics {
		logger.Warn("diagnostic",
			slog.String("slug", doc.Slug),
			slog.String("code", d.Code),
			slog.String("message", d.Message))
	}
	out := doc.HTML
	if f == render.FormatXML {
		out = doc.XML
	}
	_, err = io.WriteString(app.out, out)
	return err
}

// Locate writes the content-relative path of ref to the configured output.
func Locate(ref string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	eng, err := app.newEngine(app.newLogger())
	if err != nil {
		return err
	}
	p, err := eng.loader.Locate(ref)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(app.out, p)
	return err
}

// Export renders every document under the content root into dir, one
// <slug>.html and one <slug>.dita per document. It returns the number of
// documents written.
func Export(ctx context.Context, dir string, opts ...Option) (int, error) {
	app, err := newApplication(opts)
	if err != nil {
		return 0, err
	}
	logger := app.newLogger()

	eng, err := app.newEngine(logger)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create export dir: %w", err)
	}
	out, err := storage.NewFS(dir)
	if err != nil {
		return 0, err
	}

	sources, err := eng.store.List("")
	if err != nil {
		return 0, err
	}

	written := make([]bool, len(sources))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(app.config.Loader.MaxConcurrency)
	for i, src := range sources {
		g.Go(func() error {
			doc, err := eng.loader.Load(gCtx, src.Path)
			if err != nil {
				return fmt.Errorf("export %s: %w", src.Path, err)
			}
			if doc.Path != src.Path {
				logger.Debug("export: shadowed", slog.String("path", src.Path), slog.String("by", doc.Path))
				return nil
			}
			if err := out.Write(doc.Slug+".html", []byte(doc.HTML)); err != nil {
				return err
			}
			if err := out.Write(doc.Slug+".dita", []byte(doc.XML)); err != nil {
				return err
			}
			written[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	n := 0
	for _, ok := range written {
		if ok {
			n++
		}
	}
	logger.Info("export finished", slog.String("dir", dir), slog.Int("documents", n))
	return n, nil
}
