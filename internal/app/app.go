package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"ml-server/internal/cache"
	"ml-server/internal/config"
	"ml-server/internal/handler"
	myMiddleware "ml-server/internal/middleware"
	"ml-server/internal/repository"
)

// App owns the three process-wide handles: the router, the document
// database and the cache. Route registration happens on Router().
type App struct {
	router chi.Router
	mongo  *repository.Mongo
	cache  *cache.RedisCache
	server *http.Server
	logger *slog.Logger
}

func NewApp(cfg config.Config) (*App, error) {
	return newApp(cfg, os.Stdout)
}

func newApp(cfg config.Config, logOut io.Writer) (*App, error) {
	// Logger
	logger := NewLogger(logOut, cfg.LogLevel, cfg.LogFormat)

	// Router
	r := chi.NewRouter()
	mw := myMiddleware.NewMiddleware(logger)
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(mw.Logging)
	r.Use(mw.Recover)
	r.Use(mw.CacheControl)
	r.Use(chiMiddleware.Compress(5))

	// Database
	mongo, err := repository.NewMongo(context.Background(), cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return nil, err
	}

	// Redis Client
	redisClient := cache.NewRedisClient(cache.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	cacheRepo := cache.NewRedisCache(redisClient)

	h := handler.NewHandler(mongo, cacheRepo, logger)
	r.Get("/healthz", h.Liveness)
	r.Get("/readyz", h.Readiness)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Application initialized",
		"mongo_database", cfg.MongoDatabase,
		"redis_addr", cfg.RedisAddr(),
	)

	return &App{
		router: r,
		mongo:  mongo,
		cache:  cacheRepo,
		server: srv,
		logger: logger,
	}, nil
}

func (a *App) Router() chi.Router {
	return a.router
}

func (a *App) Mongo() *repository.Mongo {
	return a.mongo
}

func (a *App) Cache() *cache.RedisCache {
	return a.cache
}

func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Close releases the database and cache connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.mongo.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close mongo: %w", err))
	}
	if err := a.cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close redis: %w", err))
	}
	return errors.Join(errs...)
}

func (a *App) Run() error {
	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(done)

	serveErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	a.logger.Info("Server started", "addr", a.server.Addr)

	var runErr error
	select {
	case <-done:
		a.logger.Info("Shutting down server...")
	case err := <-serveErr:
		a.logger.Error("Server failed", "error", err)
		runErr = err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("Server shutdown failed", "error", err)
		runErr = errors.Join(runErr, err)
	}
	if err := a.Close(ctx); err != nil {
		a.logger.Error("Releasing connections failed", "error", err)
		runErr = errors.Join(runErr, err)
	}
	a.logger.Info("Server exited")
	return runErr
}

// NewLogger builds the process logger. Unknown levels fall back to info,
// any format other than "json" yields text output.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
