// Command server runs the building efficiency API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/codeGROOVE-dev/gsm"

	"github.com/codeGROOVE-dev/efftrack/internal/server"
	"github.com/codeGROOVE-dev/efftrack/pkg/efficiency"
	"github.com/codeGROOVE-dev/efftrack/pkg/store"
)

const (
	defaultPort       = "8080"
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 120 * time.Second
	maxHeaderBytes    = 1 << 20 // 1MB
)

// Build variables - set by ldflags.
var (
	GitCommit = "unknown"
	GitBranch = "unknown"
	BuildTime = "unknown"
)

func main() {
	ctx := context.Background()

	var (
		port        = flag.String("port", "", "Port to run the server on")
		version     = flag.Bool("version", false, "Print version and exit")
		corsOrigins = flag.String("cors-origins",
			"http://localhost:5173,http://localhost:3000",
			"Comma-separated list of allowed CORS origins (supports *.domain.com wildcards)")
		allowAllCors = flag.Bool("allow-all-cors", false, "Allow all CORS origins (use only for development)")
		rateLimit    = flag.Int("rate-limit", server.DefaultRateLimit, "Requests per second rate limit")
		rateBurst    = flag.Int("rate-burst", server.DefaultRateBurst, "Rate limit burst size")
		backend      = flag.String("store", "memory", "Record store: memory, sqlite, postgres or datastore")
		sqlitePath   = flag.String("sqlite-path", "efftrack.db", "SQLite database file for -store=sqlite")
		logLevel     = flag.String("log-level", "info", "Log level: debug, info, warn or error")
	)
	flag.Parse()

	level := envOr("LOG_LEVEL", *logLevel)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     parseLevel(level),
	}))
	slog.SetDefault(logger)

	if *version {
		logger.InfoContext(ctx, "efftrack-server version",
			"commit", GitCommit,
			"branch", GitBranch,
			"built", BuildTime,
			"go", runtime.Version())
		os.Exit(0)
	}

	logger.InfoContext(ctx, "starting server",
		"commit", GitCommit,
		"branch", GitBranch,
		"built", BuildTime,
		"go", runtime.Version(),
		"pid", os.Getpid())

	// Environment overrides flag defaults.
	serverPort := *port
	if serverPort == "" {
		serverPort = envOr("PORT", defaultPort)
	}
	origins := envOr("CORS_ORIGINS", *corsOrigins)
	storeBackend := envOr("STORE_BACKEND", *backend)

	recordStore, closeStore, err := openStore(ctx, logger, storeBackend, *sqlitePath)
	if err != nil {
		logger.ErrorContext(ctx, "failed to open record store", "store", storeBackend, "error", err)
		os.Exit(1)
	}
	logger.InfoContext(ctx, "record store ready", "store", storeBackend)

	svc := efficiency.NewService(recordStore, logger)
	apiServer := server.New(svc)
	apiServer.SetCommit(GitCommit)
	apiServer.SetCORSConfig(origins, *allowAllCors)
	apiServer.SetRateLimit(*rateLimit, *rateBurst)

	srv := &http.Server{
		Addr:              ":" + serverPort,
		Handler:           apiServer,
		ReadTimeout:       readHeaderTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "server listening", "port", serverPort)
		serverErrors <- srv.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	exitCode := 0
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "server error", "error", err)
			exitCode = 1
		}
	case sig := <-sigChan:
		logger.InfoContext(ctx, "received signal", "signal", sig)
		logger.InfoContext(ctx, "starting graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WarnContext(ctx, "graceful shutdown failed", "error", err)
			if err := srv.Close(); err != nil {
				logger.ErrorContext(ctx, "server close error", "error", err)
				exitCode = 1
			}
		}
		cancel()
	}

	if err := closeStore.Close(); err != nil {
		logger.WarnContext(ctx, "record store close failed", "error", err)
	}
	logger.InfoContext(ctx, "server stopped")
	os.Exit(exitCode)
}

// openStore opens the configured record store.
func openStore(ctx context.Context, logger *slog.Logger, backend, sqlitePath string) (efficiency.Store, io.Closer, error) {
	switch backend {
	case "memory":
		logger.WarnContext(ctx, "using in-memory store - records are lost on restart")
		return store.NewMemory(), nopCloser{}, nil
	case "sqlite":
		s, err := store.OpenSQLite(ctx, sqlitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "postgres":
		dsn, err := databaseURL(ctx, logger)
		if err != nil {
			return nil, nil, err
		}
		s, err := store.OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "datastore":
		project := envOr("DATASTORE_PROJECT", os.Getenv("GOOGLE_CLOUD_PROJECT"))
		if project == "" {
			return nil, nil, errors.New("DATASTORE_PROJECT or GOOGLE_CLOUD_PROJECT must be set")
		}
		s, err := store.OpenDatastore(ctx, project, os.Getenv("DATASTORE_DATABASE"))
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q (want memory, sqlite, postgres or datastore)", backend)
	}
}

// databaseURL reads the Postgres DSN from DATABASE_URL, falling back to Secret Manager.
func databaseURL(ctx context.Context, logger *slog.Logger) (string, error) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		logger.InfoContext(ctx, "Using DATABASE_URL from environment variable")
		return dsn, nil
	}
	dsn, err := gsm.Fetch(ctx, "DATABASE_URL")
	if err != nil {
		return "", fmt.Errorf("DATABASE_URL not set and Secret Manager lookup failed: %w", err)
	}
	logger.InfoContext(ctx, "Using DATABASE_URL from Google Secret Manager")
	return dsn, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}
