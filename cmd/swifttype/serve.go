package main

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

	"github.com/spf13/cobra"

	"github.com/verte-zerg/swifttype/internal/auth"
	"github.com/verte-zerg/swifttype/internal/config"
	"github.com/verte-zerg/swifttype/internal/docstore"
	"github.com/verte-zerg/swifttype/internal/httpapi"
	"github.com/verte-zerg/swifttype/internal/leaderboard"
	"github.com/verte-zerg/swifttype/internal/logging"
	"github.com/verte-zerg/swifttype/internal/metrics"
	"github.com/verte-zerg/swifttype/internal/realtime"
	"github.com/verte-zerg/swifttype/internal/stats"
	"github.com/verte-zerg/swifttype/internal/store"
	"github.com/verte-zerg/swifttype/internal/texts"
)

const (
	defaultAddr         = ":5000"
	defaultRateLimit    = 10.0
	defaultRateBurst    = 20
	defaultDatabaseName = docstore.DefaultDatabase
	defaultDriver       = "sqlite"
	shutdownTimeout     = 10 * time.Second
	readHeaderTimeout   = 5 * time.Second
)

var (
	serveAddr      string
	serveOrigins   []string
	serveRateLimit float64
	serveRateBurst int
	serveSecret    string
	serveTokenTTL  time.Duration
	serveMetrics   bool
	serveDriver    string
	serveDBPath    string
	serveDBURI     string
	serveDBName    string
	serveLogLevel  string
	serveLogFormat string
	serveEnvFile   string
)

// backend is the storage a server runs on.
type backend interface {
	auth.UserRepository
	leaderboard.Repository
	stats.HistorySource
	Ping(ctx context.Context) error
	Close() error
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the leaderboard server",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", defaultAddr, "listen address")
	cmd.Flags().StringSliceVar(&serveOrigins, "allowed-origins", nil, "allowed CORS and WebSocket origins (default: any)")
	cmd.Flags().Float64Var(&serveRateLimit, "rate-limit", defaultRateLimit, "requests per second per client IP (0 disables)")
	cmd.Flags().IntVar(&serveRateBurst, "rate-burst", defaultRateBurst, "rate limit burst")
	cmd.Flags().StringVar(&serveSecret, "jwt-secret", "", "token signing secret (or "+config.EnvJWTSecret+")")
	cmd.Flags().DurationVar(&serveTokenTTL, "token-ttl", auth.DefaultTokenTTL, "token lifetime")
	cmd.Flags().BoolVar(&serveMetrics, "metrics", true, "expose Prometheus metrics on /metrics")
	cmd.Flags().StringVar(&serveDriver, "db-driver", defaultDriver, "storage driver: sqlite or mongo")
	cmd.Flags().StringVar(&serveDBPath, "db-path", "", "SQLite database path")
	cmd.Flags().StringVar(&serveDBURI, "db-uri", "", "MongoDB connection URI (or "+config.EnvDatabaseURI+")")
	cmd.Flags().StringVar(&serveDBName, "db-name", defaultDatabaseName, "MongoDB database name")
	cmd.Flags().StringVar(&serveLogLevel, "log-level", "info", "log level: debug, info, warn, error")
	cmd.Flags().StringVar(&serveLogFormat, "log-format", "text", "log format: text or json")
	cmd.Flags().StringVar(&serveEnvFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(serveEnvFile); err != nil {
		return err
	}
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	config.ApplyEnv(&fileCfg)
	applyServeConfig(cmd, fileCfg)

	logger, err := logging.New(serveLogLevel, serveLogFormat, os.Stderr)
	if err != nil {
		return err
	}
	if strings.TrimSpace(serveSecret) == "" {
		return fmt.Errorf("a token secret is required (--jwt-secret or %s)", config.EnvJWTSecret)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := be.Close(); cerr != nil {
			logger.Error("failed to close storage", "err", cerr)
		}
	}()

	handler, hub, err := buildServer(logger, be)
	if err != nil {
		return err
	}
	defer hub.Close()

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", serveAddr, "driver", serveDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func applyServeConfig(cmd *cobra.Command, fileCfg config.FileConfig) {
	applyStringConfig(cmd, "addr", &serveAddr, fileCfg.Server.Addr)
	applyStringsConfig(cmd, "allowed-origins", &serveOrigins, fileCfg.Server.AllowedOrigins)
	applyFloatConfig(cmd, "rate-limit", &serveRateLimit, fileCfg.Server.RateLimit)
	applyIntConfig(cmd, "rate-burst", &serveRateBurst, fileCfg.Server.RateBurst)
	applyStringConfig(cmd, "jwt-secret", &serveSecret, fileCfg.Server.JWTSecret)
	applyBoolConfig(cmd, "metrics", &serveMetrics, fileCfg.Server.Metrics)
	applyStringConfig(cmd, "db-driver", &serveDriver, fileCfg.Database.Driver)
	applyStringConfig(cmd, "db-path", &serveDBPath, fileCfg.Database.Path)
	applyStringConfig(cmd, "db-uri", &serveDBURI, fileCfg.Database.URI)
	applyStringConfig(cmd, "db-name", &serveDBName, fileCfg.Database.Name)
	applyStringConfig(cmd, "log-level", &serveLogLevel, fileCfg.Log.Level)
	applyStringConfig(cmd, "log-format", &serveLogFormat, fileCfg.Log.Format)
	if fileCfg.Server.TokenTTL != nil && !cmd.Flags().Changed("token-ttl") {
		if ttl, err := time.ParseDuration(*fileCfg.Server.TokenTTL); err == nil {
			serveTokenTTL = ttl
		} else {
			logErrf("ignoring invalid token-ttl %q: %v\n", *fileCfg.Server.TokenTTL, err)
		}
	}
}

func openBackend(ctx context.Context) (backend, error) {
	switch strings.ToLower(strings.TrimSpace(serveDriver)) {
	case "", "sqlite":
		path := serveDBPath
		if path == "" {
			path = config.DefaultDBPath()
		}
		st, err := store.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %w", err)
		}
		return st, nil
	case "mongo", "mongodb":
		if serveDBURI == "" {
			return nil, fmt.Errorf("mongo driver needs --db-uri or %s", config.EnvDatabaseURI)
		}
		ds, err := docstore.Open(ctx, serveDBURI, serveDBName)
		if err != nil {
			return nil, fmt.Errorf("failed to open mongo: %w", err)
		}
		return ds, nil
	default:
		return nil, fmt.Errorf("unknown db driver %q (sqlite or mongo)", serveDriver)
	}
}

// buildServer wires services and the router on top of be.
func buildServer(logger *slog.Logger, be backend) (http.Handler, *realtime.Hub, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	provider, err := texts.NewProvider(texts.Options{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load texts: %w", err)
	}
	hub := realtime.NewHub(logger, serveOrigins)
	board := leaderboard.New(be, hub)

	cfg := httpapi.Config{
		Logger:         logger,
		Accounts:       auth.NewService(be, auth.NewTokenProvider(serveSecret, serveTokenTTL)),
		Leaderboard:    board,
		History:        be,
		Texts:          provider,
		Health:         be,
		WebSocket:      hub,
		AllowedOrigins: serveOrigins,
		RateLimit:      serveRateLimit,
		RateBurst:      serveRateBurst,
	}
	if serveMetrics {
		m := metrics.New()
		board.OnSubmit = m.ObserveScore
		hub.OnCount = m.SetWSClients
		cfg.Metrics = m.Handler()
		cfg.Observer = m
	}
	return httpapi.NewRouter(cfg), hub, nil
}
