// Package server assembles and runs the sos-server process: configuration,
// store backend, location provider, lifecycle service, watchdog and the HTTP
// transport, with graceful shutdown on context cancellation.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	api "github.com/careline/sos-beacon/internal/api/http/sos"
	"github.com/careline/sos-beacon/internal/config"
	"github.com/careline/sos-beacon/internal/logger"
	"github.com/careline/sos-beacon/internal/provider/location"
	"github.com/careline/sos-beacon/internal/repository/records"
	"github.com/careline/sos-beacon/internal/service/alerts"
	"github.com/careline/sos-beacon/internal/service/watchdog"
)

// Options controls the sos-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override.
	ListenAddress string
}

// shutdownTimeout bounds the drain of in-flight HTTP requests.
const shutdownTimeout = 10 * time.Second

// Run starts the HTTP server and blocks until the context is cancelled or the
// server stops. Loads configuration first, then wires the store backend and
// the rest of the stack around it.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "sos-server")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	// Raise the configured log level before anything interesting happens.
	// Validation already rejected unknown levels.
	if level, ok := logger.ParseLogLevel(settings.LogLevel); ok {
		logger.SetLevel(level)
	}

	listenAddress := settings.ListenAddress
	if opts.ListenAddress != "" {
		listenAddress = opts.ListenAddress
	}

	// Select the record store backend and the matching location provider.
	// Redis brings the live location feed with it; the memory backend has no
	// position source, so location settles at not_available.
	store, provider, err := buildBackend(ctx, settings)
	if err != nil {
		return fmt.Errorf("initialise store: %w", err)
	}

	defer func() {
		if err := store.Close(); err != nil {
			logger.ErrorKV(ctx, "Store close failed", "error", err)
		}
	}()

	svc := alerts.NewService(ctx, store, provider, alerts.Options{
		OneShotTimeout:    settings.Location.OneShotTimeout,
		MinMovementMeters: settings.Location.MinMovementMeters,
	})
	defer svc.Shutdown()

	// The watchdog only reads and logs; its failure to start is fatal because
	// it means the cron spec in the settings is unusable.
	dog := watchdog.New(store, watchdog.Options{
		Schedule:   settings.Watchdog.Schedule,
		StaleAfter: settings.Watchdog.StaleAfter,
	})
	if err := dog.Start(ctx); err != nil {
		return fmt.Errorf("start watchdog: %w", err)
	}

	defer dog.Stop()

	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	api.NewServer(svc, store).Register(engine)

	httpServer := &http.Server{
		Addr:              listenAddress,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.InfoKV(ctx, "SOS server listening",
		"listen_address", listenAddress, "store_backend", settings.Store.Backend)

	// Done channel is closed after Shutdown finishes to ensure we block until
	// in-flight requests drain before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down HTTP server")

		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(drainCtx); err != nil {
			logger.ErrorKV(ctx, "HTTP shutdown failed", "error", err)
		}

		close(done)
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	<-done
	logger.Info(ctx, "HTTP server stopped")

	return nil
}

// buildBackend creates the record store and location provider pair for the
// configured backend. With redis, both share a single client.
func buildBackend(ctx context.Context, settings *config.Config) (records.Store, location.Provider, error) {
	switch settings.Store.Backend {
	case "redis":
		client, err := records.Connect(ctx, settings.Store.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}

		return records.NewRedisStore(client, settings.Store.KeyPrefix),
			location.NewRedisFeed(client, settings.Store.KeyPrefix),
			nil
	default:
		return records.NewMemoryStore(), location.NewNoopProvider(), nil
	}
}
