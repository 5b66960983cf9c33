// cmd/api/main.go

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"geofinder/internal/adapter/storage"
	"geofinder/internal/config"
	"geofinder/internal/domain/session"
	"geofinder/internal/logger"
	"geofinder/internal/server"
	"geofinder/internal/service/catalog"
	"geofinder/internal/service/geo"
	sessionService "geofinder/internal/service/session"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Place names
	names := catalog.DefaultNames()
	if cfg.Catalog.NamesFile != "" {
		names, err = catalog.LoadNames(cfg.Catalog.NamesFile)
		if err != nil {
			log.Error("failed to load place names", "path", cfg.Catalog.NamesFile, "error", err)
			os.Exit(1)
		}
		log.Info("loaded place names", "markets", len(names.Markets), "restaurants", len(names.Restaurants))
	}

	// Initialize core services
	rnd := geo.NewSource(cfg.Catalog.Seed)
	sampler := geo.NewSampler(rnd)
	placeCatalog := catalog.NewPlaceCatalog(sampler, rnd)

	// Initialize session storage
	store, closeStore, err := initStore(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize session store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// Initialize event bus
	var natsConn *nats.Conn
	var publisher sessionService.Publisher = sessionService.NopPublisher{}
	if cfg.NATS.URL != "" {
		natsConn, err = initNATS(cfg.NATS, log)
		if err != nil {
			log.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer natsConn.Close()
		publisher = natsConn
	} else {
		log.Info("NATS_URL not set, session events and websockets disabled")
	}

	// Initialize session manager
	sessionManager := sessionService.NewSessionManager(
		store,
		placeCatalog,
		publisher,
		sessionService.NewTokenIssuer(cfg.Identity.TokenSecret, cfg.Identity.TokenExpiry),
		sessionService.SessionManagerConfig{
			RadiusMeters:  cfg.Catalog.RadiusMeters,
			Names:         names,
			FocusSpan:     cfg.Catalog.FocusSpan,
			EventsTopic:   cfg.Session.EventsTopic,
			IdleTTL:       cfg.Session.IdleTTL,
			SweepInterval: cfg.Session.SweepInterval,
		},
		log,
	)

	// Initialize HTTP server
	httpServer := server.NewServer(
		cfg.Server,
		natsConn,
		cfg.Session.EventsTopic,
		sessionManager,
		sampler,
		placeCatalog,
		cfg.Catalog.RadiusMeters,
		names,
		log,
	)

	// Start HTTP server
	go func() {
		log.Info("starting HTTP server", "host", cfg.Server.Host, "port", cfg.Server.Port, "store", cfg.Store.Driver)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	<-shutdown
	log.Info("shutdown signal received")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Shutdown HTTP server
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	// Stop session manager
	if err := sessionManager.Stop(shutdownCtx); err != nil {
		log.Error("session manager shutdown error", "error", err)
	}

	log.Info("shutdown complete")
}

// initStore builds the configured session store and a function releasing its connections
func initStore(ctx context.Context, cfg config.Config) (session.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		db, err := initDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}

		store := storage.NewSessionStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("unable to ping redis: %w", err)
		}
		return storage.NewRedisStore(client, cfg.Redis.KeyPrefix, cfg.Session.IdleTTL), func() { client.Close() }, nil

	default:
		return storage.NewMemoryStore(), func() {}, nil
	}
}

// Initialize database connection
func initDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.MaxLifetime

	db, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	// Test connection
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return db, nil
}

// Initialize NATS connection
func initNATS(cfg config.NATSConfig, log *slog.Logger) (*nats.Conn, error) {
	options := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}

	return nc, nil
}
