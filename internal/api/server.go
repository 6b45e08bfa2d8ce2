// Package api implements the HTTP surface of the VRP solver service.
package api

import (
    "context"
    "fmt"

    log "github.com/sirupsen/logrus"

    "vrpsolver/internal/auth"
    "vrpsolver/internal/config"
    "vrpsolver/internal/metrics"
    "vrpsolver/internal/store"
    "vrpsolver/internal/webhooks"
)

type Server struct {
    Store   store.Store
    Pub     *webhooks.Publisher
    Auth    *auth.Verifier
    Broker  EventBroker
    Config  config.Config
    limiter *tenantLimiter
    log     *log.Entry
}

// NewServer builds a Server from cfg. The store is Postgres when DatabaseURL
// is set, SQLite when SQLitePath is set, else in-memory; the broker is Redis
// when RedisURL is set.
func NewServer(cfg config.Config) (*Server, error) {
    entry := log.WithField("component", "api")
    var s store.Store
    switch cfg.StoreKind() {
    case "postgres":
        sp, err := store.NewPostgres(cfg.DatabaseURL)
        if err != nil { return nil, err }
        if err := migrate(sp, cfg); err != nil { return nil, err }
        s = sp
    case "sqlite":
        sp, err := store.NewSQLite(cfg.SQLitePath)
        if err != nil { return nil, err }
        if err := migrate(sp, cfg); err != nil { return nil, err }
        s = sp
    default:
        s = store.NewMemory()
    }
    entry.WithField("store", cfg.StoreKind()).Info("store ready")

    var broker EventBroker = NewBroker()
    if cfg.RedisURL != "" {
        rb, err := NewRedisBroker(cfg.RedisURL)
        if err != nil {
            entry.WithError(err).Warn("redis broker unavailable, using in-process broker")
        } else {
            broker = rb
        }
    }
    metrics.RegisterDefault()
    return &Server{
        Store:   s,
        Pub:     webhooks.NewPublisher(s),
        Auth:    auth.NewVerifier(cfg.Auth),
        Broker:  broker,
        Config:  cfg,
        limiter: newTenantLimiter(cfg.Rate),
        log:     entry,
    }, nil
}

func migrate(sp *store.SQL, cfg config.Config) error {
    if !cfg.DBMigrate { return nil }
    if err := sp.Migrate(context.Background()); err != nil {
        return fmt.Errorf("migrate: %w", err)
    }
    if cfg.MigrationsDir != "" {
        if err := sp.MigrateDir(cfg.MigrationsDir); err != nil {
            return fmt.Errorf("migrate %s: %w", cfg.MigrationsDir, err)
        }
    }
    return nil
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
    return webhooks.NewWorker(s.Store, s.Config.Webhooks)
}

// Close releases the store and broker connections.
func (s *Server) Close() error {
    if c, ok := s.Broker.(interface{ Close() error }); ok {
        _ = c.Close()
    }
    if c, ok := s.Store.(interface{ Close() error }); ok {
        return c.Close()
    }
    return nil
}
