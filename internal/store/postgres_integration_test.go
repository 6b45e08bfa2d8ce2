//go:build postgres_integration

package store

import (
    "os"
    "testing"
)

func TestPostgresStore(t *testing.T) {
    dsn := os.Getenv("DATABASE_URL")
    if dsn == "" { t.Skip("DATABASE_URL not set; skipping integration test") }
    p, err := NewPostgres(dsn)
    if err != nil { t.Fatalf("NewPostgres: %v", err) }
    t.Cleanup(func() { _ = p.Close() })
    if err := p.Ping(t.Context()); err != nil { t.Fatalf("Ping: %v", err) }
    if err := p.Migrate(t.Context()); err != nil { t.Fatalf("Migrate: %v", err) }
    runStoreSuite(t, func(t *testing.T) Store {
        for _, table := range []string{"webhook_dlq", "webhook_deliveries", "subscriptions", "optimizer_config", "solve_runs", "problems"} {
            if _, err := p.db.Exec("DELETE FROM " + table); err != nil { t.Fatalf("reset %s: %v", table, err) }
        }
        return p
    })
}
