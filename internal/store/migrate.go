package store

import (
    "context"
    "embed"
    "fmt"
    "io/fs"
    "os"
    "sort"
    "strings"
    "time"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the embedded schema.
func (s *SQL) Migrate(ctx context.Context) error {
    sub, err := fs.Sub(migrations, "migrations")
    if err != nil { return err }
    return s.migrateFS(ctx, sub)
}

// MigrateDir applies *.sql files from dir in lexical order. Files already
// recorded in schema_migrations are skipped.
func (s *SQL) MigrateDir(dir string) error {
    return s.migrateFS(context.Background(), os.DirFS(dir))
}

func (s *SQL) migrateFS(ctx context.Context, fsys fs.FS) error {
    if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at BIGINT NOT NULL)`); err != nil {
        return fmt.Errorf("failed to create schema_migrations: %w", err)
    }
    names, err := fs.Glob(fsys, "*.sql")
    if err != nil { return err }
    sort.Strings(names)
    for _, name := range names {
        var n int
        if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM schema_migrations WHERE version=?`), name).Scan(&n); err != nil {
            return fmt.Errorf("failed to check migration %s: %w", name, err)
        }
        if n > 0 { continue }
        body, err := fs.ReadFile(fsys, name)
        if err != nil { return err }
        if err := s.applyMigration(ctx, name, string(body)); err != nil {
            return fmt.Errorf("failed to apply migration %s: %w", name, err)
        }
        s.log.WithField("version", name).Info("migration applied")
    }
    return nil
}

func (s *SQL) applyMigration(ctx context.Context, name, body string) error {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil { return err }
    defer func() { _ = tx.Rollback() }()
    for _, stmt := range splitStatements(body) {
        if _, err := tx.ExecContext(ctx, stmt); err != nil { return err }
    }
    if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`), name, time.Now().UnixMilli()); err != nil {
        return err
    }
    return tx.Commit()
}

// splitStatements drops comment lines and splits on semicolons. Migration
// files must not carry semicolons inside literals.
func splitStatements(body string) []string {
    var b strings.Builder
    for _, line := range strings.Split(body, "\n") {
        if strings.HasPrefix(strings.TrimSpace(line), "--") { continue }
        b.WriteString(line)
        b.WriteByte('\n')
    }
    out := []string{}
    for _, stmt := range strings.Split(b.String(), ";") {
        if stmt = strings.TrimSpace(stmt); stmt != "" { out = append(out, stmt) }
    }
    return out
}
