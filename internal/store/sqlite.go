package store

import (
    "database/sql"
    "fmt"

    _ "modernc.org/sqlite"
)

// NewSQLite opens (or creates) a SQLite database at path. ":memory:" gives a
// private database, which is what the tests use.
func NewSQLite(path string) (*SQL, error) {
    db, err := sql.Open("sqlite", path)
    if err != nil {
        return nil, fmt.Errorf("failed to open database: %w", err)
    }
    // Each connection to ":memory:" is its own database.
    db.SetMaxOpenConns(1)

    pragmas := []string{
        "PRAGMA foreign_keys = ON",
        "PRAGMA journal_mode = WAL",
        "PRAGMA synchronous = NORMAL",
        "PRAGMA busy_timeout = 5000",
    }
    for _, pragma := range pragmas {
        if _, err := db.Exec(pragma); err != nil {
            db.Close()
            return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
        }
    }
    return newSQL(db, dialectSQLite), nil
}
