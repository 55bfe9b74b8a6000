// Package store provides the SQLite-backed persistence for diary, photos,
// plants, tasks and chat. The schema is versioned by embedded migrations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// DB wraps a sql.DB with plantbutler-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and migrates it to the latest schema.
func Open(path string) (*DB, error) {
	conn, err := sql.Open(driverName, dsn(path))
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	applied, err := Migrate(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if applied > 0 {
		slog.Info("store: migrations applied", slog.Int("count", applied), slog.String("driver", driverName))
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection; used by /health/ready.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}
