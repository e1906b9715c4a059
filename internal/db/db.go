package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// DriverName is the sqlite3 driver variant used by this package. Every
// connection gets the connection pragmas and a fold(text) function that
// lowercases the way Go does, so storage-side searches agree with in-memory
// filtering.
const DriverName = "sqlite3_users"

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{ConnectHook: prepareConn})
}

// prepareConn runs once for every pooled connection.
func prepareConn(conn *sqlite3.SQLiteConn) error {
	// journal_mode may not be supported in some contexts (e.g., in-memory). Ignore errors.
	_, _ = conn.Exec(`PRAGMA journal_mode=WAL`, nil)
	if _, err := conn.Exec(`PRAGMA busy_timeout=5000`, nil); err != nil {
		return err
	}
	if _, err := conn.Exec(`PRAGMA foreign_keys=ON`, nil); err != nil {
		return err
	}
	return conn.RegisterFunc("fold", strings.ToLower, true)
}

// Open opens (or creates) a local SQLite database file and brings its schema
// up to the latest version using the default steps.
// A failed migration closes the handle; the caller must not proceed.
func Open(path string) (*sql.DB, error) {
	return OpenWith(context.Background(), path, NewMigrator(zap.NewNop()))
}

// OpenWith is Open with an explicit migrator.
func OpenWith(ctx context.Context, path string, m *Migrator) (*sql.DB, error) {
	d, err := Connect(path)
	if err != nil {
		return nil, err
	}
	if _, err := m.Migrate(ctx, d); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

// Connect opens the database and applies connection pragmas without touching
// the schema.
func Connect(path string) (*sql.DB, error) {
	if path == "" {
		path = "users.db"
	}
	d, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, err
	}
	if err := d.Ping(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

// WithTx begins a transaction, runs fn, and commits on success or rolls back
// on error or panic. Panics are rethrown.
func WithTx(ctx context.Context, d *sql.DB, fn func(ctx context.Context, tx *sql.Tx) error) (err error) {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(ctx, tx)
}
