// Package sqlite stores conversations in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/zjrosen/claudecode/internal/log"
	"github.com/zjrosen/claudecode/internal/session"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// busyTimeoutMs is how long a writer waits on a locked database.
const busyTimeoutMs = 5000

// DB owns the connection pool.
type DB struct {
	conn *sql.DB
	path string
}

// NewDB opens (creating if needed) the database at path and applies pending
// migrations. An existing file is copied to path+".bak" before migrating.
func NewDB(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	_, statErr := os.Stat(path)
	existed := statErr == nil

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_pragma=journal_mode(wal)",
		path, busyTimeoutMs)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{conn: conn, path: path}
	ctx := context.Background()

	pending, err := db.pendingMigrations(ctx)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if existed && len(pending) > 0 {
		if err := db.backup(ctx); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	if err := db.migrate(ctx, pending); err != nil {
		_ = conn.Close()
		return nil, err
	}

	log.Debug(log.CatDB, "database ready", "path", path, "applied", len(pending))
	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Connection returns the underlying pool.
func (db *DB) Connection() *sql.DB {
	return db.conn
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// SessionStore returns a session.Store backed by this database. Closing
// the store does not close the database.
func (db *DB) SessionStore() session.Store {
	return newSessionStore(db.conn)
}

// SchemaVersion returns the last applied migration version, 0 if none.
func (db *DB) SchemaVersion(ctx context.Context) (uint, error) {
	if err := db.ensureVersionTable(ctx); err != nil {
		return 0, err
	}
	var v sql.NullInt64
	err := db.conn.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if !v.Valid {
		return 0, nil
	}
	return uint(v.Int64), nil
}

func (db *DB) ensureVersionTable(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		identifier TEXT    NOT NULL,
		applied_at INTEGER NOT NULL DEFAULT (unixepoch())
	)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}
	return nil
}

// migration is one up script read from the embedded source.
type migration struct {
	version    uint
	identifier string
	sql        string
}

// pendingMigrations reads the embedded up scripts newer than the current
// schema version, in order.
func (db *DB) pendingMigrations(ctx context.Context) ([]migration, error) {
	current, err := db.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	defer func() { _ = src.Close() }()

	return readPending(src, current)
}

func readPending(src source.Driver, current uint) ([]migration, error) {
	var pending []migration
	v, err := src.First()
	for err == nil {
		if v > current {
			m, readErr := readUp(src, v)
			if readErr != nil {
				return nil, readErr
			}
			pending = append(pending, m)
		}
		v, err = src.Next(v)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	return pending, nil
}

func readUp(src source.Driver, v uint) (migration, error) {
	r, identifier, err := src.ReadUp(v)
	if err != nil {
		return migration{}, fmt.Errorf("failed to read migration %d: %w", v, err)
	}
	defer func() { _ = r.Close() }()
	body, err := io.ReadAll(r)
	if err != nil {
		return migration{}, fmt.Errorf("failed to read migration %d: %w", v, err)
	}
	return migration{version: v, identifier: identifier, sql: string(body)}, nil
}

// migrate applies each migration in its own transaction.
func (db *DB) migrate(ctx context.Context, pending []migration) error {
	for _, m := range pending {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to apply migration %d (%s): %w", m.version, m.identifier, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, identifier) VALUES (?, ?)`,
			m.version, m.identifier,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
		log.Info(log.CatDB, "applied migration", "version", m.version, "name", m.identifier)
	}
	return nil
}

// backup snapshots the database before it is migrated.
func (db *DB) backup(ctx context.Context) error {
	dest := db.path + ".bak"
	if err := os.Remove(dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove old backup: %w", err)
	}
	quoted := "'" + strings.ReplaceAll(dest, "'", "''") + "'"
	if _, err := db.conn.ExecContext(ctx, `VACUUM INTO `+quoted); err != nil {
		return fmt.Errorf("failed to back up database: %w", err)
	}
	log.Info(log.CatDB, "database backed up before migration", "backup", dest)
	return nil
}
