package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	msqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"ghnotifier/pkg/logx"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		dir, err := StateDir(DefaultIdentity)
		if err != nil {
			return nil, fmt.Errorf("resolve state dir: %w", err)
		}
		path = filepath.Join(dir, "state.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = time.Second
	}
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		// FULL makes every commit durable before it returns.
		"PRAGMA synchronous = FULL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	version, err := runMigrations(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("sqlite store ready", logx.String("path", path), logx.Int("schema_version", int(version)))
	return &sqliteStore{db: db, log: log}, nil
}

func runMigrations(db *sql.DB) (uint, error) {
	driver, err := msqlite.WithInstance(db, &msqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("failed to create sqlite migrate driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("failed to create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return 0, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to run migrations: %w", err)
	}
	version, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) LoadWatermark(ctx context.Context) (time.Time, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT at FROM watermark WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNoWatermark
	}
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(timestampLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse watermark row: %w", err)
	}
	return t, nil
}

func (s *sqliteStore) SaveWatermark(ctx context.Context, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO watermark(id, at, updated_at) VALUES(1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET at = excluded.at, updated_at = excluded.updated_at`,
		formatTimestamp(at), formatTimestamp(time.Now()),
	)
	return err
}

func (s *sqliteStore) AppendDispatch(ctx context.Context, e DispatchEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatch_log(at, cycle_id, item_id, repository, reason, outcome, err, took_ms)
		 VALUES(?,?,?,?,?,?,?,?)`,
		formatTimestamp(e.At), e.CycleID, e.ItemID, nullStr(e.Repository), nullStr(e.Reason),
		string(e.Outcome), nullStr(e.Error), e.TookMS,
	)
	return err
}

func nullStr(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
