package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-library/internal/logging"
	"media-library/internal/metrics"
)

const defaultTimeout = 5 * time.Second

// Database is the SQLite-backed asset store.
type Database struct {
	db     *sql.DB
	dbPath string

	// txMu guards the single held write transaction.
	txMu    sync.Mutex
	tx      *sql.Tx
	txStart time.Time
}

// New opens (creating if needed) the database file at dbPath and applies the
// schema. The parent directory must exist and be writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// busy_timeout avoids "database is locked" under concurrent readers
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := newWithDB(db, dbPath)
	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func newWithDB(db *sql.DB, dbPath string) *Database {
	return &Database{db: db, dbPath: dbPath}
}

func (d *Database) initialize(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("initialize_schema", start, err) }()

	schema := `
	CREATE TABLE IF NOT EXISTS assets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		mod_time INTEGER NOT NULL,
		thumbnail_ready INTEGER NOT NULL DEFAULT 0,
		thumbnail_time INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_assets_kind ON assets(kind);
	CREATE INDEX IF NOT EXISTS idx_assets_thumbnail_ready ON assets(thumbnail_ready);
	`

	if _, err = d.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	err = d.runMigrations(ctx)
	return err
}

// runMigrations applies schema changes made after the first release.
func (d *Database) runMigrations(ctx context.Context) error {
	// Migration 1: LCD visit tracking for the aging pass
	var columnExists bool
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info('assets')
		WHERE name='lcd_visit_time'
	`).Scan(&columnExists)
	if err != nil {
		return fmt.Errorf("failed to check for lcd_visit_time column: %w", err)
	}

	if !columnExists {
		logging.Info("Migrating database: adding lcd_visit_time column to assets table")
		if _, err := d.db.ExecContext(ctx, `
			ALTER TABLE assets ADD COLUMN lcd_visit_time INTEGER NOT NULL DEFAULT 0
		`); err != nil {
			return fmt.Errorf("failed to add lcd_visit_time column: %w", err)
		}
	}

	if _, err := d.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_assets_lcd_visit ON assets(lcd_visit_time)
	`); err != nil {
		return fmt.Errorf("failed to create lcd_visit_time index: %w", err)
	}

	return nil
}

// Close closes the database connection, rolling back any open transaction.
func (d *Database) Close() error {
	d.txMu.Lock()
	if d.tx != nil {
		_ = d.tx.Rollback()
		d.tx = nil
	}
	d.txMu.Unlock()
	return d.db.Close()
}

// Ping checks that the database is reachable.
func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// UpdateDBMetrics updates database connection metrics
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// diagnoseDatabasePermissions logs the state of the database directory so
// permission problems on mounted volumes show up before the first write.
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}
	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	f, err := os.Create(testFile)
	if err != nil {
		return fmt.Errorf("database directory %s is not writable: %w", dir, err)
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	if info, err := os.Stat(dbPath); err == nil {
		logging.Debug("Database file: %s (mode: %v, size: %d)", dbPath, info.Mode(), info.Size())
	}
	return nil
}
