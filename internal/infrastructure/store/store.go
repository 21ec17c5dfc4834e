package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Store configuration constants.
const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	// Bundles contain private key material, so owner-only access.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second

	// connMaxIdleTime is how long idle connections are kept open.
	connMaxIdleTime = 30 * time.Minute
)

// schema creates the bundle cache table. The raw bundle is kept as a
// blob keyed by account so re-authentication with a different account
// never reuses another account's certificates.
const schema = `
CREATE TABLE IF NOT EXISTS certificate_bundles (
	account_id TEXT PRIMARY KEY,
	bundle     BLOB NOT NULL,
	fetched_at TIMESTAMP NOT NULL
);
`

// Store wraps a sql.DB connection holding cached certificate bundles.
// It provides health checks and proper lifecycle management.
type Store struct {
	db   *sql.DB
	path string
}

// Config contains bundle cache configuration options.
// These map to the database section of config.yaml.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	// The directory will be created if it doesn't exist.
	Path string

	// WALMode enables Write-Ahead Logging for better concurrent access.
	WALMode bool

	// BusyTimeout is the maximum time to wait for a database lock (seconds).
	BusyTimeout int
}

// Open creates a new bundle cache with the specified configuration.
//
// It performs the following setup:
//  1. Creates the database directory if it doesn't exist
//  2. Opens the database file (creates if not present)
//  3. Configures WAL mode and busy timeout
//  4. Sets appropriate file permissions (0600)
//  5. Verifies the connection with a ping and creates the schema
//
// Parameters:
//   - cfg: Bundle cache configuration
//
// Returns:
//   - *Store: Connected cache ready for use
//   - error: If connection or configuration fails
func Open(cfg Config) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	// Build connection string with pragmas
	// See: https://github.com/mattn/go-sqlite3#connection-string
	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path,
		cfg.BusyTimeout*msPerSecond,
	)

	// Add WAL mode if enabled
	if cfg.WALMode {
		connStr += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	sqlDB, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	// SQLite works best with a single writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	st := &Store{
		db:   sqlDB,
		path: cfg.Path,
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying store connection: %w", err)
	}

	if _, err := sqlDB.ExecContext(ctx, schema); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("creating store schema: %w", err)
	}

	// Set file permissions (owner read/write only)
	// Ignore error - file might not exist yet on first run, will be set after first write
	_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // Intentional: first run creates file later

	return st, nil
}

// SaveBundle caches the raw bundle bytes for an account, replacing any
// previously cached bundle.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - accountID: Account the bundle belongs to
//   - bundle: Raw bundle bytes exactly as downloaded
//
// Returns:
//   - error: If validation or the write fails
func (s *Store) SaveBundle(ctx context.Context, accountID string, bundle []byte) error {
	if accountID == "" {
		return ErrEmptyAccountID
	}
	if len(bundle) == 0 {
		return ErrEmptyBundle
	}

	const query = `
		INSERT INTO certificate_bundles (account_id, bundle, fetched_at)
		VALUES (?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			bundle = excluded.bundle,
			fetched_at = excluded.fetched_at
	`
	if _, err := s.db.ExecContext(ctx, query, accountID, bundle, time.Now().UTC()); err != nil {
		return fmt.Errorf("saving bundle: %w", err)
	}
	return nil
}

// LoadBundle returns the cached bundle for an account and when it was
// fetched. Returns ErrNotFound if no bundle is cached.
func (s *Store) LoadBundle(ctx context.Context, accountID string) ([]byte, time.Time, error) {
	if accountID == "" {
		return nil, time.Time{}, ErrEmptyAccountID
	}

	const query = `SELECT bundle, fetched_at FROM certificate_bundles WHERE account_id = ?`

	var bundle []byte
	var fetchedAt time.Time
	err := s.db.QueryRowContext(ctx, query, accountID).Scan(&bundle, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("loading bundle: %w", err)
	}
	return bundle, fetchedAt, nil
}

// DeleteBundle removes the cached bundle for an account.
// Deleting a bundle that does not exist is not an error.
func (s *Store) DeleteBundle(ctx context.Context, accountID string) error {
	if accountID == "" {
		return ErrEmptyAccountID
	}

	const query = `DELETE FROM certificate_bundles WHERE account_id = ?`
	if _, err := s.db.ExecContext(ctx, query, accountID); err != nil {
		return fmt.Errorf("deleting bundle: %w", err)
	}
	return nil
}

// Close closes the cache connection gracefully.
// It should be called when the application shuts down.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the database file.
func (s *Store) Path() string {
	return s.path
}

// HealthCheck verifies the cache is accessible and functioning.
// It performs a simple query to ensure the connection is alive.
func (s *Store) HealthCheck(ctx context.Context) error {
	var result int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("store health check failed: %w", err)
	}
	return nil
}
