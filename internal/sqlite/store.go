package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"tourist-safety/internal/database"

	_ "modernc.org/sqlite"
)

const (
	memoryDSN     = ":memory:"
	schemaVersion = 1
)

// Store is a SQLite-backed route response cache. An empty path opens a private
// in-memory database that disappears with the process.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
	closed bool
	logger *zap.Logger

	routeCacheRepo database.RouteCacheRepository
}

// New opens (or creates) the store at dbPath
func New(dbPath string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("sqlite")

	dsn := memoryDSN
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = dbPath
	}

	logger.Info("opening route cache", zap.String("path", dsn))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// every :memory: connection is its own database
	if dsn == memoryDSN {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -16000",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	store := &Store{
		db:     db,
		dbPath: dbPath,
		logger: logger,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	store.routeCacheRepo = &routeCacheRepository{store: store}

	return store, nil
}

// Path returns the database file path, empty for in-memory stores
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return s.createSchema()
	}

	if version < schemaVersion {
		return s.runMigrations(version)
	}

	return nil
}

func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);
	INSERT INTO schema_version (version) VALUES (1);

	CREATE TABLE IF NOT EXISTS route_cache (
		mode TEXT NOT NULL,
		origin_lat REAL NOT NULL,
		origin_lng REAL NOT NULL,
		dest_lat REAL NOT NULL,
		dest_lng REAL NOT NULL,
		distance_meters REAL NOT NULL,
		duration_secs REAL NOT NULL,
		geometry TEXT NOT NULL DEFAULT '',
		cached_at INTEGER NOT NULL,
		PRIMARY KEY (mode, origin_lat, origin_lng, dest_lat, dest_lng)
	);

	CREATE INDEX IF NOT EXISTS idx_route_cache_cached_at ON route_cache(cached_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	s.logger.Debug("schema initialized", zap.Int("version", schemaVersion))
	return nil
}

func (s *Store) runMigrations(fromVersion int) error {
	s.logger.Info("migrating schema", zap.Int("from", fromVersion), zap.Int("to", schemaVersion))
	_, err := s.db.Exec("UPDATE schema_version SET version = ?", schemaVersion)
	return err
}

// Close checkpoints the WAL and closes the connection
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.dbPath != "" {
		if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			s.logger.Warn("wal checkpoint failed", zap.Error(err))
		}
	}
	return s.db.Close()
}

// HealthCheck verifies the database connection
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RouteCache returns the route cache repository
func (s *Store) RouteCache() database.RouteCacheRepository { return s.routeCacheRepo }
