package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DBFileName is the SQLite file created inside Options.Dir.
const DBFileName = "tokentrail.db"

// ErrInvalidScope is returned when a scope cannot be turned into table names.
var ErrInvalidScope = errors.New("invalid storage scope")

// DB is the SQL handle shared by the address and transfer stores.
// It hides the placeholder and connection differences between SQLite and
// PostgreSQL.
type DB struct {
	db     *sql.DB
	driver string
	// source is the file path (sqlite) or the DSN (postgres), for logs.
	source string
}

// Options configures Open.
type Options struct {
	// Driver is DriverSQLite or DriverPostgres. Empty means SQLite.
	Driver string

	// Dir is the SQLite directory. Ignored when DSN is set.
	Dir string

	// DSN is the full data source name.
	DSN string

	// CreateIfNotExists creates the SQLite directory and file.
	CreateIfNotExists bool

	// EnableWAL switches SQLite to Write-Ahead Logging.
	EnableWAL bool

	// MaxOpenConns caps PostgreSQL connections. SQLite always gets one.
	MaxOpenConns int
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		Driver:            DriverSQLite,
		CreateIfNotExists: true,
		EnableWAL:         true,
		MaxOpenConns:      10,
	}
}

// Open connects to the configured database.
func Open(opts Options) (*DB, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	switch driver {
	case DriverSQLite:
		return openSQLite(opts)
	case DriverPostgres:
		return openPostgres(opts)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func openSQLite(opts Options) (*DB, error) {
	dsn := opts.DSN
	source := dsn
	if dsn == "" {
		dbPath := filepath.Join(opts.Dir, DBFileName)
		if opts.CreateIfNotExists {
			if err := os.MkdirAll(opts.Dir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
			dsn = dbPath + "?mode=rwc"
		} else {
			if _, err := os.Stat(dbPath); os.IsNotExist(err) {
				return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
			} else if err != nil {
				return nil, fmt.Errorf("failed to check database path: %w", err)
			}
			dsn = dbPath + "?mode=rw"
		}
		source = dbPath
	}

	db, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serialises writers; crawl workers queue on it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.ExecContext(context.Background(), "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &DB{db: db, driver: DriverSQLite, source: source}, nil
}

func openPostgres(opts Options) (*DB, error) {
	if opts.DSN == "" {
		return nil, errors.New("postgres requires a DSN")
	}
	db, err := sql.Open(DriverPostgres, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
		db.SetMaxIdleConns(opts.MaxOpenConns)
	}
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &DB{db: db, driver: DriverPostgres, source: "postgres"}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Driver returns the driver name.
func (d *DB) Driver() string {
	return d.driver
}

// Source returns the SQLite path or "postgres".
func (d *DB) Source() string {
	return d.source
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (d *DB) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on error.
func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("failed to roll back: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Scope isolates the tables of one (data source, chain) pair, so OKLink TRX
// edges never mix with TronScan TRX transfers or OKLink ETH edges.
type Scope struct {
	Source string
	Chain  string
}

var scopePart = regexp.MustCompile(`^[a-z0-9]+$`)

// tables holds the table names of a scope.
type tables struct {
	edges     string
	transfers string
	addresses string
	stats     string
	offsets   string
}

func (s Scope) tables() (tables, error) {
	src, chain := strings.ToLower(s.Source), strings.ToLower(s.Chain)
	if !scopePart.MatchString(src) || !scopePart.MatchString(chain) {
		return tables{}, fmt.Errorf("%w: %q/%q", ErrInvalidScope, s.Source, s.Chain)
	}
	prefix := src + "_" + chain
	return tables{
		edges:     prefix + "_transfer_edges",
		transfers: prefix + "_transfers",
		addresses: prefix + "_addresses",
		stats:     prefix + "_address_stats",
		offsets:   prefix + "_track_offsets",
	}, nil
}

// EnsureSchema creates the tables of scope if they do not exist.
func (d *DB) EnsureSchema(ctx context.Context, scope Scope) error {
	t, err := scope.tables()
	if err != nil {
		return err
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS ` + t.edges + ` (
			from_addr TEXT NOT NULL,
			to_addr TEXT NOT NULL,
			total_value DOUBLE PRECISION NOT NULL DEFAULT 0,
			txn_count BIGINT NOT NULL DEFAULT 0,
			first_txn_ts BIGINT NOT NULL DEFAULT 0,
			last_txn_ts BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (from_addr, to_addr)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_` + t.edges + `_to ON ` + t.edges + `(to_addr)`,

		`CREATE TABLE IF NOT EXISTS ` + t.transfers + ` (
			txn_hash TEXT NOT NULL,
			from_addr TEXT NOT NULL,
			to_addr TEXT NOT NULL,
			amount DOUBLE PRECISION NOT NULL DEFAULT 0,
			block_num BIGINT NOT NULL DEFAULT 0,
			block_ts BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (txn_hash, from_addr, to_addr)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_` + t.transfers + `_from ON ` + t.transfers + `(from_addr)`,
		`CREATE INDEX IF NOT EXISTS idx_` + t.transfers + `_to ON ` + t.transfers + `(to_addr)`,

		`CREATE TABLE IF NOT EXISTS ` + t.addresses + ` (
			addr TEXT PRIMARY KEY,
			is_contract BOOLEAN NOT NULL DEFAULT FALSE,
			entity_tag TEXT NOT NULL DEFAULT '',
			health_score DOUBLE PRECISION,
			tag_info TEXT,
			health_info TEXT,
			statistics TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS ` + t.stats + ` (
			addr TEXT PRIMARY KEY,
			input TEXT,
			output TEXT,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS ` + t.offsets + ` (
			addr TEXT NOT NULL,
			direction TEXT NOT NULL,
			track_offset BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (addr, direction)
		)`,
	}

	for _, stmt := range statements {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create tables for %s/%s: %w", scope.Source, scope.Chain, err)
		}
	}
	return nil
}

// upsertTrackOffset records the crawl cursor of (addr, dir) inside tx.
func (d *DB) upsertTrackOffset(ctx context.Context, tx *sql.Tx, table, addr, dir string, offset int64) error {
	query := d.rebind(`
	INSERT INTO ` + table + ` (addr, direction, track_offset)
	VALUES (?, ?, ?)
	ON CONFLICT (addr, direction) DO UPDATE SET
		track_offset = excluded.track_offset,
		updated_at = CURRENT_TIMESTAMP
	`)
	if _, err := tx.ExecContext(ctx, query, addr, dir, offset); err != nil {
		return fmt.Errorf("failed to update track offset: %w", err)
	}
	return nil
}
