package datecache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/photoswiper/swiper/internal/retry"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS capture_dates (
	path     TEXT PRIMARY KEY,
	taken_at TEXT,
	size     BIGINT NOT NULL,
	mod_time BIGINT NOT NULL
)`

// SQLStore persists entries in a capture_dates table on SQLite or PostgreSQL.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// NormalizeDriver maps user-facing driver names to database/sql names.
func NormalizeDriver(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "postgres", "postgresql", "pq":
		return DriverPostgres, nil
	default:
		return "", fmt.Errorf("unsupported cache driver %q", name)
	}
}

// Open connects to the durable store and ensures the schema exists.
func Open(driver, dsn string) (*SQLStore, error) {
	driver, err := NormalizeDriver(driver)
	if err != nil {
		return nil, err
	}
	if dsn == "" {
		return nil, fmt.Errorf("cache dsn is required")
	}

	if driver == DriverSQLite && isPlainPath(dsn) {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if driver == DriverSQLite {
		// One writer; the cache is owned by a single process.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	// A postgres server may still be starting; sqlite either opens or not.
	attempts := retry.DefaultConfig()
	if driver == DriverSQLite {
		attempts.MaxAttempts = 1
	}
	err = retry.Do(context.Background(), attempts, func() error {
		return retry.Transient(db.Ping())
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %w", ErrUnavailable, err)
	}

	if driver == DriverSQLite {
		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("%s: %w", pragma, err)
			}
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLStore{db: db, driver: driver}, nil
}

func isPlainPath(dsn string) bool {
	return dsn != ":memory:" && !strings.HasPrefix(dsn, "file:")
}

// DB returns the underlying database connection.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Driver returns the database/sql driver name in use.
func (s *SQLStore) Driver() string {
	return s.driver
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
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

// Get implements Store.
func (s *SQLStore) Get(ctx context.Context, path string) (*Entry, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT path, taken_at, size, mod_time FROM capture_dates WHERE path = ?`), path)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", path, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanEntry(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

// scanEntry decodes one row. Conversion failures are reported as
// ErrCorruptEntry so callers can treat them as a miss.
func scanEntry(sc scanner) (*Entry, error) {
	var (
		e     Entry
		taken sql.NullString
	)
	if err := sc.Scan(&e.Path, &taken, &e.Size, &e.ModTime); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	if taken.Valid && taken.String != "" {
		t, err := time.Parse(time.RFC3339Nano, taken.String)
		if err != nil {
			return &e, fmt.Errorf("%w: taken_at %q: %v", ErrCorruptEntry, taken.String, err)
		}
		e.Taken = &t
	}
	return &e, nil
}

// Put implements Store.
func (s *SQLStore) Put(ctx context.Context, e *Entry) error {
	var taken sql.NullString
	if e.Taken != nil {
		taken = sql.NullString{String: e.Taken.Format(time.RFC3339Nano), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO capture_dates (path, taken_at, size, mod_time) VALUES (?, ?, ?, ?)
		ON CONFLICT (path) DO UPDATE SET
			taken_at = excluded.taken_at,
			size = excluded.size,
			mod_time = excluded.mod_time`),
		e.Path, taken, e.Size, e.ModTime)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", e.Path, err)
	}
	return nil
}

// Delete implements Store.
func (s *SQLStore) Delete(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM capture_dates WHERE path = ?`), path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// Count returns the number of rows.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM capture_dates`).Scan(&n)
	return n, err
}

// List returns all rows ordered by path. Corrupt rows are returned with a
// nil Taken and counted in corrupt.
func (s *SQLStore) List(ctx context.Context) (entries []*Entry, corrupt int, err error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, taken_at, size, mod_time FROM capture_dates ORDER BY path`)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			corrupt++
			if e == nil {
				continue
			}
		}
		entries = append(entries, e)
	}
	return entries, corrupt, rows.Err()
}

// Prune deletes rows whose file no longer exists and returns how many were
// removed.
func (s *SQLStore) Prune(ctx context.Context, exists func(path string) bool) (int, error) {
	entries, _, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if exists(e.Path) {
			continue
		}
		if err := s.Delete(ctx, e.Path); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
