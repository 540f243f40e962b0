package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"colsync/internal/collection"
	"colsync/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// psql builds statements with SQLite placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// SQLiteCatalog implements collection.Catalog on SQLite.
// A catalog returned to an InTransaction callback is bound to that
// transaction; every other catalog runs statements in autocommit mode.
type SQLiteCatalog struct {
	db   *sql.DB
	q    querier
	tx   *sql.Tx
	path string
}

// NewSQLiteCatalog opens the catalog at path and applies pending migrations.
// path can be a file path or ":memory:".
func NewSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteCatalog{db: db, q: db, path: path}, nil
}

// NewSQLiteCatalogFromDB wraps an existing, migrated connection.
func NewSQLiteCatalogFromDB(db *sql.DB) *SQLiteCatalog {
	return &SQLiteCatalog{db: db, q: db}
}

// OpenConnection opens and configures a SQLite connection.
// The pool holds a single connection: SQLite serializes writers anyway, and
// an in-memory database only exists per connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}
	return db, nil
}

// InTransaction runs fn against a catalog bound to one transaction.
// Calls on a catalog that is already transactional join it.
func (s *SQLiteCatalog) InTransaction(fn func(collection.Catalog) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	txc := &SQLiteCatalog{db: s.db, q: tx, tx: tx, path: s.path}
	if err := fn(txc); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteCatalog) inTx(fn func(c *SQLiteCatalog) error) error {
	return s.InTransaction(func(c collection.Catalog) error {
		return fn(c.(*SQLiteCatalog))
	})
}

func (s *SQLiteCatalog) exec(b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	return s.q.Exec(query, args...)
}

func (s *SQLiteCatalog) query(b sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	return s.q.Query(query, args...)
}

// get scans a single row into dest. A missing row yields sql.ErrNoRows.
func (s *SQLiteCatalog) get(b sq.Sqlizer, dest ...any) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("building query: %w", err)
	}
	return s.q.QueryRow(query, args...).Scan(dest...)
}

// getID returns the single id column of b, or 0 when no row matches.
func (s *SQLiteCatalog) getID(b sq.Sqlizer) (int64, error) {
	var id int64
	if err := s.get(b, &id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return id, nil
}

func (s *SQLiteCatalog) ids(b sq.Sqlizer) ([]int64, error) {
	rows, err := s.query(b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// maxBatch bounds the number of ids bound into one IN clause.
const maxBatch = 500

func batches(ids []int64) [][]int64 {
	var out [][]int64
	for len(ids) > maxBatch {
		out = append(out, ids[:maxBatch])
		ids = ids[maxBatch:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

// Timestamps are stored as nullable unix nanoseconds.

func nullTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNullTime(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return time.Unix(0, n.Int64).UTC()
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteCatalog) Path() string {
	return s.path
}

// CheckMigrations verifies the schema is up-to-date.
func (s *SQLiteCatalog) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo writes a consistent copy of the catalog to destPath using VACUUM INTO.
func (s *SQLiteCatalog) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up catalog: %w", err)
	}
	return nil
}

// DB exposes the connection for stores sharing the catalog file.
func (s *SQLiteCatalog) DB() *sql.DB {
	return s.db
}

// Close closes the connection. Closing a transaction-bound catalog is a no-op.
func (s *SQLiteCatalog) Close() error {
	if s.tx != nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ collection.Catalog = (*SQLiteCatalog)(nil)
