package sqldb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"

	defaultMaxRows = 100
)

var ErrWriteNotAllowed = errors.New("only read-only statements are allowed")

type Config struct {
	Driver      string
	DSN         string
	MaxRows     int
	AllowWrites bool
}

type DB struct {
	db          *sqlx.DB
	driver      string
	maxRows     int
	allowWrites bool
}

type Result struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	Truncated bool     `json:"truncated,omitempty"`
}

type Column struct {
	Name       string `db:"name" json:"name"`
	Type       string `db:"type" json:"type"`
	NotNull    bool   `db:"not_null" json:"not_null"`
	PrimaryKey bool   `db:"primary_key" json:"primary_key"`
}

func normalizeDriver(driver string) (string, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "pgx", "postgres", "postgresql":
		return DriverPostgres, nil
	default:
		return "", fmt.Errorf("unsupported sql driver %q", driver)
	}
}

func Open(ctx context.Context, cfg Config) (*DB, error) {
	driver, err := normalizeDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, errors.New("sql dsn is required")
	}

	dsn := cfg.DSN
	if driver == DriverSQLite && !strings.Contains(dsn, ":memory:") && !strings.Contains(dsn, "_pragma") {
		dsn += sqliteSeparator(dsn) + "_pragma=busy_timeout(5000)"
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite && strings.Contains(dsn, ":memory:") {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}

	return &DB{db: db, driver: driver, maxRows: maxRows, allowWrites: cfg.AllowWrites}, nil
}

func sqliteSeparator(dsn string) string {
	if strings.Contains(dsn, "?") {
		return "&"
	}
	return "?"
}

func (d *DB) Driver() string                 { return d.driver }
func (d *DB) AllowsWrites() bool             { return d.allowWrites }
func (d *DB) Close() error                   { return d.db.Close() }
func (d *DB) Unwrap() *sqlx.DB               { return d.db }
func (d *DB) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

// Query runs a statement and returns at most MaxRows rows. Writes are refused
// unless the DB was opened with AllowWrites.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("empty query")
	}

	if !IsReadOnly(query) {
		if !d.allowWrites {
			return nil, ErrWriteNotAllowed
		}
		return d.exec(ctx, query, args...)
	}

	rows, err := d.db.QueryxContext(ctx, d.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	result := &Result{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		if len(result.Rows) == d.maxRows {
			result.Truncated = true
			break
		}
		values, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return result, nil
}

func (d *DB) exec(ctx context.Context, stmt string, args ...any) (*Result, error) {
	res, err := d.db.ExecContext(ctx, d.db.Rebind(stmt), args...)
	if err != nil {
		return nil, fmt.Errorf("exec failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		affected = -1
	}
	return &Result{Columns: []string{"rows_affected"}, Rows: [][]any{{affected}}}, nil
}

func (d *DB) Tables(ctx context.Context) ([]string, error) {
	var query string
	switch d.driver {
	case DriverSQLite:
		query = `SELECT name FROM sqlite_master
			WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
			ORDER BY name`
	default:
		query = `SELECT table_name FROM information_schema.tables
			WHERE table_schema = current_schema()
			ORDER BY table_name`
	}

	var tables []string
	if err := d.db.SelectContext(ctx, &tables, query); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

func (d *DB) Columns(ctx context.Context, table string) ([]Column, error) {
	var query string
	switch d.driver {
	case DriverSQLite:
		query = `SELECT name, type, "notnull" <> 0 AS not_null, pk > 0 AS primary_key
			FROM pragma_table_info(?) ORDER BY cid`
	default:
		query = `SELECT c.column_name AS name, c.data_type AS type,
				c.is_nullable = 'NO' AS not_null,
				EXISTS (
					SELECT 1 FROM information_schema.key_column_usage k
					JOIN information_schema.table_constraints tc
						ON tc.constraint_name = k.constraint_name AND tc.table_schema = k.table_schema
					WHERE tc.constraint_type = 'PRIMARY KEY'
						AND k.table_schema = c.table_schema AND k.table_name = c.table_name
						AND k.column_name = c.column_name
				) AS primary_key
			FROM information_schema.columns c
			WHERE c.table_schema = current_schema() AND c.table_name = ?
			ORDER BY c.ordinal_position`
	}

	var columns []Column
	if err := d.db.SelectContext(ctx, &columns, d.db.Rebind(query), table); err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %q not found", table)
	}
	return columns, nil
}
