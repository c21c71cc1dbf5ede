// Package remote implements the SQL-only remote backend: a connection to a
// warehouse reachable over the Postgres wire protocol (spec.md §4.6). It
// exposes the same Query/Execute capability surface as substrate.DB but
// never the richer typed helpers (schema bootstrap, scoped settings) the
// local engine offers, since those assume exclusive single-file ownership.
package remote

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq" // registers the "postgres" database/sql driver
)

// Config describes how to reach the remote warehouse.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

// DSN renders cfg as a libpq connection string.
func (cfg Config) DSN() string {
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "require"
	}
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, sslmode,
	)
}

// Client is a SQL-only connection to a remote warehouse.
type Client struct {
	db *sql.DB
}

// Open connects to the warehouse described by cfg and verifies connectivity
// with a ping, mirroring the teacher pack's postgres.Open convention.
func Open(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("remote host is required")
	}

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open remote warehouse: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping remote warehouse: %w", err)
	}

	return &Client{db: db}, nil
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// Query executes sql with positional parameters and returns rows as a slice
// of column-name-keyed maps, the same shape substrate.DB.Query returns so
// the dispatcher can treat both backends uniformly.
func (c *Client) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, _, err := c.QueryColumns(ctx, query, args...)
	return rows, err
}

// QueryColumns behaves like Query but also reports the result set's column
// names, letting a caller distinguish a statement with no result set (DDL)
// from one whose result set simply matched no rows.
func (c *Client) QueryColumns(ctx context.Context, query string, args ...any) ([]map[string]any, []string, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	out, err := scanRows(rows, cols)
	return out, cols, err
}

// Execute runs a statement and returns the number of affected rows.
func (c *Client) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil //nolint:nilerr // not every statement reports affected rows
	}
	return n, nil
}

func scanRows(rows *sql.Rows, cols []string) ([]map[string]any, error) {
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = vals[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
