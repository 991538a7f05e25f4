// Package db runs blocking SQL queries from request threads.
//
// The driver is sqlite3 with a pg_sleep(seconds) function registered on
// every connection, so "select pg_sleep(1)" holds a connection for a second
// the way it does against PostgreSQL.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/searchktools/loom-server/core/threads"
)

// DriverName is the database/sql driver registered by this package.
const DriverName = "sqlite3_loom"

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("pg_sleep", pgSleep, false)
		},
	})
}

// pgSleep blocks the connection for the given number of seconds, integer or
// fractional. It returns an empty value like PostgreSQL's void result.
//
// The sleep is not interruptible: a cancelled query still holds its
// connection, and the thread waiting on it, until the sleep ends. This
// matches pg_sleep on a server that only checks for cancellation between
// statements.
func pgSleep(seconds any) (string, error) {
	d, err := sleepDuration(seconds)
	if err != nil {
		return "", err
	}
	if d > 0 {
		time.Sleep(d)
	}
	return "", nil
}

func sleepDuration(seconds any) (time.Duration, error) {
	switch v := seconds.(type) {
	case nil:
		return 0, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("pg_sleep: invalid seconds %q", v)
		}
		return time.Duration(f * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("pg_sleep: unsupported argument type %T", seconds)
	}
}

// Config configures the connection pool.
type Config struct {
	DSN          string
	MaxOpenConns int
}

// DB is a connection pool whose queries park lightweight threads.
type DB struct {
	sql *sql.DB
	log *slog.Logger
}

// Open opens and pings the database.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	conn, err := sql.Open(DriverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}
	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	logger.Info("database ready", "driver", DriverName, "max_open_conns", cfg.MaxOpenConns)
	return &DB{sql: conn, log: logger}, nil
}

// Query runs a query and reads every row. The calling thread is unmounted
// from its carrier until the rows are read.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	var out *Rows
	err := threads.Block(ctx, func() error {
		var err error
		out, err = d.query(ctx, query, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DB) query(ctx context.Context, query string, args ...any) (*Rows, error) {
	rows, err := d.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("db: columns: %w", err)
	}
	out := &Rows{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("db: scan: %w", err)
		}
		out.Values = append(out.Values, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: rows: %w", err)
	}
	return out, nil
}

// Stats returns connection pool statistics.
func (d *DB) Stats() sql.DBStats {
	return d.sql.Stats()
}

// Close closes the pool.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Rows is a fully read result set.
type Rows struct {
	Columns []string
	Values  [][]any
}

// String renders the rows as a list of column=value maps, for example
// "[{pg_sleep=}]". NULL renders as "null".
func (r *Rows) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, row := range r.Values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('{')
		for j, v := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.Columns[j])
			b.WriteByte('=')
			b.WriteString(formatValue(v))
		}
		b.WriteByte('}')
	}
	b.WriteByte(']')
	return b.String()
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
