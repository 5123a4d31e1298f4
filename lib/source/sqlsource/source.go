package sqlsource

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/resqcache/resq/lib/source"

	_ "github.com/lib/pq"
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

const (
	DefaultMaxOpenConns = 5
	DefaultQueryTimeout = 30 * time.Second
)

// Options configures the SQL source.
type Options struct {
	DSN          string        // PostgreSQL connection string (required)
	MaxOpenConns int           // Connection pool size (0 = DefaultMaxOpenConns)
	QueryTimeout time.Duration // Per-query deadline (0 = DefaultQueryTimeout)
}

// --------------------------------------------------------------------------
// Implementation
// --------------------------------------------------------------------------

// SQLSource resolves cache keys by executing them as SQL queries against a
// PostgreSQL database. The result rows are returned as a JSON array of
// objects, column names lowercased.
//
// Keys are executed verbatim. The source is meant to sit behind a cache
// that is only reachable by trusted clients - it does no SQL validation
// beyond what the database enforces.
type SQLSource struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// compile time interface check
var _ source.IFetcher = (*SQLSource)(nil)

// New opens a connection pool for the given options and verifies
// connectivity with a ping.
func New(opts *Options) (*SQLSource, error) {
	if opts == nil || opts.DSN == "" {
		return nil, fmt.Errorf("sqlsource: DSN is required")
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = DefaultMaxOpenConns
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}

	db, err := sql.Open("postgres", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlsource: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlsource: failed to ping database: %w", err)
	}

	return &SQLSource{
		db:           db,
		queryTimeout: opts.QueryTimeout,
	}, nil
}

// Interface Methods (docu see source.IFetcher)

func (s *SQLSource) Fetch(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("sqlsource: query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sqlsource: failed to read columns: %w", err)
	}

	results := make([]map[string]any, 0)
	for rows.Next() {
		row := make([]any, len(columns))
		rowPointers := make([]any, len(columns))
		for i := range row {
			rowPointers[i] = &row[i]
		}

		if err := rows.Scan(rowPointers...); err != nil {
			return nil, fmt.Errorf("sqlsource: scan failed: %w", err)
		}

		result := make(map[string]any, len(columns))
		for i, col := range columns {
			value := row[i]
			// database/sql yields []byte for text-ish columns, which would
			// JSON-encode as base64. Convert to string for readable output.
			if b, ok := value.([]byte); ok {
				value = string(b)
			}
			result[strings.ToLower(col)] = value
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlsource: row iteration failed: %w", err)
	}

	return json.Marshal(results)
}

func (s *SQLSource) Close() error {
	return s.db.Close()
}
