package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/rtgl/internal/compiler"
	"github.com/roach88/rtgl/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

const (
	selectEntrySQL = `SELECT compiler_version, artifact FROM compile_cache WHERE semantic_hash = ?`
	upsertEntrySQL = `INSERT INTO compile_cache (semantic_hash, compiler_version, artifact) VALUES (?, ?, ?)
ON CONFLICT (semantic_hash) DO UPDATE SET compiler_version = excluded.compiler_version, artifact = excluded.artifact`
)

// SQLCache keeps artifacts in the compile_cache table. Safe for concurrent
// use; database/sql serializes access per connection.
type SQLCache struct {
	db      *sql.DB
	dollar  bool
	selectQ string
	upsertQ string
}

// OpenSQLite opens (creating if needed) a SQLite cache database at path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
func OpenSQLite(ctx context.Context, path string) (*SQLCache, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite cache: path is required")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return newSQLCache(ctx, db, false)
}

// OpenPostgres connects to PostgreSQL through the pgx stdlib driver.
func OpenPostgres(ctx context.Context, dsn string) (*SQLCache, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres cache: dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return newSQLCache(ctx, db, true)
}

func newSQLCache(ctx context.Context, db *sql.DB, dollar bool) (*SQLCache, error) {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	c := &SQLCache{db: db, dollar: dollar}
	c.selectQ = c.rebind(selectEntrySQL)
	c.upsertQ = c.rebind(upsertEntrySQL)
	return c, nil
}

// rebind rewrites "?" placeholders to "$1", "$2"... for PostgreSQL.
func (c *SQLCache) rebind(query string) string {
	if !c.dollar {
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

// Close closes the database connection.
func (c *SQLCache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Get returns a miss for rows written by another compiler version.
func (c *SQLCache) Get(ctx context.Context, hash string) (*compiler.Artifact, bool, error) {
	if err := validHash(hash); err != nil {
		return nil, false, err
	}
	var version, body string
	err := c.db.QueryRowContext(ctx, c.selectQ, hash).Scan(&version, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sql cache get: %w", err)
	}
	if version != ir.CompilerVersion {
		return nil, false, nil
	}
	a, err := compiler.ParseArtifact([]byte(body))
	if err != nil {
		return nil, false, fmt.Errorf("sql cache entry %s: %w", hash, err)
	}
	return a, true, nil
}

func (c *SQLCache) Put(ctx context.Context, hash string, a *compiler.Artifact) error {
	if err := validHash(hash); err != nil {
		return err
	}
	body, err := compiler.SerializeArtifact(a)
	if err != nil {
		return err
	}
	if _, err := c.db.ExecContext(ctx, c.upsertQ, hash, ir.CompilerVersion, string(body)); err != nil {
		return fmt.Errorf("sql cache put: %w", err)
	}
	return nil
}
