package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bdougie/vidsplit/internal/models"
)

// PostgresConfig holds connection details for PostgreSQL
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// Enabled reports whether a database is configured
func (c PostgresConfig) Enabled() bool {
	return c.Host != ""
}

// ConnString builds a postgres:// URL from the config
func (c PostgresConfig) ConnString() string {
	port := c.Port
	if port == "" {
		port = "5432"
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, port),
		Path:   "/" + c.DBName,
	}
	if c.User != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.User, c.Password)
		} else {
			u.User = url.User(c.User)
		}
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

const schema = `
CREATE TABLE IF NOT EXISTS split_runs (
    id          TEXT PRIMARY KEY,
    prefix      TEXT NOT NULL,
    format      TEXT NOT NULL,
    frames      INTEGER NOT NULL,
    split_num   INTEGER NOT NULL,
    frame_rate  DOUBLE PRECISION NOT NULL,
    save_output BOOLEAN NOT NULL,
    parts       JSONB NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS split_run_files (
    run_id   TEXT REFERENCES split_runs(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    filename TEXT NOT NULL,
    PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_split_runs_created_at ON split_runs(created_at DESC);
`

// PostgresLedger stores runs in PostgreSQL
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger connects to the database and ensures the schema exists
func NewPostgresLedger(ctx context.Context, config PostgresConfig) (*PostgresLedger, error) {
	// Connect to PostgreSQL
	pool, err := pgxpool.New(ctx, config.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create database schema: %w", err)
	}

	return &PostgresLedger{pool: pool}, nil
}

// Close closes the database connection
func (l *PostgresLedger) Close() {
	if l.pool != nil {
		l.pool.Close()
	}
}

// AddRun stores the run and its files in one transaction
func (l *PostgresLedger) AddRun(ctx context.Context, run Run) error {
	parts, err := json.Marshal(run.Parts)
	if err != nil {
		return fmt.Errorf("failed to encode parts: %w", err)
	}

	return pgx.BeginFunc(ctx, l.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO split_runs
            (id, prefix, format, frames, split_num, frame_rate, save_output, parts, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			run.ID, run.Prefix, run.Format, run.Frames, run.SplitNum,
			run.FrameRate, run.SaveOutput, parts, run.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to store run: %w", err)
		}

		batch := &pgx.Batch{}
		for i, name := range run.Filenames {
			batch.Queue(
				"INSERT INTO split_run_files (run_id, position, filename) VALUES ($1, $2, $3)",
				run.ID, i, name)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to store run files: %w", err)
		}
		return nil
	})
}

// Runs returns the newest runs with their files in order
func (l *PostgresLedger) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := l.pool.Query(ctx,
		`SELECT r.id, r.prefix, r.format, r.frames, r.split_num, r.frame_rate,
            r.save_output, r.parts, r.created_at,
            COALESCE(array_agg(f.filename ORDER BY f.position) FILTER (WHERE f.filename IS NOT NULL), '{}')
        FROM split_runs r
        LEFT JOIN split_run_files f ON f.run_id = r.id
        GROUP BY r.id
        ORDER BY r.created_at DESC
        LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var parts []byte
		if err := rows.Scan(&run.ID, &run.Prefix, &run.Format, &run.Frames, &run.SplitNum,
			&run.FrameRate, &run.SaveOutput, &parts, &run.CreatedAt, &run.Filenames); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		var decoded []models.Partition
		if err := json.Unmarshal(parts, &decoded); err != nil {
			return nil, fmt.Errorf("failed to decode parts of run %s: %w", run.ID, err)
		}
		run.Parts = decoded
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// Flush implements the Ledger interface - no-op for Postgres as we save immediately
func (l *PostgresLedger) Flush() error {
	return nil
}
