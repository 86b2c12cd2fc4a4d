package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgQuerier is the subset of *pgxpool.Pool the ledger needs.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres stores records in a single table keyed by original_file.
type Postgres struct {
	db    pgQuerier
	table string
	close func()
}

// NewPostgres opens a pool, ensures the table exists and returns the store.
func NewPostgres(ctx context.Context, dsn, table string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("postgres ledger: dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := newPostgres(pool, table)
	store.close = pool.Close
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func newPostgres(db pgQuerier, table string) *Postgres {
	return &Postgres{
		db:    db,
		table: pgx.Identifier{table}.Sanitize(),
		close: func() {},
	}
}

// EnsureSchema creates the ledger table when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	original_file  TEXT PRIMARY KEY,
	converted_file TEXT NOT NULL,
	download_url   TEXT NOT NULL,
	source_name    TEXT NOT NULL DEFAULT '',
	ttl            TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`, p.table)
	if _, err := p.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure ledger table: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, originalFile string) (*Record, error) {
	query := fmt.Sprintf(`SELECT original_file, converted_file, download_url, source_name, ttl
FROM %s WHERE original_file = $1`, p.table)

	var rec Record
	err := p.db.QueryRow(ctx, query, originalFile).Scan(
		&rec.OriginalFile,
		&rec.ConvertedFile,
		&rec.DownloadURL,
		&rec.SourceName,
		&rec.TTL,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select ledger record: %w", err)
	}
	return &rec, nil
}

func (p *Postgres) Create(ctx context.Context, rec *Record) error {
	if rec == nil || rec.OriginalFile == "" {
		return errors.New("ledger: record key is required")
	}
	stmt := fmt.Sprintf(`INSERT INTO %s (original_file, converted_file, download_url, source_name, ttl)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (original_file) DO NOTHING`, p.table)

	tag, err := p.db.Exec(ctx, stmt, rec.OriginalFile, rec.ConvertedFile, rec.DownloadURL, rec.SourceName, rec.TTL)
	if err != nil {
		return fmt.Errorf("insert ledger record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (p *Postgres) Close() error {
	p.close()
	return nil
}
