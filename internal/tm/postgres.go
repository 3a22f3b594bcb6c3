package tm

import (
	"context"
	"fmt"
	"time"

	"l10nkit/internal/resource"
	"l10nkit/internal/worker"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var postgresSchema = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS tm_entries (
		key           TEXT PRIMARY KEY,
		source        TEXT NOT NULL,
		target        TEXT NOT NULL,
		source_locale TEXT NOT NULL,
		target_locale TEXT NOT NULL,
		origin        TEXT NOT NULL DEFAULT '',
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		embedding     vector(%d) NOT NULL
	)`, Dimensions),
	`CREATE INDEX IF NOT EXISTS tm_entries_embedding ON tm_entries USING hnsw (embedding vector_cosine_ops)`,
	`CREATE INDEX IF NOT EXISTS tm_entries_pair ON tm_entries (source_locale, target_locale)`,
}

const upsertEntry = `INSERT INTO tm_entries
	(key, source, target, source_locale, target_locale, origin, updated_at, embedding)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (key) DO UPDATE SET
		target = EXCLUDED.target,
		origin = EXCLUDED.origin,
		updated_at = EXCLUDED.updated_at`

// putBatchSize is the number of upserts sent in one round trip.
const putBatchSize = 200

// PostgresStore is a shared translation memory in PostgreSQL. Fuzzy
// lookups rank entries by cosine distance between trigram vectors with
// pgvector.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
	// Parallel is the number of batches written at once.
	Parallel int
}

// OpenPostgres connects to url and creates the schema if needed.
func OpenPostgres(ctx context.Context, url string, log zerolog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect tm database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping tm database: %w", err)
	}
	s := NewPostgresStore(pool, log)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore uses an existing pool. Close closes it.
func NewPostgresStore(pool *pgxpool.Pool, log zerolog.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, log: log, Parallel: 4}
}

// Migrate creates the table and indexes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate tm: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Put(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.Parallel, 1))
	for _, chunk := range worker.Batch(entries, putBatchSize) {
		g.Go(func() error {
			b := &pgx.Batch{}
			for _, e := range chunk {
				updated := e.Updated
				if updated.IsZero() {
					updated = now
				}
				b.Queue(upsertEntry, e.Key(), e.Source, e.Target,
					string(e.SourceLocale), string(e.TargetLocale), e.Origin, updated,
					pgvector.NewVector(Vector(e.Source)))
			}
			if err := s.pool.SendBatch(ctx, b).Close(); err != nil {
				return fmt.Errorf("tm put: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.log.Info().Int("entries", len(entries)).Msg("Stored TM entries")
	return nil
}

func (s *PostgresStore) Lookup(ctx context.Context, q Query) ([]Match, error) {
	threshold := q.threshold()
	var matches []Match

	rows, err := s.pool.Query(ctx, `SELECT source, target, source_locale, target_locale, origin, updated_at, 1.0::float8
		FROM tm_entries WHERE key = $1`, q.key())
	if err != nil {
		return nil, fmt.Errorf("tm lookup: %w", err)
	}
	exact, err := collectMatches(rows)
	if err != nil {
		return nil, err
	}
	matches = append(matches, exact...)
	if threshold >= 1 {
		return matches, nil
	}

	rows, err = s.pool.Query(ctx, `SELECT source, target, source_locale, target_locale, origin, updated_at,
			1 - (embedding <=> $1) AS score
		FROM tm_entries
		WHERE source_locale = $2 AND target_locale = $3 AND key <> $4
		ORDER BY embedding <=> $1
		LIMIT $5`,
		pgvector.NewVector(Vector(q.Source)), string(q.SourceLocale), string(q.TargetLocale), q.key(), q.limit())
	if err != nil {
		return nil, fmt.Errorf("tm fuzzy lookup: %w", err)
	}
	fuzzy, err := collectMatches(rows)
	if err != nil {
		return nil, err
	}
	for _, m := range fuzzy {
		m.Score = capFuzzy(m.Score)
		if m.Score >= threshold {
			matches = append(matches, m)
		}
	}
	return rank(matches, q.limit()), nil
}

func collectMatches(rows pgx.Rows) ([]Match, error) {
	defer rows.Close()
	var matches []Match
	for rows.Next() {
		var (
			m        Match
			src, trg string
		)
		if err := rows.Scan(&m.Source, &m.Target, &src, &trg, &m.Origin, &m.Updated, &m.Score); err != nil {
			return nil, fmt.Errorf("tm lookup: %w", err)
		}
		m.SourceLocale = resource.LocaleID(src)
		m.TargetLocale = resource.LocaleID(trg)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tm_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("tm count: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
