package tm

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"l10nkit/internal/resource"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS tm_entries (
	key           TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	target        TEXT NOT NULL,
	source_locale TEXT NOT NULL,
	target_locale TEXT NOT NULL,
	source_len    INTEGER NOT NULL,
	origin        TEXT NOT NULL DEFAULT '',
	updated_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS tm_entries_pair ON tm_entries(source_locale, target_locale, source_len);`

// SQLiteStore is a local translation memory in one SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// OpenSQLite opens or creates the store at path. ":memory:" gives a
// private in-memory store.
func OpenSQLite(path string, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open tm %s: %w", path, err)
	}
	pragmas := []string{"PRAGMA busy_timeout = 10000", "PRAGMA synchronous = NORMAL"}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range append(pragmas, sqliteSchema) {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("init tm %s: %w", path, err)
		}
	}
	return &SQLiteStore{db: db, log: log}, nil
}

func (s *SQLiteStore) Put(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tm put: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO tm_entries
		(key, source, target, source_locale, target_locale, source_len, origin, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			target = excluded.target,
			origin = excluded.origin,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("tm put: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, e := range entries {
		updated := e.Updated
		if updated.IsZero() {
			updated = now
		}
		_, err := stmt.ExecContext(ctx, e.Key(), e.Source, e.Target,
			string(e.SourceLocale), string(e.TargetLocale),
			utf8.RuneCountInString(e.Source), e.Origin, updated.UnixNano())
		if err != nil {
			return fmt.Errorf("tm put %q: %w", e.Source, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tm put: %w", err)
	}
	s.log.Debug().Int("entries", len(entries)).Msg("Stored TM entries")
	return nil
}

func (s *SQLiteStore) Lookup(ctx context.Context, q Query) ([]Match, error) {
	threshold := q.threshold()
	var matches []Match

	exact, err := s.scan(ctx, `SELECT source, target, source_locale, target_locale, origin, updated_at
		FROM tm_entries WHERE key = ?`, q.key())
	if err != nil {
		return nil, err
	}
	for _, e := range exact {
		matches = append(matches, Match{Entry: e, Score: 1})
	}
	if threshold >= 1 {
		return matches, nil
	}

	// Texts whose lengths differ too much cannot reach the threshold.
	n := float64(utf8.RuneCountInString(q.Source))
	minLen := int(math.Floor(n * threshold))
	maxLen := int(math.Ceil(n / threshold))
	candidates, err := s.scan(ctx, `SELECT source, target, source_locale, target_locale, origin, updated_at
		FROM tm_entries
		WHERE source_locale = ? AND target_locale = ? AND source_len BETWEEN ? AND ? AND key <> ?`,
		string(q.SourceLocale), string(q.TargetLocale), minLen, maxLen, q.key())
	if err != nil {
		return nil, err
	}
	for _, e := range candidates {
		if score := Similarity(q.Source, e.Source); score >= threshold {
			matches = append(matches, Match{Entry: e, Score: score})
		}
	}
	return rank(matches, q.limit()), nil
}

// Entries returns every entry of a locale pair.
func (s *SQLiteStore) Entries(ctx context.Context, src, trg resource.LocaleID) ([]Entry, error) {
	return s.scan(ctx, `SELECT source, target, source_locale, target_locale, origin, updated_at
		FROM tm_entries WHERE source_locale = ? AND target_locale = ?`, string(src), string(trg))
}

func (s *SQLiteStore) scan(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tm lookup: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			src, trg string
			updated  int64
		)
		if err := rows.Scan(&e.Source, &e.Target, &src, &trg, &e.Origin, &updated); err != nil {
			return nil, fmt.Errorf("tm lookup: %w", err)
		}
		e.SourceLocale = resource.LocaleID(src)
		e.TargetLocale = resource.LocaleID(trg)
		e.Updated = time.Unix(0, updated)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tm_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("tm count: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
