// Package tm stores aligned source/target segments and looks them up by
// exact and fuzzy source match.
package tm

import (
	"context"
	"sort"
	"time"

	"l10nkit/internal/resource"
	"l10nkit/internal/textutil"
)

// Entry is one aligned pair. Source and Target hold generic letter-coded
// text, so inline codes survive storage.
type Entry struct {
	Source       string
	Target       string
	SourceLocale resource.LocaleID
	TargetLocale resource.LocaleID
	// Origin names the document or import the pair came from.
	Origin  string
	Updated time.Time
}

// Key identifies the entry by locale pair and source text.
func (e Entry) Key() string {
	return entryKey(e.Source, e.SourceLocale, e.TargetLocale)
}

func entryKey(source string, src, trg resource.LocaleID) string {
	return textutil.Hash(string(src) + "\x00" + string(trg) + "\x00" + source)
}

// Match is a lookup hit. Score is 1 for an exact match and lower for
// fuzzy ones.
type Match struct {
	Entry
	Score float64
}

// Exact reports whether the source matched exactly.
func (m Match) Exact() bool { return m.Score >= 1 }

// Query describes a lookup.
type Query struct {
	Source       string
	SourceLocale resource.LocaleID
	TargetLocale resource.LocaleID
	// Threshold is the lowest fuzzy score returned, in (0,1]. 1 means
	// exact matches only.
	Threshold float64
	// Limit caps the number of matches. Zero means 5.
	Limit int
}

func (q Query) key() string { return entryKey(q.Source, q.SourceLocale, q.TargetLocale) }

func (q Query) limit() int {
	if q.Limit <= 0 {
		return 5
	}
	return q.Limit
}

func (q Query) threshold() float64 {
	if q.Threshold <= 0 || q.Threshold > 1 {
		return 1
	}
	return q.Threshold
}

// Store is a translation memory backend.
type Store interface {
	// Put adds or replaces entries, keyed by Entry.Key.
	Put(ctx context.Context, entries []Entry) error
	// Lookup returns matches best first.
	Lookup(ctx context.Context, q Query) ([]Match, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// rank sorts matches best first, newer entries first among equal scores,
// and truncates to limit.
func rank(matches []Match, limit int) []Match {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Updated.After(matches[j].Updated)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
