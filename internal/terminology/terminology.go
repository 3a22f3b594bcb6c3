// Package terminology finds glossary terms in unit text.
package terminology

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"unicode"

	"l10nkit/internal/resource"
)

// Term is a glossary entry.
type Term struct {
	Source       string
	Target       string
	SourceLocale resource.LocaleID
	TargetLocale resource.LocaleID
	// Domain is a free category such as "ui" or "legal".
	Domain string
}

// Hit is a term found in a text, at rune offsets [Start, End).
type Hit struct {
	Term
	Start int
	End   int
}

// Glossary looks up the terms that occur in a text.
type Glossary interface {
	Find(ctx context.Context, text string, src, trg resource.LocaleID) ([]Hit, error)
}

// Match returns the non-overlapping occurrences of terms in text. The
// comparison ignores case and requires word boundaries around a term.
// Longer terms win over shorter ones starting at the same place.
func Match(text string, terms []Term) []Hit {
	sorted := make([]Term, len(terms))
	copy(sorted, terms)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len([]rune(sorted[i].Source)) > len([]rune(sorted[j].Source))
	})

	hay := lowerRunes(text)
	taken := make([]bool, len(hay))
	var hits []Hit
	for _, t := range sorted {
		needle := lowerRunes(t.Source)
		if len(needle) == 0 {
			continue
		}
		for i := 0; i+len(needle) <= len(hay); i++ {
			if !hasPrefix(hay[i:], needle) || !boundary(hay, i, i+len(needle)) || overlaps(taken, i, i+len(needle)) {
				continue
			}
			for k := i; k < i+len(needle); k++ {
				taken[k] = true
			}
			hits = append(hits, Hit{Term: t, Start: i, End: i + len(needle)})
			i += len(needle) - 1
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Start < hits[j].Start })
	return hits
}

// lowerRunes lowers rune by rune so offsets stay those of s.
func lowerRunes(s string) []rune {
	rs := []rune(s)
	for i, r := range rs {
		rs[i] = unicode.ToLower(r)
	}
	return rs
}

func hasPrefix(s, prefix []rune) bool {
	for i, r := range prefix {
		if s[i] != r {
			return false
		}
	}
	return true
}

func boundary(s []rune, start, end int) bool {
	word := func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }
	if start > 0 && word(s[start-1]) && word(s[start]) {
		return false
	}
	if end < len(s) && word(s[end]) && word(s[end-1]) {
		return false
	}
	return true
}

func overlaps(taken []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if taken[i] {
			return true
		}
	}
	return false
}

// Format renders hits as the value of the unit terms property, one
// "source=target" pair per line.
func Format(hits []Hit) string {
	seen := make(map[string]bool)
	var lines []string
	for _, h := range hits {
		l := h.Source + "=" + h.Target
		if !seen[l] {
			seen[l] = true
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}

// Memory is an in-memory glossary.
type Memory struct {
	mu    sync.RWMutex
	terms []Term
}

// NewMemory creates a glossary holding terms.
func NewMemory(terms ...Term) *Memory {
	return &Memory{terms: terms}
}

// Add appends terms.
func (m *Memory) Add(terms ...Term) {
	m.mu.Lock()
	m.terms = append(m.terms, terms...)
	m.mu.Unlock()
}

// Len returns the number of terms.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.terms)
}

func (m *Memory) Find(_ context.Context, text string, src, trg resource.LocaleID) ([]Hit, error) {
	m.mu.RLock()
	var candidates []Term
	for _, t := range m.terms {
		if matchLocale(t.SourceLocale, src) && matchLocale(t.TargetLocale, trg) {
			candidates = append(candidates, t)
		}
	}
	m.mu.RUnlock()
	return Match(text, candidates), nil
}

// matchLocale accepts a term without locale, an exact locale or a
// language-only term locale for a regional one.
func matchLocale(term, want resource.LocaleID) bool {
	return term.IsEmpty() || want.IsEmpty() || term == want || string(term) == want.Language()
}

// ReadTSV reads tab-separated "source target [domain]" lines. Lines
// starting with # are skipped.
func ReadTSV(r io.Reader, src, trg resource.LocaleID) ([]Term, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var terms []Term
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read glossary: %w", err)
		}
		if len(rec) < 2 {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("read glossary: line %d: want source and target", line)
		}
		t := Term{Source: strings.TrimSpace(rec[0]), Target: strings.TrimSpace(rec[1]), SourceLocale: src, TargetLocale: trg}
		if len(rec) > 2 {
			t.Domain = strings.TrimSpace(rec[2])
		}
		if t.Source != "" {
			terms = append(terms, t)
		}
	}
	return terms, nil
}
