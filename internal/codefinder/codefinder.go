package codefinder

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"l10nkit/internal/resource"
)

// Rule kinds.
const (
	KindPlaceholder = "placeholder"
	KindOpening     = "opening"
	KindClosing     = "closing"
)

// Rule describes one inline code pattern.
type Rule struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	// Kind is placeholder (default), opening or closing.
	Kind string `yaml:"kind"`
	// Type is the code type given to matches; defaults to "var".
	Type string `yaml:"type"`
}

// DefaultRules detects common interpolation variables.
var DefaultRules = []Rule{
	{Name: "dollar-brace", Pattern: `\$\{[a-zA-Z_][a-zA-Z0-9_]*\}`},   // ${value}
	{Name: "indexed", Pattern: `\{[0-9]+\}`},                          // {0}, {1}
	{Name: "printf", Pattern: `%[-+0-9]*\.?[0-9]*[dsfieEgGxXoubcpq]`}, // %d, %s, %2d
	{Name: "percent", Pattern: `%%`},                                  // escaped percent literal
	{Name: "html-empty", Pattern: `<[a-zA-Z][^<>]*/>`, Type: "tag"},
	{Name: "html-open", Pattern: `<[a-zA-Z][^<>]*>`, Kind: KindOpening, Type: "tag"},
	{Name: "html-close", Pattern: `</[a-zA-Z][^<>]*>`, Kind: KindClosing, Type: "tag"},
}

type compiledRule struct {
	re      *regexp.Regexp
	tagType resource.TagType
	typ     string
}

// Finder converts matches of its rules into inline codes.
type Finder struct {
	rules []compiledRule
}

// New compiles the rules. Any invalid pattern or kind is an error.
func New(rules []Rule) (*Finder, error) {
	f := &Finder{}
	for i, r := range rules {
		if r.Pattern == "" {
			return nil, fmt.Errorf("rule %d (%s): empty pattern", i, r.Name)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Name, err)
		}
		cr := compiledRule{re: re, typ: r.Type}
		switch r.Kind {
		case "", KindPlaceholder:
			cr.tagType = resource.TagPlaceholder
		case KindOpening:
			cr.tagType = resource.TagOpening
		case KindClosing:
			cr.tagType = resource.TagClosing
		default:
			return nil, fmt.Errorf("rule %d (%s): unknown kind %q", i, r.Name, r.Kind)
		}
		if cr.typ == "" {
			cr.typ = resource.CodeTypeVariable
		}
		f.rules = append(f.rules, cr)
	}
	return f, nil
}

// MustNew is like New but panics on error. For package-level rule sets.
func MustNew(rules []Rule) *Finder {
	f, err := New(rules)
	if err != nil {
		panic(err)
	}
	return f
}

// match stores a detected span in rune positions of the coded text.
type match struct {
	start, end int
	rule       int
	value      string
}

// Process scans the plain-text runs of tf and replaces every match with a
// code. Existing codes are never looked into. At a given position the
// leftmost match wins; ties go to the rule declared first.
func (f *Finder) Process(tf *resource.TextFragment) {
	if f == nil || len(f.rules) == 0 || tf == nil {
		return
	}

	var all []match
	tf.Runs(func(start int, run string) {
		all = append(all, f.scan(run, start)...)
	})
	if len(all) == 0 {
		return
	}

	// Assign ids left to right so closing codes can pair with openings.
	codes := make([]*resource.Code, len(all))
	open := make(map[string][]int)
	for i, m := range all {
		r := f.rules[m.rule]
		c := &resource.Code{TagType: r.tagType, Type: r.typ, Data: m.value}
		switch r.tagType {
		case resource.TagOpening:
			c.ID = tf.NextID()
			open[r.typ] = append(open[r.typ], c.ID)
		case resource.TagClosing:
			if stack := open[r.typ]; len(stack) > 0 {
				c.ID = stack[len(stack)-1]
				open[r.typ] = stack[:len(stack)-1]
			} else {
				c.ID = tf.NextID()
			}
		default:
			c.ID = tf.NextID()
		}
		codes[i] = c
	}

	// Replace in reverse order to preserve positions.
	for i := len(all) - 1; i >= 0; i-- {
		tf.ReplaceWithCode(all[i].start, all[i].end, codes[i])
	}
	tf.BalanceMarkers()
}

// scan returns the non-overlapping matches of run, offset by base.
func (f *Finder) scan(run string, base int) []match {
	var out []match
	pos := 0
	for pos < len(run) {
		best := -1
		var bestLoc []int
		for i, r := range f.rules {
			var loc []int
			for _, l := range r.re.FindAllStringIndex(run[pos:], -1) {
				if l[0] < l[1] {
					loc = l
					break
				}
			}
			if loc == nil {
				continue
			}
			if best < 0 || loc[0] < bestLoc[0] {
				best, bestLoc = i, loc
			}
		}
		if best < 0 {
			break
		}
		s, e := pos+bestLoc[0], pos+bestLoc[1]
		out = append(out, match{
			start: base + utf8.RuneCountInString(run[:s]),
			end:   base + utf8.RuneCountInString(run[:e]),
			rule:  best,
			value: run[s:e],
		})
		pos = e
	}
	return out
}
