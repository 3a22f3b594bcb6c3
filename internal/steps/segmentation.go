package steps

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"unicode/utf8"

	"l10nkit/internal/pipeline"
	"l10nkit/internal/resource"

	"github.com/rs/zerolog"
)

// DefaultBreakPattern ends a sentence at terminal punctuation, optional
// closing quotes or brackets, and the whitespace after them.
const DefaultBreakPattern = `[.!?…]+["'’”)\]]*\s+`

// SegmentationOptions configures a Segmentation step.
type SegmentationOptions struct {
	// BreakPattern matches the end of a segment, trailing whitespace
	// included. Defaults to DefaultBreakPattern.
	BreakPattern string
	// SegmentTargets also splits existing targets with the same rule.
	SegmentTargets bool
	Log            zerolog.Logger
}

// Segmentation splits the source of each translatable unit into
// sentences. Codes keep their place; a pair opened in one segment and
// closed in another links the two into one renumbering group.
type Segmentation struct {
	pipeline.BaseStep
	opts  SegmentationOptions
	rule  *regexp.Regexp
	units int
	segs  int
}

// NewSegmentation creates the step. An invalid pattern is a
// configuration error.
func NewSegmentation(opts SegmentationOptions) (*Segmentation, error) {
	if opts.BreakPattern == "" {
		opts.BreakPattern = DefaultBreakPattern
	}
	rule, err := regexp.Compile(opts.BreakPattern)
	if err != nil {
		return nil, fmt.Errorf("segmentation: invalid break pattern: %w", err)
	}
	s := &Segmentation{opts: opts, rule: rule}
	s.StepName = "segmentation"
	s.Handlers = pipeline.Handlers{
		TextUnit: func(_ context.Context, e resource.Event) (resource.Event, error) {
			s.segment(e.TextUnit())
			return e, nil
		},
		EndBatch: func(_ context.Context, e resource.Event) (resource.Event, error) {
			s.opts.Log.Info().Int("units", s.units).Int("segments", s.segs).Msg("Segmentation finished")
			return e, nil
		},
	}
	return s, nil
}

func (s *Segmentation) segment(tu *resource.TextUnit) {
	if !tu.Translatable || tu.Source.IsSegmented() {
		return
	}
	segs := Split(tu.Source.FirstContent(), s.rule)
	tu.Source.SetSegments(segs)
	s.units++
	s.segs += len(segs)

	if !s.opts.SegmentTargets {
		return
	}
	for _, loc := range tu.TargetLocales() {
		tc := tu.Target(loc)
		if tc.IsSegmented() {
			continue
		}
		tsegs := Split(tc.FirstContent(), s.rule)
		if len(tsegs) != len(segs) {
			s.opts.Log.Debug().Str("tu", tu.ID).Str("locale", loc.String()).Msg("Target segments do not align, left whole")
			continue
		}
		tc.SetSegments(tsegs)
	}
}

// Split cuts frag after each match of rule, never inside a code and
// never at the very end. Each segment carries the group of the segments
// it shares a split code pair with, and its codes are renumbered from 1
// per group in first-appearance order.
func Split(frag *resource.TextFragment, rule *regexp.Regexp) []*resource.Segment {
	coded := frag.CodedText()
	total := frag.Len()

	var cuts []int
	for _, m := range rule.FindAllStringIndex(coded, -1) {
		pos := utf8.RuneCountInString(coded[:m[1]])
		if pos >= total {
			break
		}
		cuts = append(cuts, pos)
	}

	segs := make([]*resource.Segment, 0, len(cuts)+1)
	start := 0
	for i, end := range append(cuts, total) {
		segs = append(segs, &resource.Segment{ID: strconv.Itoa(i), Content: frag.SubFragment(start, end)})
		start = end
	}
	if len(segs) == 1 {
		segs[0].Content.BalanceMarkers()
		return segs
	}

	groups := newUnionFind(len(segs))
	opened := make(map[int]int) // code id -> segment of its opening code
	for i, seg := range segs {
		for _, c := range seg.Content.Codes() {
			switch c.TagType {
			case resource.TagOpening:
				opened[c.ID] = i
			case resource.TagClosing:
				if j, ok := opened[c.ID]; ok && j != i {
					groups.union(j, i)
				}
			}
		}
	}

	ids := make(map[int]map[int]int)
	next := make(map[int]int)
	for i, seg := range segs {
		g := groups.find(i)
		seg.Group = g
		if ids[g] == nil {
			ids[g] = make(map[int]int)
			next[g] = 1
		}
		next[g] = seg.Content.RenumberShared(ids[g], next[g])
		seg.Content.BalanceMarkers()
	}
	return segs
}

// unionFind groups segment indexes. The root of a group is its smallest
// index, so group numbers follow document order.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	u := &unionFind{parent: make([]int, n)}
	for i := range u.parent {
		u.parent[i] = i
	}
	return u
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	switch {
	case ra == rb:
	case ra < rb:
		u.parent[rb] = ra
	default:
		u.parent[ra] = rb
	}
}
