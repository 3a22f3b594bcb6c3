package steps

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"l10nkit/internal/pipeline"
	"l10nkit/internal/resource"
	"l10nkit/internal/tm"

	"github.com/rs/zerolog"
)

// PropLeverage records the best match score on a leveraged target.
const PropLeverage = "leverage-score"

// LeverageOptions configures a Leverage step.
type LeverageOptions struct {
	// Threshold is the lowest fuzzy score used, in (0,1]. Defaults to 1.
	Threshold float64
	// Overwrite replaces existing targets.
	Overwrite bool
	// SourceLocale and TargetLocale override those of the documents.
	SourceLocale resource.LocaleID
	TargetLocale resource.LocaleID
	Log          zerolog.Logger
}

// Leverage fills unit targets from a translation memory. Segmented units
// are looked up segment by segment. A target built from any fuzzy match is
// marked approved=no.
type Leverage struct {
	pipeline.BaseStep
	store tm.Store
	opts  LeverageOptions

	src, trg resource.LocaleID

	exact  atomic.Int64
	fuzzy  atomic.Int64
	missed atomic.Int64
}

// NewLeverage creates the step.
func NewLeverage(store tm.Store, opts LeverageOptions) *Leverage {
	if opts.Threshold <= 0 || opts.Threshold > 1 {
		opts.Threshold = 1
	}
	s := &Leverage{store: store, opts: opts, src: opts.SourceLocale, trg: opts.TargetLocale}
	s.StepName = "leverage"
	s.Handlers = pipeline.Handlers{
		RawDocument: func(_ context.Context, e resource.Event) (resource.Event, error) {
			doc := e.RawDocument()
			s.src = pick(opts.SourceLocale, doc.SourceLocale)
			s.trg = pick(opts.TargetLocale, doc.TargetLocale)
			return e, nil
		},
		TextUnit: func(ctx context.Context, e resource.Event) (resource.Event, error) {
			return e, s.ProcessUnit(ctx, e.TextUnit())
		},
		EndBatch: func(_ context.Context, e resource.Event) (resource.Event, error) {
			s.opts.Log.Info().
				Int64("exact", s.exact.Load()).
				Int64("fuzzy", s.fuzzy.Load()).
				Int64("missed", s.missed.Load()).
				Msg("Leverage finished")
			return e, nil
		},
	}
	return s
}

func pick(override, doc resource.LocaleID) resource.LocaleID {
	if !override.IsEmpty() {
		return override
	}
	return doc
}

// Counts returns the number of exact, fuzzy and missed lookups so far.
func (s *Leverage) Counts() (exact, fuzzy, missed int64) {
	return s.exact.Load(), s.fuzzy.Load(), s.missed.Load()
}

// ProcessUnit looks up one unit. It is safe for concurrent use on
// different units.
func (s *Leverage) ProcessUnit(ctx context.Context, tu *resource.TextUnit) error {
	if !tu.Translatable || tu.IsEmpty() {
		return nil
	}
	if s.trg.IsEmpty() {
		return pipeline.Fatal(errors.New("leverage: no target locale"))
	}
	if tu.HasTarget(s.trg) && !s.opts.Overwrite {
		return nil
	}

	srcSegs := tu.Source.Segments()
	out := make([]*resource.Segment, len(srcSegs))
	var (
		found    int
		allExact = true
		best     = 1.0
	)
	for i, seg := range srcSegs {
		out[i] = &resource.Segment{ID: seg.ID, Group: seg.Group, Content: seg.Content.Clone()}
		if !seg.Content.HasText(false) {
			found++
			continue
		}
		m, ok, err := s.lookup(ctx, seg.Content)
		if err != nil {
			return err
		}
		if !ok {
			s.missed.Add(1)
			continue
		}
		frag, err := resource.FromGeneric(m.Target, seg.Content)
		if err != nil {
			s.opts.Log.Warn().Err(err).Str("tu", tu.ID).Msg("TM target does not fit the source codes")
			s.missed.Add(1)
			continue
		}
		out[i].Content = frag
		found++
		if m.Exact() {
			s.exact.Add(1)
		} else {
			s.fuzzy.Add(1)
			allExact = false
		}
		best = min(best, m.Score)
	}
	if found < len(srcSegs) {
		// Partial hits leave the unit for a translator.
		return nil
	}

	tc := resource.NewTextContainer(nil)
	if tu.Source.IsSegmented() {
		tc.SetSegments(out)
	} else {
		tc.SetContent(out[0].Content)
	}
	tc.Properties = map[string]string{PropLeverage: strconv.FormatFloat(best, 'f', 2, 64)}
	if !allExact {
		tc.Properties[resource.PropApproved] = "no"
	}
	tu.SetTarget(s.trg, tc)
	return nil
}

func (s *Leverage) lookup(ctx context.Context, frag *resource.TextFragment) (tm.Match, bool, error) {
	matches, err := s.store.Lookup(ctx, tm.Query{
		Source:       resource.ToGeneric(frag),
		SourceLocale: s.src,
		TargetLocale: s.trg,
		Threshold:    s.opts.Threshold,
		Limit:        1,
	})
	if err != nil {
		return tm.Match{}, false, fmt.Errorf("leverage: %w", err)
	}
	if len(matches) == 0 {
		return tm.Match{}, false, nil
	}
	return matches[0], true, nil
}
