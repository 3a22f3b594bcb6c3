package steps

import (
	"context"
	"fmt"

	"l10nkit/internal/encoder"
	"l10nkit/internal/filter"
	"l10nkit/internal/pipeline"
	"l10nkit/internal/resource"
	"l10nkit/internal/writer"

	"github.com/rs/zerolog"
)

// Translations are the entries of a translated merge-mode PO file, keyed
// by their msgctxt crumbs. Plural entries keep one text per form.
type Translations struct {
	Locale    resource.LocaleID
	byContext map[string][]string
}

// LoadTranslations reads a translated PO file with f, a PO filter.
func LoadTranslations(ctx context.Context, f filter.Filter, doc *resource.RawDocument) (*Translations, error) {
	if err := f.Open(ctx, doc); err != nil {
		return nil, fmt.Errorf("read translations %s: %w", doc.URI, err)
	}
	defer f.Close()
	events, err := filter.Drain(f)
	if err != nil {
		return nil, fmt.Errorf("read translations %s: %w", doc.URI, err)
	}

	t := &Translations{Locale: doc.TargetLocale, byContext: make(map[string][]string)}
	for _, e := range resource.Flatten(events) {
		if e.Kind() != resource.KindTextUnit {
			continue
		}
		tu := e.TextUnit()
		key := tu.Property(resource.PropContext)
		if key == "" {
			continue
		}
		if t.Locale.IsEmpty() {
			if locs := tu.TargetLocales(); len(locs) > 0 {
				t.Locale = locs[0]
			}
		}
		text := ""
		if tc := tu.Target(t.Locale); tc != nil {
			// Line joins of wrapped strings are codes; the generic tags
			// are plain text.
			text = encoder.UnescapePO(tc.Unsegmented().Text())
		}
		t.byContext[key] = append(t.byContext[key], text)
	}
	return t, nil
}

// Len returns the number of entries.
func (t *Translations) Len() int { return len(t.byContext) }

// Lookup returns the translation of plural form i for a context.
func (t *Translations) Lookup(key string, i int) (string, bool) {
	texts := t.byContext[key]
	if i >= len(texts) || texts[i] == "" {
		return "", false
	}
	return texts[i], true
}

// MergeOptions configures a Merge step.
type MergeOptions struct {
	// Locale receives the translations. Defaults to the locale of the
	// translations, then to the target locale of the documents.
	Locale resource.LocaleID
	Log    zerolog.Logger
}

// Merge applies the translations of a merge-mode PO file onto the units of
// the re-extracted original document. Units are found by the same crumbs
// the PO writer put in msgctxt.
type Merge struct {
	pipeline.BaseStep
	tr   *Translations
	opts MergeOptions
	loc  resource.LocaleID

	crumbs     writer.Crumbs
	pluralCtx  string
	pluralForm int
	inPlural   bool

	merged, missed int
}

// NewMerge creates the step.
func NewMerge(tr *Translations, opts MergeOptions) *Merge {
	s := &Merge{tr: tr, opts: opts}
	s.loc = pick(opts.Locale, tr.Locale)
	s.StepName = "merge"
	s.Handlers = pipeline.Handlers{
		RawDocument: func(_ context.Context, e resource.Event) (resource.Event, error) {
			if s.loc.IsEmpty() {
				s.loc = e.RawDocument().TargetLocale
			}
			return e, nil
		},
		StartDocument: func(ctx context.Context, e resource.Event) (resource.Event, error) {
			s.merged, s.missed = 0, 0
			return s.track(ctx, e)
		},
		StartSubDocument: s.track,
		EndSubDocument:   s.track,
		StartSubfilter:   s.track,
		EndSubfilter:     s.track,
		StartGroup: func(ctx context.Context, e resource.Event) (resource.Event, error) {
			if e.StartGroup().Type == resource.GroupTypePlurals {
				s.inPlural, s.pluralCtx, s.pluralForm = true, "", 0
			}
			return s.track(ctx, e)
		},
		EndGroup: func(ctx context.Context, e resource.Event) (resource.Event, error) {
			s.inPlural = false
			return s.track(ctx, e)
		},
		TextUnit: func(_ context.Context, e resource.Event) (resource.Event, error) {
			return e, s.apply(e.TextUnit())
		},
		EndDocument: func(_ context.Context, e resource.Event) (resource.Event, error) {
			s.opts.Log.Info().Int("merged", s.merged).Int("missing", s.missed).Msg("Translations merged")
			return e, nil
		},
	}
	return s
}

// Counts returns the units merged and missed in the current or last
// document.
func (s *Merge) Counts() (merged, missed int) { return s.merged, s.missed }

func (s *Merge) track(_ context.Context, e resource.Event) (resource.Event, error) {
	s.crumbs.Track(e)
	return e, nil
}

func (s *Merge) apply(tu *resource.TextUnit) error {
	if !tu.Translatable || tu.IsEmpty() {
		return nil
	}
	key, form := s.crumbs.Context(tu.ID), 0
	if s.inPlural {
		if s.pluralCtx == "" {
			s.pluralCtx = key
		}
		key, form = s.pluralCtx, s.pluralForm
		s.pluralForm++
	}
	// An untranslated entry keeps the source.
	text, ok := s.tr.Lookup(key, form)
	if !ok || text == "" {
		s.missed++
		return nil
	}
	frag, err := resource.FromGeneric(text, tu.Source.Unsegmented())
	if err != nil {
		return fmt.Errorf("merge unit %s: %w", tu.ID, err)
	}
	tu.SetTarget(s.loc, resource.NewTextContainer(frag))
	s.merged++
	return nil
}
