package steps

import (
	"context"
	"fmt"
	"sync/atomic"

	"l10nkit/internal/pipeline"
	"l10nkit/internal/resource"
	"l10nkit/internal/terminology"

	"github.com/rs/zerolog"
)

// TermsOptions configures a Terms step.
type TermsOptions struct {
	SourceLocale resource.LocaleID
	TargetLocale resource.LocaleID
	Log          zerolog.Logger
}

// Terms annotates each translatable unit with the glossary terms found in
// its source, in the terms property.
type Terms struct {
	pipeline.BaseStep
	glossary terminology.Glossary
	opts     TermsOptions
	src, trg resource.LocaleID
	hits     atomic.Int64
}

// NewTerms creates the step.
func NewTerms(g terminology.Glossary, opts TermsOptions) *Terms {
	s := &Terms{glossary: g, opts: opts, src: opts.SourceLocale, trg: opts.TargetLocale}
	s.StepName = "terminology"
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
			s.opts.Log.Info().Int64("hits", s.hits.Load()).Msg("Terminology check finished")
			return e, nil
		},
	}
	return s
}

// ProcessUnit looks up one unit. It is safe for concurrent use on
// different units.
func (s *Terms) ProcessUnit(ctx context.Context, tu *resource.TextUnit) error {
	if !tu.Translatable || tu.IsEmpty() {
		return nil
	}
	hits, err := s.glossary.Find(ctx, tu.Source.Unsegmented().Text(), s.src, s.trg)
	if err != nil {
		return fmt.Errorf("terminology %s: %w", tu.ID, err)
	}
	if len(hits) == 0 {
		return nil
	}
	tu.SetProperty(resource.PropTerms, terminology.Format(hits))
	s.hits.Add(int64(len(hits)))
	return nil
}
