package steps

import (
	"context"
	"fmt"

	"l10nkit/internal/pipeline"
	"l10nkit/internal/resource"
	"l10nkit/internal/tm"
	"l10nkit/internal/worker"

	"github.com/rs/zerolog"
)

// TMImportOptions configures a TMImport step.
type TMImportOptions struct {
	SourceLocale resource.LocaleID
	TargetLocale resource.LocaleID
	// IncludeFuzzy also stores targets marked approved=no.
	IncludeFuzzy bool
	// BatchSize is the number of entries per store call. Defaults to 500.
	BatchSize int
	Log       zerolog.Logger
}

// TMImport collects the translated units of a batch and stores them in a
// translation memory when the batch ends. Aligned segments are stored one
// by one, other units whole.
type TMImport struct {
	pipeline.BaseStep
	store tm.Store
	opts  TMImportOptions

	doc      string
	src, trg resource.LocaleID
	entries  []tm.Entry
	stored   int
}

// NewTMImport creates the step.
func NewTMImport(store tm.Store, opts TMImportOptions) *TMImport {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	s := &TMImport{store: store, opts: opts, src: opts.SourceLocale, trg: opts.TargetLocale}
	s.StepName = "tm-import"
	s.Handlers = pipeline.Handlers{
		StartBatch: func(_ context.Context, e resource.Event) (resource.Event, error) {
			s.entries = nil
			return e, nil
		},
		RawDocument: func(_ context.Context, e resource.Event) (resource.Event, error) {
			doc := e.RawDocument()
			s.doc = doc.URI
			s.src = pick(opts.SourceLocale, doc.SourceLocale)
			s.trg = pick(opts.TargetLocale, doc.TargetLocale)
			return e, nil
		},
		TextUnit: func(_ context.Context, e resource.Event) (resource.Event, error) {
			s.collect(e.TextUnit())
			return e, nil
		},
		EndBatch: func(ctx context.Context, e resource.Event) (resource.Event, error) {
			return e, s.flush(ctx)
		},
	}
	return s
}

// Stored returns the number of entries written so far.
func (s *TMImport) Stored() int { return s.stored }

func (s *TMImport) collect(tu *resource.TextUnit) {
	if !tu.Translatable || tu.IsEmpty() || s.trg.IsEmpty() {
		return
	}
	tc := tu.Target(s.trg)
	if tc == nil {
		return
	}
	if v := tc.Properties[resource.PropApproved]; v == "no" && !s.opts.IncludeFuzzy {
		return
	}

	srcSegs := tu.Source.Segments()
	trgSegs := tc.Segments()
	if len(srcSegs) != len(trgSegs) {
		srcSegs = []*resource.Segment{{ID: "0", Content: tu.Source.Unsegmented()}}
		trgSegs = []*resource.Segment{{ID: "0", Content: tc.Unsegmented()}}
	}
	for i := range srcSegs {
		source := resource.ToGeneric(srcSegs[i].Content)
		target := resource.ToGeneric(trgSegs[i].Content)
		if !srcSegs[i].Content.HasText(false) || target == "" {
			continue
		}
		s.entries = append(s.entries, tm.Entry{
			Source:       source,
			Target:       target,
			SourceLocale: s.src,
			TargetLocale: s.trg,
			Origin:       s.doc,
		})
	}
}

func (s *TMImport) flush(ctx context.Context) error {
	entries := s.entries
	s.entries = nil
	for _, chunk := range worker.Batch(entries, s.opts.BatchSize) {
		if err := s.store.Put(ctx, chunk); err != nil {
			return pipeline.Fatal(fmt.Errorf("tm import: %w", err))
		}
		s.stored += len(chunk)
	}
	s.opts.Log.Info().Int("entries", len(entries)).Msg("Imported translations into TM")
	return nil
}
