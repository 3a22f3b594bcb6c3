package steps

import (
	"context"
	"fmt"
	"io"
	"sort"

	"l10nkit/internal/pipeline"
	"l10nkit/internal/resource"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Inconsistency kinds.
const (
	// SourceInconsistency is one source translated in several ways.
	SourceInconsistency = "source"
	// TargetInconsistency is one translation used for several sources.
	TargetInconsistency = "target"
)

// Occurrence is one unit taking part in an inconsistency.
type Occurrence struct {
	Doc  string `yaml:"doc"`
	Unit string `yaml:"unit"`
	// Text is the side that differs: the target for a source
	// inconsistency, the source for a target one.
	Text string `yaml:"text"`
}

// Inconsistency is a text with more than one counterpart.
type Inconsistency struct {
	Kind        string       `yaml:"kind"`
	Text        string       `yaml:"text"`
	Occurrences []Occurrence `yaml:"occurrences"`
}

// InconsistencyReport lists the inconsistencies of a batch.
type InconsistencyReport struct {
	RunID  string          `yaml:"run"`
	Locale string          `yaml:"locale"`
	Items  []Inconsistency `yaml:"items"`
}

// WriteYAML writes the report.
func (r *InconsistencyReport) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("write inconsistency report: %w", err)
	}
	return enc.Close()
}

// InconsistencyOptions configures an InconsistencyCheck.
type InconsistencyOptions struct {
	// Locale overrides the target locale of the documents.
	Locale resource.LocaleID
	// Output receives the YAML report at the end of each batch when set.
	Output io.Writer
	Log    zerolog.Logger
}

type pairSeen struct {
	counterpart string
	occ         Occurrence
}

// InconsistencyCheck collects source/target pairs over a batch and
// reports sources with different translations and translations shared by
// different sources. Comparison uses generic text, so code ids count.
type InconsistencyCheck struct {
	pipeline.BaseStep
	opts InconsistencyOptions

	runID    string
	doc      string
	locale   resource.LocaleID
	bySource map[string][]pairSeen
	byTarget map[string][]pairSeen
	report   *InconsistencyReport
}

// NewInconsistencyCheck creates the step.
func NewInconsistencyCheck(opts InconsistencyOptions) *InconsistencyCheck {
	s := &InconsistencyCheck{opts: opts}
	s.StepName = "inconsistency-check"
	s.Handlers = pipeline.Handlers{
		StartBatch: func(_ context.Context, e resource.Event) (resource.Event, error) {
			s.reset(e.Resource().ResourceID())
			return e, nil
		},
		RawDocument: func(_ context.Context, e resource.Event) (resource.Event, error) {
			doc := e.RawDocument()
			s.doc = doc.URI
			s.locale = pick(opts.Locale, doc.TargetLocale)
			return e, nil
		},
		TextUnit: func(_ context.Context, e resource.Event) (resource.Event, error) {
			s.collect(e.TextUnit())
			return e, nil
		},
		EndBatch: func(_ context.Context, e resource.Event) (resource.Event, error) {
			return e, s.finish()
		},
	}
	s.reset("")
	return s
}

func (s *InconsistencyCheck) reset(runID string) {
	s.runID = runID
	s.bySource = make(map[string][]pairSeen)
	s.byTarget = make(map[string][]pairSeen)
}

func (s *InconsistencyCheck) collect(tu *resource.TextUnit) {
	if !tu.Translatable || tu.IsEmpty() || s.locale.IsEmpty() {
		return
	}
	tc := tu.Target(s.locale)
	if tc == nil {
		return
	}
	src := resource.ToGeneric(tu.Source.Unsegmented())
	trg := resource.ToGeneric(tc.Unsegmented())
	if trg == "" {
		return
	}
	s.bySource[src] = append(s.bySource[src], pairSeen{counterpart: trg, occ: Occurrence{Doc: s.doc, Unit: tu.ID, Text: trg}})
	s.byTarget[trg] = append(s.byTarget[trg], pairSeen{counterpart: src, occ: Occurrence{Doc: s.doc, Unit: tu.ID, Text: src}})
}

// Report returns the report of the last finished batch.
func (s *InconsistencyCheck) Report() *InconsistencyReport { return s.report }

func (s *InconsistencyCheck) finish() error {
	rep := &InconsistencyReport{RunID: s.runID, Locale: s.locale.String()}
	rep.Items = append(rep.Items, inconsistencies(SourceInconsistency, s.bySource)...)
	rep.Items = append(rep.Items, inconsistencies(TargetInconsistency, s.byTarget)...)
	s.report = rep

	for _, it := range rep.Items {
		s.opts.Log.Warn().Str("kind", it.Kind).Str("text", it.Text).Int("variants", len(it.Occurrences)).Msg("Inconsistent translation")
	}
	s.opts.Log.Info().Int("inconsistencies", len(rep.Items)).Msg("Inconsistency check finished")
	if s.opts.Output != nil {
		return rep.WriteYAML(s.opts.Output)
	}
	return nil
}

func inconsistencies(kind string, seen map[string][]pairSeen) []Inconsistency {
	var items []Inconsistency
	for text, pairs := range seen {
		distinct := make(map[string]bool)
		for _, p := range pairs {
			distinct[p.counterpart] = true
		}
		if len(distinct) < 2 {
			continue
		}
		it := Inconsistency{Kind: kind, Text: text}
		for _, p := range pairs {
			it.Occurrences = append(it.Occurrences, p.occ)
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Text < items[j].Text })
	return items
}
