// Package steps holds the pipeline steps.
package steps

import (
	"context"
	"fmt"
	"sync"

	"l10nkit/internal/filter"
	"l10nkit/internal/registry"
	"l10nkit/internal/resource"

	"github.com/rs/zerolog"
)

// Extraction turns each raw document into the events of its filter. The
// raw document event itself is passed on first, so later steps learn the
// locales and the output settings of the document.
type Extraction struct {
	reg *registry.Registry
	log zerolog.Logger

	mu      sync.Mutex
	current filter.Filter
	doc     *resource.RawDocument
	events  int
}

// NewExtraction creates the step. Filters come from reg, by the
// configuration id of the document or by its extension.
func NewExtraction(reg *registry.Registry, log zerolog.Logger) *Extraction {
	return &Extraction{reg: reg, log: log}
}

func (s *Extraction) Name() string { return "extraction" }

func (s *Extraction) HandleEvent(ctx context.Context, e resource.Event) (resource.Event, error) {
	if e.Kind() != resource.KindRawDocument {
		return e, nil
	}
	doc := e.RawDocument()
	id := doc.FilterConfigID
	if id == "" {
		var ok bool
		if id, ok = s.reg.ForPath(doc.URI); !ok {
			return resource.Event{}, fmt.Errorf("%w: no filter configuration for %s", filter.ErrInvalidConfig, doc.URI)
		}
	}
	f, err := s.reg.Create(id)
	if err != nil {
		return resource.Event{}, err
	}
	if err := f.Open(ctx, doc); err != nil {
		f.Close()
		return resource.Event{}, fmt.Errorf("open %s: %w", doc.URI, err)
	}

	s.mu.Lock()
	s.closeCurrent()
	s.current, s.doc, s.events = f, doc, 0
	s.mu.Unlock()
	s.log.Debug().Str("doc", doc.URI).Str("filter", id).Msg("Extracting document")
	return e, nil
}

func (s *Extraction) HasNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && s.current.HasNext()
}

func (s *Extraction) Next(ctx context.Context) (resource.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return resource.Event{}, filter.ErrNoMoreEvents
	}
	e, err := s.current.Next()
	if err != nil {
		s.closeCurrent()
		return resource.Event{}, err
	}
	s.events++
	if !s.current.HasNext() {
		s.log.Debug().Str("doc", s.doc.URI).Int("events", s.events).Msg("Document extracted")
		s.closeCurrent()
	}
	return e, nil
}

func (s *Extraction) closeCurrent() {
	if s.current == nil {
		return
	}
	if err := s.current.Close(); err != nil {
		s.log.Warn().Err(err).Msg("Closing filter failed")
	}
	s.current = nil
}

// Cancel makes the running filter end its stream with a Canceled event.
func (s *Extraction) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.Cancel()
	}
}

// Abort closes the filter of a document that failed downstream, so its
// remaining events are never delivered.
func (s *Extraction) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCurrent()
}

func (s *Extraction) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCurrent()
	return nil
}
