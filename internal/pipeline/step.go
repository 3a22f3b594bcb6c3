package pipeline

import (
	"context"

	"l10nkit/internal/resource"
)

// Step is one stage of a pipeline. HandleEvent returns the event to pass
// on: the same or a modified event, a MultiEvent whose events each go
// through the remaining steps, or a Noop event to drop it.
type Step interface {
	Name() string
	HandleEvent(ctx context.Context, e resource.Event) (resource.Event, error)
	// Destroy releases the resources of the step. It is called once.
	Destroy() error
}

// Producer is a step that emits further events after handling one, such
// as a filter step turning a raw document into its events. The pipeline
// pulls them one at a time and pushes each through the following steps
// before asking for the next.
type Producer interface {
	HasNext() bool
	Next(ctx context.Context) (resource.Event, error)
}

// Canceler is a step that can abort its current work.
type Canceler interface {
	Cancel()
}

// Aborter is a step holding per-document state, such as a producer's
// remaining events or an open output. Abort drops that state after the
// document failed, so nothing of it reaches the next document.
type Aborter interface {
	Abort()
}

// HandlerFunc handles one event kind.
type HandlerFunc func(ctx context.Context, e resource.Event) (resource.Event, error)

// Handlers holds per-kind hooks. A nil hook passes the event through
// unchanged, so unknown and Custom events are no-ops by default.
type Handlers struct {
	StartBatch         HandlerFunc
	EndBatch           HandlerFunc
	StartBatchItem     HandlerFunc
	EndBatchItem       HandlerFunc
	RawDocument        HandlerFunc
	StartDocument      HandlerFunc
	EndDocument        HandlerFunc
	StartSubDocument   HandlerFunc
	EndSubDocument     HandlerFunc
	StartGroup         HandlerFunc
	EndGroup           HandlerFunc
	StartSubfilter     HandlerFunc
	EndSubfilter       HandlerFunc
	TextUnit           HandlerFunc
	DocumentPart       HandlerFunc
	Custom             HandlerFunc
	PipelineParameters HandlerFunc
	Canceled           HandlerFunc
}

// Handle dispatches e to its hook.
func (h *Handlers) Handle(ctx context.Context, e resource.Event) (resource.Event, error) {
	var fn HandlerFunc
	switch e.Kind() {
	case resource.KindStartBatch:
		fn = h.StartBatch
	case resource.KindEndBatch:
		fn = h.EndBatch
	case resource.KindStartBatchItem:
		fn = h.StartBatchItem
	case resource.KindEndBatchItem:
		fn = h.EndBatchItem
	case resource.KindRawDocument:
		fn = h.RawDocument
	case resource.KindStartDocument:
		fn = h.StartDocument
	case resource.KindEndDocument:
		fn = h.EndDocument
	case resource.KindStartSubDocument:
		fn = h.StartSubDocument
	case resource.KindEndSubDocument:
		fn = h.EndSubDocument
	case resource.KindStartGroup:
		fn = h.StartGroup
	case resource.KindEndGroup:
		fn = h.EndGroup
	case resource.KindStartSubfilter:
		fn = h.StartSubfilter
	case resource.KindEndSubfilter:
		fn = h.EndSubfilter
	case resource.KindTextUnit:
		fn = h.TextUnit
	case resource.KindDocumentPart:
		fn = h.DocumentPart
	case resource.KindCustom:
		fn = h.Custom
	case resource.KindPipelineParameters:
		fn = h.PipelineParameters
	case resource.KindCanceled:
		fn = h.Canceled
	case resource.KindMultiEvent, resource.KindNoop:
	}
	if fn == nil {
		return e, nil
	}
	return fn(ctx, e)
}

// BaseStep gives a step a name and no-op Destroy. Steps embed it and set
// Handlers.
type BaseStep struct {
	StepName string
	Handlers Handlers
}

func (s *BaseStep) Name() string { return s.StepName }

func (s *BaseStep) HandleEvent(ctx context.Context, e resource.Event) (resource.Event, error) {
	return s.Handlers.Handle(ctx, e)
}

func (s *BaseStep) Destroy() error { return nil }
