package pipeline

import (
	"context"
	"sync"
	"time"

	"l10nkit/internal/resource"
	"l10nkit/internal/worker"

	"github.com/rs/zerolog"
)

// UnitWorker is a step whose text unit work may run concurrently. Other
// events still go through HandleEvent, in order.
type UnitWorker interface {
	Step
	// ProcessUnit handles one unit. It may be called from several
	// goroutines at once, for different units.
	ProcessUnit(ctx context.Context, tu *resource.TextUnit) error
}

// ConcurrentOptions configures a ConcurrentStep.
type ConcurrentOptions struct {
	Workers int
	// MaxPending is the number of buffered events that triggers a flush
	// before the end of the document. Defaults to 256.
	MaxPending int
	// CancelWait bounds the wait for in-flight units after a cancel.
	// Defaults to 5s.
	CancelWait time.Duration
	Log        zerolog.Logger
}

type pendingEvent struct {
	event resource.Event
	unit  *resource.TextUnit
}

// ConcurrentStep runs the unit work of a UnitWorker on a bounded pool.
// Events are held back and released in their original order, as one
// MultiEvent, at the end of each document or when the buffer is full.
type ConcurrentStep struct {
	inner UnitWorker
	pool  *worker.Pool[*resource.TextUnit, struct{}]
	opts  ConcurrentOptions

	pending []pendingEvent

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewConcurrentStep wraps inner.
func NewConcurrentStep(inner UnitWorker, opts ConcurrentOptions) *ConcurrentStep {
	if opts.MaxPending <= 0 {
		opts.MaxPending = 256
	}
	if opts.CancelWait <= 0 {
		opts.CancelWait = 5 * time.Second
	}
	s := &ConcurrentStep{inner: inner, opts: opts}
	s.pool = worker.NewPool(opts.Workers, func(ctx context.Context, tu *resource.TextUnit) (struct{}, error) {
		return struct{}{}, inner.ProcessUnit(ctx, tu)
	}, opts.Log)
	return s
}

func (s *ConcurrentStep) Name() string { return s.inner.Name() }

func (s *ConcurrentStep) HandleEvent(ctx context.Context, e resource.Event) (resource.Event, error) {
	switch e.Kind() {
	case resource.KindTextUnit:
		s.pending = append(s.pending, pendingEvent{event: e, unit: e.TextUnit()})
		if len(s.pending) < s.opts.MaxPending {
			return resource.NoopEvent(), nil
		}
		return s.flush(ctx, nil)
	case resource.KindEndDocument, resource.KindEndBatchItem, resource.KindEndBatch:
		return s.flush(ctx, &e)
	}

	out, err := s.inner.HandleEvent(ctx, e)
	if err != nil {
		return resource.Event{}, err
	}
	if len(s.pending) == 0 {
		return out, nil
	}
	s.pending = append(s.pending, pendingEvent{event: out})
	return resource.NoopEvent(), nil
}

// flush processes the buffered units, then hands last, if any, to the
// inner step so it sees the document complete.
func (s *ConcurrentStep) flush(ctx context.Context, last *resource.Event) (resource.Event, error) {
	pending := s.pending
	s.pending = nil

	var units []*resource.TextUnit
	for _, pe := range pending {
		if pe.unit != nil {
			units = append(units, pe.unit)
		}
	}
	if len(units) > 0 {
		if err := s.process(ctx, units); err != nil {
			return resource.Event{}, err
		}
	}

	events := make([]resource.Event, 0, len(pending)+1)
	for _, pe := range pending {
		events = append(events, pe.event)
	}
	if last != nil {
		out, err := s.inner.HandleEvent(ctx, *last)
		if err != nil {
			return resource.Event{}, err
		}
		events = append(events, out)
	}
	switch len(events) {
	case 0:
		return resource.NoopEvent(), nil
	case 1:
		return events[0], nil
	}
	return resource.NewMultiEvent(events...), nil
}

func (s *ConcurrentStep) process(ctx context.Context, units []*resource.TextUnit) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		cancel()
	}()

	done := make(chan []worker.Result[*resource.TextUnit, struct{}], 1)
	go func() { done <- s.pool.Execute(ctx, units) }()

	var results []worker.Result[*resource.TextUnit, struct{}]
	select {
	case results = <-done:
	case <-ctx.Done():
		// Give in-flight units a bounded time to notice.
		select {
		case results = <-done:
		case <-time.After(s.opts.CancelWait):
			s.opts.Log.Warn().Int("units", len(units)).Msg("Abandoned in-flight units")
			return ErrCancelled
		}
	}
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}

// Cancel aborts the units in flight.
func (s *ConcurrentStep) Cancel() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	if c, ok := s.inner.(Canceler); ok {
		c.Cancel()
	}
}

// Abort drops the buffered events of the failed document.
func (s *ConcurrentStep) Abort() {
	s.pending = nil
	if a, ok := s.inner.(Aborter); ok {
		a.Abort()
	}
}

func (s *ConcurrentStep) Destroy() error {
	s.pending = nil
	return s.inner.Destroy()
}
