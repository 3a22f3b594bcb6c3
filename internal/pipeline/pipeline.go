package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"l10nkit/internal/resource"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Report summarizes a batch run.
type Report struct {
	RunID     string
	Documents int
	Succeeded int
	Failures  []*DocumentFailure
	State     State
	Started   time.Time
	Finished  time.Time
}

// Err joins the document failures, nil when there are none.
func (r *Report) Err() error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Pipeline drives events through an ordered chain of steps. Each pipeline
// owns its steps; two pipelines never share step instances.
type Pipeline struct {
	log   zerolog.Logger
	steps []Step

	mu        sync.Mutex
	resumed   *sync.Cond
	state     State
	cancelled atomic.Bool
}

// New creates a pipeline running steps in order.
func New(log zerolog.Logger, steps ...Step) *Pipeline {
	p := &Pipeline{log: log, steps: steps}
	p.resumed = sync.NewCond(&p.mu)
	return p
}

// Steps returns the steps of the pipeline.
func (p *Pipeline) Steps() []Step { return p.steps }

// State returns the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) transition(to State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateDestroyed {
		return ErrDestroyed
	}
	if p.state == to {
		return nil
	}
	if !allowedTransition(p.state, to) {
		return fmt.Errorf("pipeline: invalid transition %s -> %s", p.state, to)
	}
	p.state = to
	p.resumed.Broadcast()
	return nil
}

// start enters the running state for a new run.
func (p *Pipeline) start() error {
	p.mu.Lock()
	running := p.state == StateRunning || p.state == StatePaused
	p.mu.Unlock()
	if running {
		return nil
	}
	if err := p.transition(StateRunning); err != nil {
		return err
	}
	p.cancelled.Store(false)
	return nil
}

// Pause makes the pipeline wait before handing the next event to a step.
func (p *Pipeline) Pause() error { return p.transition(StatePaused) }

// Resume continues a paused pipeline.
func (p *Pipeline) Resume() error { return p.transition(StateRunning) }

// Cancel stops the run. No step receives an event afterwards, and steps
// that can abort their current work are told to.
func (p *Pipeline) Cancel() {
	p.cancelled.Store(true)
	p.mu.Lock()
	if p.state == StateRunning || p.state == StatePaused {
		p.state = StateCancelled
	}
	p.resumed.Broadcast()
	p.mu.Unlock()

	for _, s := range p.steps {
		if c, ok := s.(Canceler); ok {
			c.Cancel()
		}
	}
	p.log.Info().Msg("Pipeline cancelled")
}

// Destroy releases the resources of every step. The pipeline cannot be
// used afterwards.
func (p *Pipeline) Destroy() error {
	p.mu.Lock()
	if p.state == StateDestroyed {
		p.mu.Unlock()
		return nil
	}
	p.state = StateDestroyed
	p.resumed.Broadcast()
	p.mu.Unlock()
	p.cancelled.Store(true)

	var errs []error
	for _, s := range p.steps {
		if err := s.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("destroy %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Process drives one root event, usually a raw document, through every
// step.
func (p *Pipeline) Process(ctx context.Context, e resource.Event) error {
	if err := p.start(); err != nil {
		return err
	}
	if err := p.deliver(ctx, e, 0); err != nil {
		p.abort()
		return err
	}
	return nil
}

// abort tells the steps that the current document failed.
func (p *Pipeline) abort() {
	for _, s := range p.steps {
		if a, ok := s.(Aborter); ok {
			a.Abort()
		}
	}
}

// Run processes a batch of documents. A failing document is recorded in
// the report and the batch goes on, unless the error is fatal or the
// pipeline is cancelled. The steps are kept for another run; see Execute.
func (p *Pipeline) Run(ctx context.Context, docs []*resource.RawDocument) (*Report, error) {
	if err := p.start(); err != nil {
		return nil, err
	}
	rep := &Report{RunID: uuid.NewString(), Documents: len(docs), Started: time.Now()}
	log := p.log.With().Str("run", rep.RunID).Logger()
	log.Info().Int("documents", len(docs)).Msg("Batch started")

	err := p.deliver(ctx, resource.BatchEvent(resource.KindStartBatch, &resource.BatchMarker{RunID: rep.RunID, Index: -1, Total: len(docs)}), 0)
	for i := 0; err == nil && i < len(docs); i++ {
		doc := docs[i]
		item := &resource.BatchMarker{RunID: rep.RunID, Index: i, Total: len(docs)}
		err = p.deliver(ctx, resource.BatchEvent(resource.KindStartBatchItem, item), 0)
		if err == nil {
			err = p.deliver(ctx, resource.RawDocumentEvent(doc), 0)
		}
		if err == nil {
			err = p.deliver(ctx, resource.BatchEvent(resource.KindEndBatchItem, item), 0)
		}
		if err == nil {
			rep.Succeeded++
			continue
		}
		p.abort()
		if errors.Is(err, ErrCancelled) || errors.Is(err, ErrFatal) || ctx.Err() != nil {
			break
		}
		rep.Failures = append(rep.Failures, &DocumentFailure{URI: doc.URI, Err: err})
		log.Error().Err(err).Str("doc", doc.URI).Msg("Document failed")
		err = nil
	}
	if err == nil {
		err = p.deliver(ctx, resource.BatchEvent(resource.KindEndBatch, &resource.BatchMarker{RunID: rep.RunID, Index: -1, Total: len(docs)}), 0)
	}
	rep.Finished = time.Now()

	switch {
	case err == nil:
		p.transition(StateSucceeded)
	case p.cancelled.Load():
	case ctx.Err() != nil:
		p.transition(StateInterrupted)
	default:
		p.transition(StateFailed)
	}
	rep.State = p.State()

	log.Info().
		Int("succeeded", rep.Succeeded).
		Int("failed", len(rep.Failures)).
		Str("state", rep.State.String()).
		Dur("took", rep.Finished.Sub(rep.Started)).
		Msg("Batch finished")
	return rep, err
}

// Execute runs the batch and then destroys the pipeline, whatever the
// outcome.
func (p *Pipeline) Execute(ctx context.Context, docs []*resource.RawDocument) (*Report, error) {
	rep, err := p.Run(ctx, docs)
	if derr := p.Destroy(); derr != nil {
		err = errors.Join(err, derr)
	}
	return rep, err
}

// checkRun blocks while paused and reports whether events may still flow.
func (p *Pipeline) checkRun(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("pipeline interrupted: %w", err)
	}
	p.mu.Lock()
	for p.state == StatePaused && !p.cancelled.Load() {
		p.resumed.Wait()
	}
	destroyed := p.state == StateDestroyed
	p.mu.Unlock()
	if destroyed {
		return ErrDestroyed
	}
	if p.cancelled.Load() {
		return ErrCancelled
	}
	return nil
}

// deliver pushes e through the steps from index from on. MultiEvents are
// flattened and each of their events goes through the remaining steps.
func (p *Pipeline) deliver(ctx context.Context, e resource.Event, from int) error {
	switch {
	case e.IsZero() || e.Kind() == resource.KindNoop:
		return nil
	case e.Kind() == resource.KindMultiEvent:
		for _, sub := range resource.Flatten(e.MultiEvent().Events()) {
			if err := p.deliver(ctx, sub, from); err != nil {
				return err
			}
		}
		return nil
	}

	if from == len(p.steps) {
		if e.Kind() == resource.KindCanceled {
			return ErrCancelled
		}
		return nil
	}
	if err := p.checkRun(ctx); err != nil {
		return err
	}

	step := p.steps[from]
	out, err := step.HandleEvent(ctx, e)
	if err != nil {
		return &StepError{Step: step.Name(), Err: err}
	}
	if err := p.deliver(ctx, out, from+1); err != nil {
		return err
	}

	prod, ok := step.(Producer)
	if !ok {
		return nil
	}
	for prod.HasNext() {
		if err := p.checkRun(ctx); err != nil {
			return err
		}
		next, err := prod.Next(ctx)
		if err != nil {
			return &StepError{Step: step.Name(), Err: err}
		}
		if err := p.deliver(ctx, next, from+1); err != nil {
			return err
		}
	}
	return nil
}
