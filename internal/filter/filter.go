package filter

import (
	"context"
	"sync/atomic"

	"l10nkit/internal/resource"

	"github.com/rs/zerolog"
)

// Filter turns one raw document at a time into a stream of events.
type Filter interface {
	// Name returns the configuration id of the filter, e.g. "okf_json".
	Name() string
	MimeType() string
	// Parameters returns the validated parameter struct.
	Parameters() any
	// Open decodes and parses doc. Malformed input returns a *ParseError.
	Open(ctx context.Context, doc *resource.RawDocument) error
	HasNext() bool
	Next() (resource.Event, error)
	// Cancel makes the next call to Next return a Canceled event and end
	// the stream.
	Cancel()
	Close() error
}

// SubfilterFactory creates a fresh filter for a configuration id.
type SubfilterFactory func(configID string) (Filter, error)

// SubfilterAware is implemented by filters that can delegate values to a
// nested filter.
type SubfilterAware interface {
	SetSubfilterFactory(f SubfilterFactory)
}

// Base implements the event queue side of a Filter.
type Base struct {
	Log zerolog.Logger

	events   []resource.Event
	pos      int
	canceled atomic.Bool
	sentStop bool
}

// NewBase creates a Base logging to log.
func NewBase(log zerolog.Logger) Base {
	return Base{Log: log}
}

// SetEvents replaces the queue.
func (b *Base) SetEvents(events []resource.Event) {
	b.events = events
	b.pos = 0
	b.sentStop = false
	b.canceled.Store(false)
}

func (b *Base) HasNext() bool {
	if b.canceled.Load() {
		return !b.sentStop
	}
	return b.pos < len(b.events)
}

func (b *Base) Next() (resource.Event, error) {
	if b.canceled.Load() {
		b.sentStop = true
		return resource.CanceledEvent("filter canceled"), nil
	}
	if b.pos >= len(b.events) {
		return resource.Event{}, ErrNoMoreEvents
	}
	e := b.events[b.pos]
	b.events[b.pos] = resource.Event{}
	b.pos++
	return e, nil
}

func (b *Base) Cancel() { b.canceled.Store(true) }

func (b *Base) Close() error {
	b.events = nil
	b.pos = 0
	return nil
}

// Drain reads every remaining event of f.
func Drain(f Filter) ([]resource.Event, error) {
	var out []resource.Event
	for f.HasNext() {
		e, err := f.Next()
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}
