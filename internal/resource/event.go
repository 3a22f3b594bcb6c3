package resource

import "fmt"

// EventKind is the closed set of event kinds.
type EventKind int

const (
	KindStartBatch EventKind = iota
	KindEndBatch
	KindStartBatchItem
	KindEndBatchItem
	KindRawDocument
	KindStartDocument
	KindEndDocument
	KindStartSubDocument
	KindEndSubDocument
	KindStartGroup
	KindEndGroup
	KindTextUnit
	KindDocumentPart
	KindCustom
	KindMultiEvent
	KindPipelineParameters
	KindStartSubfilter
	KindEndSubfilter
	KindCanceled
	KindNoop
)

var kindNames = [...]string{
	KindStartBatch:         "START_BATCH",
	KindEndBatch:           "END_BATCH",
	KindStartBatchItem:     "START_BATCH_ITEM",
	KindEndBatchItem:       "END_BATCH_ITEM",
	KindRawDocument:        "RAW_DOCUMENT",
	KindStartDocument:      "START_DOCUMENT",
	KindEndDocument:        "END_DOCUMENT",
	KindStartSubDocument:   "START_SUBDOCUMENT",
	KindEndSubDocument:     "END_SUBDOCUMENT",
	KindStartGroup:         "START_GROUP",
	KindEndGroup:           "END_GROUP",
	KindTextUnit:           "TEXT_UNIT",
	KindDocumentPart:       "DOCUMENT_PART",
	KindCustom:             "CUSTOM",
	KindMultiEvent:         "MULTI_EVENT",
	KindPipelineParameters: "PIPELINE_PARAMETERS",
	KindStartSubfilter:     "START_SUBFILTER",
	KindEndSubfilter:       "END_SUBFILTER",
	KindCanceled:           "CANCELED",
	KindNoop:               "NO_OP",
}

func (k EventKind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is one element of the filter/pipeline stream. The kind is fixed at
// construction; the payload is mutable.
type Event struct {
	kind EventKind
	res  Resource
}

// NewEvent creates an event, checking that res matches kind.
func NewEvent(kind EventKind, res Resource) (Event, error) {
	if res == nil {
		return Event{}, fmt.Errorf("event %s: missing payload", kind)
	}
	ok := false
	switch kind {
	case KindStartBatch, KindEndBatch, KindStartBatchItem, KindEndBatchItem:
		_, ok = res.(*BatchMarker)
	case KindRawDocument:
		_, ok = res.(*RawDocument)
	case KindStartDocument:
		_, ok = res.(*StartDocument)
	case KindStartSubDocument:
		_, ok = res.(*StartSubDocument)
	case KindStartGroup:
		_, ok = res.(*StartGroup)
	case KindStartSubfilter:
		_, ok = res.(*StartSubfilter)
	case KindEndDocument, KindEndSubDocument, KindEndGroup, KindEndSubfilter:
		_, ok = res.(*Ending)
	case KindTextUnit:
		_, ok = res.(*TextUnit)
	case KindDocumentPart:
		_, ok = res.(*DocumentPart)
	case KindCustom:
		_, ok = res.(*Custom)
	case KindMultiEvent:
		_, ok = res.(*MultiEvent)
	case KindPipelineParameters:
		_, ok = res.(*PipelineParameters)
	case KindCanceled, KindNoop:
		_, ok = res.(*Signal)
	}
	if !ok {
		return Event{}, fmt.Errorf("event %s: unexpected payload %T", kind, res)
	}
	return Event{kind: kind, res: res}, nil
}

func mustEvent(kind EventKind, res Resource) Event {
	e, err := NewEvent(kind, res)
	if err != nil {
		panic(err)
	}
	return e
}

// Kind returns the event kind.
func (e Event) Kind() EventKind { return e.kind }

// Resource returns the payload.
func (e Event) Resource() Resource { return e.res }

// IsZero reports whether e was never constructed.
func (e Event) IsZero() bool { return e.res == nil }

func (e Event) String() string {
	if e.res == nil {
		return e.kind.String()
	}
	return fmt.Sprintf("%s(%s)", e.kind, e.res.ResourceID())
}

// TextUnit returns the payload of a TextUnit event, or nil.
func (e Event) TextUnit() *TextUnit {
	tu, _ := e.res.(*TextUnit)
	return tu
}

// StartDocument returns the payload of a StartDocument event, or nil.
func (e Event) StartDocument() *StartDocument {
	sd, _ := e.res.(*StartDocument)
	return sd
}

// RawDocument returns the payload of a RawDocument event, or nil.
func (e Event) RawDocument() *RawDocument {
	rd, _ := e.res.(*RawDocument)
	return rd
}

// StartGroup returns the payload of a StartGroup event, or nil.
func (e Event) StartGroup() *StartGroup {
	sg, _ := e.res.(*StartGroup)
	return sg
}

// StartSubfilter returns the payload of a StartSubfilter event, or nil.
func (e Event) StartSubfilter() *StartSubfilter {
	ss, _ := e.res.(*StartSubfilter)
	return ss
}

// Ending returns the payload of an end event, or nil.
func (e Event) Ending() *Ending {
	en, _ := e.res.(*Ending)
	return en
}

// DocumentPart returns the payload of a DocumentPart event, or nil.
func (e Event) DocumentPart() *DocumentPart {
	dp, _ := e.res.(*DocumentPart)
	return dp
}

// PipelineParameters returns the payload of a PipelineParameters event, or nil.
func (e Event) PipelineParameters() *PipelineParameters {
	pp, _ := e.res.(*PipelineParameters)
	return pp
}

// MultiEvent returns the payload of a MultiEvent event, or nil.
func (e Event) MultiEvent() *MultiEvent {
	me, _ := e.res.(*MultiEvent)
	return me
}

// Constructors for each kind.

func StartDocumentEvent(sd *StartDocument) Event { return mustEvent(KindStartDocument, sd) }
func EndDocumentEvent(en *Ending) Event          { return mustEvent(KindEndDocument, en) }
func StartSubDocumentEvent(s *StartSubDocument) Event {
	return mustEvent(KindStartSubDocument, s)
}
func EndSubDocumentEvent(en *Ending) Event         { return mustEvent(KindEndSubDocument, en) }
func StartGroupEvent(sg *StartGroup) Event         { return mustEvent(KindStartGroup, sg) }
func EndGroupEvent(en *Ending) Event               { return mustEvent(KindEndGroup, en) }
func StartSubfilterEvent(ss *StartSubfilter) Event { return mustEvent(KindStartSubfilter, ss) }
func EndSubfilterEvent(en *Ending) Event           { return mustEvent(KindEndSubfilter, en) }
func TextUnitEvent(tu *TextUnit) Event             { return mustEvent(KindTextUnit, tu) }
func DocumentPartEvent(dp *DocumentPart) Event     { return mustEvent(KindDocumentPart, dp) }
func RawDocumentEvent(rd *RawDocument) Event       { return mustEvent(KindRawDocument, rd) }
func CustomEvent(c *Custom) Event                  { return mustEvent(KindCustom, c) }
func PipelineParametersEvent(p *PipelineParameters) Event {
	return mustEvent(KindPipelineParameters, p)
}

// BatchEvent creates one of the four batch lifecycle events.
func BatchEvent(kind EventKind, bm *BatchMarker) Event { return mustEvent(kind, bm) }

// NoopEvent is the sentinel meaning "drop, do not propagate".
func NoopEvent() Event { return mustEvent(KindNoop, &Signal{}) }

// CanceledEvent signals that the run was cancelled.
func CanceledEvent(reason string) Event { return mustEvent(KindCanceled, &Signal{Reason: reason}) }

// NewMultiEvent wraps events, flattening nested multi-events and dropping
// no-ops so the result never contains another MultiEvent.
func NewMultiEvent(events ...Event) Event {
	return mustEvent(KindMultiEvent, &MultiEvent{events: Flatten(events)})
}

// Flatten expands multi-events recursively and drops no-ops.
func Flatten(events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		switch e.kind {
		case KindMultiEvent:
			out = append(out, Flatten(e.MultiEvent().events)...)
		case KindNoop:
		default:
			if !e.IsZero() {
				out = append(out, e)
			}
		}
	}
	return out
}
