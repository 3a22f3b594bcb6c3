package resource

// Resource is the payload of an event. The set of implementations is closed.
type Resource interface {
	ResourceID() string
	isResource()
}

// StartDocument opens one logical document.
type StartDocument struct {
	ID             string
	Name           string
	Encoding       string
	HasBOM         bool
	Locale         LocaleID
	LineBreak      string
	MimeType       string
	IsMultilingual bool
	FilterID       string
	// Params is a snapshot of the filter parameters used for extraction.
	Params any
	// WriterHint names the writer flavour able to rebuild the document
	// ("generic" or "po").
	WriterHint string
	Skeleton   *Skeleton
}

func (*StartDocument) isResource()           {}
func (sd *StartDocument) ResourceID() string { return sd.ID }

// StartSubDocument opens a sub-document within a document.
type StartSubDocument struct {
	ID       string
	Name     string
	ParentID string
	Skeleton *Skeleton
}

func (*StartSubDocument) isResource()           {}
func (sd *StartSubDocument) ResourceID() string { return sd.ID }

// GroupTypePlurals is the type of a group holding the forms of one gettext
// plural entry.
const GroupTypePlurals = "x-gettext-plurals"

// StartGroup opens a group of units. A referent group is written where it
// is referenced rather than inline.
type StartGroup struct {
	ID         string
	Name       string
	Type       string
	ParentID   string
	Referent   bool
	Skeleton   *Skeleton
	Properties map[string]string
}

func (*StartGroup) isResource()           {}
func (sg *StartGroup) ResourceID() string { return sg.ID }

// StartSubfilter opens the output of a nested filter run.
type StartSubfilter struct {
	ID       string
	Name     string
	ParentID string
	MimeType string
	Referent bool
	Skeleton *Skeleton
}

func (*StartSubfilter) isResource()           {}
func (ss *StartSubfilter) ResourceID() string { return ss.ID }

// Ending closes a document, sub-document, group or subfilter and carries
// its trailing skeleton.
type Ending struct {
	ID       string
	Skeleton *Skeleton
}

func (*Ending) isResource()          {}
func (e *Ending) ResourceID() string { return e.ID }

// DocumentPart is a skeleton-only, non-translatable part of a document.
type DocumentPart struct {
	ID         string
	Referent   bool
	Type       string
	Skeleton   *Skeleton
	Properties map[string]string
}

func (*DocumentPart) isResource()           {}
func (dp *DocumentPart) ResourceID() string { return dp.ID }

// RawDocument is an input document before extraction.
type RawDocument struct {
	URI            string
	Content        []byte
	Encoding       string
	SourceLocale   LocaleID
	TargetLocale   LocaleID
	FilterConfigID string
	OutputPath     string
	// OutputEncoding overrides the input encoding when writing.
	OutputEncoding string
}

func (*RawDocument) isResource()           {}
func (rd *RawDocument) ResourceID() string { return rd.URI }

// PipelineParameters carries run-wide settings to the steps.
type PipelineParameters struct {
	ID             string
	SourceLocale   LocaleID
	TargetLocale   LocaleID
	OutputEncoding string
	OutputPath     string
	FilterConfigID string
}

func (*PipelineParameters) isResource()           {}
func (pp *PipelineParameters) ResourceID() string { return pp.ID }

// BatchMarker is the payload of batch and batch item events.
type BatchMarker struct {
	RunID string
	// Index is the position of the batch item, -1 for batch events.
	Index int
	// Total is the number of items in the batch.
	Total int
}

func (*BatchMarker) isResource()           {}
func (bm *BatchMarker) ResourceID() string { return bm.RunID }

// Custom carries arbitrary data between cooperating steps. Other
// consumers pass it through.
type Custom struct {
	ID   string
	Name string
	Data any
}

func (*Custom) isResource()          {}
func (c *Custom) ResourceID() string { return c.ID }

// Signal is the payload of Noop and Canceled events.
type Signal struct {
	Reason string
}

func (*Signal) isResource()        {}
func (*Signal) ResourceID() string { return "" }

// MultiEvent wraps an ordered, flat list of events.
type MultiEvent struct {
	ID     string
	events []Event
}

func (*MultiEvent) isResource()           {}
func (me *MultiEvent) ResourceID() string { return me.ID }

// Events returns the wrapped events.
func (me *MultiEvent) Events() []Event { return me.events }

// SkeletonOf returns the skeleton of a resource, or nil when the resource
// kind has none.
func SkeletonOf(r Resource) *Skeleton {
	switch v := r.(type) {
	case *StartDocument:
		return v.Skeleton
	case *StartSubDocument:
		return v.Skeleton
	case *StartGroup:
		return v.Skeleton
	case *StartSubfilter:
		return v.Skeleton
	case *Ending:
		return v.Skeleton
	case *DocumentPart:
		return v.Skeleton
	case *TextUnit:
		return v.Skeleton
	}
	return nil
}

// IsReferent reports whether the resource is written only where referenced.
func IsReferent(r Resource) bool {
	switch v := r.(type) {
	case *StartGroup:
		return v.Referent
	case *StartSubfilter:
		return v.Referent
	case *DocumentPart:
		return v.Referent
	case *TextUnit:
		return v.Referent
	}
	return false
}
