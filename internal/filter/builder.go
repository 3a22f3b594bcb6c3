package filter

import (
	"fmt"
	"strconv"

	"l10nkit/internal/resource"

	"github.com/rs/zerolog"
)

// Unit types shared by several filters.
const (
	DocumentPartTypeSubfilterRef = "ref-ssf"
)

// UnitSpec describes a text unit to add.
type UnitSpec struct {
	// Before and After are skeleton text around the content.
	Before string
	After  string
	// Skeleton, when set, replaces Before/content/After. It must hold its
	// own content placeholders.
	Skeleton *resource.Skeleton
	Content  *resource.TextFragment
	// Raw is the source text of the content. It is written back verbatim
	// when the unit holds no text, and kept on the unit for writers to
	// reuse while the source is unchanged. Defaults to Content.String().
	Raw string
	// ID overrides the generated unit id.
	ID         string
	Name       string
	Type       string
	MimeType   string
	Properties map[string]string
	// PreserveWhitespace marks the unit's whitespace as significant. It does
	// not keep whitespace-only units.
	PreserveWhitespace bool
	// Targets holds pre-existing translations, for bilingual formats.
	Targets map[resource.LocaleID]*resource.TextFragment
}

type groupFrame struct {
	id       string
	referent bool
}

// Builder accumulates skeleton and emits events with stable ids. It is
// owned by one filter run over one document.
type Builder struct {
	log      zerolog.Logger
	mimeType string
	events   []resource.Event
	pending  *resource.Skeleton
	docID    string
	tuID     int
	dpID     int
	groupID  int
	stack    []groupFrame
}

// NewBuilder creates a builder for documents of mimeType.
func NewBuilder(mimeType string, log zerolog.Logger) *Builder {
	return &Builder{log: log, mimeType: mimeType, pending: &resource.Skeleton{}}
}

// Start emits the StartDocument event.
func (b *Builder) Start(sd *resource.StartDocument) {
	b.docID = sd.ID
	b.events = append(b.events, resource.StartDocumentEvent(sd))
}

// AddSkeleton appends literal text to the pending skeleton.
func (b *Builder) AddSkeleton(text string) {
	b.pending.Append(text)
}

// HasPendingSkeleton reports whether skeleton waits for an owner.
func (b *Builder) HasPendingSkeleton() bool { return !b.pending.IsEmpty() }

// takePending returns the pending skeleton and starts a new one.
func (b *Builder) takePending() *resource.Skeleton {
	s := b.pending
	b.pending = &resource.Skeleton{}
	return s
}

// FlushSkeleton emits the pending skeleton as a DocumentPart.
func (b *Builder) FlushSkeleton() {
	if b.pending.IsEmpty() {
		return
	}
	b.dpID++
	b.events = append(b.events, resource.DocumentPartEvent(&resource.DocumentPart{
		ID:       "dp" + strconv.Itoa(b.dpID),
		Skeleton: b.takePending(),
	}))
}

// AddTextUnit emits a unit, or folds it back into the skeleton when its
// content holds no text. It returns nil in the latter case.
func (b *Builder) AddTextUnit(spec UnitSpec) *resource.TextUnit {
	if spec.Content == nil {
		spec.Content = resource.NewTextFragment("")
	}
	if !spec.Content.HasText(false) && spec.Skeleton == nil {
		raw := spec.Raw
		if raw == "" {
			raw = spec.Content.String()
		}
		b.pending.Append(spec.Before + raw + spec.After)
		return nil
	}

	b.tuID++
	id := spec.ID
	if id == "" {
		id = strconv.Itoa(b.tuID)
	}
	tu := resource.NewTextUnit(id, spec.Content)
	tu.Name = spec.Name
	tu.Type = spec.Type
	tu.MimeType = spec.MimeType
	if tu.MimeType == "" {
		tu.MimeType = b.mimeType
	}
	tu.PreserveWhitespace = spec.PreserveWhitespace
	for k, v := range spec.Properties {
		tu.SetProperty(k, v)
	}
	for loc, frag := range spec.Targets {
		tu.SetTarget(loc, resource.NewTextContainer(frag))
	}
	if spec.Raw != "" {
		tu.SetVerbatim(spec.Raw)
	}

	skel := b.takePending()
	if spec.Skeleton != nil {
		skel.AppendSkeleton(spec.Skeleton)
	} else {
		skel.Append(spec.Before)
		skel.AddContentPlaceholder("")
		skel.Append(spec.After)
	}
	tu.Skeleton = skel

	b.events = append(b.events, resource.TextUnitEvent(tu))
	return tu
}

// NextUnitID returns the id the next text unit will get.
func (b *Builder) NextUnitID() string { return strconv.Itoa(b.tuID + 1) }

// ReserveDocumentPartID allocates a document part id.
func (b *Builder) ReserveDocumentPartID() string {
	b.dpID++
	return "dp" + strconv.Itoa(b.dpID)
}

// StartGroup flushes the pending skeleton and opens a group.
func (b *Builder) StartGroup(name, typ string, referent bool) *resource.StartGroup {
	b.FlushSkeleton()
	b.groupID++
	sg := &resource.StartGroup{
		ID:       "g" + strconv.Itoa(b.groupID),
		Name:     name,
		Type:     typ,
		Referent: referent,
		Skeleton: &resource.Skeleton{},
	}
	if n := len(b.stack); n > 0 {
		sg.ParentID = b.stack[n-1].id
	} else {
		sg.ParentID = b.docID
	}
	b.stack = append(b.stack, groupFrame{id: sg.ID, referent: referent})
	b.events = append(b.events, resource.StartGroupEvent(sg))
	return sg
}

// EndGroup closes the innermost group. The pending skeleton becomes its
// trailing skeleton.
func (b *Builder) EndGroup() error {
	n := len(b.stack)
	if n == 0 {
		return fmt.Errorf("%w: end of group without start", ErrBadInput)
	}
	f := b.stack[n-1]
	b.stack = b.stack[:n-1]
	b.events = append(b.events, resource.EndGroupEvent(&resource.Ending{
		ID:       f.id,
		Skeleton: b.takePending(),
	}))
	return nil
}

// GroupDepth returns the number of open groups.
func (b *Builder) GroupDepth() int { return len(b.stack) }

// AddEvents flushes the pending skeleton and appends events as-is.
func (b *Builder) AddEvents(events ...resource.Event) {
	b.FlushSkeleton()
	b.events = append(b.events, events...)
}

// AddSubfilterOutput appends the events of a nested filter run, then a
// referent-resolving document part holding the pending skeleton, before,
// a reference to the subfilter and after.
func (b *Builder) AddSubfilterOutput(dpID string, sub *SubfilterResult, before, after string) {
	b.events = append(b.events, sub.Events...)
	skel := b.takePending()
	skel.Append(before)
	skel.AddReference(sub.ID)
	skel.Append(after)
	b.events = append(b.events, resource.DocumentPartEvent(&resource.DocumentPart{
		ID:       dpID,
		Type:     DocumentPartTypeSubfilterRef,
		Skeleton: skel,
	}))
}

// End closes the document. Unclosed groups are an input error.
func (b *Builder) End() error {
	if len(b.stack) > 0 {
		return fmt.Errorf("%w: %d unclosed group(s)", ErrBadInput, len(b.stack))
	}
	b.events = append(b.events, resource.EndDocumentEvent(&resource.Ending{
		ID:       b.docID,
		Skeleton: b.takePending(),
	}))
	b.log.Debug().Int("events", len(b.events)).Int("units", b.tuID).Msg("Document extracted")
	return nil
}

// Events returns the events built so far.
func (b *Builder) Events() []resource.Event { return b.events }
