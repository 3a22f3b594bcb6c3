package resource

// Unit property names.
const (
	PropNote     = "note"
	PropApproved = "approved"
	PropStart    = "start"
	PropTerms    = "terms"
	PropContext  = "context"
)

// Segment is one sub-sentence part of a container.
type Segment struct {
	ID      string
	Content *TextFragment
	// Group identifies the renumbering unit the segment belongs to after
	// segmentation. Segments connected by split code pairs share a group.
	Group int
}

// TextContainer holds the content of one side (source or a target) of a
// text unit, as one or more segments.
type TextContainer struct {
	segments   []*Segment
	segmented  bool
	Properties map[string]string
}

// NewTextContainer creates an unsegmented container.
func NewTextContainer(content *TextFragment) *TextContainer {
	if content == nil {
		content = NewTextFragment("")
	}
	return &TextContainer{segments: []*Segment{{ID: "0", Content: content}}}
}

// FirstContent returns the content of the first segment.
func (tc *TextContainer) FirstContent() *TextFragment {
	return tc.segments[0].Content
}

// SetContent replaces all segments by one holding content.
func (tc *TextContainer) SetContent(content *TextFragment) {
	tc.segments = []*Segment{{ID: "0", Content: content}}
	tc.segmented = false
}

// Segments returns the segments in order.
func (tc *TextContainer) Segments() []*Segment { return tc.segments }

// SetSegments replaces the segments and marks the container segmented.
func (tc *TextContainer) SetSegments(segs []*Segment) {
	if len(segs) == 0 {
		tc.SetContent(NewTextFragment(""))
		return
	}
	tc.segments = segs
	tc.segmented = true
}

// IsSegmented reports whether SetSegments was applied.
func (tc *TextContainer) IsSegmented() bool { return tc.segmented }

// Unsegmented returns a copy of all segments joined in order, code ids kept.
func (tc *TextContainer) Unsegmented() *TextFragment {
	if len(tc.segments) == 1 {
		return tc.segments[0].Content.Clone()
	}
	out := NewTextFragment("")
	for _, s := range tc.segments {
		src := s.Content
		for i := 0; i < len(src.text); i++ {
			if IsMarker(src.text[i]) {
				out.AppendCodeObject(src.codes[CodeIndex(src.text[i+1])].Clone())
				i++
				continue
			}
			out.text = append(out.text, src.text[i])
		}
	}
	return out
}

// Clone returns a deep copy.
func (tc *TextContainer) Clone() *TextContainer {
	out := &TextContainer{segmented: tc.segmented, Properties: cloneProps(tc.Properties)}
	for _, s := range tc.segments {
		out.segments = append(out.segments, &Segment{ID: s.ID, Content: s.Content.Clone(), Group: s.Group})
	}
	return out
}

// TextUnit is an extracted, independently translatable piece of content.
type TextUnit struct {
	ID                 string
	Name               string
	Type               string
	MimeType           string
	Translatable       bool
	PreserveWhitespace bool
	Referent           bool
	Source             *TextContainer
	Skeleton           *Skeleton
	Properties         map[string]string

	targets     map[LocaleID]*TextContainer
	targetOrder []LocaleID

	verbatim   string
	verbatimOf string
}

// NewTextUnit creates a translatable unit.
func NewTextUnit(id string, content *TextFragment) *TextUnit {
	return &TextUnit{
		ID:           id,
		Translatable: true,
		Source:       NewTextContainer(content),
		Properties:   make(map[string]string),
	}
}

func (*TextUnit) isResource()           {}
func (tu *TextUnit) ResourceID() string { return tu.ID }

// Target returns the target for loc, or nil.
func (tu *TextUnit) Target(loc LocaleID) *TextContainer {
	return tu.targets[loc]
}

// HasTarget reports whether a target exists for loc.
func (tu *TextUnit) HasTarget(loc LocaleID) bool {
	_, ok := tu.targets[loc]
	return ok
}

// SetTarget stores tc as the target for loc.
func (tu *TextUnit) SetTarget(loc LocaleID, tc *TextContainer) {
	if tu.targets == nil {
		tu.targets = make(map[LocaleID]*TextContainer)
	}
	if _, ok := tu.targets[loc]; !ok {
		tu.targetOrder = append(tu.targetOrder, loc)
	}
	tu.targets[loc] = tc
}

// CreateTarget returns the target for loc, creating it as a copy of the
// source (or empty) when missing.
func (tu *TextUnit) CreateTarget(loc LocaleID, copySource bool) *TextContainer {
	if tc := tu.targets[loc]; tc != nil {
		return tc
	}
	var tc *TextContainer
	if copySource {
		tc = tu.Source.Clone()
	} else {
		tc = NewTextContainer(nil)
	}
	tu.SetTarget(loc, tc)
	return tc
}

// RemoveTarget drops the target for loc.
func (tu *TextUnit) RemoveTarget(loc LocaleID) {
	if _, ok := tu.targets[loc]; !ok {
		return
	}
	delete(tu.targets, loc)
	for i, l := range tu.targetOrder {
		if l == loc {
			tu.targetOrder = append(tu.targetOrder[:i], tu.targetOrder[i+1:]...)
			break
		}
	}
}

// TargetLocales returns the target locales in creation order.
func (tu *TextUnit) TargetLocales() []LocaleID {
	return append([]LocaleID(nil), tu.targetOrder...)
}

// SetVerbatim records raw as the source content exactly as the document
// holds it, escapes included.
func (tu *TextUnit) SetVerbatim(raw string) {
	tu.verbatim, tu.verbatimOf = raw, tu.Source.Unsegmented().String()
}

// Verbatim returns the recorded document text of the source, as long as the
// source has not changed since.
func (tu *TextUnit) Verbatim() (string, bool) {
	if tu.verbatim == "" || tu.Source.Unsegmented().String() != tu.verbatimOf {
		return "", false
	}
	return tu.verbatim, true
}

// Property returns a unit property or "".
func (tu *TextUnit) Property(name string) string {
	return tu.Properties[name]
}

// SetProperty sets a unit property.
func (tu *TextUnit) SetProperty(name, value string) {
	if tu.Properties == nil {
		tu.Properties = make(map[string]string)
	}
	tu.Properties[name] = value
}

// IsEmpty reports whether the source holds nothing.
func (tu *TextUnit) IsEmpty() bool {
	for _, s := range tu.Source.segments {
		if !s.Content.IsEmpty() {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (tu *TextUnit) Clone() *TextUnit {
	out := *tu
	out.Source = tu.Source.Clone()
	out.Skeleton = tu.Skeleton.Clone()
	out.Properties = cloneProps(tu.Properties)
	out.targets = nil
	out.targetOrder = nil
	for _, loc := range tu.targetOrder {
		out.SetTarget(loc, tu.targets[loc].Clone())
	}
	return &out
}

func cloneProps(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
