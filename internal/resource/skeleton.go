package resource

import "strings"

// PartKind distinguishes the parts of a skeleton.
type PartKind int

const (
	// PartLiteral is verbatim text.
	PartLiteral PartKind = iota
	// PartContent stands for the content of the resource owning the skeleton.
	PartContent
	// PartReference stands for another resource, resolved by id.
	PartReference
)

// SkeletonPart is one literal or placeholder of a skeleton.
type SkeletonPart struct {
	Kind PartKind
	Text string
	// RefID names the referenced resource for PartReference.
	RefID string
	// Locale selects the target to write for PartContent when the writer
	// has no output locale.
	Locale LocaleID
	// TargetOnly makes a PartContent write the target or nothing, never
	// the source. Bilingual formats keep their source in literals.
	TargetOnly bool
}

// Skeleton is the ordered non-translatable structure of a resource. Literal
// text always uses "\n" line breaks.
type Skeleton struct {
	Parts []SkeletonPart
}

// NewSkeleton creates a skeleton with an optional first literal.
func NewSkeleton(text string) *Skeleton {
	s := &Skeleton{}
	s.Append(text)
	return s
}

// Append adds literal text, merging with a trailing literal.
func (s *Skeleton) Append(text string) {
	if text == "" {
		return
	}
	if n := len(s.Parts); n > 0 && s.Parts[n-1].Kind == PartLiteral {
		s.Parts[n-1].Text += text
		return
	}
	s.Parts = append(s.Parts, SkeletonPart{Kind: PartLiteral, Text: text})
}

// AddContentPlaceholder adds a placeholder for the owner's own content.
func (s *Skeleton) AddContentPlaceholder(loc LocaleID) {
	s.Parts = append(s.Parts, SkeletonPart{Kind: PartContent, Locale: loc})
}

// AddTargetPlaceholder adds a placeholder for the owner's target only.
func (s *Skeleton) AddTargetPlaceholder(loc LocaleID) {
	s.Parts = append(s.Parts, SkeletonPart{Kind: PartContent, Locale: loc, TargetOnly: true})
}

// AddReference adds a placeholder for the resource with the given id.
func (s *Skeleton) AddReference(id string) {
	s.Parts = append(s.Parts, SkeletonPart{Kind: PartReference, RefID: id})
}

// AppendSkeleton adds a copy of every part of o.
func (s *Skeleton) AppendSkeleton(o *Skeleton) {
	if o == nil {
		return
	}
	for _, p := range o.Parts {
		if p.Kind == PartLiteral {
			s.Append(p.Text)
			continue
		}
		s.Parts = append(s.Parts, p)
	}
}

// IsEmpty reports whether the skeleton has no part.
func (s *Skeleton) IsEmpty() bool {
	return s == nil || len(s.Parts) == 0
}

// HasContentPlaceholder reports whether a PartContent is present.
func (s *Skeleton) HasContentPlaceholder() bool {
	if s == nil {
		return false
	}
	for _, p := range s.Parts {
		if p.Kind == PartContent {
			return true
		}
	}
	return false
}

// Clone returns a copy.
func (s *Skeleton) Clone() *Skeleton {
	if s == nil {
		return nil
	}
	return &Skeleton{Parts: append([]SkeletonPart(nil), s.Parts...)}
}

// String renders the skeleton for debugging. Placeholders are shown as
// [#$$self$] and [#$id].
func (s *Skeleton) String() string {
	if s == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range s.Parts {
		switch p.Kind {
		case PartLiteral:
			sb.WriteString(p.Text)
		case PartContent:
			sb.WriteString("[#$$self$]")
		case PartReference:
			sb.WriteString(ReferenceMarker(p.RefID))
		}
	}
	return sb.String()
}

// ReferenceMarker returns the marker text used inside code data to point at
// another resource.
func ReferenceMarker(id string) string {
	return "[#$" + id + "]"
}

// ParseReferenceMarkers returns the ids of all reference markers in data.
func ParseReferenceMarkers(data string) []string {
	var ids []string
	for {
		i := strings.Index(data, "[#$")
		if i < 0 {
			return ids
		}
		j := strings.IndexByte(data[i:], ']')
		if j < 0 {
			return ids
		}
		ids = append(ids, data[i+3:i+j])
		data = data[i+j+1:]
	}
}
