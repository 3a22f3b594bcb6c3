package filter

import (
	"context"
	"fmt"

	"l10nkit/internal/resource"
)

// SubfilterResult is the re-identified output of a nested filter run.
type SubfilterResult struct {
	// ID is the id of the StartSubfilter event, used by the parent's
	// reference.
	ID     string
	Events []resource.Event
	Units  int
}

// RunSubfilter runs sub over text synchronously and returns its events
// bracketed by StartSubfilter/EndSubfilter. Every resource id is prefixed
// with parentID and the section index so ids stay unique in the parent.
func RunSubfilter(ctx context.Context, sub Filter, text, parentID string, section int, src *resource.RawDocument) (*SubfilterResult, error) {
	prefix := fmt.Sprintf("%s_ssf%d", parentID, section)
	doc := &resource.RawDocument{
		URI:            prefix,
		Content:        []byte(text),
		Encoding:       "UTF-8",
		FilterConfigID: sub.Name(),
	}
	if src != nil {
		doc.SourceLocale, doc.TargetLocale = src.SourceLocale, src.TargetLocale
	}
	if err := sub.Open(ctx, doc); err != nil {
		return nil, fmt.Errorf("subfilter %s: %w", sub.Name(), err)
	}
	defer sub.Close()

	events, err := Drain(sub)
	if err != nil {
		return nil, fmt.Errorf("subfilter %s: %w", sub.Name(), err)
	}

	res := &SubfilterResult{ID: prefix}
	var docID string
	for _, e := range events {
		switch e.Kind() {
		case resource.KindStartDocument:
			sd := e.StartDocument()
			docID = sd.ID
			res.Events = append(res.Events, resource.StartSubfilterEvent(&resource.StartSubfilter{
				ID:       prefix,
				Name:     sub.Name(),
				ParentID: parentID,
				MimeType: sd.MimeType,
				Referent: true,
				Skeleton: sd.Skeleton,
			}))
		case resource.KindEndDocument:
			res.Events = append(res.Events, resource.EndSubfilterEvent(&resource.Ending{
				ID:       prefix,
				Skeleton: e.Ending().Skeleton,
			}))
		case resource.KindCanceled:
			return nil, fmt.Errorf("subfilter %s: canceled", sub.Name())
		default:
			reID(e.Resource(), prefix, docID)
			if tu := e.TextUnit(); tu != nil {
				res.Units++
			}
			res.Events = append(res.Events, e)
		}
	}
	return res, nil
}

func reID(r resource.Resource, prefix, docID string) {
	parent := func(id string) string {
		if id == docID {
			return prefix
		}
		return prefix + "_" + id
	}
	switch v := r.(type) {
	case *resource.TextUnit:
		v.ID = prefix + "_" + v.ID
		renameRefs(v.Skeleton, prefix)
	case *resource.DocumentPart:
		v.ID = prefix + "_" + v.ID
		renameRefs(v.Skeleton, prefix)
	case *resource.StartGroup:
		v.ID = prefix + "_" + v.ID
		v.ParentID = parent(v.ParentID)
	case *resource.Ending:
		v.ID = prefix + "_" + v.ID
	case *resource.StartSubfilter:
		v.ID = prefix + "_" + v.ID
		v.ParentID = parent(v.ParentID)
	}
}

func renameRefs(s *resource.Skeleton, prefix string) {
	if s == nil {
		return
	}
	for i := range s.Parts {
		if s.Parts[i].Kind == resource.PartReference {
			s.Parts[i].RefID = prefix + "_" + s.Parts[i].RefID
		}
	}
}

// NameUnits names every unnamed unit of the result after its parent value:
// parentName_1, parentName_2 and so on.
func (r *SubfilterResult) NameUnits(parentName string) {
	if parentName == "" {
		return
	}
	n := 0
	for _, e := range r.Events {
		if tu := e.TextUnit(); tu != nil {
			n++
			if tu.Name == "" {
				tu.Name = fmt.Sprintf("%s_%d", parentName, n)
			}
		}
	}
}
