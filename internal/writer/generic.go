package writer

import (
	"fmt"
	"io"
	"strings"

	"l10nkit/internal/encoder"
	"l10nkit/internal/resource"
)

// frame is an output buffer. The document has the bottom frame; referent
// groups and subfilters push their own so their output can be stored and
// written where it is referenced.
type frame struct {
	id   string
	kind resource.EventKind
	mime string
	buf  strings.Builder
	// encoders is shared by every frame of one subfilter run. Nil at
	// document level.
	encoders map[string]encoder.Encoder
}

// GenericWriter rebuilds any skeleton-based document.
type GenericWriter struct {
	opts      Options
	encoders  *encoder.Manager
	out       io.Writer
	sd        *resource.StartDocument
	frames    []*frame
	groups    []bool
	referents map[string]string
}

// NewGenericWriter creates a GenericWriter.
func NewGenericWriter(opts Options) *GenericWriter {
	return &GenericWriter{opts: opts, encoders: opts.manager()}
}

func (w *GenericWriter) SetOutput(out io.Writer) { w.out = out }

func (w *GenericWriter) Close() error {
	w.frames = nil
	w.referents = nil
	return nil
}

// HandleEvent writes one event.
func (w *GenericWriter) HandleEvent(e resource.Event) error {
	switch e.Kind() {
	case resource.KindStartDocument:
		return w.startDocument(e.StartDocument())
	case resource.KindEndDocument:
		return w.endDocument(e.Ending())
	case resource.KindStartSubDocument, resource.KindEndSubDocument:
		return w.writeSkeleton(resource.SkeletonOf(e.Resource()), nil)
	case resource.KindStartGroup:
		return w.startGroup(e.StartGroup())
	case resource.KindEndGroup:
		return w.endGroup(e.Ending())
	case resource.KindStartSubfilter:
		return w.startSubfilter(e.StartSubfilter())
	case resource.KindEndSubfilter:
		return w.endSubfilter(e.Ending())
	case resource.KindTextUnit:
		return w.textUnit(e.TextUnit())
	case resource.KindDocumentPart:
		return w.documentPart(e.DocumentPart())
	case resource.KindMultiEvent:
		for _, sub := range e.MultiEvent().Events() {
			if err := w.HandleEvent(sub); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *GenericWriter) startDocument(sd *resource.StartDocument) error {
	w.sd = sd
	w.frames = []*frame{{id: sd.ID, kind: resource.KindStartDocument, mime: sd.MimeType}}
	w.groups = nil
	w.referents = make(map[string]string)
	w.encoders.SetDefaultOptions(sd.Params, w.outputEncoding(), sd.LineBreak)
	return w.writeSkeleton(sd.Skeleton, nil)
}

func (w *GenericWriter) endDocument(en *resource.Ending) error {
	if w.sd == nil {
		return fmt.Errorf("end of document without start")
	}
	if err := w.writeSkeleton(en.Skeleton, nil); err != nil {
		return err
	}
	if len(w.frames) != 1 {
		return fmt.Errorf("end of document %s with %d open frame(s)", en.ID, len(w.frames)-1)
	}
	if w.out == nil {
		return ErrNoOutput
	}
	enc := w.outputEncoding()
	data, err := encoder.Encode(w.frames[0].buf.String(), enc, w.sd.HasBOM && isUnicode(enc))
	if err != nil {
		return fmt.Errorf("write %s: %w", w.sd.Name, err)
	}
	if _, err := w.out.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", w.sd.Name, err)
	}
	w.opts.Log.Debug().Str("doc", w.sd.Name).Int("bytes", len(data)).Msg("Document written")
	w.sd = nil
	return nil
}

func (w *GenericWriter) outputEncoding() string {
	if w.opts.Encoding != "" {
		return w.opts.Encoding
	}
	if w.sd != nil && w.sd.Encoding != "" {
		return w.sd.Encoding
	}
	return "UTF-8"
}

func isUnicode(enc string) bool {
	return strings.HasPrefix(strings.ToUpper(enc), "UTF-")
}

func (w *GenericWriter) top() *frame { return w.frames[len(w.frames)-1] }

func (w *GenericWriter) push(id string, kind resource.EventKind, mime string, ownEncoders bool) {
	parent := w.top()
	f := &frame{id: id, kind: kind, mime: mime, encoders: parent.encoders}
	if ownEncoders {
		f.encoders = make(map[string]encoder.Encoder)
	}
	if f.mime == "" {
		f.mime = parent.mime
	}
	w.frames = append(w.frames, f)
}

func (w *GenericWriter) pop() *frame {
	f := w.top()
	w.frames = w.frames[:len(w.frames)-1]
	return f
}

// encoder returns the encoder for mime in the current frame. Subfilter
// frames use their own encoders that keep "\n" line breaks: the parent
// encodes the captured output again.
func (w *GenericWriter) encoder(mime string) encoder.Encoder {
	f := w.top()
	if mime == "" {
		mime = f.mime
	}
	if f.encoders == nil {
		return w.encoders.Encoder(mime)
	}
	if e, ok := f.encoders[mime]; ok {
		return e
	}
	e := w.encoders.NewEncoder(mime, nil, "UTF-8", "\n")
	f.encoders[mime] = e
	return e
}

func (w *GenericWriter) startGroup(sg *resource.StartGroup) error {
	w.groups = append(w.groups, sg.Referent)
	if sg.Referent {
		w.push(sg.ID, resource.KindStartGroup, "", false)
	}
	return w.writeSkeleton(sg.Skeleton, nil)
}

func (w *GenericWriter) endGroup(en *resource.Ending) error {
	n := len(w.groups)
	if n == 0 {
		return fmt.Errorf("end of group %s without start", en.ID)
	}
	referent := w.groups[n-1]
	w.groups = w.groups[:n-1]
	if err := w.writeSkeleton(en.Skeleton, nil); err != nil {
		return err
	}
	if referent {
		f := w.pop()
		w.referents[f.id] = f.buf.String()
	}
	return nil
}

func (w *GenericWriter) startSubfilter(ss *resource.StartSubfilter) error {
	w.push(ss.ID, resource.KindStartSubfilter, ss.MimeType, true)
	return w.writeSkeleton(ss.Skeleton, nil)
}

func (w *GenericWriter) endSubfilter(en *resource.Ending) error {
	if err := w.writeSkeleton(en.Skeleton, nil); err != nil {
		return err
	}
	f := w.top()
	if f.kind != resource.KindStartSubfilter || len(w.frames) < 2 {
		return fmt.Errorf("end of subfilter %s without start", en.ID)
	}
	w.pop()
	// The nested output is a value of the parent format.
	w.referents[f.id] = w.encoder("").Encode(f.buf.String(), encoder.ContextText)
	return nil
}

func (w *GenericWriter) textUnit(tu *resource.TextUnit) error {
	if !tu.Referent {
		return w.writeSkeleton(tu.Skeleton, tu)
	}
	var sb strings.Builder
	if tu.Skeleton.HasContentPlaceholder() {
		if err := w.renderSkeleton(&sb, tu.Skeleton, tu); err != nil {
			return err
		}
	} else {
		s, err := w.renderUnit(tu, resource.SkeletonPart{Kind: resource.PartContent})
		if err != nil {
			return err
		}
		sb.WriteString(s)
	}
	w.referents[tu.ID] = sb.String()
	return nil
}

func (w *GenericWriter) documentPart(dp *resource.DocumentPart) error {
	if !dp.Referent {
		return w.writeSkeleton(dp.Skeleton, nil)
	}
	var sb strings.Builder
	if err := w.renderSkeleton(&sb, dp.Skeleton, nil); err != nil {
		return err
	}
	w.referents[dp.ID] = sb.String()
	return nil
}

func (w *GenericWriter) writeSkeleton(s *resource.Skeleton, tu *resource.TextUnit) error {
	if s.IsEmpty() {
		return nil
	}
	if len(w.frames) == 0 {
		return fmt.Errorf("skeleton outside of a document")
	}
	var sb strings.Builder
	if err := w.renderSkeleton(&sb, s, tu); err != nil {
		return err
	}
	w.top().buf.WriteString(sb.String())
	return nil
}

func (w *GenericWriter) renderSkeleton(sb *strings.Builder, s *resource.Skeleton, tu *resource.TextUnit) error {
	if s == nil {
		return nil
	}
	enc := w.encoder("")
	for _, p := range s.Parts {
		switch p.Kind {
		case resource.PartLiteral:
			sb.WriteString(enc.Encode(p.Text, encoder.ContextSkeleton))
		case resource.PartContent:
			if tu == nil {
				return fmt.Errorf("content placeholder outside of a text unit")
			}
			text, err := w.renderUnit(tu, p)
			if err != nil {
				return err
			}
			sb.WriteString(text)
		case resource.PartReference:
			ref, ok := w.referents[p.RefID]
			if !ok {
				return unresolved(p.RefID)
			}
			sb.WriteString(ref)
		}
	}
	return nil
}

// renderUnit encodes the content a placeholder stands for.
func (w *GenericWriter) renderUnit(tu *resource.TextUnit, p resource.SkeletonPart) (string, error) {
	loc := w.opts.Locale
	if loc.IsEmpty() {
		loc = p.Locale
	}
	tc := pickContainer(tu, loc, p.TargetOnly)
	if tc == nil {
		return "", nil
	}
	if tc == tu.Source {
		if raw, ok := tu.Verbatim(); ok && w.fits(raw) {
			return w.encoder("").Encode(raw, encoder.ContextSkeleton), nil
		}
	}
	return w.renderFragment(content(tc), tu.MimeType)
}

// fits reports whether every character of s can be written in the output
// encoding.
func (w *GenericWriter) fits(s string) bool {
	charset, err := encoder.Lookup(w.outputEncoding())
	if err != nil {
		return false
	}
	if charset == nil {
		return true
	}
	for _, r := range s {
		if !encoder.Representable(charset, r) {
			return false
		}
	}
	return true
}

func (w *GenericWriter) renderFragment(tf *resource.TextFragment, mime string) (string, error) {
	enc := w.encoder(mime)
	coded := []rune(tf.CodedText())
	codes := tf.Codes()
	var sb strings.Builder
	start := 0
	flush := func(end int) {
		if end > start {
			sb.WriteString(enc.Encode(string(coded[start:end]), encoder.ContextText))
		}
	}
	for i := 0; i < len(coded); i++ {
		if !resource.IsMarker(coded[i]) || i+1 >= len(coded) {
			continue
		}
		flush(i)
		c := codes[resource.CodeIndex(coded[i+1])]
		data, err := w.resolveCodeData(c.Data, enc)
		if err != nil {
			return "", err
		}
		sb.WriteString(data)
		i++
		start = i + 1
	}
	flush(len(coded))
	return sb.String(), nil
}

// resolveCodeData encodes code data, replacing reference markers with the
// stored output of the referenced resource.
func (w *GenericWriter) resolveCodeData(data string, enc encoder.Encoder) (string, error) {
	if !strings.Contains(data, "[#$") {
		return enc.Encode(data, encoder.ContextInline), nil
	}
	var sb strings.Builder
	for {
		i := strings.Index(data, "[#$")
		if i < 0 {
			break
		}
		j := strings.IndexByte(data[i:], ']')
		if j < 0 {
			break
		}
		id := data[i+3 : i+j]
		ref, ok := w.referents[id]
		if !ok {
			return "", unresolved(id)
		}
		sb.WriteString(enc.Encode(data[:i], encoder.ContextInline))
		sb.WriteString(ref)
		data = data[i+j+1:]
	}
	sb.WriteString(enc.Encode(data, encoder.ContextInline))
	return sb.String(), nil
}
