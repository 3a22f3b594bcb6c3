package writer

import (
	"fmt"
	"io"
	"strings"

	"l10nkit/internal/encoder"
	"l10nkit/internal/resource"
)

// Merge context crumbs written in msgctxt lines.
const (
	CrumbsPrefix     = "okpCtx"
	SubDocumentCrumb = "sd="
	GroupCrumb       = "gp="
	TextUnitCrumb    = "tu="
)

// POOptions configures a POWriter.
type POOptions struct {
	Options
	// ForMerge writes msgctxt crumbs so the file can be merged back into
	// its original format.
	ForMerge bool
	// POT writes a template with empty msgstr entries.
	POT bool
	// TransFuzzy flags existing translations as fuzzy in merge mode.
	TransFuzzy bool
	// Wrap splits strings after each \n.
	Wrap bool
}

// POWriter writes the units of any document as a gettext PO file.
type POWriter struct {
	opts      POOptions
	out       io.Writer
	sd        *resource.StartDocument
	buf       strings.Builder
	lineBreak string
	crumbs    Crumbs
	group     int
	plural    int
	plurals   []*resource.TextUnit
}

// NewPOWriter creates a POWriter.
func NewPOWriter(opts POOptions) *POWriter {
	return &POWriter{opts: opts, plural: -1}
}

func (w *POWriter) SetOutput(out io.Writer) { w.out = out }

func (w *POWriter) Close() error {
	w.plurals = nil
	return nil
}

// HandleEvent writes one event.
func (w *POWriter) HandleEvent(e resource.Event) error {
	switch e.Kind() {
	case resource.KindStartDocument:
		w.startDocument(e.StartDocument())
	case resource.KindEndDocument:
		return w.endDocument()
	case resource.KindStartSubDocument, resource.KindEndSubDocument:
		w.crumbs.Track(e)
	case resource.KindStartGroup, resource.KindStartSubfilter:
		w.group++
		if sg := e.StartGroup(); sg != nil && sg.Type == resource.GroupTypePlurals {
			w.plural = w.group
			w.plurals = w.plurals[:0]
		}
		w.crumbs.Track(e)
	case resource.KindEndGroup, resource.KindEndSubfilter:
		if w.plural == w.group {
			w.plural = -1
			if err := w.writePlurals(); err != nil {
				return err
			}
		}
		w.group--
		w.crumbs.Track(e)
	case resource.KindTextUnit:
		tu := e.TextUnit()
		if w.plural > -1 {
			w.plurals = append(w.plurals, tu)
			return nil
		}
		w.writeUnit(tu)
	case resource.KindMultiEvent:
		for _, sub := range e.MultiEvent().Events() {
			if err := w.HandleEvent(sub); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *POWriter) encoding() string {
	if w.opts.Encoding != "" {
		return w.opts.Encoding
	}
	if w.sd != nil && w.sd.Encoding != "" && !strings.HasPrefix(strings.ToUpper(w.sd.Encoding), "UTF-16") {
		return w.sd.Encoding
	}
	return "UTF-8"
}

func (w *POWriter) startDocument(sd *resource.StartDocument) {
	w.sd = sd
	w.buf.Reset()
	w.group, w.plural = 0, -1
	w.crumbs.Reset()
	w.lineBreak = sd.LineBreak
	if w.lineBreak == "" {
		w.lineBreak = "\n"
	}
	loc := w.opts.Locale

	w.line("# ")
	if w.opts.ForMerge {
		w.line("# This file is intended to be merged back. ")
		w.line("# Please preserve the msgctxt lines and the order of the entries.")
		w.line("# ")
	}
	w.line(`msgid ""`)
	w.line(`msgstr ""`)
	w.line(`"Content-Type: text/plain; charset=` + w.encoding() + `\n"`)
	w.line(`"Content-Transfer-Encoding: 8bit\n"`)
	w.line(`"Language: ` + loc.POSIX() + `\n"`)
	w.line(`"Plural-Forms: ` + PluralForms(loc) + `\n"`)
	w.line("")
}

func (w *POWriter) endDocument() error {
	if w.sd == nil {
		return fmt.Errorf("end of document without start")
	}
	if w.out == nil {
		return ErrNoOutput
	}
	data, err := encoder.Encode(w.buf.String(), w.encoding(), false)
	if err != nil {
		return fmt.Errorf("write po %s: %w", w.sd.Name, err)
	}
	if _, err := w.out.Write(data); err != nil {
		return fmt.Errorf("write po %s: %w", w.sd.Name, err)
	}
	w.opts.Log.Debug().Str("doc", w.sd.Name).Msg("PO file written")
	w.sd = nil
	return nil
}

func (w *POWriter) line(s string) {
	w.buf.WriteString(s)
	w.buf.WriteString(w.lineBreak)
}

// MergeContext returns the msgctxt value identifying tu in merge mode.
func (w *POWriter) MergeContext(tu *resource.TextUnit) string {
	return w.crumbs.Context(tu.ID)
}

// Crumbs tracks the structural path of the current event, as written in
// merge-mode msgctxt lines.
type Crumbs struct {
	path []string
}

// Reset empties the path.
func (c *Crumbs) Reset() { c.path = []string{CrumbsPrefix} }

// Track updates the path for start and end events of sub-documents,
// groups and subfilters. A start document resets it.
func (c *Crumbs) Track(e resource.Event) {
	switch e.Kind() {
	case resource.KindStartDocument:
		c.Reset()
	case resource.KindStartSubDocument:
		c.path = append(c.path, SubDocumentCrumb+e.Resource().ResourceID())
	case resource.KindStartGroup, resource.KindStartSubfilter:
		c.path = append(c.path, GroupCrumb+e.Resource().ResourceID())
	case resource.KindEndSubDocument, resource.KindEndGroup, resource.KindEndSubfilter:
		if len(c.path) > 1 {
			c.path = c.path[:len(c.path)-1]
		}
	}
}

// Context returns the msgctxt value for the unit with id tuID.
func (c *Crumbs) Context(tuID string) string {
	if len(c.path) == 0 {
		c.Reset()
	}
	return strings.Join(c.path, ":") + ":" + TextUnitCrumb + tuID
}

func approved(tc *resource.TextContainer) (string, bool) {
	if tc == nil || tc.Properties == nil {
		return "", false
	}
	v, ok := tc.Properties[resource.PropApproved]
	return v, ok
}

func (w *POWriter) writeUnit(tu *resource.TextUnit) {
	if tu.IsEmpty() || !tu.Translatable {
		return
	}
	tc := tu.Target(w.opts.Locale)

	if !w.opts.POT {
		if v, ok := approved(tc); ok {
			if v != "yes" {
				w.line("#, fuzzy")
			}
		} else if w.opts.ForMerge && tc != nil && !content(tc).IsEmpty() && w.opts.TransFuzzy {
			w.line("#, fuzzy")
		}
	}
	if note := tu.Property(resource.PropNote); note != "" {
		for _, l := range strings.Split(note, "\n") {
			w.line("#. " + l)
		}
	}
	w.writeContext(tu)

	w.line("msgid " + w.quoted(content(tu.Source)))
	if tc != nil && !w.opts.POT {
		w.line("msgstr " + w.quoted(content(tc)))
	} else {
		w.line(`msgstr ""`)
	}
	w.line("")
}

// writeContext writes the msgctxt of an entry: the crumbs in merge mode,
// the unit's own context otherwise.
func (w *POWriter) writeContext(tu *resource.TextUnit) {
	if w.opts.ForMerge {
		w.line(`msgctxt "` + w.MergeContext(tu) + `"`)
	} else if ctx := tu.Property(resource.PropContext); ctx != "" {
		w.line("msgctxt " + w.quoted(resource.NewTextFragment(ctx)))
	}
}

func (w *POWriter) writePlurals() error {
	if len(w.plurals) < 2 {
		id := ""
		if len(w.plurals) == 1 {
			id = w.plurals[0].ID
		}
		return fmt.Errorf("%w: got %d (unit %q)", ErrPluralGroup, len(w.plurals), id)
	}
	first := w.plurals[0]
	if v, ok := approved(first.Target(w.opts.Locale)); ok && v != "yes" && !w.opts.POT {
		w.line("#, fuzzy")
	}
	w.writeContext(first)
	w.line("msgid " + w.quoted(content(first.Source)))
	w.line("msgid_plural " + w.quoted(content(w.plurals[1].Source)))
	for i, tu := range w.plurals {
		if tc := tu.Target(w.opts.Locale); tc != nil && !w.opts.POT {
			w.line(fmt.Sprintf("msgstr[%d] %s", i, w.quoted(content(tc))))
		} else {
			w.line(fmt.Sprintf(`msgstr[%d] ""`, i))
		}
	}
	w.line("")
	return nil
}

// quoted renders content as one or more PO string literals.
func (w *POWriter) quoted(tf *resource.TextFragment) string {
	var text string
	if w.opts.ForMerge {
		text = resource.ToGeneric(tf)
	} else {
		text = tf.String()
	}
	text = encoder.EscapeIfNeeded(text)
	if !w.opts.Wrap || !strings.Contains(text, `\n`) {
		return `"` + text + `"`
	}

	var sb strings.Builder
	sb.WriteString(`""`)
	for text != "" {
		n := strings.Index(text, `\n`)
		if n < 0 {
			n = len(text)
		} else {
			n += 2
		}
		sb.WriteString(w.lineBreak + `"` + text[:n] + `"`)
		text = text[n:]
	}
	return sb.String()
}
